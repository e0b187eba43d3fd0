package store

import (
	"context"
	"sync"

	"productsearch/internal/apperr"
	"productsearch/internal/project"
)

// MemoryRelational is an in-memory fake of Relational for unit tests.
type MemoryRelational struct {
	mu       sync.Mutex
	projects map[string]project.Project
	byAPIKey map[string]string
	backups  map[string][]project.Product
}

func NewMemoryRelational() *MemoryRelational {
	return &MemoryRelational{
		projects: map[string]project.Project{},
		byAPIKey: map[string]string{},
		backups:  map[string][]project.Product{},
	}
}

func (m *MemoryRelational) Put(p project.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	m.byAPIKey[p.APIKey] = p.ID
}

func (m *MemoryRelational) FindProjectByID(_ context.Context, id string) (*project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, apperr.NotFound("project not found: " + id)
	}
	return &p, nil
}

func (m *MemoryRelational) FindProjectByAPIKey(_ context.Context, apiKey string) (*project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byAPIKey[apiKey]
	if !ok {
		return nil, apperr.NotFound("unknown api key")
	}
	p := m.projects[id]
	return &p, nil
}

func (m *MemoryRelational) ListProjects(_ context.Context) ([]project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]project.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *MemoryRelational) UpsertProjectFeedStatus(_ context.Context, _ string, _ project.FeedStatus) error {
	return nil
}

func (m *MemoryRelational) BackupProducts(_ context.Context, projectID string, products []project.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]project.Product, len(products))
	copy(cp, products)
	m.backups[projectID] = cp
	return nil
}

func (m *MemoryRelational) RestoreProducts(_ context.Context, projectID string) ([]project.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backups[projectID], nil
}

func (m *MemoryRelational) RecordAnalyticsSnapshot(_ context.Context, _ string, _, _ int64) error {
	return nil
}
