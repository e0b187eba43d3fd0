package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	supabase "github.com/supabase-community/supabase-go"

	"productsearch/internal/project"
)

// SupabaseRelational implements Relational against Postgres via the
// Supabase PostgREST API, following the teacher's use of supabase-go as its
// client for the relational backing store (cmd/ws-connect/main.go).
//
// PostgREST cannot issue DDL, so schema migration is handled separately by
// MigrationRunner (migration.go) over a direct pgx connection.
type SupabaseRelational struct {
	client *supabase.Client
}

func NewSupabaseRelational(url, apiKey string) (*SupabaseRelational, error) {
	c, err := supabase.NewClient(url, apiKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &SupabaseRelational{client: c}, nil
}

type projectRow struct {
	ID             string         `json:"id"`
	OwnerUserID    string         `json:"owner_user_id"`
	Name           string         `json:"name"`
	OriginDomain   string         `json:"origin_domain"`
	FeedURL        string         `json:"feed_url"`
	Status         string         `json:"status"`
	WidgetConfig   map[string]any `json:"widget_config"`
	SearchSettings json.RawMessage `json:"search_settings"`
	Synonyms       json.RawMessage `json:"synonyms"`
	ProductCount   int            `json:"product_count"`
	APIKey         string         `json:"api_key"`
	AutoUpdate     bool           `json:"auto_update"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (r *SupabaseRelational) FindProjectByID(ctx context.Context, id string) (*project.Project, error) {
	data, _, err := r.client.From("projects").Select("*", "", false).Eq("id", id).Single().ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query project %q: %w", id, err)
	}
	return decodeProjectRow(data)
}

func (r *SupabaseRelational) FindProjectByAPIKey(ctx context.Context, apiKey string) (*project.Project, error) {
	data, _, err := r.client.From("projects").Select("*", "", false).Eq("api_key", apiKey).Single().ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query project by api key: %w", err)
	}
	return decodeProjectRow(data)
}

func (r *SupabaseRelational) ListProjects(ctx context.Context) ([]project.Project, error) {
	data, _, err := r.client.From("projects").Select("*", "", false).ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var rows []projectRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	out := make([]project.Project, 0, len(rows))
	for _, row := range rows {
		p, err := rowToProject(row)
		if err != nil {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *SupabaseRelational) UpsertProjectFeedStatus(ctx context.Context, projectID string, status project.FeedStatus) error {
	body := map[string]any{
		"project_id":       projectID,
		"status":           status.Status,
		"last_update":      status.LastUpdate,
		"products_count":   status.ProductsCount,
		"categories_count": status.CategoriesCount,
		"message":          status.Message,
		"progress":         status.Progress,
	}
	_, _, err := r.client.From("feed_status").Upsert(body, "project_id", "", "").ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert feed status: %w", err)
	}
	return nil
}

func (r *SupabaseRelational) BackupProducts(ctx context.Context, projectID string, products []project.Product) error {
	rows := make([]map[string]any, 0, len(products))
	for _, p := range products {
		payload, err := json.Marshal(p)
		if err != nil {
			continue
		}
		rows = append(rows, map[string]any{
			"project_id": projectID,
			"product_id": p.ID,
			"payload":    json.RawMessage(payload),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	_, _, err := r.client.From("product_backup").Upsert(rows, "project_id,product_id", "", "").ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("backup products: %w", err)
	}
	return nil
}

func (r *SupabaseRelational) RestoreProducts(ctx context.Context, projectID string) ([]project.Product, error) {
	data, _, err := r.client.From("product_backup").Select("payload", "", false).Eq("project_id", projectID).ExecuteWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore products: %w", err)
	}
	var rows []struct {
		Payload project.Product `json:"payload"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode product backup: %w", err)
	}
	out := make([]project.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Payload)
	}
	return out, nil
}

func (r *SupabaseRelational) RecordAnalyticsSnapshot(ctx context.Context, projectID string, queries, clicks int64) error {
	body := map[string]any{
		"project_id":   projectID,
		"total_queries": queries,
		"total_clicks":  clicks,
		"recorded_at":   time.Now().UTC(),
	}
	_, _, err := r.client.From("analytics_snapshots").Insert(body, false, "", "", "").ExecuteWithContext(ctx)
	if err != nil {
		return fmt.Errorf("record analytics snapshot: %w", err)
	}
	return nil
}

func decodeProjectRow(data []byte) (*project.Project, error) {
	var row projectRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("decode project row: %w", err)
	}
	return rowToProject(row)
}

func rowToProject(row projectRow) (*project.Project, error) {
	var settings project.SearchSettings
	if len(row.SearchSettings) > 0 {
		_ = json.Unmarshal(row.SearchSettings, &settings)
	}
	var synonyms [][]string
	if len(row.Synonyms) > 0 {
		_ = json.Unmarshal(row.Synonyms, &synonyms)
	}
	groups := make([]project.SynonymGroup, 0, len(synonyms))
	for _, g := range synonyms {
		groups = append(groups, project.SynonymGroup(g))
	}
	return &project.Project{
		ID:             row.ID,
		OwnerUserID:    row.OwnerUserID,
		Name:           row.Name,
		OriginDomain:   row.OriginDomain,
		FeedURL:        row.FeedURL,
		Status:         project.Status(row.Status),
		WidgetConfig:   row.WidgetConfig,
		SearchSettings: settings,
		Synonyms:       groups,
		ProductCount:   row.ProductCount,
		APIKey:         row.APIKey,
		AutoUpdate:     row.AutoUpdate,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}
