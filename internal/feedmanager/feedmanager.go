// Package feedmanager implements the Feed Manager (spec §4.7, C7): fetching
// a project's feed over HTTP behind a circuit breaker, parsing it, indexing
// the result, and publishing status transitions.
package feedmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"productsearch/internal/feedparse"
	"productsearch/internal/indexer"
	"productsearch/internal/project"
	"productsearch/internal/store"
)

const (
	fetchTimeout  = 300 * time.Second
	maxFeedBytes  = 500 << 20 // 500MB; bytes past this are not read
	eventSource   = "productsearch.feedmanager"
	feedEventBus  = "default"
)

// Manager runs load_feed (spec §4.7 contract).
type Manager struct {
	kv       store.KV
	index    *indexer.Indexer
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	events   *eventbridge.Client
	eventBus string
	logger   *zap.Logger
}

func New(kv store.KV, index *indexer.Indexer, events *eventbridge.Client, eventBus string, logger *zap.Logger) *Manager {
	if eventBus == "" {
		eventBus = feedEventBus
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "feed-fetch",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	return &Manager{
		kv:       kv,
		index:    index,
		client:   &http.Client{Timeout: fetchTimeout},
		breaker:  breaker,
		events:   events,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Result is load_feed's success payload.
type Result struct {
	Success         bool
	ProductsCount   int
	CategoriesCount int
	Error           string
}

// LoadFeed downloads url, parses it, and indexes the resulting products,
// publishing downloading → indexing → success/error transitions on
// project:{project}:feed.
func (m *Manager) LoadFeed(ctx context.Context, proj *project.Project, url string) Result {
	m.publish(ctx, proj.ID, project.FeedStatus{Status: project.FeedDownload, LastUpdate: time.Now().UTC()})

	body, err := m.fetch(ctx, url)
	if err != nil {
		return m.fail(ctx, proj.ID, fmt.Sprintf("fetch failed: %v", err))
	}
	defer body.Close()

	m.publish(ctx, proj.ID, project.FeedStatus{Status: project.FeedIndexing, LastUpdate: time.Now().UTC()})

	parsed, err := feedparse.ParseXML(io.LimitReader(body, maxFeedBytes), m.logger)
	if err != nil {
		return m.fail(ctx, proj.ID, fmt.Sprintf("parse failed: %v", err))
	}

	count, err := m.index.IndexProducts(ctx, proj.ID, parsed.Products)
	if err != nil {
		return m.fail(ctx, proj.ID, fmt.Sprintf("index failed: %v", err))
	}

	status := project.FeedStatus{
		Status:          project.FeedSuccess,
		LastUpdate:      time.Now().UTC(),
		ProductsCount:   count,
		CategoriesCount: len(parsed.Categories),
	}
	m.publish(ctx, proj.ID, status)

	return Result{Success: true, ProductsCount: count, CategoriesCount: len(parsed.Categories)}
}

// fetch downloads url behind the circuit breaker; non-200 responses are
// rejected (spec §4.7).
func (m *Manager) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	result, err := m.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return resp.Body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(io.ReadCloser), nil
}

// fail records a feed failure without disturbing previously indexed data
// (spec §4.7: "preserving previously indexed data").
func (m *Manager) fail(ctx context.Context, projectID, message string) Result {
	m.publish(ctx, projectID, project.FeedStatus{
		Status:     project.FeedError,
		LastUpdate: time.Now().UTC(),
		Message:    message,
	})
	if m.logger != nil {
		m.logger.Warn("feed load failed", zap.String("project", projectID), zap.String("reason", message))
	}
	return Result{Success: false, Error: message}
}

func (m *Manager) publish(ctx context.Context, projectID string, status project.FeedStatus) {
	payload := feedStatusKV(status)
	if err := m.kv.Set(ctx, store.Keys{}.Feed(projectID), payload); err != nil && m.logger != nil {
		m.logger.Warn("failed to persist feed status to kv", zap.String("project", projectID), zap.Error(err))
	}
	m.publishEvent(ctx, projectID, status)
}

func (m *Manager) publishEvent(ctx context.Context, projectID string, status project.FeedStatus) {
	if m.events == nil {
		return
	}
	detail := feedStatusKV(status)
	_, err := m.events.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(m.eventBus),
			Source:       aws.String(eventSource),
			DetailType:   aws.String("FeedStatusChanged"),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(status.LastUpdate),
			Resources:    []string{"project/" + projectID},
		}},
	})
	if err != nil && m.logger != nil {
		m.logger.Warn("failed to publish feed status event", zap.String("project", projectID), zap.Error(err))
	}
}

// feedStatusKV marshals status for both the KV-resident feed key and the
// EventBridge event detail payload.
func feedStatusKV(status project.FeedStatus) []byte {
	payload, err := json.Marshal(status)
	if err != nil {
		return []byte(`{}`)
	}
	return payload
}
