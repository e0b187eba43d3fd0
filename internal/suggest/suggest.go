// Package suggest implements the Suggest Engine (spec §4.6, C6): prefix
// lookup against the per-project suggestion index, with an optional product
// preview delegated to the search engine.
package suggest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"productsearch/internal/project"
	"productsearch/internal/queryproc"
	"productsearch/internal/search"
	"productsearch/internal/store"
)

// WidgetLimit is the hard cap the widget-facing contract imposes on
// suggestion count, regardless of the caller-requested limit (spec §4.6).
const WidgetLimit = 3

// ProductPreviewLimit is the fixed search limit used when include_products
// is requested (spec §4.6).
const ProductPreviewLimit = 8

// Result is suggest's return value.
type Result struct {
	Queries  []string      `json:"queries"`
	Products []search.Item `json:"products,omitempty"`
}

// Engine resolves a raw prefix into ranked suggestion phrases.
type Engine struct {
	kv        store.KV
	searchEng *search.Engine
}

func New(kv store.KV, searchEng *search.Engine) *Engine {
	return &Engine{kv: kv, searchEng: searchEng}
}

// Suggest runs the C6 algorithm: normalize, filter by prefix, sort by
// descending count, truncate to limit (capped at WidgetLimit).
func (e *Engine) Suggest(ctx context.Context, proj *project.Project, prefix string, limit int, includeProducts bool) (Result, error) {
	if limit <= 0 || limit > WidgetLimit {
		limit = WidgetLimit
	}
	normalized := queryproc.Normalize(prefix)

	members, err := e.kv.ZRange(ctx, store.Keys{}.Suggest(proj.ID))
	if err != nil {
		return Result{}, fmt.Errorf("read suggestion index: %w", err)
	}

	matches := make([]store.ScoredMember, 0, len(members))
	for _, m := range members {
		if normalized == "" || strings.HasPrefix(m.Member, normalized) {
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	queries := make([]string, 0, len(matches))
	for _, m := range matches {
		queries = append(queries, m.Member)
	}

	result := Result{Queries: queries}
	if !includeProducts || e.searchEng == nil {
		return result, nil
	}

	previewQuery := normalized
	if len(queries) > 0 {
		previewQuery = queries[0]
	}
	if previewQuery == "" {
		return result, nil
	}

	searchResult, err := e.searchEng.Search(ctx, proj, search.Request{Query: previewQuery, Limit: ProductPreviewLimit})
	if err != nil {
		return Result{}, fmt.Errorf("preview search: %w", err)
	}
	result.Products = searchResult.Items
	return result, nil
}
