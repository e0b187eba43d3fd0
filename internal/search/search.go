// Package search implements the Search Engine (spec §4.5, C5): primary
// inverted-index retrieval, layout and n-gram fallback, filtering, sorting,
// pagination, hydration, and related-items resolution.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"productsearch/internal/apperr"
	"productsearch/internal/ngram"
	"productsearch/internal/project"
	"productsearch/internal/queryproc"
	"productsearch/internal/store"
)

const (
	layoutFallbackFactor = 0.9
	relatedExcludeCount  = 5
)

// Sort is the requested result ordering (spec §4.5 contract).
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortPopular   Sort = "popular"
)

// Filters narrows the candidate set before sorting (spec §4.5 step 6).
type Filters struct {
	InStock  *bool
	MinPrice *float64
	MaxPrice *float64
	Category string
}

// Request is the full input to Search (spec §6's external search request
// shape, minus project/API-key resolution which happens at the HTTP
// boundary).
type Request struct {
	Query   string
	Limit   int
	Offset  int
	Filters Filters
	Sort    Sort
}

// Item is one hydrated, scored result. order is unexported and carries the
// encounter order needed to keep relevance ties stable (spec §4.5 edge
// cases); it never serializes.
type Item struct {
	project.Product
	Score float64 `json:"score"`
	order int
}

// Related is the optional related-items block (spec §4.5 step 9).
type Related struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Items []Item `json:"items"`
}

// Result is Search's return value.
type Result struct {
	Items   []Item
	Total   int
	Related *Related
}

// Engine resolves queries into ranked, paginated, hydrated products.
type Engine struct {
	kv         store.KV
	ngramWidth int
}

func New(kv store.KV, ngramWidth int) *Engine {
	if ngramWidth < 1 {
		ngramWidth = ngram.DefaultWidth
	}
	return &Engine{kv: kv, ngramWidth: ngramWidth}
}

// candidate accumulates a product's score across retrieval stages.
type candidate struct {
	score float64
	order int
}

// Search runs the full C5 algorithm for one project.
func (e *Engine) Search(ctx context.Context, proj *project.Project, req Request) (Result, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	r := queryproc.Process(req.Query, nil)
	if len(r.Tokens) == 0 {
		return Result{}, nil
	}

	tokens := project.ExpandTokens(r.Tokens, proj.Synonyms)

	matches := map[string]*candidate{}
	nextOrder := 0
	bump := func(id string, score float64) {
		c, ok := matches[id]
		if !ok {
			c = &candidate{order: nextOrder}
			nextOrder++
			matches[id] = c
		}
		c.score += score
	}

	// 3. Primary retrieval.
	for _, t := range tokens {
		postings, err := e.kv.ZRange(ctx, store.Keys{}.InvertedPosting(proj.ID, t))
		if err != nil {
			return Result{}, fmt.Errorf("read postings for %q: %w", t, err)
		}
		for _, p := range postings {
			bump(p.Member, p.Score)
		}
	}

	// 4. Layout fallback.
	if len(matches) < req.Limit {
		for _, variant := range r.LayoutVariants {
			variantTokens := queryproc.Tokenize(variant, nil)
			for _, t := range variantTokens {
				postings, err := e.kv.ZRange(ctx, store.Keys{}.InvertedPosting(proj.ID, t))
				if err != nil {
					return Result{}, fmt.Errorf("read layout-fallback postings for %q: %w", t, err)
				}
				for _, p := range postings {
					if _, exists := matches[p.Member]; exists {
						continue
					}
					bump(p.Member, p.Score*layoutFallbackFactor)
				}
			}
		}
	}

	// 5. N-gram fallback. Uses the original query tokens, not the
	// synonym-expanded set: a synonym surface form the user never typed
	// should not seed fuzzy matching.
	if len(matches) < req.Limit {
		if err := e.ngramFallback(ctx, proj.ID, r.Tokens, bump); err != nil {
			return Result{}, err
		}
	}

	// 6. Hydrate + filter.
	products := make([]Item, 0, len(matches))
	for id, c := range matches {
		raw, ok, err := e.kv.Get(ctx, store.Keys{}.Product(proj.ID, id))
		if err != nil {
			return Result{}, fmt.Errorf("hydrate product %q: %w", id, err)
		}
		if !ok {
			continue
		}
		var p project.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if !passesFilters(p, req.Filters) {
			continue
		}
		products = append(products, Item{Product: p, Score: round2(c.score), order: c.order})
	}

	sortItems(products, req.Sort)

	total := len(products)
	start := req.Offset
	if start > total {
		start = total
	}
	end := start + req.Limit
	if end > total {
		end = total
	}
	page := products[start:end]

	related, err := e.relatedItems(ctx, proj, products)
	if err != nil {
		return Result{}, err
	}

	return Result{Items: page, Total: total, Related: related}, nil
}

func (e *Engine) ngramFallback(ctx context.Context, projectID string, tokens []string, bump func(string, float64)) error {
	for _, t := range tokens {
		tSet := ngram.Set(t, e.ngramWidth)
		candidates := map[string]struct{}{}
		for g := range tSet {
			members, err := e.kv.SMembers(ctx, store.Keys{}.NGramSet(projectID, g))
			if err != nil {
				return fmt.Errorf("read ngram set for %q: %w", g, err)
			}
			for _, m := range members {
				candidates[m] = struct{}{}
			}
		}
		for t2 := range candidates {
			sim := ngram.Jaccard(tSet, ngram.Set(t2, e.ngramWidth))
			if sim <= 0 {
				continue
			}
			postings, err := e.kv.ZRange(ctx, store.Keys{}.InvertedPosting(projectID, t2))
			if err != nil {
				return fmt.Errorf("read ngram-fallback postings for %q: %w", t2, err)
			}
			for _, p := range postings {
				bump(p.Member, p.Score*sim)
			}
		}
	}
	return nil
}

func passesFilters(p project.Product, f Filters) bool {
	if f.InStock != nil && p.InStock != *f.InStock {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	return true
}

// sortItems first restores encounter order (map iteration has none) so that
// every stable sort below ties consistently (spec §4.5 edge cases: "ties
// sort in encounter order").
func sortItems(items []Item, s Sort) {
	sort.Slice(items, func(i, j int) bool { return items[i].order < items[j].order })
	switch s {
	case SortPriceAsc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price < items[j].Price })
	case SortPriceDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price > items[j].Price })
	case SortPopular:
		sort.SliceStable(items, func(i, j int) bool { return items[i].popularity() > items[j].popularity() })
	default:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	}
}

// popularity is read from the quantity-derived proxy when present; products
// carry no dedicated popularity attribute in this store, so ties fall back
// to encounter order via SliceStable (spec §4.5 step 7: "if present").
func (it Item) popularity() float64 {
	if it.Quantity != nil {
		return float64(*it.Quantity)
	}
	return 0
}

func (e *Engine) relatedItems(ctx context.Context, proj *project.Project, results []Item) (*Related, error) {
	field := proj.SearchSettings.RelatedProductsField
	if field == "" || len(results) == 0 {
		return nil, nil
	}
	limit := proj.SearchSettings.RelatedProductsLimit
	if limit <= 0 {
		return nil, nil
	}

	first := results[0]
	value := fieldValue(first.Product, field)
	if value == "" {
		return nil, nil
	}

	excluded := map[string]struct{}{}
	for i := 0; i < relatedExcludeCount && i < len(results); i++ {
		excluded[results[i].ID] = struct{}{}
	}

	ids, err := scanProductIDs(ctx, e.kv, proj.ID)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, limit)
	for _, id := range ids {
		if len(items) >= limit {
			break
		}
		if _, skip := excluded[id]; skip {
			continue
		}
		raw, ok, err := e.kv.Get(ctx, store.Keys{}.Product(proj.ID, id))
		if err != nil {
			return nil, fmt.Errorf("scan related product %q: %w", id, err)
		}
		if !ok {
			continue
		}
		var p project.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			continue
		}
		if !strings.EqualFold(fieldValue(p, field), value) {
			continue
		}
		items = append(items, Item{Product: p})
	}

	return &Related{Field: field, Value: value, Items: items}, nil
}

func fieldValue(p project.Product, field string) string {
	if strings.HasPrefix(field, "params.") {
		return p.Params[strings.TrimPrefix(field, "params.")]
	}
	switch field {
	case "brand":
		return p.Brand
	case "category":
		return p.Category
	case "vendorCode":
		return p.VendorCode
	default:
		return ""
	}
}

// scanProductIDs performs the direct scan spec §4.5 step 9 calls for; the
// KV capability has no native key-listing primitive, so the scan relies on
// DeletePattern's sibling, ScanIDs, which the production Redis client backs
// with SCAN and the in-memory fake backs with a map walk.
func scanProductIDs(ctx context.Context, kv store.KV, projectID string) ([]string, error) {
	scanner, ok := kv.(store.IDScanner)
	if !ok {
		return nil, apperr.Internal("kv backend does not support related-item scan", nil)
	}
	return scanner.ScanIDs(ctx, store.Keys{}.ProductPattern(projectID))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
