package indexer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"productsearch/internal/project"
	"productsearch/internal/store"
)

// StockPriceUpdate carries the subset of fields update_stock_prices may
// mutate (spec §4.4).
type StockPriceUpdate struct {
	ProductID string
	Price     *float64
	OldPrice  *float64
	InStock   *bool
	Quantity  *int
}

// UpdateStockPrices mutates only price/old_price/in_stock/quantity on
// existing product records and recomputes discount_percent. It is not
// serialized against full indexings (spec §5: "don't do both at once").
func (ix *Indexer) UpdateStockPrices(ctx context.Context, projectID string, updates []StockPriceUpdate) (int, error) {
	keys := store.Keys{}
	updated := 0

	for _, u := range updates {
		raw, ok, err := ix.kv.Get(ctx, keys.Product(projectID, u.ProductID))
		if err != nil {
			return updated, fmt.Errorf("load product %q: %w", u.ProductID, err)
		}
		if !ok {
			continue
		}
		var p project.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			if ix.logger != nil {
				ix.logger.Warn("skipping unparseable stored product", zap.String("id", u.ProductID), zap.Error(err))
			}
			continue
		}

		wasInStock := p.InStock
		if u.Price != nil {
			p.Price = *u.Price
		}
		if u.OldPrice != nil {
			p.OldPrice = u.OldPrice
		}
		if u.InStock != nil {
			p.InStock = *u.InStock
		}
		if u.Quantity != nil {
			p.Quantity = u.Quantity
		}
		p.ApplyDiscount()

		payload, err := json.Marshal(p)
		if err != nil {
			continue
		}
		if err := ix.kv.Set(ctx, keys.Product(projectID, p.ID), payload); err != nil {
			return updated, fmt.Errorf("write updated product %q: %w", p.ID, err)
		}

		if wasInStock && !p.InStock {
			if err := ix.rescalePostings(ctx, projectID, p, 0.5); err != nil {
				return updated, err
			}
		} else if !wasInStock && p.InStock {
			if err := ix.restorePostings(ctx, projectID, p); err != nil {
				return updated, err
			}
		}

		updated++
	}
	return updated, nil
}

// rescalePostings multiplies every inverted-index entry for p's tokens by
// factor (spec §4.4: stock-out halves existing scores).
func (ix *Indexer) rescalePostings(ctx context.Context, projectID string, p project.Product, factor float64) error {
	keys := store.Keys{}
	for token := range TokenScores(p) {
		postings, err := ix.kv.ZRange(ctx, keys.InvertedPosting(projectID, token))
		if err != nil {
			return fmt.Errorf("read postings for rescale: %w", err)
		}
		for _, m := range postings {
			if m.Member != p.ID {
				continue
			}
			if err := ix.kv.ZAdd(ctx, keys.InvertedPosting(projectID, token), p.ID, round4(m.Score*factor)); err != nil {
				return fmt.Errorf("rescale posting: %w", err)
			}
		}
	}
	return nil
}

// restorePostings re-runs token extraction for p and re-upserts full-weight
// postings (spec §4.4: stock-in restores scores).
func (ix *Indexer) restorePostings(ctx context.Context, projectID string, p project.Product) error {
	keys := store.Keys{}
	for token, score := range TokenScores(p) {
		if err := ix.kv.ZAdd(ctx, keys.InvertedPosting(projectID, token), p.ID, score); err != nil {
			return fmt.Errorf("restore posting: %w", err)
		}
	}
	return nil
}
