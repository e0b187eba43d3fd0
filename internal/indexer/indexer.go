// Package indexer implements the Indexer (spec §4.4, C4): full-replacement
// indexing, the token-scoring model, and partial stock/price updates.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"productsearch/internal/ngram"
	"productsearch/internal/project"
	"productsearch/internal/queryproc"
	"productsearch/internal/store"
)

// The weight* constants are the per-occurrence weight for each source field
// (spec §4.4's table).
const (
	weightName        = 3.0
	weightBrand        = 2.0
	weightCategory      = 1.5
	weightDescription   = 1.0
	weightVendorCode   = 3.0
	weightParamValue   = 2.0
	descriptionMaxRune = 500
)

// Indexer rebuilds a project's inverted/n-gram/suggestion indexes and
// product store from a product list.
type Indexer struct {
	kv         store.KV
	relational store.Relational
	ngramWidth int
	logger     *zap.Logger
}

func New(kv store.KV, relational store.Relational, ngramWidth int, logger *zap.Logger) *Indexer {
	return &Indexer{kv: kv, relational: relational, ngramWidth: ngramWidth, logger: logger}
}

// IndexProducts performs the full-replacement batch of spec §4.4: delete
// old keys, write products, upsert inverted/n-gram/suggestion indexes. A
// relational backup is attempted but never fails the replacement (spec §9
// open question: backup is optional/non-blocking).
func (ix *Indexer) IndexProducts(ctx context.Context, projectID string, products []project.Product) (int, error) {
	keys := store.Keys{}

	deduped := dedupeByID(products)

	if err := ix.kv.DeletePattern(ctx, keys.ProductPattern(projectID)); err != nil {
		return 0, fmt.Errorf("delete stale products: %w", err)
	}
	if err := ix.kv.DeletePattern(ctx, keys.IndexPattern(projectID)); err != nil {
		return 0, fmt.Errorf("delete stale indexes: %w", err)
	}

	var ops []store.PipelineOp
	suggestCounts := map[string]float64{}

	for _, p := range deduped {
		payload, err := json.Marshal(p)
		if err != nil {
			if ix.logger != nil {
				ix.logger.Warn("skipping product with unmarshalable payload", zap.String("id", p.ID), zap.Error(err))
			}
			continue
		}
		ops = append(ops, store.PipelineOp{Kind: store.OpSet, Key: keys.Product(projectID, p.ID), Value: payload})

		tokenScores := TokenScores(p)
		for token, score := range tokenScores {
			ops = append(ops, store.PipelineOp{
				Kind:   store.OpZAdd,
				Key:    keys.InvertedPosting(projectID, token),
				Member: p.ID,
				Score:  round4(score),
			})
			for _, g := range ngram.Generate(token, ix.ngramWidth) {
				ops = append(ops, store.PipelineOp{
					Kind:   store.OpSAdd,
					Key:    keys.NGramSet(projectID, g),
					Member: token,
				})
			}
		}

		for _, phrase := range namePrefixPhrases(p.Name) {
			suggestCounts[phrase]++
		}
	}

	for phrase, count := range suggestCounts {
		ops = append(ops, store.PipelineOp{
			Kind:   store.OpZAdd,
			Key:    keys.Suggest(projectID),
			Member: phrase,
			Score:  count,
		})
	}

	if err := ix.kv.Pipeline(ctx, ops); err != nil {
		return 0, fmt.Errorf("pipeline index write: %w", err)
	}

	if ix.relational != nil {
		if err := ix.relational.BackupProducts(ctx, projectID, deduped); err != nil && ix.logger != nil {
			ix.logger.Warn("relational product backup failed (non-blocking)", zap.String("project", projectID), zap.Error(err))
		}
	}

	return len(deduped), nil
}

// TokenScores extracts the per-token accumulated score for a single
// product (spec §4.4's weighting table), rounded to 4 decimals.
func TokenScores(p project.Product) map[string]float64 {
	scores := map[string]float64{}
	add := func(text string, weight float64) {
		r := queryproc.Process(text, nil)
		for _, t := range r.Tokens {
			scores[t] += weight
		}
	}

	add(p.Name, weightName)
	add(p.Brand, weightBrand)
	add(p.Category, weightCategory)
	add(truncateRunes(p.Description, descriptionMaxRune), weightDescription)
	add(p.VendorCode, weightVendorCode)
	for _, v := range p.Params {
		add(v, weightParamValue)
	}

	for t, s := range scores {
		scores[t] = round4(s)
	}
	return scores
}

// namePrefixPhrases returns the cumulative left-anchored phrases of a
// tokenized product name, used to populate the suggestion index (spec §3,
// §4.4 step 5).
func namePrefixPhrases(name string) []string {
	r := queryproc.Process(name, nil)
	if len(r.Tokens) == 0 {
		return nil
	}
	phrases := make([]string, 0, len(r.Tokens))
	for i := range r.Tokens {
		phrases = append(phrases, strings.Join(r.Tokens[:i+1], " "))
	}
	return phrases
}

// dedupeByID keeps only the last occurrence of each product ID (spec §8:
// "last occurrence wins"; no accumulation across duplicates).
func dedupeByID(products []project.Product) []project.Product {
	index := map[string]int{}
	out := make([]project.Product, 0, len(products))
	for _, p := range products {
		if i, ok := index[p.ID]; ok {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
