// Package project holds the tenant-scoped domain types described in spec
// §3: Project, Product, FeedStatus, SynonymGroup, and the settings that
// shape search/suggest behavior per project.
package project

import "time"

// Status is a project's lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// SearchSettings configures related-items and boost behavior for a project
// (spec §4.5 step 9).
type SearchSettings struct {
	RelatedProductsField string   `json:"relatedProductsField,omitempty"`
	RelatedProductsLimit int      `json:"relatedProductsLimit,omitempty"`
	BoostFields          []string `json:"boostFields,omitempty"`
}

// SynonymGroup is an ordered sequence of mutually-synonymous surface forms.
type SynonymGroup []string

// Project is the tenant unit (spec §3).
type Project struct {
	ID              string            `json:"id"`
	OwnerUserID     string            `json:"ownerUserId"`
	Name            string            `json:"name"`
	OriginDomain    string            `json:"originDomain"`
	FeedURL         string            `json:"feedUrl"`
	Status          Status            `json:"status"`
	WidgetConfig    map[string]any    `json:"widgetConfig"`
	SearchSettings  SearchSettings    `json:"searchSettings"`
	Synonyms        []SynonymGroup    `json:"synonyms"`
	ProductCount    int               `json:"productCount"`
	APIKey          string            `json:"apiKey"`
	AutoUpdate      bool              `json:"autoUpdate"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// DemoProjectID is the reserved fallback project used when a request carries
// no recognizable project identifier or API key (spec §7: "never 500").
const DemoProjectID = "demo"

// Product is an indexed catalog item (spec §3).
type Product struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	URL             string            `json:"url"`
	Description     string            `json:"description"`
	Image           string            `json:"image"`
	Images          []string          `json:"images,omitempty"`
	Price           float64           `json:"price"`
	OldPrice        *float64          `json:"oldPrice,omitempty"`
	Currency        string            `json:"currency"`
	InStock         bool              `json:"inStock"`
	Quantity        *int              `json:"quantity,omitempty"`
	Category        string            `json:"category"`
	Brand           string            `json:"brand"`
	VendorCode      string            `json:"vendorCode"`
	Params          map[string]string `json:"params,omitempty"`
	DiscountPercent *int              `json:"discountPercent,omitempty"`
}

// ApplyDiscount recomputes DiscountPercent per spec §3:
// round((1 - price/old_price) * 100) when 0 < price < old_price, else nil.
func (p *Product) ApplyDiscount() {
	p.DiscountPercent = nil
	if p.OldPrice == nil {
		return
	}
	old := *p.OldPrice
	if p.Price > 0 && old > p.Price {
		pct := int(roundHalfAwayFromZero((1 - p.Price/old) * 100))
		p.DiscountPercent = &pct
	}
}

func roundHalfAwayFromZero(f float64) float64 {
	if f >= 0 {
		return float64(int(f + 0.5))
	}
	return float64(int(f - 0.5))
}

// FeedState enumerates the outcome of the most recent feed attempt.
type FeedState string

const (
	FeedNotLoaded FeedState = "not_loaded"
	FeedDownload  FeedState = "downloading"
	FeedIndexing  FeedState = "indexing"
	FeedSuccess   FeedState = "success"
	FeedError     FeedState = "error"
)

// FeedStatus is the per-project last-attempt outcome (spec §3).
type FeedStatus struct {
	Status          FeedState `json:"status"`
	LastUpdate      time.Time `json:"lastUpdate"`
	ProductsCount   int       `json:"productsCount"`
	CategoriesCount int       `json:"categoriesCount"`
	Message         string    `json:"message,omitempty"`
	Progress        int       `json:"progress"`
}
