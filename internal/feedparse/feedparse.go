// Package feedparse implements the Feed Parser (spec §4.3, C3): a
// streaming reader for Yandex-Market-style catalog XML that bounds memory
// by releasing each offer before moving to the next (spec §9, "Streaming
// XML parser").
package feedparse

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"productsearch/internal/project"
)

// Category is one entry of the feed's <categories> list.
type Category struct {
	ID       string
	ParentID string
	Name     string
}

// Result is the outcome of parsing one feed document.
type Result struct {
	Products   []project.Product
	Categories []Category
	Skipped    int
}

// offerXML mirrors one <offer> element's shape loosely enough to tolerate
// missing fields (spec §7: "data-shape drift ... degrade gracefully").
type offerXML struct {
	ID          string    `xml:"id,attr"`
	Available   *bool     `xml:"available,attr"`
	Name        string    `xml:"name"`
	TypePrefix  string    `xml:"typePrefix"`
	Vendor      string    `xml:"vendor"`
	Model       string    `xml:"model"`
	Price       string    `xml:"price"`
	OldPrice    string    `xml:"oldprice"`
	CurrencyID  string    `xml:"currencyId"`
	CategoryID  string    `xml:"categoryId"`
	URL         string    `xml:"url"`
	Pictures    []string  `xml:"picture"`
	Description string    `xml:"description"`
	VendorCode  string    `xml:"vendorCode"`
	Params      []paramXML `xml:"param"`
}

type paramXML struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type categoryXML struct {
	ID       string `xml:"id,attr"`
	ParentID string `xml:"parentId,attr"`
	Name     string `xml:",chardata"`
}

// SniffFormat inspects the first non-whitespace bytes of buf and reports
// "xml", "json", or "csv" (spec §4.3). Only the XML branch is required.
func SniffFormat(buf []byte) string {
	trimmed := strings.TrimLeft(string(buf), " \t\r\n﻿")
	switch {
	case strings.HasPrefix(trimmed, "<"):
		return "xml"
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return "json"
	default:
		return "csv"
	}
}

// ParseXML stream-parses Yandex-Market-style catalog XML from r. Offers
// whose individual parse raises are skipped and logged, never aborting the
// feed; a malformed root element is a fatal parse error (spec §7).
func ParseXML(r io.Reader, logger *zap.Logger) (*Result, error) {
	dec := xml.NewDecoder(r)
	res := &Result{}
	categoryNames := map[string]string{}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "category":
			var c categoryXML
			if err := dec.DecodeElement(&c, &se); err != nil {
				if logger != nil {
					logger.Warn("skipping malformed category", zap.Error(err))
				}
				continue
			}
			name := strings.TrimSpace(c.Name)
			categoryNames[c.ID] = name
			res.Categories = append(res.Categories, Category{ID: c.ID, ParentID: c.ParentID, Name: name})
		case "offer":
			var o offerXML
			if err := dec.DecodeElement(&o, &se); err != nil {
				res.Skipped++
				if logger != nil {
					logger.Warn("skipping malformed offer", zap.Error(err))
				}
				continue
			}
			p := toProduct(o, categoryNames)
			res.Products = append(res.Products, p)
		}
	}
	return res, nil
}

func toProduct(o offerXML, categoryNames map[string]string) project.Product {
	name := strings.TrimSpace(o.Name)
	if name == "" {
		parts := []string{o.TypePrefix, o.Vendor, o.Model}
		kept := parts[:0]
		for _, p := range parts {
			if strings.TrimSpace(p) != "" {
				kept = append(kept, strings.TrimSpace(p))
			}
		}
		name = strings.Join(kept, " ")
	}

	inStock := true
	if o.Available != nil {
		inStock = *o.Available
	}

	price := parsePrice(o.Price)
	var oldPrice *float64
	if op := parsePrice(o.OldPrice); op > 0 {
		oldPrice = &op
	}

	desc := o.Description
	if r := []rune(desc); len(r) > 500 {
		desc = string(r[:500])
	}

	var primary string
	if len(o.Pictures) > 0 {
		primary = o.Pictures[0]
	}

	params := map[string]string{}
	for _, p := range o.Params {
		if p.Name == "" {
			continue
		}
		params[p.Name] = strings.TrimSpace(p.Value)
	}

	category := categoryNames[o.CategoryID]

	prod := project.Product{
		ID:          o.ID,
		Name:        name,
		URL:         o.URL,
		Description: desc,
		Image:       primary,
		Images:      o.Pictures,
		Price:       price,
		OldPrice:    oldPrice,
		Currency:    o.CurrencyID,
		InStock:     inStock,
		Category:    category,
		Brand:       o.Vendor,
		VendorCode:  o.VendorCode,
		Params:      params,
	}
	prod.ApplyDiscount()
	return prod
}

// parsePrice applies spec §4.3's numeric rules: comma-to-dot, space-stripped,
// 0 if unparseable.
func parsePrice(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
