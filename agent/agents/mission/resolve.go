package mission

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

// VendorGroup is the set of requested lines one vendor can quote.
type VendorGroup struct {
	VendorID string
	Lines    []contractx.OfferLine
}

// resolveGroups finds candidate products for every line item and groups them
// by vendor in first-seen order.
func resolveGroups(ctx context.Context, catalog contractx.CatalogStore, items []contractx.MissionLineItem, fuzzyLimit int) ([]VendorGroup, error) {
	skus := make([]string, 0, len(items))
	for _, it := range items {
		if sku := strings.TrimSpace(it.SKU); sku != "" {
			skus = append(skus, sku)
		}
	}

	var bySKU []contractx.Product
	if len(skus) > 0 {
		found, err := catalog.ProductsBySKUs(ctx, skus)
		if err != nil {
			return nil, fmt.Errorf("products by sku: %w", err)
		}
		bySKU = found
	}

	var (
		order  []string
		groups = map[string]*VendorGroup{}
	)
	for _, it := range items {
		matches := skuMatches(bySKU, it.SKU)
		if len(matches) == 0 {
			term := strings.TrimSpace(it.Name)
			if term == "" {
				term = strings.TrimSpace(it.SKU)
			}
			if term == "" {
				continue
			}
			fuzzy, err := catalog.SearchProducts(ctx, contractx.ProductQuery{Term: term, Limit: fuzzyLimit})
			if err != nil {
				return nil, fmt.Errorf("search products for %q: %w", term, err)
			}
			matches = fuzzy
		}

		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		for _, p := range matches {
			g, ok := groups[p.VendorID]
			if !ok {
				g = &VendorGroup{VendorID: p.VendorID}
				groups[p.VendorID] = g
				order = append(order, p.VendorID)
			}
			if idx := lineIndex(g.Lines, p); idx >= 0 {
				g.Lines[idx].Quantity = qty
				continue
			}
			g.Lines = append(g.Lines, contractx.OfferLine{
				ProductID:    p.ID,
				SKU:          p.SKU,
				Name:         p.Name,
				Price:        nonNegative(p.Price),
				Quantity:     qty,
				Stock:        p.Stock,
				LeadTimeDays: p.LeadTimeDays,
			})
		}
	}

	out := make([]VendorGroup, 0, len(order))
	for _, id := range order {
		out = append(out, *groups[id])
	}
	return out, nil
}

func skuMatches(products []contractx.Product, sku string) []contractx.Product {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil
	}
	var out []contractx.Product
	for _, p := range products {
		if p.SKU == sku {
			out = append(out, p)
		}
	}
	return out
}

func lineIndex(lines []contractx.OfferLine, p contractx.Product) int {
	for i, l := range lines {
		if l.ProductID == p.ID || (l.SKU != "" && l.SKU == p.SKU) {
			return i
		}
	}
	return -1
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
