package negotiator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

const (
	NoResponseSentinel = "I could not generate a response."
	maxDigestItems     = 8
)

var skuToken = regexp.MustCompile(`(?i)[A-Z0-9-]{4,}`)

// Synthesize renders a reply from the last tool results of a turn without
// calling the model.
func Synthesize(catalog []contractx.Product, vendors []contractx.Vendor, lastUser string) string {
	if len(catalog) > 0 {
		if p, ok := focusedProduct(catalog, lastUser); ok {
			return fmt.Sprintf(
				"I found the requested product: %s.\nHow many units do you need, and which city or country should I quote shipping to?",
				strings.Join(productParts(p, " units available"), " • "),
			)
		}

		lines := make([]string, 0, maxDigestItems)
		for i, p := range catalog {
			if i == maxDigestItems {
				break
			}
			lines = append(lines, "- "+strings.Join(productParts(p, " units"), " • "))
		}
		return "Here are some available products:\n" + strings.Join(lines, "\n") +
			"\n\nShould I filter by quantity, price or a specific brand?"
	}

	if len(vendors) > 0 {
		lines := make([]string, 0, maxDigestItems)
		for i, v := range vendors {
			if i == maxDigestItems {
				break
			}
			lines = append(lines, "- "+v.Name)
		}
		return "I did not find products, but these vendors are available:\n" + strings.Join(lines, "\n") +
			"\n\nShould I search for products within one of them?"
	}

	return NoResponseSentinel
}

func focusedProduct(catalog []contractx.Product, lastUser string) (contractx.Product, bool) {
	tokens := map[string]struct{}{}
	for _, tok := range skuToken.FindAllString(lastUser, -1) {
		tokens[strings.ToLower(tok)] = struct{}{}
	}
	for _, p := range catalog {
		if p.SKU == "" {
			continue
		}
		if _, ok := tokens[strings.ToLower(p.SKU)]; ok {
			return p, true
		}
	}

	lower := strings.ToLower(lastUser)
	for _, p := range catalog {
		if p.Name != "" && strings.Contains(lower, strings.ToLower(p.Name)) {
			return p, true
		}
	}
	return contractx.Product{}, false
}

func productParts(p contractx.Product, stockSuffix string) []string {
	parts := make([]string, 0, 5)
	if p.Name != "" {
		parts = append(parts, p.Name)
	}
	if p.Brand != "" {
		parts = append(parts, "("+p.Brand+")")
	}
	if p.SKU != "" {
		parts = append(parts, "SKU: "+p.SKU)
	}
	if p.Price > 0 {
		parts = append(parts, "$"+strconv.FormatFloat(p.Price, 'f', -1, 64))
	}
	if p.Stock != nil {
		parts = append(parts, strconv.Itoa(*p.Stock)+stockSuffix)
	}
	return parts
}
