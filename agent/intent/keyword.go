package intent

import (
	"strings"

	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

// DefaultKeywords covers catalog, price and availability questions in English and Spanish.
var DefaultKeywords = []string{
	"disponible",
	"productos",
	"stock",
	"inventario",
	"inventory",
	"sku",
	"marca",
	"brand",
	"category",
	"categoria",
	"categoría",
	"catalog",
	"catálogo",
	"precio",
	"price",
	"available",
}

var (
	_ contractx.IntentClassifier = (*KeywordClassifier)(nil)
	_ contractx.IntentClassifier = ClassifierFunc(nil)
)

// KeywordClassifier matches case-insensitive substrings against a fixed keyword set.
type KeywordClassifier struct {
	keywords []string
}

func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			normalized = append(normalized, k)
		}
	}
	return &KeywordClassifier{keywords: normalized}
}

func (c *KeywordClassifier) ShouldForceSearch(text string) bool {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return false
	}
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

type ClassifierFunc func(text string) bool

func (f ClassifierFunc) ShouldForceSearch(text string) bool {
	if f == nil {
		return false
	}
	return f(text)
}
