package mission

import (
	"math"

	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
)

// BaseTotal is the catalog price times requested quantity over all lines.
func BaseTotal(lines []contractx.OfferLine) float64 {
	var total float64
	for _, l := range lines {
		qty := l.Quantity
		if qty <= 0 {
			qty = 1
		}
		total += nonNegative(l.Price) * float64(qty)
	}
	return math.Round(total*100) / 100
}

// Aggregate names each offer's vendor and picks the cheapest one. Ties go to
// the earlier offer; agent responses never affect the choice.
func Aggregate(offers []contractx.Offer, vendorNames map[string]string) contractx.MissionResult {
	out := make([]contractx.Offer, 0, len(offers))
	for _, o := range offers {
		if name := vendorNames[o.VendorID]; name != "" {
			o.VendorName = name
		} else if o.VendorName == "" {
			o.VendorName = o.VendorID
		}
		out = append(out, o)
	}
	return contractx.MissionResult{
		Offers:            out,
		RecommendedVendor: Recommend(out),
	}
}

func Recommend(offers []contractx.Offer) string {
	best := -1
	for i, o := range offers {
		if best < 0 || o.TotalAmount < offers[best].TotalAmount {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return offers[best].VendorID
}
