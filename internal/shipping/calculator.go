package shipping

import (
	"sort"
	"strings"
)

// Rate is one shipping option offered for a destination.
type Rate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
}

// expressMultiplier is the premium tier price relative to standard.
const expressMultiplier = 2

// DefaultZone is used when the governorate does not match any known zone.
const DefaultZone = "remote"

// zoneBaseCents maps each delivery zone to its standard rate in piasters.
var zoneBaseCents = map[string]int64{
	"greater_cairo": 5000,
	"alexandria":    6000,
	"delta":         6500,
	"canal":         7000,
	"upper_egypt":   8500,
	DefaultZone:     10000,
}

// zoneByGovernorate partitions the governorates we deliver to into zones.
// Lookups are against the normalized form.
var zoneByGovernorate = map[string]string{
	"cairo":          "greater_cairo",
	"giza":           "greater_cairo",
	"qalyubia":       "greater_cairo",
	"alexandria":     "alexandria",
	"beheira":        "alexandria",
	"matrouh":        "alexandria",
	"dakahlia":       "delta",
	"gharbia":        "delta",
	"monufia":        "delta",
	"sharqia":        "delta",
	"kafr el sheikh": "delta",
	"damietta":       "delta",
	"port said":      "canal",
	"ismailia":       "canal",
	"suez":           "canal",
	"fayoum":         "upper_egypt",
	"beni suef":      "upper_egypt",
	"minya":          "upper_egypt",
	"assiut":         "upper_egypt",
	"sohag":          "upper_egypt",
	"qena":           "upper_egypt",
	"luxor":          "upper_egypt",
	"aswan":          "upper_egypt",
}

// Normalize collapses a free-text governorate into the lookup form.
func Normalize(governorate string) string {
	s := strings.ToLower(strings.TrimSpace(governorate))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSuffix(s, " governorate")
	return s
}

// ZoneFor resolves the delivery zone for a free-text governorate. Unknown
// regions fall back to the default zone, never an error.
func ZoneFor(governorate string) string {
	if zone, ok := zoneByGovernorate[Normalize(governorate)]; ok {
		return zone
	}
	return DefaultZone
}

// RatesFor returns the shipping options for a governorate, cheapest first.
// The same input always yields the same list.
func RatesFor(governorate string) []Rate {
	zone := ZoneFor(governorate)
	base := zoneBaseCents[zone]

	rates := []Rate{
		{
			ID:          "standard",
			Name:        "Standard Delivery",
			Description: "Delivered in 2-5 business days",
			PriceCents:  base,
		},
		{
			ID:          "express",
			Name:        "Express Delivery",
			Description: "Delivered next business day",
			PriceCents:  base * expressMultiplier,
		},
	}

	sort.SliceStable(rates, func(i, j int) bool {
		if rates[i].PriceCents != rates[j].PriceCents {
			return rates[i].PriceCents < rates[j].PriceCents
		}
		return rates[i].ID < rates[j].ID
	})
	return rates
}

// RateByID returns the priced option a checkout selected, or false when the
// method id is unknown.
func RateByID(governorate, id string) (Rate, bool) {
	for _, rate := range RatesFor(governorate) {
		if rate.ID == id {
			return rate, true
		}
	}
	return Rate{}, false
}
