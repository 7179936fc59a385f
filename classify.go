package propsage

import "strings"

// Role keyword sets. Matching is a case-insensitive substring test against
// the column name; price and demand additionally require the column to be
// numeric.
var (
	locationKeywords = []string{"location", "area", "place", "city", "region"}
	priceKeywords    = []string{"price", "cost", "value", "amount"}
	demandKeywords   = []string{"demand", "score", "rating", "popularity", "interest"}
)

// Roles holds the semantic column roles inferred from one dataset. Slices
// are ordered by the dataset's column order; "first column of a role" is a
// load-bearing notion for the extractor, so these are lists, never sets.
// A column may carry several roles (numeric and price, for example).
type Roles struct {
	Numeric  []string `json:"numeric"`
	Textual  []string `json:"textual"`
	Location []string `json:"location"`
	Price    []string `json:"price"`
	Demand   []string `json:"demand"`
}

// Classify inspects a dataset and assigns semantic roles to its columns.
// It is derived state, recomputed per request, and idempotent: repeated
// calls on an unmodified dataset yield identical results. An empty dataset
// yields all-empty role lists.
func Classify(d *Dataset) Roles {
	roles := Roles{
		Numeric:  []string{},
		Textual:  []string{},
		Location: []string{},
		Price:    []string{},
		Demand:   []string{},
	}
	if d == nil {
		return roles
	}
	for _, col := range d.columns {
		numeric := d.numeric[col]
		if numeric {
			roles.Numeric = append(roles.Numeric, col)
		} else {
			roles.Textual = append(roles.Textual, col)
		}

		lower := strings.ToLower(col)
		if containsAny(lower, locationKeywords) {
			roles.Location = append(roles.Location, col)
		}
		if numeric && containsAny(lower, priceKeywords) {
			roles.Price = append(roles.Price, col)
		}
		if numeric && containsAny(lower, demandKeywords) {
			roles.Demand = append(roles.Demand, col)
		}
	}
	return roles
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
