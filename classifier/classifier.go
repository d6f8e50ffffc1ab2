// Package classifier assigns a category label to a complaint from its text.
package classifier

import (
	"strings"
)

// CategoryOther is the catch-all returned when no keyword matches.
const CategoryOther = "Other"

type rule struct {
	category string
	keywords []string
}

// Ordered: the first category with a keyword hit wins on multi-match.
var rules = []rule{
	{"Roads", []string{"pothole", "road", "street", "pavement", "crack", "damage", "highway"}},
	{"Garbage", []string{"garbage", "waste", "trash", "litter", "dump", "rubbish", "bin"}},
	{"Water", []string{"water", "leak", "pipe", "drainage", "sewage", "overflow", "tap"}},
	{"Electricity", []string{"light", "electricity", "power", "streetlight", "lamp", "wire", "pole"}},
	{"Parks", []string{"park", "garden", "tree", "playground", "bench", "green"}},
	{"Traffic", []string{"traffic", "signal", "sign", "crossing", "zebra", "congestion"}},
}

// Categorize maps a complaint's title and description to a category label.
// It is deterministic and total: unmatched text falls back to CategoryOther.
func Categorize(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.category
			}
		}
	}
	return CategoryOther
}

// Categories returns the known category labels, catch-all last.
func Categories() []string {
	out := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}
	return append(out, CategoryOther)
}
