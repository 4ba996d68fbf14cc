package listing

import (
	"coursetable/internal/scrapers/tree"

	"github.com/antzucaro/matchr"
)

// moduleNames returns the distinct module names of records without their code prefix.
func moduleNames(records []tree.Record) []string {
	seen := map[string]bool{}
	var out []string
	for _, record := range records {
		if record.ModuleName == nil {
			continue
		}
		name := *record.ModuleName
		if loc := moduleCodeRegex.FindStringIndex(name); loc != nil {
			name = name[loc[1]:]
		}
		name = CleanTitle(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// closestModule returns the module name most similar to title along with its Jaro-Winkler
// similarity.
func closestModule(title string, modules []string) (string, float64) {
	var best string
	var bestSimilarity float64
	for _, module := range modules {
		similarity := matchr.JaroWinkler(title, module, false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = module
		}
	}
	return best, bestSimilarity
}
