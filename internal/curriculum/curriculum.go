// Package curriculum holds the per-study-program configuration: which curriculum versions to
// query, where snapshots live and how rule node paths map to listed areas.
package curriculum

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Config is the serializable form of a curriculum, rules and columns are referenced by name.
type Config struct {
	Heading       string   `json:"heading"`
	CurriculumIDs []string `json:"curriculum_ids"`
	TreeURL       string   `json:"tree_url"`
	TreeFile      string   `json:"tree_file"`
	OfferingsFile string   `json:"offerings_file"`
	AreaRule      string   `json:"area_rule"`
	ExtraColumns  []string `json:"extra_columns"`
}

// Curriculum is a resolved Config.
type Curriculum struct {
	Key           string
	Heading       string
	CurriculumIDs []string
	TreeURL       string
	// TreeFile and OfferingsFile are absolute or relative to the working directory.
	TreeFile      string
	OfferingsFile string
	AreaRule      AreaRule
	ExtraColumns  []ExtraColumn
}

const treeURLFormat = "https://campus.tum.de/tumonline/pl/ui/$ctx/wbstpcs.showSpoTree?pStpStpNr=%s"

// Defaults are the study programs the tool ships with.
func Defaults() map[string]Config {
	return map[string]Config{
		"bachelor-informatics": {
			Heading:       "Lectures in Bachelor Informatics",
			CurriculumIDs: []string{"5371", "4998", "4748", "4591", "4283", "1304"},
			TreeFile:      "curriculum_tree_bachelor_informatics.json",
			OfferingsFile: "all_offered_courses_bachelor_informatics.json",
			AreaRule:      "informatics-bachelor",
		},
		"master-informatics": {
			Heading:       "Elective Modules in Master Informatics",
			CurriculumIDs: []string{"5217", "4731", "4594", "4271", "2612"},
			TreeFile:      "curriculum_tree_master_informatics.json",
			OfferingsFile: "all_offered_courses_master_informatics.json",
			AreaRule:      "informatics-master",
			ExtraColumns:  []string{"THEO"},
		},
		"master-dea": {
			Heading:       "Lectures in Master Data Engineering and Analytics",
			CurriculumIDs: []string{"4733", "4567"},
			TreeFile:      "curriculum_tree_dea.json",
			OfferingsFile: "all_offered_courses_dea.json",
			AreaRule:      "dea",
		},
		"master-mathematics": {
			Heading:       "Elective Modules in Master Mathematics",
			CurriculumIDs: []string{"5244", "4852", "4407"},
			TreeFile:      "curriculum_tree_mathematics.json",
			OfferingsFile: "all_offered_courses_mathematics.json",
			AreaRule:      "none",
		},
		"master-information-systems": {
			Heading:       "Lectures in Master Information Systems",
			CurriculumIDs: []string{"4997", "404", "4368", "4716", "4734", "4918", "5013"},
			TreeFile:      "curriculum_tree_master_information_systems.json",
			OfferingsFile: "all_offered_courses_master_information_systems.json",
			AreaRule:      "information-systems",
		},
	}
}

// Resolve validates c and looks up its rule and columns. Relative snapshot paths are placed
// under dataDir.
func (c Config) Resolve(key, dataDir string) (Curriculum, error) {
	if len(c.CurriculumIDs) == 0 {
		return Curriculum{}, fmt.Errorf("curriculum %s: no curriculum ids", key)
	}
	if c.TreeFile == "" || c.OfferingsFile == "" {
		return Curriculum{}, fmt.Errorf("curriculum %s: tree_file and offerings_file are required", key)
	}
	ruleName := c.AreaRule
	if ruleName == "" {
		ruleName = "none"
	}
	rule, err := LookupAreaRule(ruleName)
	if err != nil {
		return Curriculum{}, fmt.Errorf("curriculum %s: %w", key, err)
	}
	columns := make([]ExtraColumn, len(c.ExtraColumns))
	for i, name := range c.ExtraColumns {
		columns[i], err = LookupExtraColumn(name)
		if err != nil {
			return Curriculum{}, fmt.Errorf("curriculum %s: %w", key, err)
		}
	}
	treeURL := c.TreeURL
	if treeURL == "" {
		treeURL = fmt.Sprintf(treeURLFormat, c.CurriculumIDs[0])
	}

	return Curriculum{
		Key:           key,
		Heading:       c.Heading,
		CurriculumIDs: c.CurriculumIDs,
		TreeURL:       treeURL,
		TreeFile:      resolvePath(dataDir, c.TreeFile),
		OfferingsFile: resolvePath(dataDir, c.OfferingsFile),
		AreaRule:      rule,
		ExtraColumns:  columns,
	}, nil
}

func resolvePath(dir, file string) string {
	if filepath.IsAbs(file) || dir == "" {
		return file
	}
	return filepath.Join(dir, file)
}

// Keys returns the sorted keys of configs.
func Keys(configs map[string]Config) []string {
	keys := make([]string, 0, len(configs))
	for key := range configs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
