package curriculum

import (
	"fmt"
	"slices"
	"sort"
)

// AreaRule maps a rule node path (top level first) to the area a course is listed under.
// ok is false for paths that belong to no listed area (administrative or non elective nodes).
type AreaRule func(path []string) (area string, ok bool)

var areaRules = map[string]AreaRule{
	"none":                 func([]string) (string, bool) { return "", false },
	"informatics-bachelor": informaticsBachelor,
	"informatics-master":   informaticsMaster,
	"dea":                  dataEngineering,
	"information-systems":  informationSystems,
}

// LookupAreaRule returns the named rule.
func LookupAreaRule(name string) (AreaRule, error) {
	rule, ok := areaRules[name]
	if !ok {
		return nil, fmt.Errorf("unknown area rule %q (known: %v)", name, AreaRuleNames())
	}
	return rule, nil
}

func AreaRuleNames() []string {
	names := make([]string, 0, len(areaRules))
	for name := range areaRules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var bachelorRequiredAreas = []string{
	"Required Modules Informatics",
	"Required Module Bachelor Practical Course",
	"Required Module Advanced Seminar Course",
	"Required Modules Mathematics",
	"Support Electives",
}

func informaticsBachelor(path []string) (string, bool) {
	if len(path) >= 1 && slices.Contains(bachelorRequiredAreas, path[0]) {
		return path[0], true
	}
	if len(path) >= 2 {
		switch path[0] {
		case "Elective Modules":
			return "Elective: " + path[1], true
		case "Application Area":
			return path[1], true
		}
	}
	return "", false
}

func informaticsMaster(path []string) (string, bool) {
	if len(path) >= 2 && path[0] == "Elective Modules Informatics" {
		return path[1], true
	}
	return "", false
}

func dataEngineering(path []string) (string, bool) {
	if len(path) >= 1 && path[0] == "Required Modules Data Engineering and Analytics" {
		return path[0], true
	}
	if len(path) >= 2 && path[0] == "Elective Modules" {
		return path[1], true
	}
	return "", false
}

func informationSystems(path []string) (string, bool) {
	switch {
	case len(path) == 1:
		return path[0], true
	case len(path) >= 2 && path[0] == "Support Electives":
		return path[0], true
	case len(path) >= 2:
		return path[0] + ": " + path[1], true
	}
	return "", false
}

// ExtraColumn is an additional output column derived from a course's rule node path.
type ExtraColumn struct {
	Name    string
	Extract func(path []string) string
}

var extraColumns = map[string]ExtraColumn{
	"THEO": {
		Name: "THEO",
		Extract: func(path []string) string {
			if slices.Contains(path, "Theory") || slices.Contains(path, "Theorie") {
				return "THEO"
			}
			return ""
		},
	},
}

func LookupExtraColumn(name string) (ExtraColumn, error) {
	column, ok := extraColumns[name]
	if !ok {
		return ExtraColumn{}, fmt.Errorf("unknown extra column %q", name)
	}
	return column, nil
}
