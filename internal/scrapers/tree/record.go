package tree

import (
	"sort"
	"strings"
)

// Record is one leaf course appearance in the curriculum tree.
type Record struct {
	// URLs are the course detail links of the node, a single node can expose several.
	URLs       []string `json:"urls"`
	Credits    *float64 `json:"num_credits"`
	ModuleName *string  `json:"module_name"`
	// RuleNodes maps a rule node label offset to the name of the group open at that offset when
	// the record was created. A nil name means the group at that offset was closed.
	RuleNodes map[int]*string `json:"rule_node_names_by_levels"`
}

// Path returns the names of the enclosing rule nodes from the top level down.
func (r Record) Path() []string {
	offsets := make([]int, 0, len(r.RuleNodes))
	for offset := range r.RuleNodes {
		offsets = append(offsets, offset)
	}
	sort.Ints(offsets)

	path := make([]string, 0, len(offsets))
	for _, offset := range offsets {
		name := r.RuleNodes[offset]
		if name == nil {
			continue
		}
		path = append(path, *name)
	}
	return path
}

// URLKey returns the part of a course detail url that identifies the course: everything from the
// last slash on. Tree links and catalog urls share this suffix even though their prefixes differ.
func URLKey(url string) string {
	idx := strings.LastIndex(url, "/")
	if idx < 0 {
		return url
	}
	return url[idx:]
}

func (r Record) clone() Record {
	out := Record{
		URLs:       append([]string(nil), r.URLs...),
		Credits:    r.Credits,
		ModuleName: r.ModuleName,
		RuleNodes:  cloneRuleNodes(r.RuleNodes),
	}
	return out
}

func cloneRuleNodes(in map[int]*string) map[int]*string {
	out := make(map[int]*string, len(in))
	for offset, name := range in {
		out[offset] = name
	}
	return out
}

// Index maps every URLKey of every record to its record. When several records share a link
// the one appearing last in the tree wins.
func Index(records []Record) map[string]Record {
	index := make(map[string]Record, len(records))
	for _, record := range records {
		for _, url := range record.URLs {
			index[URLKey(url)] = record
		}
	}
	return index
}
