package tree

// PageResult is the outcome of scanning a single page of the tree.
type PageResult struct {
	Records []Record
	// Leading is the number of records at the start of Records that were created before the
	// page's first module row, their module belongs to the previous page.
	Leading        int
	SawModule      bool
	LastCredits    *float64
	LastModuleName *string
	FinalRuleNodes map[int]*string
}

// ScanPage walks the rows of one page top to bottom once. Course links are attached to the
// record opened by the most recent module row, a module row always starts a new record.
func ScanPage(rows []Row) PageResult {
	result := PageResult{}
	ruleNodes := map[int]*string{}
	var credits *float64
	var moduleName *string
	current := -1

	for _, row := range rows {
		switch row.Kind {
		case ROW_RULE_NODE:
			name := row.Name
			ruleNodes[row.Offset] = &name
		case ROW_NODE_CLOSED:
			ruleNodes[row.Offset] = nil
		case ROW_MODULE:
			result.SawModule = true
			credits = nil
			if row.Credits != nil {
				n := *row.Credits
				credits = &n
			}
			moduleName = nil
			if row.Name != "" {
				name := row.Name
				moduleName = &name
			}
			current = -1
		case ROW_COURSE_LINK:
			if current >= 0 {
				result.Records[current].URLs = append(result.Records[current].URLs, row.Href)
				continue
			}
			result.Records = append(result.Records, Record{
				URLs:       []string{row.Href},
				Credits:    credits,
				ModuleName: moduleName,
				RuleNodes:  cloneRuleNodes(ruleNodes),
			})
			current = len(result.Records) - 1
			if !result.SawModule {
				result.Leading++
			}
		}
	}

	result.LastCredits = credits
	result.LastModuleName = moduleName
	result.FinalRuleNodes = ruleNodes
	return result
}

// MergePages concatenates page results in page order and resolves what a page could not know
// on its own:
//   - leading records take the credits and module name of the last module row seen on an
//     earlier page
//   - rule node offsets a record does not mention are filled from the groups still open at the
//     end of the previous page, closed groups are not carried over
func MergePages(pages []PageResult) []Record {
	var out []Record
	var carryCredits *float64
	var carryModuleName *string
	carryRuleNodes := map[int]*string{}

	for _, page := range pages {
		for i, record := range page.Records {
			record = record.clone()
			if i < page.Leading {
				record.Credits = carryCredits
				record.ModuleName = carryModuleName
			}
			backfill(record.RuleNodes, carryRuleNodes)
			out = append(out, record)
		}

		if page.SawModule {
			carryCredits = page.LastCredits
			carryModuleName = page.LastModuleName
		}

		final := cloneRuleNodes(page.FinalRuleNodes)
		backfill(final, carryRuleNodes)
		carryRuleNodes = map[int]*string{}
		for offset, name := range final {
			if name != nil {
				carryRuleNodes[offset] = name
			}
		}
	}
	return out
}

func backfill(dst, carry map[int]*string) {
	for offset, name := range carry {
		if _, ok := dst[offset]; ok {
			continue
		}
		dst[offset] = name
	}
}
