package listing

import (
	"regexp"
	"strings"
)

var moduleCodeRegex = regexp.MustCompile(`^\[([A-Z0-9_]+)\]`)

// codeListRegex matches code lists like "(IN2031, English)" or "[IN2031_1]" that the catalog
// appends to titles.
var codeListRegex = regexp.MustCompile(
	`\s*\((?:[A-Z]+[0-9]+(?:_[A-Z0-9])*|English)(?:, (?:[A-Z]+[0-9]+(?:_[A-Z0-9])*|English))*\)` +
		`|\[(?:[A-Z]+[0-9]+(?:_[A-Z0-9])*|English)(?:, (?:[A-Z]+[0-9]+(?:_[A-Z0-9])*|English))*\]`,
)

// ModuleCode returns the bracketed code a module name starts with, "[IN2031] Databases" yields
// "IN2031". Names without a code yield Placeholder.
func ModuleCode(moduleName *string) string {
	if moduleName == nil {
		return Placeholder
	}
	match := moduleCodeRegex.FindStringSubmatch(*moduleName)
	if match == nil {
		return Placeholder
	}
	return match[1]
}

// CleanTitle removes code lists from a course title.
func CleanTitle(title string) string {
	return strings.TrimSpace(codeListRegex.ReplaceAllString(title, ""))
}
