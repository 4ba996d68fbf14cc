package tree

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"coursetable/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

type RowKind int

const (
	// ROW_RULE_NODE opens a group at the row's offset.
	ROW_RULE_NODE RowKind = iota
	// ROW_NODE_CLOSED closes the group at the row's offset without replacing it.
	ROW_NODE_CLOSED
	// ROW_MODULE carries a module name and (maybe) a credit count.
	ROW_MODULE
	// ROW_COURSE_LINK points to a course detail page.
	ROW_COURSE_LINK
)

func (k RowKind) String() string {
	switch k {
	case ROW_RULE_NODE:
		return "rule-node"
	case ROW_NODE_CLOSED:
		return "node-closed"
	case ROW_MODULE:
		return "module"
	case ROW_COURSE_LINK:
		return "course-link"
	}
	return fmt.Sprintf("row-kind(%d)", int(k))
}

// Row is one classified element of the rendered tree, in document order.
type Row struct {
	Kind RowKind
	// Offset is the horizontal position of a rule node label, deeper nesting means a larger
	// offset. Only set for ROW_RULE_NODE and ROW_NODE_CLOSED.
	Offset int
	// Name is the rule node or module name.
	Name string
	// Credits is nil when the module row shows no (numeric) credit count.
	Credits *float64
	Href    string
}

func RuleNode(offset int, name string) Row {
	return Row{Kind: ROW_RULE_NODE, Offset: offset, Name: name}
}

func NodeClosed(offset int) Row {
	return Row{Kind: ROW_NODE_CLOSED, Offset: offset}
}

func Module(name string, credits *float64) Row {
	return Row{Kind: ROW_MODULE, Name: name, Credits: credits}
}

func CourseLink(href string) Row {
	return Row{Kind: ROW_COURSE_LINK, Href: href}
}

// Selectors locate the parts of the rendered tree table. All selectors except Row are evaluated
// relative to a row.
type Selectors struct {
	Row        string `json:"row"`
	RuleNode   string `json:"rule_node"`
	NodeClosed string `json:"node_closed"`
	ModuleNode string `json:"module_node"`
	Label      string `json:"label"`
	Credits    string `json:"credits"`
	CourseLink string `json:"course_link"`
	// OffsetAttr is the row attribute holding the label's horizontal offset in pixels.
	OffsetAttr string `json:"offset_attr"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Row:        "table#tgt > tbody > tr.coRow",
		RuleNode:   "td:nth-child(1) img[src*='regelknoten']",
		NodeClosed: "td:nth-child(1) img[src*='tee_end']",
		ModuleNode: "td:nth-child(1) img[src*='modulknoten']",
		Label:      "td:nth-child(1) span span",
		Credits:    "td:nth-child(4) span",
		CourseLink: "a[href*='pages/slc.tm.cp/course/']",
		OffsetAttr: "data-offset",
	}
}

// ParseRows classifies the rows of a rendered tree table. Rows that are neither rule nodes,
// closing markers, modules nor contain course links (offer headers, exam nodes, ...) are skipped.
func ParseRows(r io.Reader, sel Selectors) ([]Row, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse tree html: %w", err)
	}

	var rows []Row
	var parseErr error
	doc.Find(sel.Row).EachWithBreak(func(i int, tr *goquery.Selection) bool {
		links := tr.Find(sel.CourseLink)
		if links.Length() > 0 {
			for _, anchor := range htmlutil.GetAnchors(links) {
				rows = append(rows, CourseLink(anchor.Href))
			}
			return true
		}

		switch {
		case tr.Find(sel.NodeClosed).Length() > 0:
			offset, err := rowOffset(tr, sel.OffsetAttr)
			if err != nil {
				parseErr = fmt.Errorf("row %d: %w", i, err)
				return false
			}
			rows = append(rows, NodeClosed(offset))
		case tr.Find(sel.RuleNode).Length() > 0:
			offset, err := rowOffset(tr, sel.OffsetAttr)
			if err != nil {
				parseErr = fmt.Errorf("row %d: %w", i, err)
				return false
			}
			rows = append(rows, RuleNode(offset, htmlutil.SelectionText(tr.Find(sel.Label).First())))
		default:
			label := tr.Find(sel.Label).First()
			creditsText := htmlutil.SelectionText(tr.Find(sel.Credits).First())
			isModule := tr.Find(sel.ModuleNode).Length() > 0 ||
				(label.Length() > 0 && creditsText != "")
			if !isModule {
				return true
			}
			rows = append(rows, Module(htmlutil.SelectionText(label), parseCredits(creditsText)))
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return rows, nil
}

func rowOffset(tr *goquery.Selection, attr string) (int, error) {
	raw, ok := tr.Attr(attr)
	if !ok {
		return 0, fmt.Errorf("missing %s attribute", attr)
	}
	offset, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", attr, raw, err)
	}
	return int(offset + 0.5), nil
}

// parseCredits accepts non negative numbers with a dot or comma as decimal separator ("6",
// "7.5", "7,5"), anything else is treated as no credit count.
func parseCredits(text string) *float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	return &f
}
