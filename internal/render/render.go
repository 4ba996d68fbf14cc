// Package render writes a listing as an HTML page or as terminal tables.
package render

import (
	"fmt"
	"html"
	"io"

	"coursetable/internal/listing"

	"github.com/jedib0t/go-pretty/v6/table"
)

type Format string

const (
	FORMAT_HTML Format = "html"
	FORMAT_TEXT Format = "text"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FORMAT_HTML, FORMAT_TEXT:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q (expected %q or %q)", s, FORMAT_HTML, FORMAT_TEXT)
}

// Extension is the file extension (with the dot) of files in this format.
func (f Format) Extension() string {
	if f == FORMAT_HTML {
		return ".html"
	}
	return ".txt"
}

// Write renders l in the given format.
func Write(w io.Writer, format Format, l listing.Listing) error {
	switch format {
	case FORMAT_HTML:
		return HTML(w, l)
	case FORMAT_TEXT:
		return Text(w, l)
	}
	return fmt.Errorf("unknown format %q", format)
}

func header(l listing.Listing) table.Row {
	row := table.Row{"Course", "Code", "Credits"}
	if l.WithTags {
		row = append(row, "Note")
	}
	if l.IncludeLastOffered {
		row = append(row, "Last offered")
	}
	for _, name := range l.ExtraColumns {
		row = append(row, name)
	}
	return row
}

// Tag is the note shown for a row of a single term listing.
func Tag(row listing.Row) string {
	switch {
	case row.New:
		return "new"
	case row.Rare:
		return fmt.Sprintf("rare (last offered %s)", row.LastOffered)
	}
	return ""
}

func cells(l listing.Listing, row listing.Row, title string, text func(string) string) table.Row {
	out := table.Row{title, text(row.CourseCode), text(row.Credits)}
	if l.WithTags {
		out = append(out, text(Tag(row)))
	}
	if l.IncludeLastOffered {
		out = append(out, text(row.TermName))
	}
	for _, value := range row.Extra {
		out = append(out, text(value))
	}
	return out
}

func plain(s string) string {
	return s
}

func newTable(l listing.Listing, area listing.Area, title func(listing.Row) string, text func(string) string) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(header(l))
	for _, row := range area.Rows {
		t.AppendRow(cells(l, row, title(row), text))
	}
	return t
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
<h1>%s</h1>
`

// HTML writes a standalone page with one table per area. Course titles link to their catalog
// page.
func HTML(w io.Writer, l listing.Listing) error {
	title := html.EscapeString(l.Title)
	_, err := fmt.Fprintf(w, pageHead, title, title)
	if err != nil {
		return err
	}

	for _, area := range l.Areas {
		t := newTable(l, area, func(row listing.Row) string {
			return fmt.Sprintf(
				`<a href="%s">%s</a>`,
				html.EscapeString(row.URL),
				html.EscapeString(row.Title),
			)
		}, html.EscapeString)
		style := t.Style()
		style.HTML.CSSClass = "course-table"
		style.HTML.EmptyColumn = "&nbsp;"
		style.HTML.Newline = "<br/>"
		// cells are escaped while building the table
		style.HTML.EscapeText = false

		_, err = fmt.Fprintf(w, "<h2>%s</h2>\n%s\n", html.EscapeString(area.Name), t.RenderHTML())
		if err != nil {
			return err
		}
	}

	_, err = io.WriteString(w, "</body>\n</html>\n")
	return err
}

// Text writes the listing as rounded terminal tables.
func Text(w io.Writer, l listing.Listing) error {
	_, err := fmt.Fprintf(w, "%s\n\n", l.Title)
	if err != nil {
		return err
	}
	for _, area := range l.Areas {
		t := newTable(l, area, func(row listing.Row) string { return row.Title }, plain)
		t.SetTitle(area.Name)
		t.SetStyle(table.StyleRounded)
		_, err = fmt.Fprintf(w, "%s\n\n", t.Render())
		if err != nil {
			return err
		}
	}
	if len(l.Excluded) > 0 {
		_, err = fmt.Fprintf(w, "%d courses excluded\n", len(l.Excluded))
	}
	return err
}
