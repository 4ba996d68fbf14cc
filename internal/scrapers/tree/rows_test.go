package tree

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const fixtureTree = `<html><body>
<table id="tgt"><tbody>
<tr class="coRow" data-offset="10.4">
	<td><img src="/img/regelknoten_open.gif"><span><span>Elective&nbsp;Modules&nbsp; Informatics</span></span></td>
	<td></td><td></td><td></td>
</tr>
<tr class="coRow" data-offset="29.6">
	<td><img src="/img/regelknoten_open.gif"><span><span> Databases </span></span></td>
	<td></td><td></td><td></td>
</tr>
<tr class="coRow" data-offset="48">
	<td><img src="/img/modulknoten.gif"><span><span>[IN2031] Database Systems</span></span></td>
	<td></td><td></td><td><span>6</span></td>
</tr>
<tr class="coRow">
	<td><span><span>Offers</span></span></td>
	<td></td><td></td><td></td>
</tr>
<tr class="coRow">
	<td><a href="https://campus.example/tumonline/ee/ui/ca2/app/desktop/#/pages/slc.tm.cp/course/950001">Database Systems (VO)</a></td>
	<td></td><td></td><td></td>
</tr>
<tr class="coRow">
	<td><span><span>[IN2032] Query Optimization</span></span></td>
	<td></td><td></td><td><span>7,5</span></td>
</tr>
<tr class="coRow">
	<td><span><span>[IN9999] Seminar</span></span></td>
	<td></td><td></td><td><span>n/a</span></td>
</tr>
<tr class="coRow" data-offset="29.6">
	<td><img src="/img/tee_end.gif"></td>
	<td></td><td></td><td></td>
</tr>
<tr class="coRow">
	<td>
		<a href="https://campus.example/tumonline/ee/ui/ca2/app/desktop/#/pages/slc.tm.cp/course/950002">A</a>
		<a href="https://campus.example/tumonline/ee/ui/ca2/app/desktop/#/pages/slc.tm.cp/course/950003">B</a>
		<a href="https://campus.example/other/950004">unrelated</a>
	</td>
	<td></td><td></td><td></td>
</tr>
</tbody></table>
<table><tbody><tr class="coRow"><td><a href="/pages/slc.tm.cp/course/1">outside</a></td></tr></tbody></table>
</body></html>`

func floatPtr(f float64) *float64 {
	return &f
}

func strPtr(s string) *string {
	return &s
}

func TestParseRows(t *testing.T) {
	rows, err := ParseRows(strings.NewReader(fixtureTree), DefaultSelectors())
	require.NoError(t, err)

	const prefix = "https://campus.example/tumonline/ee/ui/ca2/app/desktop/#/pages/slc.tm.cp/course/"
	expected := []Row{
		RuleNode(10, "Elective Modules Informatics"),
		RuleNode(30, "Databases"),
		Module("[IN2031] Database Systems", floatPtr(6)),
		CourseLink(prefix + "950001"),
		Module("[IN2032] Query Optimization", floatPtr(7.5)),
		Module("[IN9999] Seminar", nil),
		NodeClosed(30),
		CourseLink(prefix + "950002"),
		CourseLink(prefix + "950003"),
	}
	diff := cmp.Diff(expected, rows)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestParseRowsMissingOffset(t *testing.T) {
	html := `<table id="tgt"><tbody>
	<tr class="coRow"><td><img src="regelknoten.gif"><span><span>Root</span></span></td></tr>
	</tbody></table>`
	_, err := ParseRows(strings.NewReader(html), DefaultSelectors())
	require.ErrorContains(t, err, "data-offset")
}

func TestParseCredits(t *testing.T) {
	cases := []struct {
		text     string
		expected *float64
	}{
		{text: "6", expected: floatPtr(6)},
		{text: " 10 ", expected: floatPtr(10)},
		{text: "5.0", expected: floatPtr(5)},
		{text: "8,0", expected: floatPtr(8)},
		{text: "7.5", expected: floatPtr(7.5)},
		{text: "2,5", expected: floatPtr(2.5)},
		{text: "", expected: nil},
		{text: "-", expected: nil},
		{text: "-3", expected: nil},
		{text: "NaN", expected: nil},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, parseCredits(test.text), test.text)
	}
}
