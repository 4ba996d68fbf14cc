package tree

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestScanPage(t *testing.T) {
	rows := []Row{
		RuleNode(10, "Electives"),
		RuleNode(30, "Databases"),
		Module("[IN2031] Database Systems", floatPtr(6)),
		CourseLink("/course/1"),
		CourseLink("/course/2"),
		NodeClosed(30),
		RuleNode(30, "Theory"),
		Module("[IN2041] Automata", nil),
		CourseLink("/course/3"),
	}

	result := ScanPage(rows)
	require.Equal(t, 0, result.Leading)
	require.True(t, result.SawModule)
	require.Nil(t, result.LastCredits)
	require.Equal(t, strPtr("[IN2041] Automata"), result.LastModuleName)

	expected := []Record{
		{
			URLs:       []string{"/course/1", "/course/2"},
			Credits:    floatPtr(6),
			ModuleName: strPtr("[IN2031] Database Systems"),
			RuleNodes:  map[int]*string{10: strPtr("Electives"), 30: strPtr("Databases")},
		},
		{
			URLs:       []string{"/course/3"},
			ModuleName: strPtr("[IN2041] Automata"),
			RuleNodes:  map[int]*string{10: strPtr("Electives"), 30: strPtr("Theory")},
		},
	}
	diff := cmp.Diff(expected, result.Records)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestScanPageSnapshotsRuleNodes(t *testing.T) {
	result := ScanPage([]Row{
		RuleNode(10, "Electives"),
		Module("M", nil),
		CourseLink("/course/1"),
		NodeClosed(10),
		Module("N", nil),
		CourseLink("/course/2"),
	})
	require.Len(t, result.Records, 2)
	require.Equal(t, []string{"Electives"}, result.Records[0].Path())
	require.Empty(t, result.Records[1].Path())
	require.Contains(t, result.Records[1].RuleNodes, 10)
}

func TestMergePagesCarriesModuleAcrossPages(t *testing.T) {
	first := ScanPage([]Row{
		RuleNode(10, "Electives"),
		Module("[IN0001] First", floatPtr(5)),
		CourseLink("/course/a"),
		Module("[IN0002] Second", floatPtr(6)),
		CourseLink("/course/b"),
	})
	second := ScanPage([]Row{
		CourseLink("/course/c"),
		Module("[IN0003] Third", floatPtr(8)),
		CourseLink("/course/d"),
	})
	require.Equal(t, 1, second.Leading)

	records := MergePages([]PageResult{first, second})
	require.Len(t, records, 4)

	b, c := records[1], records[2]
	require.Equal(t, []string{"/course/b"}, b.URLs)
	require.Equal(t, []string{"/course/c"}, c.URLs)
	require.Equal(t, strPtr("[IN0002] Second"), b.ModuleName)
	require.Equal(t, b.ModuleName, c.ModuleName)
	require.Equal(t, floatPtr(6), c.Credits)
	require.Equal(t, []string{"Electives"}, c.Path())

	require.Equal(t, strPtr("[IN0003] Third"), records[3].ModuleName)
	require.Equal(t, floatPtr(8), records[3].Credits)
}

func TestMergePagesCarryOverSkipsModulelessPages(t *testing.T) {
	pages := []PageResult{
		ScanPage([]Row{Module("M", floatPtr(3)), CourseLink("/1")}),
		ScanPage([]Row{CourseLink("/2")}),
		ScanPage([]Row{CourseLink("/3")}),
	}
	records := MergePages(pages)
	require.Len(t, records, 3)
	for _, record := range records {
		require.Equal(t, strPtr("M"), record.ModuleName, record.URLs)
		require.Equal(t, floatPtr(3), record.Credits, record.URLs)
	}
}

func TestMergePagesBackfillsRuleNodes(t *testing.T) {
	first := ScanPage([]Row{
		RuleNode(10, "Electives"),
		RuleNode(30, "Databases"),
		RuleNode(50, "Advanced"),
		NodeClosed(50),
		Module("M", nil),
		CourseLink("/1"),
	})
	second := ScanPage([]Row{
		RuleNode(30, "Theory"),
		Module("N", nil),
		CourseLink("/2"),
	})
	third := ScanPage([]Row{
		NodeClosed(30),
		Module("O", nil),
		CourseLink("/3"),
	})

	records := MergePages([]PageResult{first, second, third})
	require.Len(t, records, 3)
	require.Equal(t, []string{"Electives", "Databases"}, records[0].Path())
	require.Equal(t, []string{"Electives", "Theory"}, records[1].Path())
	require.Equal(t, []string{"Electives"}, records[2].Path())
	require.NotContains(t, records[1].RuleNodes, 50)
}

func TestMergePagesDoesNotMutateInput(t *testing.T) {
	first := ScanPage([]Row{RuleNode(10, "Electives"), Module("M", nil), CourseLink("/1")})
	second := ScanPage([]Row{CourseLink("/2")})
	MergePages([]PageResult{first, second})
	require.Empty(t, second.Records[0].RuleNodes)
	require.Nil(t, second.Records[0].ModuleName)
}

func TestRecordPathOrdersByOffset(t *testing.T) {
	record := Record{RuleNodes: map[int]*string{
		120: strPtr("Deep"),
		8:   strPtr("Root"),
		64:  nil,
		30:  strPtr("Middle"),
	}}
	require.Equal(t, []string{"Root", "Middle", "Deep"}, record.Path())
}

func TestURLKey(t *testing.T) {
	require.Equal(t, "/950001", URLKey("https://a/b/#/pages/slc.tm.cp/course/950001"))
	require.Equal(t, "/950001", URLKey("https://campus/courses/950001"))
	require.Equal(t, "plain", URLKey("plain"))
}

func TestIndexLastRecordWins(t *testing.T) {
	index := Index([]Record{
		{URLs: []string{"/x/1", "/x/2"}, ModuleName: strPtr("first")},
		{URLs: []string{"/y/2"}, ModuleName: strPtr("second")},
	})
	require.Len(t, index, 2)
	require.Equal(t, strPtr("first"), index["/1"].ModuleName)
	require.Equal(t, strPtr("second"), index["/2"].ModuleName)
}

func TestFractionalCreditsCarryOver(t *testing.T) {
	rows, err := ParseRows(strings.NewReader(`<table id="tgt"><tbody>
	<tr class="coRow" data-offset="10"><td><img src="regelknoten.gif"><span><span>Elective&nbsp;Modules Informatics</span></span></td><td></td><td></td><td></td></tr>
	<tr class="coRow"><td><img src="modulknoten.gif"><span><span>[IN2100] Robotics</span></span></td><td></td><td></td><td><span>7.5</span></td></tr>
	<tr class="coRow"><td><a href="/pages/slc.tm.cp/course/9">Robotics</a></td><td></td><td></td><td></td></tr>
	</tbody></table>`), DefaultSelectors())
	require.NoError(t, err)

	first := ScanPage(rows)
	second := ScanPage([]Row{CourseLink("/pages/slc.tm.cp/course/10")})
	records := MergePages([]PageResult{first, second})
	require.Len(t, records, 2)
	for _, record := range records {
		require.Equal(t, floatPtr(7.5), record.Credits, record.URLs)
		require.Equal(t, []string{"Elective Modules Informatics"}, record.Path(), record.URLs)
	}
}
