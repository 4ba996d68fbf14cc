// Package listing joins offerings with the curriculum tree into area grouped rows.
package listing

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"coursetable/internal/components/assert"
	"coursetable/internal/components/telemetry"
	"coursetable/internal/curriculum"
	"coursetable/internal/offerings"
	"coursetable/internal/scrapers/catalog"
	"coursetable/internal/scrapers/tree"
	"coursetable/internal/term"
)

const (
	report_assemble_not_found = "assemble.not-found"
	report_assemble_excluded  = "assemble.excluded"
	report_assemble_rows      = "assemble.rows"
)

var (
	// ErrCourseNotFoundInTree excludes a cluster whose youngest course has no tree record.
	ErrCourseNotFoundInTree = errors.New("course not found in curriculum tree")
	// ErrUnclassifiedArea excludes a cluster whose tree path maps to no area.
	ErrUnclassifiedArea = errors.New("course path maps to no area")
)

// Placeholder stands in for a module code or credit count the tree does not provide.
const Placeholder = "?"

// rareDistance is the largest gap (in terms) to the previous offering that is still regular.
const rareDistance = 2

type Options struct {
	// Term is the term the listing is for, offerings of later terms are ignored.
	Term term.ID
	// From includes every term in [From, Term] when set.
	From *term.ID
}

func (o Options) Validate() error {
	if o.From != nil && *o.From > o.Term {
		return fmt.Errorf("first term %s is after %s", o.From.Name(), o.Term.Name())
	}
	return nil
}

func (o Options) first() term.ID {
	if o.From != nil {
		return *o.From
	}
	return o.Term
}

type Row struct {
	Title      string
	URL        string
	CourseCode string
	Credits    string
	Term       term.ID
	TermName   string
	Path       []string
	// Rare is set when the previous offering of the course lies more than two terms back.
	Rare bool
	// New is set when the course was never offered before.
	New bool
	// LastOffered names the term of the previous offering, empty when there is none.
	LastOffered string
	Extra       []string
}

type Area struct {
	Name string
	Rows []Row
}

// Exclusion is a cluster left out of the listing.
type Exclusion struct {
	CourseID int64
	Title    string
	TermName string
	URL      string
	Reason   error
	// ClosestModule is the tree module whose name is most similar to Title, only set for
	// courses missing from the tree.
	ClosestModule string
	Similarity    float64
}

type Listing struct {
	Title        string
	ExtraColumns []string
	Areas        []Area
	// WithTags is set for single term listings, those mark rare and new courses.
	WithTags bool
	// IncludeLastOffered is set for listings spanning several terms.
	IncludeLastOffered bool
	Excluded           []Exclusion
}

type cluster struct {
	failed  bool
	area    string
	code    string
	credits string
	path    []string
	// members are ordered from the newest to the oldest term.
	members []offerings.Offering
}

// Assemble builds the listing of offs for cur. Every cluster is represented by its youngest
// offering and excluded as a whole when that offering cannot be placed in an area.
func Assemble(offs []offerings.Offering, records []tree.Record, cur curriculum.Curriculum, opts Options, tel telemetry.API) Listing {
	assert.NotNil(tel)
	assert.NotNil(cur.AreaRule)
	tel = telemetry.NewScopedAPI("listing", tel)

	sorted := make([]offerings.Offering, 0, len(offs))
	for _, o := range offs {
		if o.Term > opts.Term {
			continue
		}
		sorted = append(sorted, o)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Term != sorted[j].Term {
			return sorted[i].Term > sorted[j].Term
		}
		return sorted[i].ID < sorted[j].ID
	})

	index := tree.Index(records)
	modules := moduleNames(records)

	listing := Listing{
		Title:              title(cur.Heading, opts),
		WithTags:           opts.From == nil,
		IncludeLastOffered: opts.From != nil,
	}
	for _, column := range cur.ExtraColumns {
		listing.ExtraColumns = append(listing.ExtraColumns, column.Name)
	}

	clusters := map[int64]*cluster{}
	var order []*cluster
	buckets := map[string][]Row{}
	first := opts.first()

	for _, o := range sorted {
		id := o.ClusterID
		if id == 0 {
			id = o.ID
		}
		c, seen := clusters[id]
		if seen {
			if !c.failed {
				c.members = append(c.members, o)
			}
			continue
		}

		c = &cluster{members: []offerings.Offering{o}}
		clusters[id] = c
		url := catalog.CourseURL(o.ID)

		record, ok := index[tree.URLKey(url)]
		if !ok {
			c.failed = true
			exclusion := Exclusion{
				CourseID: o.ID,
				Title:    o.Title,
				TermName: o.TermName,
				URL:      url,
				Reason:   ErrCourseNotFoundInTree,
			}
			exclusion.ClosestModule, exclusion.Similarity = closestModule(CleanTitle(o.Title), modules)
			listing.Excluded = append(listing.Excluded, exclusion)
			tel.ReportWarning(
				report_assemble_not_found,
				fmt.Errorf("%w: %s (%s)", ErrCourseNotFoundInTree, o.Title, o.TermName),
				url,
				exclusion.ClosestModule,
			)
			continue
		}

		c.path = record.Path()
		area, ok := cur.AreaRule(c.path)
		if !ok {
			c.failed = true
			listing.Excluded = append(listing.Excluded, Exclusion{
				CourseID: o.ID,
				Title:    o.Title,
				TermName: o.TermName,
				URL:      url,
				Reason:   ErrUnclassifiedArea,
			})
			tel.ReportDebug("unclassified course", o.Title, strings.Join(c.path, " > "))
			continue
		}
		c.area = area
		c.code = ModuleCode(record.ModuleName)
		c.credits = Placeholder
		if record.Credits != nil {
			c.credits = strconv.FormatFloat(*record.Credits, 'f', -1, 64)
		}
		if o.Term >= first {
			order = append(order, c)
		}
	}

	for _, c := range order {
		rep := c.members[0]
		row := Row{
			Title:      CleanTitle(rep.Title),
			URL:        catalog.CourseURL(rep.ID),
			CourseCode: c.code,
			Credits:    c.credits,
			Term:       rep.Term,
			TermName:   rep.TermName,
			Path:       c.path,
		}
		if len(c.members) > 1 {
			previous := c.members[1]
			row.LastOffered = previous.TermName
			row.Rare = rep.Term == opts.Term && term.Distance(rep.Term, previous.Term) > rareDistance
		} else {
			row.New = rep.Term == opts.Term
		}
		for _, column := range cur.ExtraColumns {
			row.Extra = append(row.Extra, column.Extract(c.path))
		}
		buckets[c.area] = append(buckets[c.area], row)
	}

	for _, name := range AreaOrder(records, cur.AreaRule) {
		rows, ok := buckets[name]
		if !ok {
			continue
		}
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Term != rows[j].Term {
				return rows[i].Term > rows[j].Term
			}
			return strings.ToLower(rows[i].Title) < strings.ToLower(rows[j].Title)
		})
		listing.Areas = append(listing.Areas, Area{Name: name, Rows: rows})
		tel.ReportCount(report_assemble_rows, int64(len(rows)))
	}
	tel.ReportCount(report_assemble_excluded, int64(len(listing.Excluded)))
	return listing
}

// AreaOrder lists the areas of records in the order they first appear in the tree.
func AreaOrder(records []tree.Record, rule curriculum.AreaRule) []string {
	seen := map[string]bool{}
	var out []string
	for _, record := range records {
		area, ok := rule(record.Path())
		if !ok || seen[area] {
			continue
		}
		seen[area] = true
		out = append(out, area)
	}
	return out
}

func title(heading string, opts Options) string {
	if opts.From != nil {
		return fmt.Sprintf("%s - offered in %s and in previous semesters", heading, opts.Term.Name())
	}
	return fmt.Sprintf("%s - offered in %s", heading, opts.Term.Name())
}
