// Package offerings fetches the lecture offerings of a curriculum per term and keeps them in an
// incrementally extended snapshot.
package offerings

import (
	"encoding/json"
	"sort"

	"coursetable/internal/snapshot"
	"coursetable/internal/term"
)

// Offering is one course offered in one term. ClusterID is the id of the oldest course the
// catalog considers the same course, 0 until resolved.
type Offering struct {
	ID         int64
	Term       term.ID
	TermName   string
	CourseType string
	Title      string
	ClusterID  int64
}

// wireOffering keeps snapshot files compatible with the catalog's own field names.
type wireOffering struct {
	CourseType struct {
		Key string `json:"key"`
	} `json:"courseTypeDto"`
	TermName string `json:"termName"`
	Semester struct {
		ID term.ID `json:"id"`
	} `json:"semesterDto"`
	Title     string `json:"title"`
	ID        int64  `json:"id"`
	ClusterID int64  `json:"oldestRelatedCourseId,omitempty"`
}

func (o Offering) MarshalJSON() ([]byte, error) {
	var w wireOffering
	w.CourseType.Key = o.CourseType
	w.TermName = o.TermName
	w.Semester.ID = o.Term
	w.Title = o.Title
	w.ID = o.ID
	w.ClusterID = o.ClusterID
	return json.Marshal(w)
}

func (o *Offering) UnmarshalJSON(data []byte) error {
	var w wireOffering
	err := json.Unmarshal(data, &w)
	if err != nil {
		return err
	}
	*o = Offering{
		ID:         w.ID,
		Term:       w.Semester.ID,
		TermName:   w.TermName,
		CourseType: w.CourseType.Key,
		Title:      w.Title,
		ClusterID:  w.ClusterID,
	}
	return nil
}

type Snapshot struct {
	Courses []Offering `json:"courses"`
}

// Sort orders the courses by term and then by id.
func (s *Snapshot) Sort() {
	sort.SliceStable(s.Courses, func(i, j int) bool {
		a, b := s.Courses[i], s.Courses[j]
		if a.Term != b.Term {
			return a.Term < b.Term
		}
		return a.ID < b.ID
	})
}

// Terms returns the distinct terms present in the snapshot in ascending order.
func (s Snapshot) Terms() []term.ID {
	seen := map[term.ID]struct{}{}
	var out []term.ID
	for _, o := range s.Courses {
		if _, ok := seen[o.Term]; ok {
			continue
		}
		seen[o.Term] = struct{}{}
		out = append(out, o.Term)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LoadSnapshot returns an empty snapshot when the file does not exist yet.
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	_, err := snapshot.Load(path, &snap)
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func SaveSnapshot(path string, snap Snapshot) error {
	snap.Courses = append([]Offering(nil), snap.Courses...)
	snap.Sort()
	if snap.Courses == nil {
		snap.Courses = []Offering{}
	}
	return snapshot.Save(path, snap)
}

// Plan decides which terms of [from, to] need fetching given what existing already holds. The
// term to is always refetched, so its rows are left out of keep. fetch is ordered newest first.
func Plan(existing Snapshot, from, to term.ID) (fetch []term.ID, keep []Offering) {
	present := map[term.ID]bool{}
	for _, o := range existing.Courses {
		if o.Term == to {
			continue
		}
		present[o.Term] = true
		keep = append(keep, o)
	}

	ids := term.Range(from, to)
	for i := len(ids) - 1; i >= 0; i-- {
		if present[ids[i]] {
			continue
		}
		fetch = append(fetch, ids[i])
	}
	return fetch, keep
}

// ByTerm splits offerings into per term groups ordered newest first, the order within a term
// is preserved.
func ByTerm(offerings []Offering) [][]Offering {
	index := map[term.ID]int{}
	var groups [][]Offering
	for _, o := range offerings {
		i, ok := index[o.Term]
		if !ok {
			i = len(groups)
			index[o.Term] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], o)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i][0].Term > groups[j][0].Term
	})
	return groups
}
