// Package term names and compares the campus system's numeric term identifiers.
//
// Identifiers alternate summer (even) and winter (odd) terms. The numbering skips the reserved
// values 201 and 202, so every id above the gap is two steps further from its predecessor than
// the calendar suggests.
package term

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	gapStart = 201
	gapEnd   = 202
	gapWidth = gapEnd - gapStart + 1

	// epochID is the (gap adjusted) id of the summer term 2023.
	epochID   = 198
	epochYear = 2023

	MinID = 152
	MaxID = 350
)

var ErrInvalidTermID = errors.New("invalid term id")

// ID identifies an academic term. The zero value is not a valid term, obtain values through New.
type ID int

// New validates v, it fails for reserved ids inside the numbering gap and for ids outside
// [MinID, MaxID].
func New(v int) (ID, error) {
	if v >= gapStart && v <= gapEnd {
		return 0, fmt.Errorf("%w: %d is reserved", ErrInvalidTermID, v)
	}
	if v < MinID || v > MaxID {
		return 0, fmt.Errorf("%w: %d is outside [%d, %d]", ErrInvalidTermID, v, MinID, MaxID)
	}
	return ID(v), nil
}

// MustNew is New but panics on invalid input.
func MustNew(v int) ID {
	id, err := New(v)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) Int() int {
	return int(id)
}

func (id ID) aboveGap() bool {
	return int(id) > gapEnd
}

// adjusted removes the gap so consecutive terms differ by exactly one.
func (id ID) adjusted() int {
	if id.aboveGap() {
		return int(id) - gapWidth
	}
	return int(id)
}

func (id ID) IsSummer() bool {
	return id.adjusted()%2 == 0
}

// StartYear is the calendar year the term starts in.
func (id ID) StartYear() int {
	a := id.adjusted()
	return epochYear + (a-epochID-a%2)/2
}

// Name returns labels like "SS24" and "WS24/25".
func (id ID) Name() string {
	year := id.StartYear()
	if id.IsSummer() {
		return fmt.Sprintf("SS%02d", year%100)
	}
	return fmt.Sprintf("WS%02d/%02d", year%100, (year+1)%100)
}

func (id ID) String() string {
	return fmt.Sprintf("%s (%d)", id.Name(), int(id))
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var v int
	err := json.Unmarshal(data, &v)
	if err != nil {
		return err
	}
	parsed, err := New(v)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

var nameRegex = regexp.MustCompile(`^(SS|WS)(\d{2})(?:/(\d{2}))?$`)

// Parse is the inverse of ID.Name.
func Parse(name string) (ID, error) {
	groups := nameRegex.FindStringSubmatch(name)
	if groups == nil {
		return 0, fmt.Errorf("%w: cannot parse term name %q", ErrInvalidTermID, name)
	}
	yy, _ := strconv.Atoi(groups[2])
	summer := groups[1] == "SS"
	if summer && groups[3] != "" {
		return 0, fmt.Errorf("%w: summer term %q spans two years", ErrInvalidTermID, name)
	}
	if !summer {
		if groups[3] == "" {
			return 0, fmt.Errorf("%w: winter term %q needs a second year", ErrInvalidTermID, name)
		}
		next, _ := strconv.Atoi(groups[3])
		if next != (yy+1)%100 {
			return 0, fmt.Errorf("%w: years in %q are not consecutive", ErrInvalidTermID, name)
		}
	}

	// two digit years inside the valid id window all fall in 2000-2099
	year := 2000 + yy
	adjusted := epochID + (year-epochYear)*2
	if !summer {
		adjusted++
	}
	return New(unadjust(adjusted))
}

func unadjust(a int) int {
	if a >= gapStart {
		return a + gapWidth
	}
	return a
}

// Add returns the term n terms after id (before it for negative n).
func (id ID) Add(n int) (ID, error) {
	return New(unadjust(id.adjusted() + n))
}

// Distance is the number of terms between a and b, the numbering gap does not count.
func Distance(a, b ID) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	if a.aboveGap() != b.aboveGap() {
		d -= gapWidth
	}
	return d
}

// Range returns every valid id in [from, to] in ascending order.
func Range(from, to ID) []ID {
	var out []ID
	for v := int(from); v <= int(to); v++ {
		id, err := New(v)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Latest returns the largest id in ids, ok is false for an empty slice.
func Latest(ids []ID) (latest ID, ok bool) {
	for _, id := range ids {
		if !ok || id > latest {
			latest = id
			ok = true
		}
	}
	return latest, ok
}

// ForDate returns the term t falls in. Summer terms run from April to September, winter terms
// from October to March.
func ForDate(t time.Time) (ID, error) {
	year := t.Year()
	switch {
	case t.Month() >= time.April && t.Month() <= time.September:
		return Parse(fmt.Sprintf("SS%02d", year%100))
	case t.Month() < time.April:
		year--
	}
	return Parse(fmt.Sprintf("WS%02d/%02d", year%100, (year+1)%100))
}
