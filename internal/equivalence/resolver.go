// Package equivalence groups offerings of the same underlying course across terms. A group
// (cluster) is identified by the id of its oldest course.
package equivalence

import (
	"context"
	"fmt"

	"coursetable/internal/components/assert"
	"coursetable/internal/components/telemetry"
	"coursetable/internal/offerings"

	"golang.org/x/sync/errgroup"
)

const (
	report_resolve_term    = "resolve.term"
	report_resolve_lookups = "resolve.lookups"
	report_resolve_known   = "resolve.known"
)

// Clusters maps a course id to the id of its cluster.
type Clusters map[int64]int64

func (c Clusters) clone() Clusters {
	out := make(Clusters, len(c))
	for id, cluster := range c {
		out[id] = cluster
	}
	return out
}

// RelationLookup returns the ids of the courses considered the same as courseID, ordered from
// the newest to the oldest.
type RelationLookup interface {
	SameCourses(ctx context.Context, courseID int64) ([]int64, error)
}

type Resolver struct {
	lookup      RelationLookup
	concurrency int
	tel         telemetry.API
}

// NewResolver creates a Resolver issuing at most concurrency lookups at once.
func NewResolver(lookup RelationLookup, concurrency int, tel telemetry.API) Resolver {
	assert.NotNil(lookup)
	assert.NotNil(tel)
	assert.Positive("concurrency", concurrency)

	return Resolver{
		lookup:      lookup,
		concurrency: concurrency,
		tel:         telemetry.NewScopedAPI("equivalence", tel),
	}
}

// SeedClusters rebuilds the accumulator from offerings that were resolved in an earlier run.
func SeedClusters(resolved []offerings.Offering) Clusters {
	out := Clusters{}
	for _, o := range resolved {
		if o.ClusterID == 0 {
			continue
		}
		out[o.ID] = o.ClusterID
	}
	return out
}

// ResolveTerm assigns a cluster id to every offering of a single term. Offerings whose id is
// already in known are assigned directly, every other offering costs one lookup. The returned
// accumulator additionally holds every id seen in those lookups. known is never modified.
//
// Terms must be resolved from the newest to the oldest, an older course only ends up in known
// through the lookup of a newer one.
func (r Resolver) ResolveTerm(ctx context.Context, offs []offerings.Offering, known Clusters) ([]offerings.Offering, Clusters, error) {
	out := append([]offerings.Offering(nil), offs...)

	var pending []int
	for i, o := range out {
		cluster, ok := known[o.ID]
		if ok {
			out[i].ClusterID = cluster
			continue
		}
		pending = append(pending, i)
	}
	r.tel.ReportCount(report_resolve_known, int64(len(out)-len(pending)))
	r.tel.ReportCount(report_resolve_lookups, int64(len(pending)))

	related := make([][]int64, len(pending))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for p, i := range pending {
		p := p
		id := out[i].ID
		group.Go(func() error {
			ids, err := r.lookup.SameCourses(groupCtx, id)
			if err != nil {
				return fmt.Errorf("same courses of %d: %w", id, err)
			}
			related[p] = ids
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, known, err
	}

	next := known.clone()
	for p, i := range pending {
		cluster := out[i].ID
		if len(related[p]) > 0 {
			cluster = related[p][len(related[p])-1]
		}
		out[i].ClusterID = cluster
		next[out[i].ID] = cluster
		for _, id := range related[p] {
			next[id] = cluster
		}
	}
	return out, next, nil
}

// Resolve resolves terms one after another, terms must be ordered from the newest to the
// oldest. It stops at the first term that fails and returns the terms resolved before it along
// with the error.
func (r Resolver) Resolve(ctx context.Context, terms [][]offerings.Offering, known Clusters) ([][]offerings.Offering, Clusters, error) {
	var out [][]offerings.Offering
	for i, offs := range terms {
		resolved, next, err := r.ResolveTerm(ctx, offs, known)
		if err != nil {
			name := ""
			if len(offs) > 0 {
				name = offs[0].TermName
			}
			r.tel.ReportBroken(report_resolve_term, err, i, name)
			return out, known, fmt.Errorf("resolve term %s: %w", name, err)
		}
		out = append(out, resolved)
		known = next
	}
	return out, known, nil
}
