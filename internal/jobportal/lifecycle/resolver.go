// Package lifecycle reconstructs job lifecycle transitions from snapshot
// history.
//
// Every company has a sorted list of observed dates. Between two adjacent
// observed dates a job is new (only on the later date), existing (on both)
// or removed (only on the earlier date). Dates without observations are
// never candidates; nothing assumes daily granularity.
package lifecycle

import (
	"context"
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/models"
)

// SnapshotStore provides the read primitives the resolver needs.
type SnapshotStore interface {
	JobIDsOnDate(ctx context.Context, companyName string, date time.Time, p *models.Principal) ([]uint, error)
	AdjacentDate(ctx context.Context, companyName string, ref time.Time, dir models.Direction, p *models.Principal) (*time.Time, error)
}

// Resolver answers per-company questions about observed dates.
type Resolver struct {
	store SnapshotStore
}

func NewResolver(store SnapshotStore) *Resolver {
	return &Resolver{store: store}
}

// JobIDsOnDate returns the set of the company's jobs observed exactly on date.
func (r *Resolver) JobIDsOnDate(ctx context.Context, companyName string, date time.Time, p *models.Principal) (JobSet, error) {
	ids, err := r.store.JobIDsOnDate(ctx, companyName, models.Day(date), p)
	if err != nil {
		return nil, err
	}
	return NewJobSet(ids...), nil
}

// AdjacentDate returns the nearest observed date strictly before or after
// ref, or nil when ref is the earliest or latest observation.
func (r *Resolver) AdjacentDate(ctx context.Context, companyName string, ref time.Time, dir models.Direction, p *models.Principal) (*time.Time, error) {
	return r.store.AdjacentDate(ctx, companyName, models.Day(ref), dir, p)
}
