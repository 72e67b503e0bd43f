package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/models"
)

// Transition is the change between a reference date and the company's
// previous observed date.
type Transition struct {
	Reference time.Time
	// Previous is nil when Reference is the company's first observation.
	Previous    *time.Time
	Current     JobSet
	PreviousSet JobSet
}

// New holds jobs observed on the reference date but not on the previous one.
// On a first observation every job is new.
func (t *Transition) New() JobSet {
	return t.Current.Minus(t.PreviousSet)
}

// Existing holds jobs observed on both dates.
func (t *Transition) Existing() JobSet {
	return t.Current.Intersect(t.PreviousSet)
}

// RemovedSincePrevious holds jobs observed on the previous date and gone on
// the reference date. Listings of these jobs come from the previous date's
// rows; see ListingDate.
func (t *Transition) RemovedSincePrevious() JobSet {
	return t.PreviousSet.Minus(t.Current)
}

// Jobs returns the ids belonging to status.
func (t *Transition) Jobs(status models.Status) (JobSet, error) {
	switch status {
	case models.StatusNew:
		return t.New(), nil
	case models.StatusExisting:
		return t.Existing(), nil
	case models.StatusRemoved:
		return t.RemovedSincePrevious(), nil
	}
	return nil, fmt.Errorf("unknown status %q", status)
}

// ListingDate is the date whose rows a status listing is sourced from:
// the reference date for new and existing, the previous date for removed.
// It is nil for removed when there is no previous date.
func (t *Transition) ListingDate(status models.Status) *time.Time {
	if status == models.StatusRemoved {
		return t.Previous
	}
	ref := t.Reference
	return &ref
}

// Classifier builds transitions from the resolver's set outputs.
type Classifier struct {
	resolver *Resolver
}

func NewClassifier(resolver *Resolver) *Classifier {
	return &Classifier{resolver: resolver}
}

// Classify computes the transition of companyName into ref as seen by p.
func (c *Classifier) Classify(ctx context.Context, companyName string, ref time.Time, p *models.Principal) (*Transition, error) {
	ref = models.Day(ref)
	current, err := c.resolver.JobIDsOnDate(ctx, companyName, ref, p)
	if err != nil {
		return nil, err
	}

	previous, err := c.resolver.AdjacentDate(ctx, companyName, ref, models.Previous, p)
	if err != nil {
		return nil, err
	}

	t := &Transition{Reference: ref, Previous: previous, Current: current, PreviousSet: JobSet{}}
	if previous != nil {
		t.PreviousSet, err = c.resolver.JobIDsOnDate(ctx, companyName, *previous, p)
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}
