package models

import (
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/pkg/utils"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000

	// TodaySentinel is accepted wherever a calendar date is expected.
	TodaySentinel = "today"
	dateLayout    = "2006-01-02"
)

// JobFilter carries every optional listing filter. Zero values mean "not set".
type JobFilter struct {
	CompanyID    *uint
	CompanyName  string
	CompanyNames []string
	Level        string
	Levels       []string
	ContractType string

	FoundOnDate *time.Time
	Status      Status

	TitleContains string
	TitleExcludes string
	Location      string
	Function      string
	Department    string
	Keywords      string

	TitleRegex    string
	FunctionRegex string

	Skip int
	// Limit is nil when the caller did not ask for a page size.
	Limit *int
}

// Names merges CompanyName and CompanyNames, dropping blanks and duplicates.
func (f *JobFilter) Names() []string {
	return mergeValues(f.CompanyName, f.CompanyNames)
}

// AllLevels merges Level and Levels, dropping blanks and duplicates.
func (f *JobFilter) AllLevels() []string {
	return mergeValues(f.Level, f.Levels)
}

// SingleCompany returns the company name when exactly one was requested.
func (f *JobFilter) SingleCompany() (string, bool) {
	names := f.Names()
	if len(names) != 1 {
		return "", false
	}
	return names[0], true
}

// Normalize validates and bounds the pagination window. An unset Limit
// becomes DefaultLimit.
func (f *JobFilter) Normalize() error {
	if f.Skip < 0 {
		return fmt.Errorf("%w: skip must be >= 0", e.ErrInvalidFilter)
	}
	if f.Limit == nil {
		f.Limit = utils.Ptr(DefaultLimit)
	}
	if *f.Limit < 1 || *f.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", e.ErrInvalidFilter, MaxLimit)
	}
	return nil
}

// PageSize returns the requested limit, or DefaultLimit when unset.
func (f *JobFilter) PageSize() int {
	if f.Limit == nil {
		return DefaultLimit
	}
	return *f.Limit
}

func mergeValues(single string, many []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range append([]string{single}, many...) {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or the "today" sentinel, resolved against now.
func ParseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, TodaySentinel) {
		return Day(now.UTC()), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD or %q", e.ErrInvalidFilter, s, TodaySentinel)
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
