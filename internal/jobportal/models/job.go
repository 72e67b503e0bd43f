// Package models defines the core domain models for companies, jobs,
// snapshot history and the query/statistics shapes built on top of them.
package models

import (
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/jobportal/internal/jobportal/errors"
)

// Status is the lifecycle classification of a job between two adjacent
// observed dates of its company.
type Status string

const (
	StatusNew      Status = "new"
	StatusExisting Status = "existing"
	StatusRemoved  Status = "removed"
)

// ParseStatus converts a raw string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusNew, StatusExisting, StatusRemoved:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", e.ErrInvalidFilter, s)
}

// Company defines the domain model for an employer. The pair (Name, Hidden)
// identifies it; a hidden and a visible company may share a name.
type Company struct {
	ID        uint
	Name      string
	Hidden    bool
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// JobFields is the bag of descriptive text carried by a job. The core only
// reads these for filtering.
type JobFields struct {
	ExternalID                  string
	URL                         string
	URLTitle                    string
	Title                       string
	Function                    string
	Level                       string
	ContractType                string
	WorkLocation                string
	WorkLocationShort           string
	WorkLocationWithCoordinates string
	AllLocations                string
	CoordinatesPrimary          string
	Country                     string
	Currency                    string
	SupportedLocales            string
	Department                  string
	Flexibility                 string
	Keywords                    string
	Description                 string
	Tasks                       string
	Qualifications              string
	Offerings                   string
	ContactPerson               string
	ContactEmail                string
	ContactPhone                string
	UnifiedURLTitle             string
	UnifiedStandardStart        string
	UnifiedStandardEnd          string
}

// Job is a single posting with its owning company.
type Job struct {
	ID          uint
	CompanyID   uint
	CompanyName string
	Hidden      bool
	JobFields
	DateAdded *time.Time
	FirstSeen *time.Time
	LastSeen  *time.Time
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Location prefers the short work location.
func (j *Job) Location() string {
	if j.WorkLocationShort != "" {
		return j.WorkLocationShort
	}
	return j.WorkLocation
}

// JobPage is one page of a filtered listing. Total counts the whole
// filtered set, independent of Skip and Limit.
type JobPage struct {
	Jobs  []Job
	Total int64
	Skip  int
	Limit int
}

// InsertJobRequest is a single observation pushed by a scraper.
type InsertJobRequest struct {
	CompanyName string
	Hidden      bool
	JobFields
	DateAdded  *time.Time
	ScrapeDate *time.Time
}

// InsertJobResult reports what an observation created.
type InsertJobResult struct {
	JobID         uint
	InsertID      uint
	IsNewJob      bool
	InsertCreated bool
	Message       string
}

// FilterOptions lists the distinct values a client can filter on.
type FilterOptions struct {
	Companies []string
	Levels    []string
	Functions []string
}

// Direction selects which neighbour of a reference date to resolve.
type Direction int

const (
	Previous Direction = iota
	Next
)

func (d Direction) String() string {
	switch d {
	case Previous:
		return "previous"
	case Next:
		return "next"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}
