package models

import "time"

// SnapshotRow is one (company, date, job) presence fact.
type SnapshotRow struct {
	CompanyName string
	ScrapeDate  time.Time
	JobID       uint
}

// DateStatistics is the per-date aggregate of one company.
type DateStatistics struct {
	Date          time.Time
	OpenPositions int
	NewlyAdded    int
	Removed       int
}

// CompanyStatistics holds a company's series, most recent date first.
type CompanyStatistics struct {
	CompanyName string
	Dates       []DateStatistics
}

// StatisticsFilter narrows the statistics output.
type StatisticsFilter struct {
	CompanyNames []string
	// Date keeps only that date's record per company; deltas still use the full series.
	Date *time.Time
}
