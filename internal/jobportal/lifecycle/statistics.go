package lifecycle

import (
	"sort"
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/models"
)

// addedOnDate counts jobs present on a date that were absent on the
// chronologically preceding observed date.
func addedOnDate(current, preceding JobSet) int {
	return current.Minus(preceding).Len()
}

// droppedOnDate counts jobs absent on a date that were present on the
// preceding observed date. The count belongs to the later date, unlike
// Transition.RemovedSincePrevious whose rows come from the earlier one.
func droppedOnDate(current, preceding JobSet) int {
	return preceding.Minus(current).Len()
}

// BuildStatistics replays every company's snapshot history into a per-date
// series, most recent date first. Deltas are computed from the full loaded
// series; target, when set, only selects which record is kept per company
// and companies without a record on target are omitted.
func BuildStatistics(rows []models.SnapshotRow, target *time.Time) []models.CompanyStatistics {
	byCompany := make(map[string]map[time.Time]JobSet)
	for _, row := range rows {
		dates, ok := byCompany[row.CompanyName]
		if !ok {
			dates = make(map[time.Time]JobSet)
			byCompany[row.CompanyName] = dates
		}
		day := models.Day(row.ScrapeDate)
		set, ok := dates[day]
		if !ok {
			set = JobSet{}
			dates[day] = set
		}
		set[row.JobID] = struct{}{}
	}

	names := make([]string, 0, len(byCompany))
	for name := range byCompany {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.CompanyStatistics, 0, len(names))
	for _, name := range names {
		series := companySeries(byCompany[name])
		if target != nil {
			series = keepDate(series, models.Day(*target))
			if len(series) == 0 {
				continue
			}
		}
		out = append(out, models.CompanyStatistics{CompanyName: name, Dates: series})
	}
	return out
}

func companySeries(dates map[time.Time]JobSet) []models.DateStatistics {
	sorted := make([]time.Time, 0, len(dates))
	for d := range dates {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j]) })

	series := make([]models.DateStatistics, 0, len(sorted))
	for i, d := range sorted {
		current := dates[d]
		stat := models.DateStatistics{
			Date:          d,
			OpenPositions: current.Len(),
			NewlyAdded:    current.Len(),
		}
		if i+1 < len(sorted) {
			preceding := dates[sorted[i+1]]
			stat.NewlyAdded = addedOnDate(current, preceding)
			stat.Removed = droppedOnDate(current, preceding)
		}
		series = append(series, stat)
	}
	return series
}

func keepDate(series []models.DateStatistics, day time.Time) []models.DateStatistics {
	for _, s := range series {
		if s.Date.Equal(day) {
			return []models.DateStatistics{s}
		}
	}
	return nil
}
