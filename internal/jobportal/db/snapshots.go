package db

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/gartstein/jobportal/internal/jobportal/visibility"
	"gorm.io/gorm"
)

// companyInserts joins inserts through jobs to the named company, visible to p.
func (r *Repository) companyInserts(ctx context.Context, companyName string, p *models.Principal) *gorm.DB {
	tx := r.db.WithContext(ctx).
		Table("inserts").
		Joins("JOIN jobs ON jobs.id = inserts.job_id").
		Joins("JOIN companies ON companies.id = jobs.company_id").
		Where("companies.name = ?", companyName)
	return visibility.Apply(tx, p)
}

// JobIDsOnDate lists the ids of the company's jobs observed exactly on date.
func (r *Repository) JobIDsOnDate(ctx context.Context, companyName string, date time.Time, p *models.Principal) ([]uint, error) {
	var ids []uint
	err := r.companyInserts(ctx, companyName, p).
		Where("inserts.scrape_date = ?", models.Day(date)).
		Distinct().
		Pluck("inserts.job_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load job ids for %q on %s: %w", companyName, models.FormatDate(date), err)
	}
	return ids, nil
}

// AdjacentDate returns the closest observed date of the company strictly
// before (Previous) or after (Next) ref, or nil when there is none.
func (r *Repository) AdjacentDate(ctx context.Context, companyName string, ref time.Time, dir models.Direction, p *models.Principal) (*time.Time, error) {
	tx := r.companyInserts(ctx, companyName, p)
	switch dir {
	case models.Previous:
		tx = tx.Where("inserts.scrape_date < ?", models.Day(ref)).Order("inserts.scrape_date DESC")
	case models.Next:
		tx = tx.Where("inserts.scrape_date > ?", models.Day(ref)).Order("inserts.scrape_date ASC")
	default:
		return nil, fmt.Errorf("unknown direction %d", dir)
	}

	var rows []dateRow
	err := tx.Select("inserts.scrape_date AS scrape_date").Limit(1).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve adjacent date for %q: %w", companyName, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].ScrapeDate.ptr(), nil
}

type dateRow struct {
	ScrapeDate nullDate
}

type snapshotRow struct {
	CompanyName string
	ScrapeDate  nullDate
	JobID       uint
}

// SnapshotRows loads every (company, date, job) fact visible to p,
// optionally restricted to the given company names.
func (r *Repository) SnapshotRows(ctx context.Context, companyNames []string, p *models.Principal) ([]models.SnapshotRow, error) {
	tx := r.db.WithContext(ctx).
		Table("inserts").
		Select("companies.name AS company_name, inserts.scrape_date AS scrape_date, inserts.job_id AS job_id").
		Joins("JOIN jobs ON jobs.id = inserts.job_id").
		Joins("JOIN companies ON companies.id = jobs.company_id")
	if len(companyNames) > 0 {
		tx = tx.Where("companies.name IN ?", companyNames)
	}
	tx = visibility.Apply(tx, p)

	var rows []snapshotRow
	if err := tx.Order("companies.name ASC, inserts.scrape_date DESC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load snapshot rows: %w", err)
	}

	out := make([]models.SnapshotRow, 0, len(rows))
	for _, row := range rows {
		if !row.ScrapeDate.Valid {
			continue
		}
		out = append(out, models.SnapshotRow{
			CompanyName: row.CompanyName,
			ScrapeDate:  row.ScrapeDate.Time,
			JobID:       row.JobID,
		})
	}
	return out, nil
}
