package db

import (
	"context"
	"errors"
	"time"

	dbmodels "github.com/gartstein/jobportal/internal/jobportal/db/models"
	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/gartstein/jobportal/internal/jobportal/visibility"
	"gorm.io/gorm"
)

// FindJob looks a job up by external id, falling back to url. With
// neither identifier there is nothing to deduplicate on and ErrNotFound
// is returned.
func (r *Repository) FindJob(ctx context.Context, companyID uint, externalID, url string) (*models.Job, error) {
	tx := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	switch {
	case externalID != "":
		tx = tx.Where("external_id = ?", externalID)
	case url != "":
		tx = tx.Where("url = ?", url)
	default:
		return nil, e.ErrNotFound
	}

	var job dbmodels.Job
	if err := tx.First(&job).Error; err != nil {
		return nil, mapQueryError(err)
	}
	out := jobToModel(&job)
	return &out, nil
}

// CreateJob stores the job described by req under companyID unless one with
// the same external id or url exists, in which case that job is returned
// unchanged. The bool reports whether a row was created.
func (r *Repository) CreateJob(ctx context.Context, companyID uint, req *models.InsertJobRequest) (*models.Job, bool, error) {
	existing, err := r.FindJob(ctx, companyID, req.ExternalID, req.URL)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, e.ErrNotFound) {
		return nil, false, err
	}

	entity := jobFromRequest(companyID, req)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		mapped := mapCreateError(err, "job")
		if !errors.Is(mapped, e.ErrConflict) {
			return nil, false, mapped
		}
		existing, err = r.FindJob(ctx, companyID, req.ExternalID, req.URL)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	out := jobToModel(entity)
	return &out, true, nil
}

func (r *Repository) getInsert(ctx context.Context, jobID uint, day time.Time) (*dbmodels.Insert, error) {
	var insert dbmodels.Insert
	result := r.db.WithContext(ctx).
		Where("job_id = ? AND scrape_date = ?", jobID, day).
		First(&insert)
	if result.Error != nil {
		return nil, mapQueryError(result.Error)
	}
	return &insert, nil
}

// CreateInsert records that jobID was observed on date. A second observation
// of the same (job, date) is a no-op returning the existing entry with
// created=false.
func (r *Repository) CreateInsert(ctx context.Context, jobID uint, date time.Time) (uint, bool, error) {
	day := models.Day(date)
	existing, err := r.getInsert(ctx, jobID, day)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, e.ErrNotFound) {
		return 0, false, err
	}

	insert := &dbmodels.Insert{JobID: jobID, ScrapeDate: day}
	if err := r.db.WithContext(ctx).Create(insert).Error; err != nil {
		mapped := mapCreateError(err, "insert")
		if !errors.Is(mapped, e.ErrConflict) {
			return 0, false, mapped
		}
		existing, err = r.getInsert(ctx, jobID, day)
		if err != nil {
			return 0, false, err
		}
		return existing.ID, false, nil
	}
	return insert.ID, true, nil
}

// jobsWithCompany is the base listing shape: jobs joined with their company
// and with first/last seen dates from a grouped outer join over inserts,
// restricted to what p may see.
func (r *Repository) jobsWithCompany(ctx context.Context, p *models.Principal) *gorm.DB {
	tx := r.db.WithContext(ctx).
		Table("jobs").
		Joins("JOIN companies ON companies.id = jobs.company_id").
		Joins("LEFT JOIN (SELECT job_id, MIN(scrape_date) AS first_seen, MAX(scrape_date) AS last_seen FROM inserts GROUP BY job_id) seen ON seen.job_id = jobs.id")
	return visibility.Apply(tx, p)
}

const jobRowColumns = "jobs.*, companies.name AS company_name, companies.hidden AS company_hidden, seen.first_seen AS first_seen, seen.last_seen AS last_seen"

// GetJob returns a job by id. Jobs of hidden companies are reported as not
// found to principals that may not see them.
func (r *Repository) GetJob(ctx context.Context, id uint, p *models.Principal) (*models.Job, error) {
	var rows []jobRow
	err := r.jobsWithCompany(ctx, p).
		Select(jobRowColumns).
		Where("jobs.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, e.ErrNotFound
	}
	out := rowToModel(&rows[0])
	return &out, nil
}
