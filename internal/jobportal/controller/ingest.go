package controller

import (
	"context"
	"fmt"

	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/events"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/gartstein/jobportal/internal/jobportal/sanitize"
	"go.uber.org/zap"
)

const (
	companyNameMaxLen = 255
	longTextMaxLen    = 65535
)

const (
	msgNewJobNewInsert      = "New job created with insert record"
	msgExistingJobNewInsert = "Existing job found, new insert record created"
	msgNewJobInsertExists   = "New job created but insert record already exists for this date"
	msgExistingJobAndInsert = "Job and insert record already exist for this date"
)

// InsertJob records one scraper observation: the company is found or
// created by (name, hidden), the job by external id or url, and a snapshot
// entry is added for the scrape date (today when unset). Repeating the
// same observation changes nothing.
func (s *JobService) InsertJob(ctx context.Context, req *models.InsertJobRequest) (*models.InsertJobResult, error) {
	sanitizeRequest(req)
	if req.CompanyName == "" {
		return nil, fmt.Errorf("%w: company_name is required", e.ErrInvalidInput)
	}

	today := s.today()
	scrapeDate := today
	if req.ScrapeDate != nil {
		scrapeDate = models.Day(*req.ScrapeDate)
	}
	if req.DateAdded == nil {
		req.DateAdded = &today
	}

	company, _, err := s.repo.FindOrCreateCompany(ctx, req.CompanyName, req.Hidden)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve company: %w", err)
	}

	job, isNew, err := s.repo.CreateJob(ctx, company.ID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job: %w", err)
	}

	insertID, created, err := s.repo.CreateInsert(ctx, job.ID, scrapeDate)
	if err != nil {
		return nil, fmt.Errorf("failed to record snapshot: %w", err)
	}

	result := &models.InsertJobResult{
		JobID:         job.ID,
		InsertID:      insertID,
		IsNewJob:      isNew,
		InsertCreated: created,
		Message:       insertMessage(isNew, created),
	}

	s.logger.Debug("Observation recorded",
		zap.Uint("job_id", job.ID),
		zap.String("company_name", company.Name),
		zap.String("scrape_date", models.FormatDate(scrapeDate)),
		zap.Bool("new_job", isNew),
		zap.Bool("insert_created", created),
	)

	base := events.Event{
		JobID:       job.ID,
		CompanyID:   company.ID,
		CompanyName: company.Name,
		Hidden:      company.Hidden,
		ExternalID:  job.ExternalID,
		URL:         job.URL,
		ScrapeDate:  models.FormatDate(scrapeDate),
		OccurredAt:  s.now().UTC(),
	}
	if isNew {
		ev := base
		ev.Type = events.JobCreated
		s.producer.Produce(ev)
	}
	if created {
		ev := base
		ev.Type = events.SnapshotRecorded
		s.producer.Produce(ev)
	}
	return result, nil
}

func insertMessage(isNew, insertCreated bool) string {
	switch {
	case isNew && insertCreated:
		return msgNewJobNewInsert
	case insertCreated:
		return msgExistingJobNewInsert
	case isNew:
		return msgNewJobInsertExists
	default:
		return msgExistingJobAndInsert
	}
}

func sanitizeRequest(req *models.InsertJobRequest) {
	req.CompanyName = sanitize.Text(req.CompanyName, companyNameMaxLen)

	f := &req.JobFields
	for _, field := range []*string{
		&f.ExternalID, &f.URL, &f.URLTitle, &f.Title, &f.Function, &f.Level,
		&f.ContractType, &f.WorkLocation, &f.WorkLocationShort,
		&f.WorkLocationWithCoordinates, &f.AllLocations, &f.CoordinatesPrimary,
		&f.Country, &f.Currency, &f.SupportedLocales, &f.Department,
		&f.Flexibility, &f.Keywords, &f.ContactPerson, &f.ContactEmail,
		&f.ContactPhone, &f.UnifiedURLTitle, &f.UnifiedStandardStart,
		&f.UnifiedStandardEnd,
	} {
		*field = sanitize.Text(*field, sanitize.DefaultTextMaxLen)
	}
	for _, field := range []*string{&f.Description, &f.Tasks, &f.Qualifications, &f.Offerings} {
		*field = sanitize.Text(*field, longTextMaxLen)
	}
}

