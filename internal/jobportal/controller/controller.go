// Package controller implements the service layer of the job portal: it
// validates and sanitizes caller input, composes job listings with
// lifecycle restrictions, builds statistics, ingests scraper observations
// and emits the resulting events.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/db"
	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/events"
	"github.com/gartstein/jobportal/internal/jobportal/lifecycle"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/gartstein/jobportal/internal/jobportal/sanitize"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(event events.Event)
}

// Repository defines the storage interface the service relies on.
type Repository interface {
	lifecycle.SnapshotStore

	FindOrCreateCompany(ctx context.Context, name string, hidden bool) (*models.Company, bool, error)
	ListCompanies(ctx context.Context, p *models.Principal) ([]models.Company, error)
	CreateJob(ctx context.Context, companyID uint, req *models.InsertJobRequest) (*models.Job, bool, error)
	CreateInsert(ctx context.Context, jobID uint, date time.Time) (uint, bool, error)
	GetJob(ctx context.Context, id uint, p *models.Principal) (*models.Job, error)
	ListJobs(ctx context.Context, q *db.JobQuery, p *models.Principal) (*models.JobPage, error)
	SearchJobs(ctx context.Context, text string, skip, limit int, p *models.Principal) (*models.JobPage, error)
	FilterOptions(ctx context.Context, p *models.Principal) (*models.FilterOptions, error)
	SnapshotRows(ctx context.Context, companyNames []string, p *models.Principal) ([]models.SnapshotRow, error)

	GetActiveAPIKey(ctx context.Context, key string) (*models.Principal, error)
	TouchAPIKey(ctx context.Context, id uint, at time.Time) error
	UpsertAPIKey(ctx context.Context, key string, p *models.Principal) (bool, error)
	CreateAPIKey(ctx context.Context, key string, p *models.Principal) (*models.Principal, error)
	ListAPIKeys(ctx context.Context) ([]models.Principal, error)
}

// JobService provides the job portal operations on top of a repository.
type JobService struct {
	repo       Repository
	classifier *lifecycle.Classifier
	producer   EventProducer
	logger     *zap.Logger
	now        func() time.Time
}

// NewJobService constructs a JobService with a repository, an event
// producer and a logger.
func NewJobService(repo Repository, producer EventProducer, logger *zap.Logger) *JobService {
	return &JobService{
		repo:       repo,
		classifier: lifecycle.NewClassifier(lifecycle.NewResolver(repo)),
		producer:   producer,
		logger:     logger.Named("job_service"),
		now:        time.Now,
	}
}

func (s *JobService) today() time.Time {
	return models.Day(s.now().UTC())
}

// ListJobs returns one page of jobs matching filter as seen by p.
//
// A status restriction applies only when a date, exactly one company name
// and a status are all given. Removed jobs are listed from the rows of the
// company's previous observed date.
func (s *JobService) ListJobs(ctx context.Context, p *models.Principal, filter models.JobFilter) (*models.JobPage, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}

	q := &db.JobQuery{
		CompanyID:     filter.CompanyID,
		CompanyNames:  filter.Names(),
		Levels:        filter.AllLevels(),
		ContractType:  filter.ContractType,
		OnDate:        filter.FoundOnDate,
		TitleContains: sanitize.Text(filter.TitleContains, sanitize.DefaultTextMaxLen),
		TitleExcludes: sanitize.Text(filter.TitleExcludes, sanitize.DefaultTextMaxLen),
		Location:      sanitize.Text(filter.Location, sanitize.DefaultTextMaxLen),
		Function:      sanitize.Text(filter.Function, sanitize.DefaultTextMaxLen),
		Department:    sanitize.Text(filter.Department, sanitize.DefaultTextMaxLen),
		Keywords:      sanitize.Text(filter.Keywords, sanitize.DefaultTextMaxLen),
		Skip:          filter.Skip,
		Limit:         filter.PageSize(),
	}

	var err error
	if filter.TitleRegex != "" {
		if q.TitleRegex, err = sanitize.ValidateRegex(filter.TitleRegex, sanitize.DefaultRegexMaxLen); err != nil {
			return nil, fmt.Errorf("title_regex: %w", err)
		}
	}
	if filter.FunctionRegex != "" {
		if q.FunctionRegex, err = sanitize.ValidateRegex(filter.FunctionRegex, sanitize.DefaultRegexMaxLen); err != nil {
			return nil, fmt.Errorf("function_regex: %w", err)
		}
	}

	if err := s.restrictToStatus(ctx, p, &filter, q); err != nil {
		return nil, err
	}

	page, err := s.repo.ListJobs(ctx, q, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return page, nil
}

func (s *JobService) restrictToStatus(ctx context.Context, p *models.Principal, filter *models.JobFilter, q *db.JobQuery) error {
	company, single := filter.SingleCompany()
	if filter.Status == "" || filter.FoundOnDate == nil || !single {
		if filter.Status != "" {
			s.logger.Debug("Ignoring status filter without a date and a single company",
				zap.String("status", string(filter.Status)),
			)
		}
		return nil
	}

	transition, err := s.classifier.Classify(ctx, company, *filter.FoundOnDate, p)
	if err != nil {
		return fmt.Errorf("failed to classify jobs: %w", err)
	}
	ids, err := transition.Jobs(filter.Status)
	if err != nil {
		return fmt.Errorf("%w: %v", e.ErrInvalidFilter, err)
	}

	q.RestrictIDs = true
	q.JobIDs = ids.Sorted()
	q.OnDate = transition.ListingDate(filter.Status)
	return nil
}

// Statistics returns the per-company per-date series visible to p. Deltas
// are always computed against the full history.
func (s *JobService) Statistics(ctx context.Context, p *models.Principal, filter models.StatisticsFilter) ([]models.CompanyStatistics, error) {
	rows, err := s.repo.SnapshotRows(ctx, filter.CompanyNames, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	return lifecycle.BuildStatistics(rows, filter.Date), nil
}

// GetJob retrieves a job by ID. Jobs hidden from p are not found.
func (s *JobService) GetJob(ctx context.Context, p *models.Principal, id uint) (*models.Job, error) {
	job, err := s.repo.GetJob(ctx, id, p)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: job %d", e.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// SearchJobs matches text against title, function and keywords.
func (s *JobService) SearchJobs(ctx context.Context, p *models.Principal, text string, skip int, limit *int) (*models.JobPage, error) {
	text = sanitize.Text(text, sanitize.DefaultTextMaxLen)
	if text == "" {
		return nil, fmt.Errorf("%w: search text is required", e.ErrInvalidInput)
	}
	window := models.JobFilter{Skip: skip, Limit: limit}
	if err := window.Normalize(); err != nil {
		return nil, err
	}

	page, err := s.repo.SearchJobs(ctx, text, window.Skip, window.PageSize(), p)
	if err != nil {
		return nil, fmt.Errorf("failed to search jobs: %w", err)
	}
	return page, nil
}

func (s *JobService) ListCompanies(ctx context.Context, p *models.Principal) ([]models.Company, error) {
	companies, err := s.repo.ListCompanies(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

// CreateCompany returns the visible company called name, creating it on
// first use.
func (s *JobService) CreateCompany(ctx context.Context, name string) (*models.Company, error) {
	name = sanitize.Text(name, companyNameMaxLen)
	if name == "" {
		return nil, fmt.Errorf("%w: company name is required", e.ErrInvalidInput)
	}
	company, created, err := s.repo.FindOrCreateCompany(ctx, name, false)
	if err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}
	if created {
		s.logger.Info("Company created", zap.Uint("company_id", company.ID), zap.String("company_name", company.Name))
	}
	return company, nil
}

func (s *JobService) FilterOptions(ctx context.Context, p *models.Principal) (*models.FilterOptions, error) {
	opts, err := s.repo.FilterOptions(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to load filter options: %w", err)
	}
	return opts, nil
}
