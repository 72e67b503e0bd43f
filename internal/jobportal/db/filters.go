package db

import (
	"context"
	"fmt"
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/gartstein/jobportal/internal/jobportal/sanitize"
	"github.com/gartstein/jobportal/internal/jobportal/visibility"
	"gorm.io/gorm"
)

// JobQuery is a listing request whose free-text values are already
// sanitized and whose regex patterns are already validated.
type JobQuery struct {
	CompanyID    *uint
	CompanyNames []string
	Levels       []string
	ContractType string

	// RestrictIDs limits the listing to JobIDs, which may be empty.
	RestrictIDs bool
	JobIDs      []uint
	// OnDate keeps jobs with a snapshot entry on that date.
	OnDate *time.Time

	TitleContains string
	TitleExcludes string
	Location      string
	Function      string
	Department    string
	Keywords      string

	TitleRegex    string
	FunctionRegex string

	Skip  int
	Limit int
}

// containsClause renders a case-insensitive literal "contains" predicate.
func (r *Repository) containsClause(column string) string {
	if r.isPostgres() {
		return column + ` ILIKE ? ESCAPE '\'`
	}
	// sqlite LIKE is case-insensitive for ASCII
	return column + ` LIKE ? ESCAPE '\'`
}

// regexClause renders a case-insensitive regex predicate and adapts the pattern.
func (r *Repository) regexClause(column, pattern string) (string, string) {
	if r.isPostgres() {
		return column + " ~* ?", pattern
	}
	return column + " REGEXP ?", "(?i)" + pattern
}

// filteredJobs applies every predicate of q, most selective first.
func (r *Repository) filteredJobs(ctx context.Context, q *JobQuery, p *models.Principal) *gorm.DB {
	tx := r.db.WithContext(ctx).
		Table("jobs").
		Joins("JOIN companies ON companies.id = jobs.company_id")

	// exact matches
	if q.CompanyID != nil {
		tx = tx.Where("companies.id = ?", *q.CompanyID)
	}
	if len(q.CompanyNames) > 0 {
		tx = tx.Where("companies.name IN ?", q.CompanyNames)
	}
	if len(q.Levels) > 0 {
		tx = tx.Where("jobs.level IN ?", q.Levels)
	}
	if q.ContractType != "" {
		tx = tx.Where("jobs.contract_type = ?", q.ContractType)
	}

	// lifecycle restriction
	if q.RestrictIDs {
		ids := q.JobIDs
		if len(ids) == 0 {
			tx = tx.Where("1 = 0")
		} else {
			tx = tx.Where("jobs.id IN ?", ids)
		}
	}
	if q.OnDate != nil {
		tx = tx.Joins("JOIN inserts ON inserts.job_id = jobs.id AND inserts.scrape_date = ?", models.Day(*q.OnDate))
	}

	// substrings
	if q.TitleContains != "" {
		tx = tx.Where(r.containsClause("jobs.title"), sanitize.ContainsPattern(q.TitleContains))
	}
	if q.TitleExcludes != "" {
		tx = tx.Where(fmt.Sprintf("(jobs.title IS NULL OR NOT (%s))", r.containsClause("jobs.title")),
			sanitize.ContainsPattern(q.TitleExcludes))
	}
	if q.Location != "" {
		pattern := sanitize.ContainsPattern(q.Location)
		tx = tx.Where(fmt.Sprintf("(%s OR %s OR %s)",
			r.containsClause("jobs.work_location"),
			r.containsClause("jobs.work_location_short"),
			r.containsClause("jobs.all_locations"),
		), pattern, pattern, pattern)
	}
	if q.Function != "" {
		tx = tx.Where(r.containsClause("jobs.function"), sanitize.ContainsPattern(q.Function))
	}
	if q.Department != "" {
		tx = tx.Where(r.containsClause("jobs.department"), sanitize.ContainsPattern(q.Department))
	}
	if q.Keywords != "" {
		tx = tx.Where(r.containsClause("jobs.keywords"), sanitize.ContainsPattern(q.Keywords))
	}

	// regexes
	if q.TitleRegex != "" {
		clause, pattern := r.regexClause("jobs.title", q.TitleRegex)
		tx = tx.Where(clause, pattern)
	}
	if q.FunctionRegex != "" {
		clause, pattern := r.regexClause("jobs.function", q.FunctionRegex)
		tx = tx.Where(clause, pattern)
	}

	return visibility.Apply(tx, p)
}

// ListJobs returns one page of jobs matching q plus the size of the whole
// filtered set.
func (r *Repository) ListJobs(ctx context.Context, q *JobQuery, p *models.Principal) (*models.JobPage, error) {
	var total int64
	if err := r.filteredJobs(ctx, q, p).Distinct("jobs.id").Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	page := &models.JobPage{Jobs: []models.Job{}, Total: total, Skip: q.Skip, Limit: q.Limit}
	if int64(q.Skip) >= total {
		return page, nil
	}

	var rows []jobRow
	err := r.filteredJobs(ctx, q, p).
		Joins("LEFT JOIN (SELECT job_id, MIN(scrape_date) AS first_seen, MAX(scrape_date) AS last_seen FROM inserts GROUP BY job_id) seen ON seen.job_id = jobs.id").
		Select("DISTINCT " + jobRowColumns).
		Order("jobs.id ASC").
		Offset(q.Skip).
		Limit(q.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	for i := range rows {
		page.Jobs = append(page.Jobs, rowToModel(&rows[i]))
	}
	return page, nil
}

// SearchJobs matches text against title, function or keywords.
func (r *Repository) SearchJobs(ctx context.Context, text string, skip, limit int, p *models.Principal) (*models.JobPage, error) {
	pattern := sanitize.ContainsPattern(text)
	where := fmt.Sprintf("(%s OR %s OR %s)",
		r.containsClause("jobs.title"),
		r.containsClause("jobs.function"),
		r.containsClause("jobs.keywords"),
	)

	var total int64
	if err := r.jobsWithCompany(ctx, p).Where(where, pattern, pattern, pattern).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	page := &models.JobPage{Jobs: []models.Job{}, Total: total, Skip: skip, Limit: limit}
	if int64(skip) >= total {
		return page, nil
	}

	var rows []jobRow
	err := r.jobsWithCompany(ctx, p).
		Where(where, pattern, pattern, pattern).
		Select(jobRowColumns).
		Order("jobs.id ASC").
		Offset(skip).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search jobs: %w", err)
	}
	for i := range rows {
		page.Jobs = append(page.Jobs, rowToModel(&rows[i]))
	}
	return page, nil
}

// FilterOptions lists distinct company names, levels and functions visible to p.
func (r *Repository) FilterOptions(ctx context.Context, p *models.Principal) (*models.FilterOptions, error) {
	opts := &models.FilterOptions{Companies: []string{}, Levels: []string{}, Functions: []string{}}

	companies := visibility.Apply(r.db.WithContext(ctx).Table("companies"), p)
	if err := companies.Distinct().Order("companies.name ASC").Pluck("companies.name", &opts.Companies).Error; err != nil {
		return nil, fmt.Errorf("failed to load company options: %w", err)
	}

	for column, dest := range map[string]*[]string{"jobs.level": &opts.Levels, "jobs.function": &opts.Functions} {
		tx := r.db.WithContext(ctx).
			Table("jobs").
			Joins("JOIN companies ON companies.id = jobs.company_id").
			Where(fmt.Sprintf("%s IS NOT NULL AND %s <> ''", column, column))
		tx = visibility.Apply(tx, p)
		if err := tx.Distinct().Order(column + " ASC").Pluck(column, dest).Error; err != nil {
			return nil, fmt.Errorf("failed to load %s options: %w", column, err)
		}
	}
	return opts, nil
}
