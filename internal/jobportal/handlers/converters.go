package handlers

import (
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/models"
)

type companyDTO struct {
	ID        uint       `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type createCompanyRequest struct {
	Name string `json:"name"`
}

// jobSummaryDTO is the listing and search row.
type jobSummaryDTO struct {
	ID           uint    `json:"id"`
	CompanyName  string  `json:"company_name"`
	Title        *string `json:"title"`
	Level        *string `json:"level"`
	ContractType *string `json:"contract_type"`
	Location     *string `json:"location"`
	FirstSeen    *string `json:"first_seen"`
	LastSeen     *string `json:"last_seen"`
}

type jobPageDTO struct {
	Jobs  []jobSummaryDTO `json:"jobs"`
	Total int64           `json:"total"`
	Skip  int             `json:"skip"`
	Limit int             `json:"limit"`
}

type jobDetailDTO struct {
	ID                   uint       `json:"id"`
	CompanyName          string     `json:"company_name"`
	ExternalID           *string    `json:"job_id"`
	URL                  *string    `json:"url"`
	URLTitle             *string    `json:"url_title"`
	Title                *string    `json:"title"`
	Function             *string    `json:"function"`
	Level                *string    `json:"level"`
	ContractType         *string    `json:"contract_type"`
	WorkLocation         *string    `json:"work_location"`
	WorkLocationShort    *string    `json:"work_location_short"`
	AllLocations         *string    `json:"all_locations"`
	Country              *string    `json:"country"`
	Currency             *string    `json:"currency"`
	Department           *string    `json:"department"`
	Flexibility          *string    `json:"flexibility"`
	Keywords             *string    `json:"keywords"`
	Description          *string    `json:"description"`
	Tasks                *string    `json:"tasks"`
	Qualifications       *string    `json:"qualifications"`
	Offerings            *string    `json:"offerings"`
	ContactPerson        *string    `json:"contact_person"`
	ContactEmail         *string    `json:"contact_email"`
	ContactPhone         *string    `json:"contact_phone"`
	UnifiedStandardStart *string    `json:"unified_standard_start"`
	UnifiedStandardEnd   *string    `json:"unified_standard_end"`
	DateAdded            *string    `json:"date_added"`
	FirstSeen            *string    `json:"first_seen"`
	LastSeen             *string    `json:"last_seen"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at"`
}

type dateStatisticsDTO struct {
	Date          string `json:"date"`
	OpenPositions int    `json:"open_positions"`
	NewlyAdded    int    `json:"newly_added"`
	Removed       int    `json:"removed"`
}

type companyStatisticsDTO struct {
	CompanyName string              `json:"company_name"`
	Dates       []dateStatisticsDTO `json:"dates"`
}

type statisticsDTO struct {
	Companies []companyStatisticsDTO `json:"companies"`
}

type filterOptionsDTO struct {
	Companies []string `json:"companies"`
	Levels    []string `json:"levels"`
	Functions []string `json:"functions"`
}

// insertJobRequest is the scraper payload. Dates are YYYY-MM-DD.
type insertJobRequest struct {
	CompanyName                 string  `json:"company_name"`
	Hidden                      bool    `json:"hidden"`
	ExternalID                  *string `json:"job_id"`
	URL                         *string `json:"url"`
	URLTitle                    *string `json:"url_title"`
	Title                       *string `json:"title"`
	Function                    *string `json:"function"`
	Level                       *string `json:"level"`
	ContractType                *string `json:"contract_type"`
	WorkLocation                *string `json:"work_location"`
	WorkLocationShort           *string `json:"work_location_short"`
	WorkLocationWithCoordinates *string `json:"work_location_with_coordinates"`
	AllLocations                *string `json:"all_locations"`
	CoordinatesPrimary          *string `json:"coordinates_primary"`
	Country                     *string `json:"country"`
	Currency                    *string `json:"currency"`
	SupportedLocales            *string `json:"supported_locales"`
	Department                  *string `json:"department"`
	Flexibility                 *string `json:"flexibility"`
	Keywords                    *string `json:"keywords"`
	Description                 *string `json:"description"`
	Tasks                       *string `json:"tasks"`
	Qualifications              *string `json:"qualifications"`
	Offerings                   *string `json:"offerings"`
	ContactPerson               *string `json:"contact_person"`
	ContactEmail                *string `json:"contact_email"`
	ContactPhone                *string `json:"contact_phone"`
	UnifiedURLTitle             *string `json:"unified_url_title"`
	UnifiedStandardStart        *string `json:"unified_standard_start"`
	UnifiedStandardEnd          *string `json:"unified_standard_end"`
	DateAdded                   *string `json:"date_added"`
	ScrapeDate                  *string `json:"scrape_date"`
}

type insertJobResponse struct {
	JobID    uint   `json:"job_id"`
	InsertID uint   `json:"insert_id"`
	IsNewJob bool   `json:"is_new_job"`
	Message  string `json:"message"`
}

type createAPIKeyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Admin       bool   `json:"admin"`
	Read        bool   `json:"read"`
	Write       bool   `json:"write"`
	ReadHidden  bool   `json:"read_hidden"`
}

type apiKeyDTO struct {
	ID          uint       `json:"id"`
	Key         string     `json:"key,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Admin       bool       `json:"admin"`
	Read        bool       `json:"read"`
	Write       bool       `json:"write"`
	ReadHidden  bool       `json:"read_hidden"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := models.FormatDate(*t)
	return &s
}

func companyToDTO(c *models.Company) companyDTO {
	return companyDTO{ID: c.ID, Name: c.Name, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func jobToSummary(j *models.Job) jobSummaryDTO {
	return jobSummaryDTO{
		ID:           j.ID,
		CompanyName:  j.CompanyName,
		Title:        nullable(j.Title),
		Level:        nullable(j.Level),
		ContractType: nullable(j.ContractType),
		Location:     nullable(j.Location()),
		FirstSeen:    formatDate(j.FirstSeen),
		LastSeen:     formatDate(j.LastSeen),
	}
}

func pageToDTO(p *models.JobPage) jobPageDTO {
	out := jobPageDTO{Jobs: make([]jobSummaryDTO, 0, len(p.Jobs)), Total: p.Total, Skip: p.Skip, Limit: p.Limit}
	for i := range p.Jobs {
		out.Jobs = append(out.Jobs, jobToSummary(&p.Jobs[i]))
	}
	return out
}

func jobToDetail(j *models.Job) jobDetailDTO {
	return jobDetailDTO{
		ID:                   j.ID,
		CompanyName:          j.CompanyName,
		ExternalID:           nullable(j.ExternalID),
		URL:                  nullable(j.URL),
		URLTitle:             nullable(j.URLTitle),
		Title:                nullable(j.Title),
		Function:             nullable(j.Function),
		Level:                nullable(j.Level),
		ContractType:         nullable(j.ContractType),
		WorkLocation:         nullable(j.WorkLocation),
		WorkLocationShort:    nullable(j.WorkLocationShort),
		AllLocations:         nullable(j.AllLocations),
		Country:              nullable(j.Country),
		Currency:             nullable(j.Currency),
		Department:           nullable(j.Department),
		Flexibility:          nullable(j.Flexibility),
		Keywords:             nullable(j.Keywords),
		Description:          nullable(j.Description),
		Tasks:                nullable(j.Tasks),
		Qualifications:       nullable(j.Qualifications),
		Offerings:            nullable(j.Offerings),
		ContactPerson:        nullable(j.ContactPerson),
		ContactEmail:         nullable(j.ContactEmail),
		ContactPhone:         nullable(j.ContactPhone),
		UnifiedStandardStart: nullable(j.UnifiedStandardStart),
		UnifiedStandardEnd:   nullable(j.UnifiedStandardEnd),
		DateAdded:            formatDate(j.DateAdded),
		FirstSeen:            formatDate(j.FirstSeen),
		LastSeen:             formatDate(j.LastSeen),
		CreatedAt:            j.CreatedAt,
		UpdatedAt:            j.UpdatedAt,
	}
}

func statisticsToDTO(stats []models.CompanyStatistics) statisticsDTO {
	out := statisticsDTO{Companies: make([]companyStatisticsDTO, 0, len(stats))}
	for _, c := range stats {
		dates := make([]dateStatisticsDTO, 0, len(c.Dates))
		for _, d := range c.Dates {
			dates = append(dates, dateStatisticsDTO{
				Date:          models.FormatDate(d.Date),
				OpenPositions: d.OpenPositions,
				NewlyAdded:    d.NewlyAdded,
				Removed:       d.Removed,
			})
		}
		out.Companies = append(out.Companies, companyStatisticsDTO{CompanyName: c.CompanyName, Dates: dates})
	}
	return out
}

func filterOptionsToDTO(o *models.FilterOptions) filterOptionsDTO {
	return filterOptionsDTO{
		Companies: nonNil(o.Companies),
		Levels:    nonNil(o.Levels),
		Functions: nonNil(o.Functions),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// toModel converts the payload, parsing its optional dates.
func (r *insertJobRequest) toModel(now time.Time) (*models.InsertJobRequest, error) {
	req := &models.InsertJobRequest{
		CompanyName: r.CompanyName,
		Hidden:      r.Hidden,
		JobFields: models.JobFields{
			ExternalID:                  value(r.ExternalID),
			URL:                         value(r.URL),
			URLTitle:                    value(r.URLTitle),
			Title:                       value(r.Title),
			Function:                    value(r.Function),
			Level:                       value(r.Level),
			ContractType:                value(r.ContractType),
			WorkLocation:                value(r.WorkLocation),
			WorkLocationShort:           value(r.WorkLocationShort),
			WorkLocationWithCoordinates: value(r.WorkLocationWithCoordinates),
			AllLocations:                value(r.AllLocations),
			CoordinatesPrimary:          value(r.CoordinatesPrimary),
			Country:                     value(r.Country),
			Currency:                    value(r.Currency),
			SupportedLocales:            value(r.SupportedLocales),
			Department:                  value(r.Department),
			Flexibility:                 value(r.Flexibility),
			Keywords:                    value(r.Keywords),
			Description:                 value(r.Description),
			Tasks:                       value(r.Tasks),
			Qualifications:              value(r.Qualifications),
			Offerings:                   value(r.Offerings),
			ContactPerson:               value(r.ContactPerson),
			ContactEmail:                value(r.ContactEmail),
			ContactPhone:                value(r.ContactPhone),
			UnifiedURLTitle:             value(r.UnifiedURLTitle),
			UnifiedStandardStart:        value(r.UnifiedStandardStart),
			UnifiedStandardEnd:          value(r.UnifiedStandardEnd),
		},
	}
	var err error
	if req.DateAdded, err = parseOptionalDate(r.DateAdded, now); err != nil {
		return nil, err
	}
	if req.ScrapeDate, err = parseOptionalDate(r.ScrapeDate, now); err != nil {
		return nil, err
	}
	return req, nil
}

func parseOptionalDate(s *string, now time.Time) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := models.ParseDate(*s, now)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func insertResultToDTO(r *models.InsertJobResult) insertJobResponse {
	return insertJobResponse{JobID: r.JobID, InsertID: r.InsertID, IsNewJob: r.IsNewJob, Message: r.Message}
}

func (r *createAPIKeyRequest) toPrincipal() *models.Principal {
	return &models.Principal{
		Name:        r.Name,
		Description: r.Description,
		Admin:       r.Admin,
		Read:        r.Read,
		Write:       r.Write,
		ReadHidden:  r.ReadHidden,
		Active:      true,
	}
}

func principalToDTO(p *models.Principal, key string) apiKeyDTO {
	return apiKeyDTO{
		ID:          p.ID,
		Key:         key,
		Name:        p.Name,
		Description: p.Description,
		Admin:       p.Admin,
		Read:        p.Read,
		Write:       p.Write,
		ReadHidden:  p.ReadHidden,
		IsActive:    p.Active,
		CreatedAt:   p.CreatedAt,
		LastUsedAt:  p.LastUsedAt,
	}
}
