package db

import (
	"database/sql/driver"
	"fmt"
	"time"

	dbmodels "github.com/gartstein/jobportal/internal/jobportal/db/models"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/mattn/go-sqlite3"
)

// nullDate scans dates from postgres (time.Time) as well as sqlite
// aggregates, which lose their declared type and arrive as text.
type nullDate struct {
	Time  time.Time
	Valid bool
}

func (d *nullDate) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = models.Day(v), true
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	}
	return fmt.Errorf("cannot scan %T into date", value)
}

func (d *nullDate) parse(s string) error {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time, d.Valid = models.Day(t), true
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as date", s)
}

func (d nullDate) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Time, nil
}

func (d nullDate) ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// jobRow is a job joined with its company and snapshot bounds.
type jobRow struct {
	dbmodels.Job  `gorm:"embedded"`
	CompanyName   string
	CompanyHidden bool
	FirstSeen     nullDate
	LastSeen      nullDate
}

func companyToModel(c *dbmodels.Company) *models.Company {
	out := &models.Company{
		ID:        c.ID,
		Name:      c.Name,
		Hidden:    c.Hidden,
		CreatedAt: c.CreatedAt,
	}
	if !c.UpdatedAt.IsZero() {
		updated := c.UpdatedAt
		out.UpdatedAt = &updated
	}
	return out
}

func jobToModel(j *dbmodels.Job) models.Job {
	out := models.Job{
		ID:        j.ID,
		CompanyID: j.CompanyID,
		JobFields: models.JobFields{
			ExternalID:                  deref(j.ExternalID),
			URL:                         deref(j.URL),
			URLTitle:                    j.URLTitle,
			Title:                       j.Title,
			Function:                    j.Function,
			Level:                       j.Level,
			ContractType:                j.ContractType,
			WorkLocation:                j.WorkLocation,
			WorkLocationShort:           j.WorkLocationShort,
			WorkLocationWithCoordinates: j.WorkLocationWithCoordinates,
			AllLocations:                j.AllLocations,
			CoordinatesPrimary:          j.CoordinatesPrimary,
			Country:                     j.Country,
			Currency:                    j.Currency,
			SupportedLocales:            j.SupportedLocales,
			Department:                  j.Department,
			Flexibility:                 j.Flexibility,
			Keywords:                    j.Keywords,
			Description:                 j.Description,
			Tasks:                       j.Tasks,
			Qualifications:              j.Qualifications,
			Offerings:                   j.Offerings,
			ContactPerson:               j.ContactPerson,
			ContactEmail:                j.ContactEmail,
			ContactPhone:                j.ContactPhone,
			UnifiedURLTitle:             j.UnifiedURLTitle,
			UnifiedStandardStart:        j.UnifiedStandardStart,
			UnifiedStandardEnd:          j.UnifiedStandardEnd,
		},
		DateAdded: j.DateAdded,
		CreatedAt: j.CreatedAt,
	}
	if !j.UpdatedAt.IsZero() {
		updated := j.UpdatedAt
		out.UpdatedAt = &updated
	}
	return out
}

func rowToModel(r *jobRow) models.Job {
	out := jobToModel(&r.Job)
	out.CompanyName = r.CompanyName
	out.Hidden = r.CompanyHidden
	out.FirstSeen = r.FirstSeen.ptr()
	out.LastSeen = r.LastSeen.ptr()
	return out
}

func jobFromRequest(companyID uint, req *models.InsertJobRequest) *dbmodels.Job {
	f := req.JobFields
	return &dbmodels.Job{
		CompanyID:                   companyID,
		ExternalID:                  optional(f.ExternalID),
		URL:                         optional(f.URL),
		URLTitle:                    f.URLTitle,
		Title:                       f.Title,
		Function:                    f.Function,
		Level:                       f.Level,
		ContractType:                f.ContractType,
		WorkLocation:                f.WorkLocation,
		WorkLocationShort:           f.WorkLocationShort,
		WorkLocationWithCoordinates: f.WorkLocationWithCoordinates,
		AllLocations:                f.AllLocations,
		CoordinatesPrimary:          f.CoordinatesPrimary,
		Country:                     f.Country,
		Currency:                    f.Currency,
		SupportedLocales:            f.SupportedLocales,
		Department:                  f.Department,
		Flexibility:                 f.Flexibility,
		Keywords:                    f.Keywords,
		Description:                 f.Description,
		Tasks:                       f.Tasks,
		Qualifications:              f.Qualifications,
		Offerings:                   f.Offerings,
		ContactPerson:               f.ContactPerson,
		ContactEmail:                f.ContactEmail,
		ContactPhone:                f.ContactPhone,
		UnifiedURLTitle:             f.UnifiedURLTitle,
		UnifiedStandardStart:        f.UnifiedStandardStart,
		UnifiedStandardEnd:          f.UnifiedStandardEnd,
		DateAdded:                   req.DateAdded,
	}
}

func apiKeyToPrincipal(k *dbmodels.APIKey) *models.Principal {
	return &models.Principal{
		ID:          k.ID,
		Name:        k.Name,
		Description: k.Description,
		Admin:       k.Admin,
		Read:        k.Read,
		Write:       k.Write,
		ReadHidden:  k.ReadHidden,
		Active:      k.IsActive,
		CreatedAt:   k.CreatedAt,
		LastUsedAt:  k.LastUsedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
