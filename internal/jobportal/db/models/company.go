// Package models contains the persistence entities for the job portal,
// configured to work using GORM as the ORM.
package models

import (
	"time"
)

// Company is an employer. Name and Hidden together form its natural key so
// the same employer can have a public and an internal-only listing.
type Company struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:255;not null;index;uniqueIndex:ix_companies_name_hidden"`
	Hidden    bool   `gorm:"not null;uniqueIndex:ix_companies_name_hidden"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Company) TableName() string {
	return "companies"
}

// Job is a posting owned by one company, deduplicated by external id or url.
type Job struct {
	ID         uint    `gorm:"primaryKey"`
	CompanyID  uint    `gorm:"not null;index;uniqueIndex:ux_jobs_company_external;uniqueIndex:ux_jobs_company_url"`
	ExternalID *string `gorm:"column:external_id;type:text;uniqueIndex:ux_jobs_company_external"`
	URL        *string `gorm:"column:url;type:text;uniqueIndex:ux_jobs_company_url"`

	URLTitle                    string `gorm:"column:url_title;type:text"`
	Title                       string `gorm:"column:title;type:text"`
	Function                    string `gorm:"column:function;type:text"`
	Level                       string `gorm:"column:level;type:text;index"`
	ContractType                string `gorm:"column:contract_type;type:text"`
	WorkLocation                string `gorm:"column:work_location;type:text"`
	WorkLocationShort           string `gorm:"column:work_location_short;type:text"`
	WorkLocationWithCoordinates string `gorm:"column:work_location_with_coordinates;type:text"`
	AllLocations                string `gorm:"column:all_locations;type:text"`
	CoordinatesPrimary          string `gorm:"column:coordinates_primary;type:text"`
	Country                     string `gorm:"column:country;type:text"`
	Currency                    string `gorm:"column:currency;type:text"`
	SupportedLocales            string `gorm:"column:supported_locales;type:text"`
	Department                  string `gorm:"column:department;type:text"`
	Flexibility                 string `gorm:"column:flexibility;type:text"`
	Keywords                    string `gorm:"column:keywords;type:text"`
	Description                 string `gorm:"column:description;type:text"`
	Tasks                       string `gorm:"column:tasks;type:text"`
	Qualifications              string `gorm:"column:qualifications;type:text"`
	Offerings                   string `gorm:"column:offerings;type:text"`
	ContactPerson               string `gorm:"column:contact_person;type:text"`
	ContactEmail                string `gorm:"column:contact_email;type:text"`
	ContactPhone                string `gorm:"column:contact_phone;type:text"`
	UnifiedURLTitle             string `gorm:"column:unified_url_title;type:text"`
	UnifiedStandardStart        string `gorm:"column:unified_standard_start;type:text"`
	UnifiedStandardEnd          string `gorm:"column:unified_standard_end;type:text"`

	DateAdded *time.Time `gorm:"column:date_added;type:date"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string {
	return "jobs"
}

// Insert records that a job was observed on a scrape date. At most one row
// exists per (job, date).
type Insert struct {
	ID         uint      `gorm:"primaryKey"`
	JobID      uint      `gorm:"not null;uniqueIndex:ux_inserts_job_date"`
	ScrapeDate time.Time `gorm:"type:date;not null;index;uniqueIndex:ux_inserts_job_date"`
	CreatedAt  time.Time
}

func (Insert) TableName() string {
	return "inserts"
}

// APIKey is a stored credential with independent capability flags.
type APIKey struct {
	ID          uint   `gorm:"primaryKey"`
	Key         string `gorm:"size:128;not null;uniqueIndex"`
	Name        string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Admin       bool   `gorm:"not null"`
	Read        bool   `gorm:"not null"`
	Write       bool   `gorm:"not null"`
	ReadHidden  bool   `gorm:"not null"`
	IsActive    bool   `gorm:"not null;index"`
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

func (APIKey) TableName() string {
	return "api_keys"
}

// All lists every entity for migrations.
func All() []interface{} {
	return []interface{}{&Company{}, &Job{}, &Insert{}, &APIKey{}}
}
