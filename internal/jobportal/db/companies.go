package db

import (
	"context"
	"errors"

	dbmodels "github.com/gartstein/jobportal/internal/jobportal/db/models"
	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/gartstein/jobportal/internal/jobportal/visibility"
)

func (r *Repository) GetCompanyByName(ctx context.Context, name string, hidden bool) (*models.Company, error) {
	var company dbmodels.Company
	result := r.db.WithContext(ctx).
		Where("name = ? AND hidden = ?", name, hidden).
		First(&company)
	if result.Error != nil {
		return nil, mapQueryError(result.Error)
	}
	return companyToModel(&company), nil
}

func (r *Repository) CreateCompany(ctx context.Context, name string, hidden bool) (*models.Company, error) {
	company := &dbmodels.Company{Name: name, Hidden: hidden}
	if err := r.db.WithContext(ctx).Create(company).Error; err != nil {
		return nil, mapCreateError(err, "company")
	}
	return companyToModel(company), nil
}

// FindOrCreateCompany returns the company identified by (name, hidden),
// creating it on first sighting. A concurrent creator winning the race is
// resolved by re-fetching its row.
func (r *Repository) FindOrCreateCompany(ctx context.Context, name string, hidden bool) (*models.Company, bool, error) {
	company, err := r.GetCompanyByName(ctx, name, hidden)
	if err == nil {
		return company, false, nil
	}
	if !errors.Is(err, e.ErrNotFound) {
		return nil, false, err
	}

	company, err = r.CreateCompany(ctx, name, hidden)
	if err == nil {
		return company, true, nil
	}
	if !errors.Is(err, e.ErrConflict) {
		return nil, false, err
	}
	company, err = r.GetCompanyByName(ctx, name, hidden)
	if err != nil {
		return nil, false, err
	}
	return company, false, nil
}

// ListCompanies returns every company visible to p ordered by name.
func (r *Repository) ListCompanies(ctx context.Context, p *models.Principal) ([]models.Company, error) {
	var companies []dbmodels.Company
	tx := visibility.Apply(r.db.WithContext(ctx).Model(&dbmodels.Company{}), p)
	if err := tx.Order("companies.name ASC, companies.id ASC").Find(&companies).Error; err != nil {
		return nil, err
	}
	out := make([]models.Company, 0, len(companies))
	for i := range companies {
		out = append(out, *companyToModel(&companies[i]))
	}
	return out, nil
}
