package db

import (
	"context"
	"errors"
	"time"

	dbmodels "github.com/gartstein/jobportal/internal/jobportal/db/models"
	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/models"
)

// GetActiveAPIKey resolves an active key to its principal.
func (r *Repository) GetActiveAPIKey(ctx context.Context, key string) (*models.Principal, error) {
	var apiKey dbmodels.APIKey
	result := r.db.WithContext(ctx).
		Where("key = ? AND is_active = ?", key, true).
		First(&apiKey)
	if result.Error != nil {
		return nil, mapQueryError(result.Error)
	}
	return apiKeyToPrincipal(&apiKey), nil
}

// TouchAPIKey records when a key was last used.
func (r *Repository) TouchAPIKey(ctx context.Context, id uint, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&dbmodels.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// UpsertAPIKey creates the key or resets its name, description and flags,
// reactivating it. It reports whether a row was created.
func (r *Repository) UpsertAPIKey(ctx context.Context, key string, p *models.Principal) (bool, error) {
	var existing dbmodels.APIKey
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&existing).Error
	err = mapQueryError(err)
	if err != nil && !errors.Is(err, e.ErrNotFound) {
		return false, err
	}

	entity := dbmodels.APIKey{
		Key:         key,
		Name:        p.Name,
		Description: p.Description,
		Admin:       p.Admin,
		Read:        p.Read,
		Write:       p.Write,
		ReadHidden:  p.ReadHidden,
		IsActive:    true,
	}
	if errors.Is(err, e.ErrNotFound) {
		if err := r.db.WithContext(ctx).Create(&entity).Error; err != nil {
			return false, mapCreateError(err, "api key")
		}
		return true, nil
	}

	result := r.db.WithContext(ctx).
		Model(&existing).
		Select("name", "description", "admin", "read", "write", "read_hidden", "is_active").
		Updates(&entity)
	return false, result.Error
}

// CreateAPIKey stores a new active key carrying p's name, description and flags.
func (r *Repository) CreateAPIKey(ctx context.Context, key string, p *models.Principal) (*models.Principal, error) {
	entity := &dbmodels.APIKey{
		Key:         key,
		Name:        p.Name,
		Description: p.Description,
		Admin:       p.Admin,
		Read:        p.Read,
		Write:       p.Write,
		ReadHidden:  p.ReadHidden,
		IsActive:    true,
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return nil, mapCreateError(err, "api key")
	}
	return apiKeyToPrincipal(entity), nil
}

// ListAPIKeys returns every key's principal, without the key values.
func (r *Repository) ListAPIKeys(ctx context.Context) ([]models.Principal, error) {
	var keys []dbmodels.APIKey
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&keys).Error; err != nil {
		return nil, err
	}
	out := make([]models.Principal, 0, len(keys))
	for i := range keys {
		out = append(out, *apiKeyToPrincipal(&keys[i]))
	}
	return out, nil
}
