package controller

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"go.uber.org/zap"
)

// KeySeed is an API key that must exist with the given principal's flags.
type KeySeed struct {
	Key       string
	Principal models.Principal
}

// FixedKeys describes the four built-in keys: admin, the scraper
// (read/write, sees hidden companies), a full reader and the frontend
// (read only, hidden companies excluded).
func FixedKeys(admin, webscraper, fullread, frontend string) []KeySeed {
	return []KeySeed{
		{Key: admin, Principal: models.Principal{
			Name: "Admin API Key", Description: "Master admin key with all permissions",
			Admin: true, Read: true, Write: true, ReadHidden: true,
		}},
		{Key: webscraper, Principal: models.Principal{
			Name: "Webscraper API Key", Description: "Key for web scrapers with read and write permissions",
			Read: true, Write: true, ReadHidden: true,
		}},
		{Key: fullread, Principal: models.Principal{
			Name: "Full Read API Key", Description: "Key with full read access including hidden companies",
			Read: true, ReadHidden: true,
		}},
		{Key: frontend, Principal: models.Principal{
			Name: "Frontend API Key", Description: "Basic read-only key for frontend without hidden company access",
			Read: true,
		}},
	}
}

// SeedAPIKeys creates or resets every seed. Seeds without a key are skipped.
func (s *JobService) SeedAPIKeys(ctx context.Context, seeds []KeySeed) error {
	for i := range seeds {
		seed := &seeds[i]
		if seed.Key == "" {
			s.logger.Warn("Skipping API key seed without a key", zap.String("name", seed.Principal.Name))
			continue
		}
		created, err := s.repo.UpsertAPIKey(ctx, seed.Key, &seed.Principal)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", seed.Principal.Name, err)
		}
		s.logger.Info("Fixed API key ready",
			zap.String("name", seed.Principal.Name),
			zap.Bool("created", created),
		)
	}
	return nil
}

// Authenticate resolves key to an active principal and records its use.
func (s *JobService) Authenticate(ctx context.Context, key string) (*models.Principal, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: X-API-Key header is required", e.ErrUnauthorized)
	}
	p, err := s.repo.GetActiveAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid or inactive API key", e.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to load api key: %w", err)
	}

	now := s.now().UTC()
	if err := s.repo.TouchAPIKey(ctx, p.ID, now); err != nil {
		s.logger.Warn("Failed to record API key use", zap.Error(err), zap.Uint("key_id", p.ID))
	} else {
		p.LastUsedAt = &now
	}
	return p, nil
}

// CreateAPIKey issues a new random key with p's flags. The key value is
// returned only here.
func (s *JobService) CreateAPIKey(ctx context.Context, p *models.Principal) (string, *models.Principal, error) {
	if p.Name == "" {
		return "", nil, fmt.Errorf("%w: name is required", e.ErrInvalidInput)
	}
	key, err := generateKey()
	if err != nil {
		return "", nil, err
	}
	created, err := s.repo.CreateAPIKey(ctx, key, p)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create api key: %w", err)
	}
	s.logger.Info("API key created", zap.Uint("key_id", created.ID), zap.String("name", created.Name))
	return key, created, nil
}

func (s *JobService) ListAPIKeys(ctx context.Context) ([]models.Principal, error) {
	keys, err := s.repo.ListAPIKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
