package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/events"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Inserter records one scraper observation.
type Inserter interface {
	InsertJob(ctx context.Context, req *models.InsertJobRequest) (*models.InsertJobResult, error)
}

// IngestHandler decodes observations published on the ingest topic. The
// payload is the same JSON document accepted by POST /api/jobs.
type IngestHandler struct {
	ctrl   Inserter
	logger *zap.Logger
	now    func() time.Time
}

func NewIngestHandler(ctrl Inserter, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ctrl: ctrl, logger: logger.Named("ingest"), now: time.Now}
}

// Handle processes msg. Undecodable or invalid observations are reported
// as events.ErrMalformed so the consumer skips them.
func (h *IngestHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var body insertJobRequest
	if err := json.Unmarshal(msg.Value, &body); err != nil {
		return fmt.Errorf("%w: %v", events.ErrMalformed, err)
	}
	req, err := body.toModel(h.now())
	if err != nil {
		return fmt.Errorf("%w: %v", events.ErrMalformed, err)
	}

	result, err := h.ctrl.InsertJob(ctx, req)
	if err != nil {
		if errors.Is(err, e.ErrInvalidInput) {
			return fmt.Errorf("%w: %v", events.ErrMalformed, err)
		}
		return err
	}

	h.logger.Debug("Observation ingested",
		zap.Uint("job_id", result.JobID),
		zap.Bool("new_job", result.IsNewJob),
		zap.Int64("offset", msg.Offset),
	)
	return nil
}
