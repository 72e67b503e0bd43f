package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/auth"
	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// JobController defines the business logic interface the HTTP handlers
// invoke.
type JobController interface {
	ListJobs(ctx context.Context, p *models.Principal, filter models.JobFilter) (*models.JobPage, error)
	Statistics(ctx context.Context, p *models.Principal, filter models.StatisticsFilter) ([]models.CompanyStatistics, error)
	GetJob(ctx context.Context, p *models.Principal, id uint) (*models.Job, error)
	SearchJobs(ctx context.Context, p *models.Principal, text string, skip int, limit *int) (*models.JobPage, error)
	FilterOptions(ctx context.Context, p *models.Principal) (*models.FilterOptions, error)
	InsertJob(ctx context.Context, req *models.InsertJobRequest) (*models.InsertJobResult, error)
	ListCompanies(ctx context.Context, p *models.Principal) ([]models.Company, error)
	CreateCompany(ctx context.Context, name string) (*models.Company, error)
	CreateAPIKey(ctx context.Context, p *models.Principal) (string, *models.Principal, error)
	ListAPIKeys(ctx context.Context) ([]models.Principal, error)
}

// JobHandler serves the REST API.
type JobHandler struct {
	ctrl   JobController
	logger *zap.Logger
	now    func() time.Time
}

func NewJobHandler(ctrl JobController, logger *zap.Logger) *JobHandler {
	return &JobHandler{ctrl: ctrl, logger: logger.Named("http"), now: time.Now}
}

// Routes registers every endpoint on r, guarded by mw.
func (h *JobHandler) Routes(r *mux.Router, mw *auth.Middleware) {
	r.HandleFunc("/", h.Root).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/companies", mw.Require(auth.PermRead, http.HandlerFunc(h.ListCompanies))).Methods(http.MethodGet)
	api.Handle("/companies", mw.Require(auth.PermWrite, http.HandlerFunc(h.CreateCompany))).Methods(http.MethodPost)
	api.Handle("/jobs", mw.Require(auth.PermRead, http.HandlerFunc(h.ListJobs))).Methods(http.MethodGet)
	api.Handle("/jobs", mw.Require(auth.PermWrite, http.HandlerFunc(h.InsertJob))).Methods(http.MethodPost)
	api.Handle("/jobs/search", mw.Require(auth.PermRead, http.HandlerFunc(h.SearchJobs))).Methods(http.MethodGet)
	api.Handle("/jobs/filters", mw.Require(auth.PermRead, http.HandlerFunc(h.FilterOptions))).Methods(http.MethodGet)
	api.Handle("/jobs/{id:[0-9]+}", mw.Require(auth.PermRead, http.HandlerFunc(h.GetJob))).Methods(http.MethodGet)
	api.Handle("/keys", mw.Require(auth.PermAdmin, http.HandlerFunc(h.ListAPIKeys))).Methods(http.MethodGet)
	api.Handle("/keys", mw.Require(auth.PermAdmin, http.HandlerFunc(h.CreateAPIKey))).Methods(http.MethodPost)
}

func (h *JobHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Job Portal API is running"})
}

func (h *JobHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.ctrl.ListCompanies(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]companyDTO, 0, len(companies))
	for i := range companies {
		out = append(out, companyToDTO(&companies[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *JobHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var body createCompanyRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	company, err := h.ctrl.CreateCompany(r.Context(), body.Name)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, companyToDTO(company))
}

// ListJobs returns a filtered page, or the statistics series when
// statistics=true. Statistics honor only the company names and
// found_on_date.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := auth.PrincipalFrom(r.Context())

	statsMode, err := parseBool(q, "statistics")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if statsMode {
		h.statistics(w, r, q)
		return
	}

	filter, err := h.parseJobFilter(q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	page, err := h.ctrl.ListJobs(r.Context(), p, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToDTO(page))
}

func (h *JobHandler) statistics(w http.ResponseWriter, r *http.Request, q url.Values) {
	names := models.JobFilter{CompanyName: q.Get("company_name"), CompanyNames: q["company_names"]}
	filter := models.StatisticsFilter{CompanyNames: names.Names()}
	if raw := q.Get("found_on_date"); raw != "" {
		d, err := models.ParseDate(raw, h.now())
		if err != nil {
			h.writeError(w, err)
			return
		}
		filter.Date = &d
	}

	stats, err := h.ctrl.Statistics(r.Context(), auth.PrincipalFrom(r.Context()), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsToDTO(stats))
}

func (h *JobHandler) parseJobFilter(q url.Values) (models.JobFilter, error) {
	f := models.JobFilter{
		CompanyName:   q.Get("company_name"),
		CompanyNames:  q["company_names"],
		Level:         q.Get("level"),
		Levels:        q["levels"],
		ContractType:  q.Get("contract_type"),
		TitleContains: q.Get("title_contains"),
		TitleExcludes: q.Get("title_excludes"),
		Location:      q.Get("location"),
		Function:      q.Get("function"),
		Department:    q.Get("department"),
		Keywords:      q.Get("keywords"),
		TitleRegex:    q.Get("title_regex"),
		FunctionRegex: q.Get("function_regex"),
	}

	if raw := q.Get("company_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 0)
		if err != nil {
			return f, fmt.Errorf("%w: company_id must be a positive integer", e.ErrInvalidFilter)
		}
		cid := uint(id)
		f.CompanyID = &cid
	}
	if raw := q.Get("found_on_date"); raw != "" {
		d, err := models.ParseDate(raw, h.now())
		if err != nil {
			return f, err
		}
		f.FoundOnDate = &d
	}
	if raw := q.Get("status"); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			return f, err
		}
		f.Status = st
	}

	var err error
	if f.Skip, err = parseInt(q, "skip"); err != nil {
		return f, err
	}
	if f.Limit, err = parseOptionalInt(q, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *JobHandler) InsertJob(w http.ResponseWriter, r *http.Request) {
	var body insertJobRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	req, err := body.toModel(h.now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.ctrl.InsertJob(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insertResultToDTO(result))
}

func (h *JobHandler) SearchJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err := parseInt(q, "skip")
	if err != nil {
		h.writeError(w, err)
		return
	}
	limit, err := parseOptionalInt(q, "limit")
	if err != nil {
		h.writeError(w, err)
		return
	}

	page, err := h.ctrl.SearchJobs(r.Context(), auth.PrincipalFrom(r.Context()), q.Get("q"), skip, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToDTO(page))
}

func (h *JobHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.ctrl.FilterOptions(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, filterOptionsToDTO(opts))
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 0)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: invalid job id", e.ErrInvalidInput))
		return
	}
	job, err := h.ctrl.GetJob(r.Context(), auth.PrincipalFrom(r.Context()), uint(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobToDetail(job))
}

func (h *JobHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var body createAPIKeyRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, err)
		return
	}
	key, p, err := h.ctrl.CreateAPIKey(r.Context(), body.toPrincipal())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, principalToDTO(p, key))
}

func (h *JobHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.ctrl.ListAPIKeys(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]apiKeyDTO, 0, len(keys))
	for i := range keys {
		out = append(out, principalToDTO(&keys[i], ""))
	}
	writeJSON(w, http.StatusOK, out)
}

// writeError maps domain errors to HTTP status codes.
func (h *JobHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, e.ErrInvalidFilter), errors.Is(err, e.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
	case errors.Is(err, e.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": err.Error()})
	case errors.Is(err, e.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": err.Error()})
	case errors.Is(err, e.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": err.Error()})
	default:
		h.logger.Error("Internal server error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", e.ErrInvalidInput, err)
	}
	return nil
}

func parseInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", e.ErrInvalidFilter, key)
	}
	return n, nil
}

// parseOptionalInt returns nil when key is absent, so that an explicit zero
// can be told apart from a missing value.
func parseOptionalInt(q url.Values, key string) (*int, error) {
	if q.Get(key) == "" {
		return nil, nil
	}
	n, err := parseInt(q, key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseBool(q url.Values, key string) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", e.ErrInvalidFilter, key)
	}
	return b, nil
}
