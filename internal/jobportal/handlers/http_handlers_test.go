package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gartstein/jobportal/internal/jobportal/auth"
	e "github.com/gartstein/jobportal/internal/jobportal/errors"
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errUnexpected = errors.New("unexpected call")

// mockJobController is a simple mock implementation of JobController.
type mockJobController struct {
	listJobsFunc      func(ctx context.Context, p *models.Principal, f models.JobFilter) (*models.JobPage, error)
	statisticsFunc    func(ctx context.Context, p *models.Principal, f models.StatisticsFilter) ([]models.CompanyStatistics, error)
	getJobFunc        func(ctx context.Context, p *models.Principal, id uint) (*models.Job, error)
	searchJobsFunc    func(ctx context.Context, p *models.Principal, text string, skip int, limit *int) (*models.JobPage, error)
	filterOptionsFunc func(ctx context.Context, p *models.Principal) (*models.FilterOptions, error)
	insertJobFunc     func(ctx context.Context, req *models.InsertJobRequest) (*models.InsertJobResult, error)
	listCompaniesFunc func(ctx context.Context, p *models.Principal) ([]models.Company, error)
	createCompanyFunc func(ctx context.Context, name string) (*models.Company, error)
	createAPIKeyFunc  func(ctx context.Context, p *models.Principal) (string, *models.Principal, error)
	listAPIKeysFunc   func(ctx context.Context) ([]models.Principal, error)
}

func (m *mockJobController) ListJobs(ctx context.Context, p *models.Principal, f models.JobFilter) (*models.JobPage, error) {
	if m.listJobsFunc == nil {
		return nil, errUnexpected
	}
	return m.listJobsFunc(ctx, p, f)
}

func (m *mockJobController) Statistics(ctx context.Context, p *models.Principal, f models.StatisticsFilter) ([]models.CompanyStatistics, error) {
	if m.statisticsFunc == nil {
		return nil, errUnexpected
	}
	return m.statisticsFunc(ctx, p, f)
}

func (m *mockJobController) GetJob(ctx context.Context, p *models.Principal, id uint) (*models.Job, error) {
	if m.getJobFunc == nil {
		return nil, errUnexpected
	}
	return m.getJobFunc(ctx, p, id)
}

func (m *mockJobController) SearchJobs(ctx context.Context, p *models.Principal, text string, skip int, limit *int) (*models.JobPage, error) {
	if m.searchJobsFunc == nil {
		return nil, errUnexpected
	}
	return m.searchJobsFunc(ctx, p, text, skip, limit)
}

func (m *mockJobController) FilterOptions(ctx context.Context, p *models.Principal) (*models.FilterOptions, error) {
	if m.filterOptionsFunc == nil {
		return nil, errUnexpected
	}
	return m.filterOptionsFunc(ctx, p)
}

func (m *mockJobController) InsertJob(ctx context.Context, req *models.InsertJobRequest) (*models.InsertJobResult, error) {
	if m.insertJobFunc == nil {
		return nil, errUnexpected
	}
	return m.insertJobFunc(ctx, req)
}

func (m *mockJobController) ListCompanies(ctx context.Context, p *models.Principal) ([]models.Company, error) {
	if m.listCompaniesFunc == nil {
		return nil, errUnexpected
	}
	return m.listCompaniesFunc(ctx, p)
}

func (m *mockJobController) CreateCompany(ctx context.Context, name string) (*models.Company, error) {
	if m.createCompanyFunc == nil {
		return nil, errUnexpected
	}
	return m.createCompanyFunc(ctx, name)
}

func (m *mockJobController) CreateAPIKey(ctx context.Context, p *models.Principal) (string, *models.Principal, error) {
	if m.createAPIKeyFunc == nil {
		return "", nil, errUnexpected
	}
	return m.createAPIKeyFunc(ctx, p)
}

func (m *mockJobController) ListAPIKeys(ctx context.Context) ([]models.Principal, error) {
	if m.listAPIKeysFunc == nil {
		return nil, errUnexpected
	}
	return m.listAPIKeysFunc(ctx)
}

type keyring map[string]*models.Principal

func (k keyring) Authenticate(_ context.Context, key string) (*models.Principal, error) {
	p, ok := k[key]
	if !ok {
		return nil, fmt.Errorf("%w: invalid or inactive API key", e.ErrUnauthorized)
	}
	return p, nil
}

var (
	adminKey    = &models.Principal{ID: 1, Name: "admin", Admin: true, Active: true}
	scraperKey  = &models.Principal{ID: 2, Name: "scraper", Read: true, Write: true, ReadHidden: true, Active: true}
	frontendKey = &models.Principal{ID: 3, Name: "frontend", Read: true, Active: true}
)

var fixedNow = time.Date(2024, 1, 8, 15, 30, 0, 0, time.UTC)

func newTestRouter(t *testing.T, ctrl JobController) http.Handler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	h := NewJobHandler(ctrl, logger)
	h.now = func() time.Time { return fixedNow }
	keys := keyring{"admin": adminKey, "scraper": scraperKey, "frontend": frontendKey}
	return NewRouter(h, auth.NewMiddleware(keys, logger), []string{"*"}, logger)
}

func do(t *testing.T, router http.Handler, method, target, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if key != "" {
		req.Header.Set(auth.HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestRoot(t *testing.T) {
	rec := do(t, newTestRouter(t, &mockJobController{}), http.MethodGet, "/", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Job Portal API is running"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestRequestIDIsPropagated(t *testing.T) {
	router := newTestRouter(t, &mockJobController{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func TestListJobs_ParsesFilters(t *testing.T) {
	var got models.JobFilter
	var gotPrincipal *models.Principal
	ctrl := &mockJobController{
		listJobsFunc: func(_ context.Context, p *models.Principal, f models.JobFilter) (*models.JobPage, error) {
			got, gotPrincipal = f, p
			first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			return &models.JobPage{
				Jobs: []models.Job{{
					ID: 3, CompanyName: "Acme",
					JobFields: models.JobFields{Title: "Engineer", WorkLocation: "Berlin, Germany", WorkLocationShort: "Berlin"},
					FirstSeen: &first, LastSeen: &first,
				}},
				Total: 7, Skip: 5, Limit: 1,
			}, nil
		},
	}

	target := "/api/jobs?company_name=Acme&company_names=Beta&company_names=Gamma&level=Senior&levels=Junior" +
		"&found_on_date=today&status=new&title_contains=eng&title_excludes=intern&location=berlin" +
		"&function=it&department=rd&keywords=go&title_regex=%5ESenior&function_regex=data&contract_type=full" +
		"&company_id=4&skip=5&limit=1"
	rec := do(t, newTestRouter(t, ctrl), http.MethodGet, target, "frontend", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	today := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, frontendKey, gotPrincipal)
	assert.Equal(t, []string{"Acme", "Beta", "Gamma"}, got.Names())
	assert.Equal(t, []string{"Senior", "Junior"}, got.AllLevels())
	require.NotNil(t, got.FoundOnDate)
	assert.Equal(t, today, *got.FoundOnDate)
	assert.Equal(t, models.StatusNew, got.Status)
	assert.Equal(t, "eng", got.TitleContains)
	assert.Equal(t, "intern", got.TitleExcludes)
	assert.Equal(t, "berlin", got.Location)
	assert.Equal(t, "it", got.Function)
	assert.Equal(t, "rd", got.Department)
	assert.Equal(t, "go", got.Keywords)
	assert.Equal(t, "^Senior", got.TitleRegex)
	assert.Equal(t, "data", got.FunctionRegex)
	assert.Equal(t, "full", got.ContractType)
	require.NotNil(t, got.CompanyID)
	assert.Equal(t, uint(4), *got.CompanyID)
	assert.Equal(t, 5, got.Skip)
	require.NotNil(t, got.Limit)
	assert.Equal(t, 1, *got.Limit)

	assert.JSONEq(t, `{
		"jobs": [{
			"id": 3, "company_name": "Acme", "title": "Engineer", "level": null,
			"contract_type": null, "location": "Berlin",
			"first_seen": "2024-01-01", "last_seen": "2024-01-01"
		}],
		"total": 7, "skip": 5, "limit": 1
	}`, rec.Body.String())
}

func TestListJobs_Statistics(t *testing.T) {
	var got models.StatisticsFilter
	ctrl := &mockJobController{
		statisticsFunc: func(_ context.Context, _ *models.Principal, f models.StatisticsFilter) ([]models.CompanyStatistics, error) {
			got = f
			return []models.CompanyStatistics{{
				CompanyName: "Acme",
				Dates: []models.DateStatistics{
					{Date: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), OpenPositions: 2, NewlyAdded: 1, Removed: 1},
				},
			}}, nil
		},
	}

	// Listing-only parameters, even invalid ones, are ignored.
	rec := do(t, newTestRouter(t, ctrl), http.MethodGet,
		"/api/jobs?statistics=true&company_name=Acme&found_on_date=2024-01-08&status=bogus&limit=abc", "frontend", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []string{"Acme"}, got.CompanyNames)
	require.NotNil(t, got.Date)
	assert.Equal(t, "2024-01-08", models.FormatDate(*got.Date))
	assert.JSONEq(t, `{"companies":[{"company_name":"Acme","dates":[
		{"date":"2024-01-08","open_positions":2,"newly_added":1,"removed":1}]}]}`, rec.Body.String())
}

func TestListJobs_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		ctrlErr    error
		wantStatus int
	}{
		{"bad date", "/api/jobs?found_on_date=08-01-2024", nil, http.StatusBadRequest},
		{"bad status", "/api/jobs?status=gone", nil, http.StatusBadRequest},
		{"bad limit", "/api/jobs?limit=ten", nil, http.StatusBadRequest},
		{"bad company id", "/api/jobs?company_id=-1", nil, http.StatusBadRequest},
		{"bad statistics flag", "/api/jobs?statistics=maybe", nil, http.StatusBadRequest},
		{"bad statistics date", "/api/jobs?statistics=true&found_on_date=yesterday", nil, http.StatusBadRequest},
		{"invalid filter from service", "/api/jobs?title_regex=(a*)%2B", fmt.Errorf("title_regex: %w", e.ErrInvalidFilter), http.StatusBadRequest},
		{"storage failure", "/api/jobs", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &mockJobController{
				listJobsFunc: func(context.Context, *models.Principal, models.JobFilter) (*models.JobPage, error) {
					if tt.ctrlErr != nil {
						return nil, tt.ctrlErr
					}
					return &models.JobPage{}, nil
				},
			}
			rec := do(t, newTestRouter(t, ctrl), http.MethodGet, tt.target, "frontend", "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var body map[string]string
			decode(t, rec, &body)
			assert.NotEmpty(t, body["detail"])
			assert.NotContains(t, body["detail"], "connection reset")
		})
	}
}

func TestListJobs_ExplicitZeroLimit(t *testing.T) {
	var got models.JobFilter
	ctrl := &mockJobController{
		listJobsFunc: func(_ context.Context, _ *models.Principal, f models.JobFilter) (*models.JobPage, error) {
			got = f
			if err := f.Normalize(); err != nil {
				return nil, err
			}
			return &models.JobPage{}, nil
		},
	}
	router := newTestRouter(t, ctrl)

	rec := do(t, router, http.MethodGet, "/api/jobs?limit=0", "frontend", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.NotNil(t, got.Limit)
	assert.Equal(t, 0, *got.Limit)

	rec = do(t, router, http.MethodGet, "/api/jobs", "frontend", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, got.Limit)
}

func TestPermissions(t *testing.T) {
	router := newTestRouter(t, &mockJobController{
		listCompaniesFunc: func(context.Context, *models.Principal) ([]models.Company, error) {
			return nil, nil
		},
	})

	tests := []struct {
		name       string
		method     string
		target     string
		key        string
		wantStatus int
	}{
		{"missing key", http.MethodGet, "/api/companies", "", http.StatusUnauthorized},
		{"unknown key", http.MethodGet, "/api/companies", "nope", http.StatusUnauthorized},
		{"reader lists companies", http.MethodGet, "/api/companies", "frontend", http.StatusOK},
		{"reader cannot insert", http.MethodPost, "/api/jobs", "frontend", http.StatusForbidden},
		{"reader cannot create company", http.MethodPost, "/api/companies", "frontend", http.StatusForbidden},
		{"scraper cannot list keys", http.MethodGet, "/api/keys", "scraper", http.StatusForbidden},
		{"scraper cannot create keys", http.MethodPost, "/api/keys", "scraper", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.target, tt.key, "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestCompanies(t *testing.T) {
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	var gotName string
	ctrl := &mockJobController{
		listCompaniesFunc: func(_ context.Context, p *models.Principal) ([]models.Company, error) {
			assert.Equal(t, frontendKey, p)
			return []models.Company{{ID: 1, Name: "Acme", CreatedAt: created}}, nil
		},
		createCompanyFunc: func(_ context.Context, name string) (*models.Company, error) {
			gotName = name
			if name == "" {
				return nil, fmt.Errorf("%w: company name is required", e.ErrInvalidInput)
			}
			return &models.Company{ID: 2, Name: name, CreatedAt: created}, nil
		},
	}
	router := newTestRouter(t, ctrl)

	rec := do(t, router, http.MethodGet, "/api/companies", "frontend", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"Acme","created_at":"2024-01-01T09:00:00Z","updated_at":null}]`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/api/companies", "scraper", `{"name":"Beta"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Beta", gotName)

	rec = do(t, router, http.MethodPost, "/api/companies", "scraper", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/companies", "scraper", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsertJob(t *testing.T) {
	var got *models.InsertJobRequest
	ctrl := &mockJobController{
		insertJobFunc: func(_ context.Context, req *models.InsertJobRequest) (*models.InsertJobResult, error) {
			got = req
			return &models.InsertJobResult{JobID: 9, InsertID: 12, IsNewJob: true, InsertCreated: true, Message: "New job created with insert record"}, nil
		},
	}
	router := newTestRouter(t, ctrl)

	rec := do(t, router, http.MethodPost, "/api/jobs", "scraper", `{
		"company_name": "Acme", "hidden": true, "job_id": "ext-1", "url": "https://acme.example/1",
		"title": "Engineer", "work_location_short": "Berlin", "scrape_date": "2024-01-08",
		"date_added": "today", "extra_field": "ignored"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"job_id":9,"insert_id":12,"is_new_job":true,"message":"New job created with insert record"}`, rec.Body.String())

	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.True(t, got.Hidden)
	assert.Equal(t, "ext-1", got.ExternalID)
	assert.Equal(t, "https://acme.example/1", got.URL)
	assert.Equal(t, "Berlin", got.WorkLocationShort)
	require.NotNil(t, got.ScrapeDate)
	assert.Equal(t, "2024-01-08", models.FormatDate(*got.ScrapeDate))
	require.NotNil(t, got.DateAdded)
	assert.Equal(t, "2024-01-08", models.FormatDate(*got.DateAdded))

	rec = do(t, router, http.MethodPost, "/api/jobs", "scraper", `{"company_name":"Acme","scrape_date":"Jan 8"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchJobs(t *testing.T) {
	ctrl := &mockJobController{
		searchJobsFunc: func(_ context.Context, _ *models.Principal, text string, skip int, limit *int) (*models.JobPage, error) {
			if text == "" {
				return nil, fmt.Errorf("%w: search text is required", e.ErrInvalidInput)
			}
			assert.Equal(t, "golang", text)
			assert.Equal(t, 10, skip)
			assert.Nil(t, limit)
			return &models.JobPage{Total: 0, Skip: skip, Limit: 100}, nil
		},
	}
	router := newTestRouter(t, ctrl)

	rec := do(t, router, http.MethodGet, "/api/jobs/search?q=golang&skip=10", "frontend", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"jobs":[],"total":0,"skip":10,"limit":100}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/jobs/search", "frontend", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilterOptions(t *testing.T) {
	ctrl := &mockJobController{
		filterOptionsFunc: func(context.Context, *models.Principal) (*models.FilterOptions, error) {
			return &models.FilterOptions{Companies: []string{"Acme"}, Levels: []string{"Senior"}}, nil
		},
	}
	rec := do(t, newTestRouter(t, ctrl), http.MethodGet, "/api/jobs/filters", "frontend", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"companies":["Acme"],"levels":["Senior"],"functions":[]}`, rec.Body.String())
}

func TestGetJob(t *testing.T) {
	added := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctrl := &mockJobController{
		getJobFunc: func(_ context.Context, p *models.Principal, id uint) (*models.Job, error) {
			if id != 3 || p != frontendKey {
				return nil, fmt.Errorf("%w: job %d", e.ErrNotFound, id)
			}
			return &models.Job{
				ID: 3, CompanyName: "Acme",
				JobFields: models.JobFields{ExternalID: "ext-3", Title: "Engineer", Description: "Build things"},
				DateAdded: &added, CreatedAt: added,
			}, nil
		},
	}
	router := newTestRouter(t, ctrl)

	rec := do(t, router, http.MethodGet, "/api/jobs/3", "frontend", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail map[string]any
	decode(t, rec, &detail)
	assert.Equal(t, "ext-3", detail["job_id"])
	assert.Equal(t, "Build things", detail["description"])
	assert.Equal(t, "2024-01-01", detail["date_added"])
	assert.Nil(t, detail["first_seen"])

	rec = do(t, router, http.MethodGet, "/api/jobs/4", "frontend", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/jobs/abc", "frontend", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "non-numeric ids do not match the route")
}

func TestAPIKeys(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var got *models.Principal
	ctrl := &mockJobController{
		createAPIKeyFunc: func(_ context.Context, p *models.Principal) (string, *models.Principal, error) {
			got = p
			out := *p
			out.ID, out.CreatedAt = 5, created
			return "generated-key", &out, nil
		},
		listAPIKeysFunc: func(context.Context) ([]models.Principal, error) {
			return []models.Principal{{ID: 5, Name: "reporting", Read: true, Active: true, CreatedAt: created}}, nil
		},
	}
	router := newTestRouter(t, ctrl)

	rec := do(t, router, http.MethodPost, "/api/keys", "admin", `{"name":"reporting","read":true,"read_hidden":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var createdKey apiKeyDTO
	decode(t, rec, &createdKey)
	assert.Equal(t, "generated-key", createdKey.Key)
	assert.True(t, createdKey.IsActive)
	require.NotNil(t, got)
	assert.True(t, got.Read)
	assert.True(t, got.ReadHidden)
	assert.False(t, got.Write)

	rec = do(t, router, http.MethodGet, "/api/keys", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"key"`)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, &mockJobController{})
	do(t, router, http.MethodGet, "/", "", "")

	rec := do(t, router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jobportal_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, &mockJobController{})
	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", auth.HeaderAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
