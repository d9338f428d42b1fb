package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/dataquality/internal/config"
	"github.com/JonMunkholm/dataquality/internal/quality"
	"github.com/JonMunkholm/dataquality/internal/rules"
	"github.com/JonMunkholm/dataquality/internal/service"
)

const contactsBody = `{
	"dataSourceName": "contacts",
	"rows": [
		{"Name": "Ada", "Email": "ada@example.com", "Phone": "+15551234567"},
		{"Name": null, "Email": "not-an-email", "Phone": "+15551234567"},
		{"Name": "Ada", "Email": "ada@example.com", "Phone": "+15551234567"}
	]
}`

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: time.Second,
			CORSOrigins:     []string{"*"},
		},
		Validation: config.ValidationConfig{
			MaxRows:       100,
			MaxConcurrent: 2,
			MaxWaitTime:   time.Second,
			ResultLimit:   100,
			MaxUploadSize: 1 << 20,
		},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

type testServer struct {
	*Server
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...service.Option) *testServer {
	t.Helper()

	reg := prometheus.NewRegistry()
	opts = append(opts, service.WithMetrics(service.NewMetrics(reg)))
	svc := service.New(rules.Defaults(), service.Config{
		MaxRows:       cfg.Validation.MaxRows,
		MaxConcurrent: cfg.Validation.MaxConcurrent,
		MaxWait:       cfg.Validation.MaxWaitTime,
	}, opts...)

	s := NewServer(svc, cfg, reg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &testServer{Server: s, registry: reg}
}

func (s *testServer) do(method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type reportBody struct {
	Success bool `json:"success"`
	Report  struct {
		DataSourceName string `json:"dataSourceName"`
		Summary        struct {
			TotalRows      int `json:"totalRows"`
			ValidRows      int `json:"validRows"`
			InvalidRows    int `json:"invalidRows"`
			DuplicateCount int `json:"duplicateCount"`
		} `json:"summary"`
		Results []struct {
			RowNumber int  `json:"rowNumber"`
			IsValid   bool `json:"isValid"`
		} `json:"results"`
		ErrorSummary map[string]int `json:"errorSummary"`
		Profile      *struct {
			TotalFields   int `json:"totalFields"`
			FieldProfiles []struct {
				FieldName    string  `json:"fieldName"`
				Completeness float64 `json:"completeness"`
			} `json:"fieldProfiles"`
		} `json:"profile"`
		Corrections []struct {
			RowNumber int    `json:"rowNumber"`
			FieldName string `json:"fieldName"`
		} `json:"corrections"`
	} `json:"report"`
}

// ----------------------------------------------------------------------------
// Validation Endpoint Tests
// ----------------------------------------------------------------------------

func TestHandleValidate(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodPost, "/api/validation/validate", contactsBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	body := decode[reportBody](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "contacts", body.Report.DataSourceName)
	assert.Equal(t, 3, body.Report.Summary.TotalRows)
	assert.Equal(t, 1, body.Report.Summary.ValidRows)
	assert.Equal(t, 2, body.Report.Summary.InvalidRows)
	assert.Equal(t, 1, body.Report.Summary.DuplicateCount)
	assert.Equal(t, 1, body.Report.ErrorSummary["Email"])

	// Only invalid rows are returned.
	require.Len(t, body.Report.Results, 2)
	assert.Equal(t, 2, body.Report.Results[0].RowNumber)
	assert.Equal(t, 3, body.Report.Results[1].RowNumber)
	for _, r := range body.Report.Results {
		assert.False(t, r.IsValid)
	}

	// Profile and corrections default to on.
	require.NotNil(t, body.Report.Profile)
	assert.Equal(t, 3, body.Report.Profile.TotalFields)
	require.Len(t, body.Report.Corrections, 1)
	assert.Equal(t, "Name", body.Report.Corrections[0].FieldName)
}

func TestHandleValidate_Options(t *testing.T) {
	s := newTestServer(t, testConfig())

	req := `{"rows": [{"Email": "a@example.com"}, {"Email": "a@example.com"}],
		"detectDuplicates": false, "generateProfile": false, "includeAutoCorrections": false}`
	rec := s.do(http.MethodPost, "/api/validation/validate", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[reportBody](t, rec)
	assert.Equal(t, 0, body.Report.Summary.DuplicateCount)
	assert.Equal(t, 2, body.Report.Summary.ValidRows)
	assert.Nil(t, body.Report.Profile)
	assert.Empty(t, body.Report.Corrections)
	assert.NotNil(t, body.Report.Results)
}

func TestHandleValidate_ResultLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Validation.ResultLimit = 1
	s := newTestServer(t, cfg)

	rec := s.do(http.MethodPost, "/api/validation/validate", contactsBody)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[reportBody](t, rec)
	assert.Equal(t, 2, body.Report.Summary.InvalidRows)
	assert.Len(t, body.Report.Results, 1)
}

func TestHandleValidate_HTML(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodPost, "/api/validation/validate", contactsBody, "Accept", "text/html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	page := rec.Body.String()
	assert.Contains(t, page, "<h1>contacts</h1>")
	assert.Contains(t, page, "Invalid rows")
	assert.Contains(t, page, "Name: Name is required")
	assert.Contains(t, page, "duplicate of row 1")
	assert.Contains(t, page, "<h2>Profile</h2>")
}

func TestHandleValidate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		maxRows    int
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed json",
			body:       `{"rows": [`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL003",
		},
		{
			name:       "nested value",
			body:       `{"rows": [{"Name": {"first": "Ada"}}]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL003",
		},
		{
			name:       "batch too large",
			maxRows:    2,
			body:       contactsBody,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "VAL002",
		},
		{
			name:       "unknown rule id",
			body:       `{"rows": [{"Name": "Ada"}], "validationRuleIds": ["` + uuid.NewString() + `"]}`,
			wantStatus: http.StatusNotFound,
			wantCode:   "RULE001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.maxRows > 0 {
				cfg.Validation.MaxRows = tt.maxRows
			}
			s := newTestServer(t, cfg)

			rec := s.do(http.MethodPost, "/api/validation/validate", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := decode[errorBody](t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestHandleValidate_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Validation.MaxUploadSize = 16
	s := newTestServer(t, cfg)

	rec := s.do(http.MethodPost, "/api/validation/validate", contactsBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decode[errorBody](t, rec).Code)
}

func TestHandleProfile(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodPost, "/api/validation/profile", contactsBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Success bool `json:"success"`
		Profile struct {
			DataSourceName string `json:"dataSourceName"`
			TotalRows      int    `json:"totalRows"`
			FieldProfiles  []struct {
				FieldName    string  `json:"fieldName"`
				Completeness float64 `json:"completeness"`
				UniqueValues int     `json:"uniqueValues"`
			} `json:"fieldProfiles"`
			PotentialIssues []string `json:"potentialIssues"`
		} `json:"profile"`
	}](t, rec)

	assert.True(t, body.Success)
	assert.Equal(t, "contacts", body.Profile.DataSourceName)
	assert.Equal(t, 3, body.Profile.TotalRows)
	require.Len(t, body.Profile.FieldProfiles, 3)

	names := []string{}
	for _, fp := range body.Profile.FieldProfiles {
		names = append(names, fp.FieldName)
	}
	assert.Equal(t, []string{"Email", "Name", "Phone"}, names)
	assert.InDelta(t, 66.67, body.Profile.FieldProfiles[1].Completeness, 0.01)
	assert.Equal(t, 1, body.Profile.FieldProfiles[2].UniqueValues)
	assert.NotNil(t, body.Profile.PotentialIssues)
}

func TestHandleDetectDuplicates(t *testing.T) {
	type dupBody struct {
		Success         bool     `json:"success"`
		DuplicatesFound int      `json:"duplicatesFound"`
		CheckFields     []string `json:"checkFields"`
		Details         []struct {
			RowNumber      int            `json:"rowNumber"`
			DuplicateOfRow int            `json:"duplicateOfRow"`
			Values         map[string]any `json:"values"`
		} `json:"details"`
	}

	s := newTestServer(t, testConfig())

	t.Run("all fields", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/validation/detect-duplicates", contactsBody)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode[dupBody](t, rec)
		assert.Equal(t, 1, body.DuplicatesFound)
		assert.Equal(t, []string{"Email", "Name", "Phone"}, body.CheckFields)
		require.Len(t, body.Details, 1)
		assert.Equal(t, 3, body.Details[0].RowNumber)
		assert.Equal(t, 1, body.Details[0].DuplicateOfRow)
		assert.Len(t, body.Details[0].Values, 3)
	})

	t.Run("selected fields", func(t *testing.T) {
		req := `{"rows": [
			{"Email": "a@example.com", "Name": "A"},
			{"Email": "b@example.com", "Name": "B"},
			{"Email": "a@example.com", "Name": "C"}
		], "duplicateCheckFields": ["Email"]}`
		rec := s.do(http.MethodPost, "/api/validation/detect-duplicates", req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode[dupBody](t, rec)
		assert.Equal(t, []string{"Email"}, body.CheckFields)
		require.Len(t, body.Details, 1)
		assert.Equal(t, map[string]any{"Email": "a@example.com"}, body.Details[0].Values)
	})
}

func TestHandleSuggestCorrections(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodPost, "/api/validation/suggest-corrections", contactsBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Success          bool `json:"success"`
		SuggestionsCount int  `json:"suggestionsCount"`
		Suggestions      []struct {
			RowNumber   int `json:"rowNumber"`
			Corrections []struct {
				FieldName    string `json:"fieldName"`
				CurrentValue any    `json:"currentValue"`
				Reason       string `json:"reason"`
			} `json:"corrections"`
		} `json:"suggestions"`
	}](t, rec)

	assert.True(t, body.Success)
	assert.Equal(t, 1, body.SuggestionsCount)
	require.Len(t, body.Suggestions, 1)
	assert.Equal(t, 2, body.Suggestions[0].RowNumber)
	require.Len(t, body.Suggestions[0].Corrections, 1)
	assert.Equal(t, "Name", body.Suggestions[0].Corrections[0].FieldName)
	assert.Nil(t, body.Suggestions[0].Corrections[0].CurrentValue)
	assert.Equal(t, "Name is required", body.Suggestions[0].Corrections[0].Reason)
}

// ----------------------------------------------------------------------------
// Upload Tests
// ----------------------------------------------------------------------------

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, query, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/validation/upload"+query, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleUpload(t *testing.T) {
	const csvData = "Name,Email\nAda,ada@example.com\n,broken\n"

	tests := []struct {
		name       string
		query      string
		filename   string
		content    string
		wantStatus int
		wantCode   string
		wantSource string
	}{
		{
			name:       "file name is default source",
			filename:   "contacts.csv",
			content:    csvData,
			wantStatus: http.StatusOK,
			wantSource: "contacts.csv",
		},
		{
			name:       "explicit source",
			query:      "?dataSource=crm&generateProfile=false",
			filename:   "contacts.csv",
			content:    csvData,
			wantStatus: http.StatusOK,
			wantSource: "crm",
		},
		{
			name:       "missing file",
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
		},
		{
			name:       "empty file",
			filename:   "empty.csv",
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE005",
		},
		{
			name:       "bad flag",
			query:      "?detectDuplicates=maybe",
			filename:   "contacts.csv",
			content:    csvData,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL003",
		},
		{
			name:       "bad rule id",
			query:      "?ruleIds=abc",
			filename:   "contacts.csv",
			content:    csvData,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VAL003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig())
			rec := s.upload(t, tt.query, tt.filename, tt.content)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode[errorBody](t, rec).Code)
				return
			}

			body := decode[reportBody](t, rec)
			assert.Equal(t, tt.wantSource, body.Report.DataSourceName)
			assert.Equal(t, 2, body.Report.Summary.TotalRows)
			assert.Equal(t, 1, body.Report.Summary.InvalidRows)
		})
	}
}

// ----------------------------------------------------------------------------
// Rule Endpoint Tests
// ----------------------------------------------------------------------------

// memStore is an in-memory service.RuleStore.
type memStore struct {
	mu    sync.Mutex
	rules []quality.Rule
}

func (m *memStore) List(context.Context) ([]quality.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]quality.Rule(nil), m.rules...), nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (quality.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return quality.Rule{}, rules.ErrRuleNotFound
}

func (m *memStore) Create(_ context.Context, req rules.CreateRequest, createdBy string) (quality.Rule, error) {
	r := req.Rule(createdBy)
	if err := rules.Validate(r); err != nil {
		return quality.Rule{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
	return r, nil
}

func (m *memStore) Update(_ context.Context, id uuid.UUID, req rules.UpdateRequest) (quality.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules[i] = req.Apply(r)
			return m.rules[i], nil
		}
	}
	return quality.Rule{}, rules.ErrRuleNotFound
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return rules.ErrRuleNotFound
}

type ruleBody struct {
	Success bool         `json:"success"`
	Rule    quality.Rule `json:"rule"`
}

func TestHandleRules_ReadOnly(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodGet, "/api/rules", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[rulesResponse](t, rec)
	assert.True(t, body.Success)
	assert.False(t, body.Editable)
	assert.Len(t, body.Rules, 3)

	id := uuid.NewString()
	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/rules/" + id, ""},
		{http.MethodPost, "/api/rules", `{"name": "x"}`},
		{http.MethodPut, "/api/rules/" + id, `{"name": "x"}`},
		{http.MethodDelete, "/api/rules/" + id, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotImplemented, rec.Code)
			assert.Equal(t, "RULE003", decode[errorBody](t, rec).Code)
		})
	}
}

func TestHandleRules_Lifecycle(t *testing.T) {
	store := &memStore{}
	s := newTestServer(t, testConfig(), service.WithRuleStore(store))

	rec := s.do(http.MethodPost, "/api/rules",
		`{"name": "Country", "fieldName": "Country", "operator": "In", "operatorValue": "DK,SE,NO"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ruleBody](t, rec).Rule
	assert.Equal(t, "api:192.0.2.1", created.CreatedBy)
	assert.True(t, created.IsActive)
	assert.Equal(t, quality.TypeString, created.FieldType)

	path := "/api/rules/" + created.ID.String()

	rec = s.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Country", decode[ruleBody](t, rec).Rule.Name)

	rec = s.do(http.MethodGet, "/api/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[rulesResponse](t, rec)
	assert.True(t, listed.Editable)
	assert.Len(t, listed.Rules, 1)

	rec = s.do(http.MethodPut, path, `{"isActive": false, "priority": 5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ruleBody](t, rec).Rule
	assert.False(t, updated.IsActive)
	assert.Equal(t, 5, updated.Priority)

	rec = s.do(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RULE001", decode[errorBody](t, rec).Code)
}

func TestHandleRules_BadInput(t *testing.T) {
	s := newTestServer(t, testConfig(), service.WithRuleStore(&memStore{}))

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode string
		status   int
	}{
		{"bad id", http.MethodGet, "/api/rules/not-a-uuid", "", "VAL003", http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/rules", `{"name":`, "VAL003", http.StatusBadRequest},
		{"invalid rule", http.MethodPost, "/api/rules", `{"name": "Empty", "operator": "IsEmail"}`, "RULE002", http.StatusBadRequest},
		{"unknown rule", http.MethodDelete, "/api/rules/" + uuid.NewString(), "", "RULE001", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[errorBody](t, rec).Code)
		})
	}
}

// ----------------------------------------------------------------------------
// Server Tests
// ----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[healthResponse](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 100, body.Service.MaxRows)
	assert.Equal(t, 2, body.Service.Validations.MaxConcurrent)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, testConfig())

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/validation/validate", contactsBody).Code)

	rec := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dataquality_operations_total{operation="validate",outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `dataquality_rows_total{result="invalid"} 2`)
}

func TestMetrics_DisabledWithoutGatherer(t *testing.T) {
	svc := service.New(rules.Defaults(), service.Config{MaxRows: 10, MaxConcurrent: 1, MaxWait: time.Second})
	s := NewServer(svc, testConfig(), nil)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")

	cfg := testConfig()
	cfg.Security.EnableCSP = false
	s = newTestServer(t, cfg)
	assert.Empty(t, s.do(http.MethodGet, "/health", "").Header().Get("Content-Security-Policy"))
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/rules", "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/rules", "", "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/rules", "", "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/rules", "", "Authorization", "Bearer secret").Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	s := newTestServer(t, cfg)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "").Code)

	rec := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "SYS004", decode[errorBody](t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"), "limits are per IP")

	now = now.Add(20 * time.Second)
	assert.Equal(t, 40, rl.retryAfter("10.0.0.1"))
	assert.Equal(t, 0, rl.retryAfter("10.0.0.9"))

	now = now.Add(41 * time.Second)
	assert.True(t, rl.allow("10.0.0.1"), "window resets")

	rl.stop()
	rl.stop()
}

// ----------------------------------------------------------------------------
// Helper Tests
// ----------------------------------------------------------------------------

func TestValidateRequestDefaults(t *testing.T) {
	off := false
	req := validateRequest{DataSourceName: "x", GenerateProfile: &off}.serviceRequest()

	assert.Equal(t, "x", req.DataSourceName)
	assert.True(t, req.DetectDuplicates)
	assert.False(t, req.GenerateProfile)
	assert.True(t, req.IncludeCorrections)
}

func TestNewCorrectionsResponse(t *testing.T) {
	resp := newCorrectionsResponse([]quality.CorrectionSuggestion{
		{RowNumber: 4, FieldName: "A"},
		{RowNumber: 2, FieldName: "B"},
		{RowNumber: 4, FieldName: "C"},
	})

	assert.Equal(t, 3, resp.SuggestionsCount)
	require.Len(t, resp.Suggestions, 2)
	assert.Equal(t, 4, resp.Suggestions[0].RowNumber)
	assert.Len(t, resp.Suggestions[0].Corrections, 2)
	assert.Equal(t, "C", resp.Suggestions[0].Corrections[1].FieldName)
	assert.Equal(t, 2, resp.Suggestions[1].RowNumber)

	assert.NotNil(t, newCorrectionsResponse(nil).Suggestions)
}

func TestFormatNumber(t *testing.T) {
	assert.Nil(t, formatNumber(nil))

	f := 12.5
	assert.Equal(t, "12.5", *formatNumber(&f))
	f = 3
	assert.Equal(t, "3", *formatNumber(&f))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
}

func TestParseIDList(t *testing.T) {
	id := uuid.New()
	ids, err := parseIDList(id.String())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, ids)

	_, err = parseIDList(id.String() + ",nope")
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
}

func TestRequestActor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	assert.Equal(t, "api:203.0.113.7", requestActor(req))

	req.RemoteAddr = ""
	assert.Equal(t, "api", requestActor(req))
}

func TestReportPage_Escapes(t *testing.T) {
	report := &quality.Report{DataSourceName: "<script>alert(1)</script>", TotalRows: 0}

	var buf bytes.Buffer
	require.NoError(t, ReportPage(report, 10).Render(context.Background(), &buf))

	page := buf.String()
	assert.NotContains(t, page, "<script>")
	assert.Contains(t, page, "&lt;script&gt;")
	assert.Contains(t, page, "All rows passed validation.")
}
