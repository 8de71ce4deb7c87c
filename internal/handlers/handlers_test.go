package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"insightpilot/backend/internal/auth"
	"insightpilot/backend/internal/config"
	"insightpilot/backend/internal/customers"
	"insightpilot/backend/internal/demo"
	"insightpilot/backend/internal/ingest"
	"insightpilot/backend/internal/models"
	"insightpilot/backend/internal/store"
	"insightpilot/backend/internal/suggest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const sampleCSV = `customer_code,last_visit_date,total_spent,visit_count,membership_type
C001,2025-01-01,12000,18,VIP
C002,2025-05-20,800,3,Standard
C003,2025-03-01,450,2,BASIC
`

type routerOptions struct {
	authEnabled bool
	gen         suggest.Generator
	configure   func(*config.Config)
}

func setupRouterWithDB(t *testing.T, authEnabled bool) (*gin.Engine, *store.Store) {
	t.Helper()
	return setupRouter(t, routerOptions{authEnabled: authEnabled})
}

func setupRouter(t *testing.T, opts routerOptions) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	// Use a per-test in-memory database to avoid cross-test interference
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg := config.Default()
	cfg.Database = config.DatabaseConfig{Driver: config.DriverSQLite, DSN: dsn, LogLevel: "silent"}
	cfg.Auth.Enabled = opts.authEnabled
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Demo.Size = 50
	cfg.Demo.Seed = 7
	if opts.configure != nil {
		opts.configure(&cfg)
	}
	gen := opts.gen
	if gen == nil {
		gen = suggest.Mock{}
	}

	db, err := store.Open(cfg.Database)
	require.NoError(t, err)
	s := store.New(db, cfg.Import.BatchSize)
	t.Cleanup(func() { _ = s.Close() })

	clock := func() time.Time { return now }
	h := New(cfg, s,
		ingest.NewImporter(s, clock),
		customers.NewService(s, gen, clock, cfg.Query),
		auth.NewService(s, cfg.Auth, nil),
		demo.NewLoader(s, clock, cfg.Demo.Size, cfg.Demo.Seed),
	)
	r := gin.New()
	h.RegisterRoutes(r)
	return r, s
}

func httpDo(r *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, r *gin.Engine, filename, content string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/customers/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type customerPage struct {
	Items  []customers.View `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func TestHealth(t *testing.T) {
	r, _ := setupRouterWithDB(t, false)
	w := httpDo(r, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestImportListAndGet(t *testing.T) {
	r, _ := setupRouterWithDB(t, false)

	w := upload(t, r, "customers.csv", sampleCSV)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res ingest.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, 3, res.Inserted)
	require.Equal(t, 0, res.Updated)
	require.Equal(t, 3, res.TotalRows)
	require.NotEmpty(t, res.ImportID)

	// re-upload updates in place
	w = upload(t, r, "customers.csv", sampleCSV)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, 0, res.Inserted)
	require.Equal(t, 3, res.Updated)

	w = httpDo(r, "GET", "/api/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page customerPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Equal(t, int64(3), page.Total)
	require.Equal(t, 100, page.Limit)
	require.Len(t, page.Items, 3)
	c1 := page.Items[0]
	require.Equal(t, "C001", c1.CustomerCode)
	require.Equal(t, "2025-01-01", c1.LastVisitDate)
	require.Equal(t, 151, c1.DaysSinceLastVisit)
	require.Equal(t, "high", string(c1.RiskLevel))

	w = httpDo(r, "GET", "/api/customers?risk_level=low&limit=5000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Equal(t, 500, page.Limit)
	require.Len(t, page.Items, 1)
	require.Equal(t, "C002", page.Items[0].CustomerCode)

	w = httpDo(r, "GET", "/api/customers?risk_level=medium&membership_type=basic", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, "C003", page.Items[0].CustomerCode)

	w = httpDo(r, "GET", "/api/customers?risk_level=extreme", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	idPath := "/api/customers/" + strconv.FormatUint(uint64(c1.ID), 10)
	w = httpDo(r, "GET", idPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got customers.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, c1, got)

	w = httpDo(r, "POST", idPath+"/followup_suggestion", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sug suggest.Suggestion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sug))
	require.Equal(t, "high", string(sug.RiskLevel))
	require.NotEmpty(t, sug.Summary)
	require.Len(t, sug.Scripts, 3)

	w = httpDo(r, "GET", "/api/customers/9999", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = httpDo(r, "POST", "/api/customers/9999/followup_suggestion", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = httpDo(r, "GET", "/api/customers/abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportRejectsBadUploads(t *testing.T) {
	r, s := setupRouterWithDB(t, false)

	w := upload(t, r, "customers.xlsx", sampleCSV)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = upload(t, r, "customers.csv", "customer_code,last_visit_date,total_spent\nC1,2025-01-01,1\n")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var missing struct {
		Error   string   `json:"error"`
		Missing []string `json:"missing"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &missing))
	require.Equal(t, []string{"membership_type", "visit_count"}, missing.Missing)

	// no job exists for structural failures
	w = httpDo(r, "GET", "/api/imports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total":0`)

	bad := sampleCSV + "C004,2025-13-40,1,1,VIP\n"
	w = upload(t, r, "customers.csv", bad)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var failed struct {
		Error    string `json:"error"`
		ImportID string `json:"import_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &failed))
	require.Contains(t, failed.Error, "row 4")
	require.NotEmpty(t, failed.ImportID)

	n, err := s.CountCustomers(context.Background(), store.CustomerFilter{})
	require.NoError(t, err)
	require.Zero(t, n)

	w = httpDo(r, "GET", "/api/imports/"+failed.ImportID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var job models.ImportJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	require.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	require.Contains(t, *job.ErrorMessage, "row 4")

	w = httpDo(r, "GET", "/api/imports/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestImportRejectsOversizedUpload(t *testing.T) {
	r, _ := setupRouter(t, routerOptions{configure: func(cfg *config.Config) {
		cfg.Import.MaxUploadBytes = 1024
	}})

	w := upload(t, r, "customers.csv", sampleCSV)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var big strings.Builder
	big.WriteString(sampleCSV)
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&big, "X%04d,2025-01-01,100,1,BASIC\n", i)
	}
	w = upload(t, r, "customers.csv", big.String())
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.JSONEq(t, `{"error":"file too large"}`, w.Body.String())

	// only the first upload recorded a job
	w = httpDo(r, "GET", "/api/imports", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total":1`)
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, suggest.Payload) (suggest.Suggestion, error) {
	return suggest.Suggestion{}, errors.New("upstream unavailable")
}

func TestFollowupSuggestionErrors(t *testing.T) {
	r, s := setupRouter(t, routerOptions{gen: failingGenerator{}})
	w := upload(t, r, "customers.csv", sampleCSV)
	require.Equal(t, http.StatusOK, w.Code)

	w = httpDo(r, "GET", "/api/customers?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page customerPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	path := "/api/customers/" + strconv.FormatUint(uint64(page.Items[0].ID), 10) + "/followup_suggestion"

	w = httpDo(r, "POST", path, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), "upstream unavailable")

	// a broken store is a server error, not a provider error
	require.NoError(t, s.DB().Migrator().DropTable(&models.Customer{}))
	w = httpDo(r, "POST", path, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestImportHistory(t *testing.T) {
	r, _ := setupRouterWithDB(t, false)
	for i := 0; i < 3; i++ {
		w := upload(t, r, "customers.csv", sampleCSV)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httpDo(r, "GET", "/api/imports?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Items []models.ImportJob `json:"items"`
		Total int64              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(3), resp.Total)
	require.Len(t, resp.Items, 2)
	for _, j := range resp.Items {
		require.Equal(t, models.JobStatusDone, j.Status)
		require.NotNil(t, j.RowCount)
		require.Equal(t, 3, *j.RowCount)
	}
}

func TestStatsAndChart(t *testing.T) {
	r, _ := setupRouterWithDB(t, false)
	w := upload(t, r, "customers.csv", sampleCSV)
	require.Equal(t, http.StatusOK, w.Code)

	w = httpDo(r, "GET", "/api/stats/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"total":3,"vip":1,"risk":{"low":1,"medium":1,"high":1}}`, w.Body.String())

	w = httpDo(r, "GET", "/api/stats/customers/chart.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestDemoReload(t *testing.T) {
	r, _ := setupRouterWithDB(t, false)
	w := upload(t, r, "customers.csv", sampleCSV)
	require.Equal(t, http.StatusOK, w.Code)

	w = httpDo(r, "POST", "/api/demo/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"loaded":50}`, w.Body.String())

	w = httpDo(r, "GET", "/api/customers?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page customerPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Equal(t, int64(50), page.Total)
}

func TestAuthProtectsRoutes(t *testing.T) {
	r, _ := setupRouterWithDB(t, true)

	w := httpDo(r, "GET", "/api/customers", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = upload(t, r, "customers.csv", sampleCSV)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = httpDo(r, "GET", "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	creds := map[string]string{"email": "ops@example.com", "password": "secret123"}
	w = httpDo(r, "POST", "/api/auth/register", creds)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotContains(t, w.Body.String(), "password")
	w = httpDo(r, "POST", "/api/auth/register", creds)
	require.Equal(t, http.StatusConflict, w.Code)
	w = httpDo(r, "POST", "/api/auth/register", map[string]string{"email": "not-an-email", "password": "secret123"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httpDo(r, "POST", "/api/auth/login", map[string]string{"email": "ops@example.com", "password": "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httpDo(r, "POST", "/api/auth/login", creds)
	require.Equal(t, http.StatusOK, w.Code)
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	require.Equal(t, "bearer", tok.TokenType)
	bearer := "Bearer " + tok.AccessToken

	w = httpDo(r, "GET", "/api/auth/me", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.Equal(t, "ops@example.com", me.Email)

	w = upload(t, r, "customers.csv", sampleCSV, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	w = httpDo(r, "GET", "/api/customers", nil, "Authorization", bearer)
	require.Equal(t, http.StatusOK, w.Code)
	w = httpDo(r, "GET", "/api/customers", nil, "Authorization", "Bearer nope")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = httpDo(r, "GET", "/api/customers", nil, "Authorization", tok.AccessToken)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
