package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/despesas/internal/config"
	"github.com/JonMunkholm/despesas/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	summary *core.Summary
	err     error

	calls   int
	job     core.Job
	content string
	ext     string
}

func (f *fakeRunner) Run(ctx context.Context, job core.Job) (*core.Summary, error) {
	f.calls++
	f.job = job
	f.ext = filepath.Ext(job.Path)
	if data, err := os.ReadFile(job.Path); err == nil {
		f.content = string(data)
	}
	if f.err != nil {
		return nil, f.err
	}
	s := *f.summary
	s.Period = job.Period
	return &s, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func testConfig() *config.Config {
	return &config.Config{
		ETL: config.ETLConfig{MaxFileSize: 1 << 20},
		Server: config.ServerConfig{
			RequestTimeout:     5 * time.Second,
			MaxConcurrentLoads: 1,
			MaxLoadWait:        20 * time.Millisecond,
		},
	}
}

func okSummary() *core.Summary {
	return &core.Summary{
		RunID:     "run-1",
		RowsRead:  3,
		Inserted:  2,
		Skipped:   1,
		TotalPaid: decimal.RequireFromString("1200.5"),
		TotalOpen: decimal.RequireFromString("10.25"),
		Duration:  1500 * time.Millisecond,
	}
}

// loadRequest builds a multipart POST /api/loads. An empty filename omits the file part.
func loadRequest(t *testing.T, filename, body string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/loads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandleLoad_Success(t *testing.T) {
	runner := &fakeRunner{summary: okSummary()}
	srv := NewServer(runner, fakePinger{}, testConfig())

	req := loadRequest(t, "DIGM.XLSX", "workbook bytes", map[string]string{
		"year": "2025", "month": "10",
	})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "DIGM.XLSX", resp.File)
	assert.Equal(t, "2025-10-01", resp.ReferenceDate)
	assert.Equal(t, "Outubro", resp.Month)
	assert.Equal(t, 2, resp.Inserted)
	assert.Equal(t, 1, resp.Skipped)
	assert.Equal(t, "1200.50", resp.TotalPaid)
	assert.Equal(t, "10.25", resp.TotalOpen)
	assert.Equal(t, int64(1500), resp.DurationMS)

	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, ".xlsx", runner.ext, "temp file keeps the lower-cased extension")
	assert.Equal(t, "workbook bytes", runner.content)
	_, err := os.Stat(runner.job.Path)
	assert.True(t, os.IsNotExist(err), "temp file is removed after the run")
}

func TestHandleLoad_MonthLabel(t *testing.T) {
	runner := &fakeRunner{summary: okSummary()}
	srv := NewServer(runner, fakePinger{}, testConfig())

	req := loadRequest(t, "a.csv", "Filial\nA\n", map[string]string{
		"year": "2025", "month": "3", "month_label": "Mar/25",
	})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mar/25", runner.job.Period.MonthLabel)
	assert.Equal(t, "2025-03-01", runner.job.Period.ReferenceDate)
}

func TestHandleLoad_DryRunFlag(t *testing.T) {
	runner := &fakeRunner{summary: okSummary()}
	srv := NewServer(runner, fakePinger{}, testConfig())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, loadRequest(t, "a.xlsx", "x", map[string]string{
		"year": "2025", "month": "10", "dry_run": "true",
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, runner.job.DryRun)
}

func TestHandleLoad_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		fields   map[string]string
		wantCode string
	}{
		{name: "missing file", filename: "", fields: map[string]string{"year": "2025", "month": "10"}, wantCode: "FILE002"},
		{name: "month out of range", filename: "a.xlsx", fields: map[string]string{"year": "2025", "month": "13"}, wantCode: "VAL007"},
		{name: "month not a number", filename: "a.xlsx", fields: map[string]string{"year": "2025", "month": "out"}, wantCode: "VAL007"},
		{name: "missing year", filename: "a.xlsx", fields: map[string]string{"month": "10"}, wantCode: "VAL007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{summary: okSummary()}
			srv := NewServer(runner, fakePinger{}, testConfig())

			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, loadRequest(t, tt.filename, "x", tt.fields))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			assert.Zero(t, runner.calls)
		})
	}
}

func TestHandleLoad_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.ETL.MaxFileSize = 10
	srv := NewServer(&fakeRunner{summary: okSummary()}, fakePinger{}, cfg)

	big := string(bytes.Repeat([]byte("a"), 2*formOverhead))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, loadRequest(t, "a.csv", big, map[string]string{"year": "2025", "month": "1"}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE002", decodeError(t, rec).Code)
}

func TestHandleLoad_FileOverLimitWithinFormAllowance(t *testing.T) {
	cfg := testConfig()
	cfg.ETL.MaxFileSize = 10
	runner := &fakeRunner{summary: okSummary()}
	srv := NewServer(runner, fakePinger{}, cfg)

	body := strings.Repeat("a", 100)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, loadRequest(t, "a.csv", body, map[string]string{"year": "2025", "month": "1"}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE002", decodeError(t, rec).Code)
	assert.Zero(t, runner.calls, "oversized upload must not reach the pipeline")
}

func TestHandleLoad_FileAtLimit(t *testing.T) {
	cfg := testConfig()
	cfg.ETL.MaxFileSize = 10
	runner := &fakeRunner{summary: okSummary()}
	srv := NewServer(runner, fakePinger{}, cfg)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, loadRequest(t, "a.csv", strings.Repeat("a", 10), map[string]string{"year": "2025", "month": "1"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.calls)
}

func TestHandleLoad_PipelineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "read", err: fmt.Errorf("%w: not a zip file", core.ErrRead), wantStatus: http.StatusBadRequest, wantCode: "FILE002"},
		{name: "constraint", err: fmt.Errorf("load: %w", core.ErrConstraint), wantStatus: http.StatusConflict, wantCode: "DB008"},
		{name: "communication", err: fmt.Errorf("load: %w", core.ErrCommunication), wantStatus: http.StatusBadGateway, wantCode: "DB004"},
		{
			name:       "timeout",
			err:        fmt.Errorf("%w: %w", core.ErrCommunication, context.DeadlineExceeded),
			wantStatus: http.StatusBadGateway,
			wantCode:   "DB006",
		},
		{name: "unknown", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeRunner{err: tt.err}, fakePinger{}, testConfig())

			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, loadRequest(t, "a.xlsx", "x", map[string]string{"year": "2025", "month": "10"}))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.NotEmpty(t, resp.Action)
		})
	}
}

func TestHandleLoad_EmptySource(t *testing.T) {
	summary := okSummary()
	*summary = core.Summary{RunID: "run-2", Empty: true}
	srv := NewServer(&fakeRunner{summary: summary}, fakePinger{}, testConfig())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, loadRequest(t, "a.xlsx", "x", map[string]string{"year": "2025", "month": "10"}))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp loadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Empty)
	assert.Equal(t, "0.00", resp.TotalPaid)
}

func TestHandleLoad_Busy(t *testing.T) {
	runner := &fakeRunner{summary: okSummary()}
	srv := NewServer(runner, fakePinger{}, testConfig())

	require.NoError(t, srv.limiter.Acquire(context.Background()))
	defer srv.limiter.Release()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, loadRequest(t, "a.xlsx", "x", map[string]string{"year": "2025", "month": "10"}))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "LOAD003", decodeError(t, rec).Code)
	assert.Zero(t, runner.calls)
}

func TestHandleLoad_RequiresAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Server.APIKeys = []string{"segredo"}
	runner := &fakeRunner{summary: okSummary()}
	srv := NewServer(runner, fakePinger{}, cfg)

	fields := map[string]string{"year": "2025", "month": "10"}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, loadRequest(t, "a.xlsx", "x", fields))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := loadRequest(t, "a.xlsx", "x", fields)
	req.Header.Set("X-API-Key", "segredo")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, runner.calls)
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{name: "healthy", wantStatus: http.StatusOK},
		{name: "database down", pingErr: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeRunner{}, fakePinger{err: tt.pingErr}, testConfig())

			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
			if tt.pingErr != nil {
				assert.Equal(t, "DB004", decodeError(t, rec).Code)
			}
		})
	}
}

func TestHandleLoadStatus(t *testing.T) {
	srv := NewServer(&fakeRunner{}, fakePinger{}, testConfig())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loads/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status core.LimiterStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, core.LimiterStatus{Active: 0, Available: 1, MaxConcurrent: 1}, status)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(core.ErrNoRows))
	assert.Equal(t, http.StatusBadRequest, statusFor(core.ErrInvalidPeriod))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(core.ErrBusy))
	assert.Equal(t, http.StatusBadGateway, statusFor(context.DeadlineExceeded))
}

func TestShutdown_NotStarted(t *testing.T) {
	srv := NewServer(&fakeRunner{}, fakePinger{}, testConfig())
	assert.NoError(t, srv.Shutdown(context.Background()))
}
