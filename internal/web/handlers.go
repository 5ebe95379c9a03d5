package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/despesas/internal/core"
	"github.com/JonMunkholm/despesas/internal/logging"
)

// formOverhead is the allowance for multipart framing and text fields on top
// of the file size limit.
const formOverhead = 1 << 20

// maxFormMemory is kept in memory while parsing; larger files spill to disk.
const maxFormMemory = 32 << 20

// healthTimeout bounds the database ping of GET /healthz.
const healthTimeout = 5 * time.Second

// loadResponse is the body of a successful POST /api/loads.
type loadResponse struct {
	RunID         string `json:"run_id"`
	File          string `json:"file"`
	ReferenceDate string `json:"reference_date"`
	Year          string `json:"year"`
	Month         string `json:"month"`
	RowsRead      int    `json:"rows_read"`
	Inserted      int    `json:"inserted"`
	Skipped       int    `json:"skipped"`
	TotalPaid     string `json:"total_paid"`
	TotalOpen     string `json:"total_open"`
	DurationMS    int64  `json:"duration_ms"`
	Empty         bool   `json:"empty"`
	DryRun        bool   `json:"dry_run"`
}

// handleLoad runs the pipeline on an uploaded spreadsheet.
//
// Form fields: file (required), year and month (required), month_label,
// dry_run.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.ETL.MaxFileSize + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > limit {
			s.respondError(w, r, fmt.Errorf("%w: upload exceeds %d bytes", core.ErrRead, s.cfg.ETL.MaxFileSize), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: invalid form: %w", core.ErrRead, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	period, err := parsePeriod(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: no file provided", core.ErrRead), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > s.cfg.ETL.MaxFileSize {
		s.respondError(w, r, fmt.Errorf("%w: upload is %d bytes, limit is %d", core.ErrRead, header.Size, s.cfg.ETL.MaxFileSize), http.StatusRequestEntityTooLarge)
		return
	}

	path, err := saveUpload(file, header)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	defer os.Remove(path)

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	defer s.limiter.Release()

	logging.FromContext(r.Context()).Info("load requested",
		"upload", header.Filename,
		"size", header.Size,
		"reference_date", period.ReferenceDate,
	)

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))

	summary, err := s.runner.Run(r.Context(), core.Job{Path: path, Period: period, DryRun: dryRun})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, loadResponse{
		RunID:         summary.RunID,
		File:          header.Filename,
		ReferenceDate: summary.Period.ReferenceDate,
		Year:          summary.Period.Year,
		Month:         summary.Period.MonthLabel,
		RowsRead:      summary.RowsRead,
		Inserted:      summary.Inserted,
		Skipped:       summary.Skipped,
		TotalPaid:     summary.TotalPaid.StringFixed(2),
		TotalOpen:     summary.TotalOpen.StringFixed(2),
		DurationMS:    summary.Duration.Milliseconds(),
		Empty:         summary.Empty,
		DryRun:        summary.DryRun,
	})
}

// handleLoadStatus reports load slot usage.
func (s *Server) handleLoadStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}

// handleHealth pings the database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", core.ErrCommunication, err), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parsePeriod reads year, month and month_label from the form.
func parsePeriod(r *http.Request) (core.ReportingPeriod, error) {
	year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))
	if err != nil {
		return core.ReportingPeriod{}, fmt.Errorf("%w: year %q", core.ErrInvalidPeriod, r.FormValue("year"))
	}
	month, err := strconv.Atoi(strings.TrimSpace(r.FormValue("month")))
	if err != nil {
		return core.ReportingPeriod{}, fmt.Errorf("%w: month %q", core.ErrInvalidPeriod, r.FormValue("month"))
	}
	return core.NewReportingPeriod(year, month, r.FormValue("month_label"))
}

// saveUpload copies the uploaded file to a temp file that keeps the
// original extension, which the source reader dispatches on.
func saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))

	tmp, err := os.CreateTemp("", "despesas-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}

	return tmp.Name(), nil
}
