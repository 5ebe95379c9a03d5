// Package source reads the first sheet of a spreadsheet into raw rows.
//
// XLSX workbooks are opened with excelize; CSV files go through the
// standard csv reader after BOM removal and UTF-8 sanitizing. Either way the
// first non-blank row is the header and each later row becomes a
// core.RawRow keyed by header label, with empty cells mapped to nil.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/despesas/internal/core"
	"github.com/JonMunkholm/despesas/internal/logging"
	"github.com/xuri/excelize/v2"
)

// DefaultMaxFileSize is the largest source file accepted (100MB).
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// Reader reads tabular source files. The zero value is not usable; call NewReader.
type Reader struct {
	maxFileSize int64
}

// NewReader returns a Reader rejecting files larger than maxFileSize bytes.
// A non-positive size uses DefaultMaxFileSize.
func NewReader(maxFileSize int64) *Reader {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Reader{maxFileSize: maxFileSize}
}

// Read loads every data row of the first sheet at path.
// An empty sheet yields an empty slice and no error.
func (r *Reader) Read(ctx context.Context, path string) ([]core.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrRead, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", core.ErrRead, path)
	}
	if info.Size() > r.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", core.ErrRead, path, info.Size(), r.maxFileSize)
	}

	var records [][]string
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		records, err = readWorkbook(path)
	case ".csv":
		records, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", core.ErrRead, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrRead, path, err)
	}

	rows := toRawRows(records)
	logging.Component(ctx, "source").Info("file read", "path", path, "rows", len(rows))
	return rows, nil
}

// readWorkbook returns the formatted cell text of the first sheet.
func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseCSV(data)
}

// toRawRows uses the first non-blank record as the header and maps every
// later non-blank record onto it.
func toRawRows(records [][]string) []core.RawRow {
	headerAt := -1
	for i, rec := range records {
		if !isBlank(rec) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return []core.RawRow{}
	}

	labels := headerLabels(records[headerAt])
	rows := make([]core.RawRow, 0, len(records)-headerAt-1)

	for _, rec := range records[headerAt+1:] {
		if isBlank(rec) {
			continue
		}

		row := make(core.RawRow, len(labels))
		for col, label := range labels {
			if label == "" {
				continue
			}
			if col < len(rec) && rec[col] != "" {
				row[label] = rec[col]
			} else {
				row[label] = nil
			}
		}
		rows = append(rows, row)
	}

	return rows
}

// headerLabels trims header cells and disambiguates repeated labels with
// the first free _1, _2, ... suffix, so a generated label never shadows a
// real one. Empty header cells stay empty and are skipped.
func headerLabels(header []string) []string {
	labels := make([]string, len(header))
	used := make(map[string]bool, len(header))
	next := make(map[string]int, len(header))

	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		label := h
		for used[label] {
			next[h]++
			label = h + "_" + strconv.Itoa(next[h])
		}
		used[label] = true
		labels[i] = label
	}

	return labels
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
