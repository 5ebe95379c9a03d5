// Package database writes expense records to Postgres.
//
// The Sink inserts a whole batch inside one transaction using
// INSERT ... ON CONFLICT (key) DO NOTHING, so rows whose conflict-key tuple
// already exists are skipped by the server without an error. The number of
// rows actually stored is read back from RETURNING.
package database

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/despesas/internal/core"
	"github.com/JonMunkholm/despesas/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DefaultTable is the target table name.
const DefaultTable = "despesas"

// DefaultBatchSize is the number of records per INSERT statement.
const DefaultBatchSize = 1000

// maxParams is the Postgres limit on bind parameters per statement.
const maxParams = 65535

// Columns lists the target columns in insert order.
var Columns = []string{
	"data_referencia", "ano", "mes",
	"filial", "grupo", "subgrupo", "centro", "plano", "fornecedor", "titulo",
	"pago", "aberto",
}

// Beginner starts transactions. Satisfied by *pgxpool.Pool and *pgx.Conn.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Sink is the Postgres implementation of core.Sink.
type Sink struct {
	db        Beginner
	table     pgx.Identifier
	batchSize int
}

// NewSink creates a Sink writing to table through db.
// An empty table uses DefaultTable; table may be schema-qualified ("public.despesas").
func NewSink(db Beginner, table string, batchSize int) *Sink {
	if table == "" {
		table = DefaultTable
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if limit := maxParams / len(Columns); batchSize > limit {
		batchSize = limit
	}

	return &Sink{
		db:        db,
		table:     pgx.Identifier(strings.Split(table, ".")),
		batchSize: batchSize,
	}
}

// UpsertBatch inserts records, skipping those whose key tuple already exists.
// The batch is atomic: on any error nothing is committed.
func (s *Sink) UpsertBatch(ctx context.Context, records []core.ExpenseRecord, key core.ConflictKey) (core.LoadResult, error) {
	result := core.LoadResult{Submitted: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	if err := validateKey(key); err != nil {
		return core.LoadResult{}, err
	}

	logger := logging.Component(ctx, "database")
	if !keyMatchesSchema(key) {
		logger.Warn("conflict key differs from the migrated unique index", "key", strings.Join(key, ","), "index", UniqueIndex)
	}
	logger.Info("upserting records", "table", s.table.Sanitize(), "records", len(records))
	start := time.Now()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return core.LoadResult{}, classify("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	for offset := 0; offset < len(records); offset += s.batchSize {
		end := min(offset+s.batchSize, len(records))

		query, args := s.buildInsert(records[offset:end], key)

		var inserted int64
		if err := tx.QueryRow(ctx, query, args...).Scan(&inserted); err != nil {
			return core.LoadResult{}, classify(fmt.Sprintf("insert records %d-%d", offset+1, end), err)
		}
		result.Inserted += int(inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.LoadResult{}, classify("commit", err)
	}

	logger.Info("upsert complete",
		"inserted", result.Inserted,
		"skipped", result.Skipped(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if result.Skipped() > 0 {
		logger.Info("duplicate records ignored", "skipped", result.Skipped())
	}

	return result, nil
}

// buildInsert renders one multi-row INSERT wrapped in a CTE that counts
// the rows actually written.
func (s *Sink) buildInsert(records []core.ExpenseRecord, key core.ConflictKey) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(records)*len(Columns))

	b.WriteString("WITH ins AS (INSERT INTO ")
	b.WriteString(s.table.Sanitize())
	b.WriteString(" (")
	b.WriteString(quoteColumns(Columns))
	b.WriteString(") VALUES ")

	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range Columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(i*len(Columns) + j + 1))
		}
		b.WriteByte(')')
		args = append(args, recordValues(r)...)
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(quoteColumns(key))
	b.WriteString(") DO NOTHING RETURNING 1) SELECT count(*) FROM ins")

	return b.String(), args
}

// recordValues returns the bind values of r in Columns order.
func recordValues(r core.ExpenseRecord) []any {
	return []any{
		toPgDate(r.ReferenceDate),
		r.Year,
		r.Month,
		toPgText(r.Branch),
		toPgText(r.Group),
		toPgText(r.Subgroup),
		toPgText(r.Center),
		toPgText(r.Plan),
		toPgText(r.Vendor),
		toPgText(r.Title),
		toPgNumeric(r.Paid),
		toPgNumeric(r.Open),
	}
}

func validateKey(key core.ConflictKey) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty conflict key", core.ErrConstraint)
	}
	for _, col := range key {
		if !containsColumn(Columns, col) {
			return fmt.Errorf("%w: unknown column %q in conflict key", core.ErrConstraint, col)
		}
	}
	return nil
}

// classify wraps err with the core sentinel that describes it.
//
// 42P10 (no matching unique constraint), 42703 (undefined column) and
// 42P01 (undefined table) mean the target schema does not match the key.
// Connection, authentication and resource classes, as well as anything that
// never reached the server, are communication failures. Other server
// errors are returned as-is.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42P10" || pgErr.Code == "42703" || pgErr.Code == "42P01":
			return fmt.Errorf("%s: %w: %s (SQLSTATE %s)", op, core.ErrConstraint, pgErr.Message, pgErr.Code)
		case isCommunicationClass(pgErr.Code):
			return fmt.Errorf("%s: %w: %w", op, core.ErrCommunication, err)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, core.ErrCommunication, err)
}

// isCommunicationClass reports SQLSTATE classes 08 (connection), 28 (auth),
// 53 (resources) and 57 (operator intervention).
func isCommunicationClass(code string) bool {
	if len(code) < 2 {
		return false
	}
	switch code[:2] {
	case "08", "28", "53", "57":
		return true
	}
	return false
}

func containsColumn(columns []string, target string) bool {
	for _, c := range columns {
		if c == target {
			return true
		}
	}
	return false
}

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

func toPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func toPgDate(s string) pgtype.Date {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

func toPgNumeric(f float64) pgtype.Numeric {
	var n pgtype.Numeric
	if err := n.Scan(strconv.FormatFloat(f, 'f', -1, 64)); err != nil {
		return pgtype.Numeric{Int: big.NewInt(0), Valid: true}
	}
	return n
}
