package database

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/JonMunkholm/despesas/internal/core"
	"github.com/JonMunkholm/despesas/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schemaSQL string

var schemaTmpl = template.Must(template.New("schema").Parse(schemaSQL))

// UniqueIndex is the name of the unique index backing the conflict key.
const UniqueIndex = "despesa_unica"

// Execer runs a statement without returning rows.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema renders the DDL for table. An empty table uses DefaultTable.
func Schema(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	parts := strings.Split(table, ".")
	name := parts[len(parts)-1]

	var buf bytes.Buffer
	err := schemaTmpl.Execute(&buf, struct {
		Table, Index, PeriodIndex string
	}{
		Table:       pgx.Identifier(parts).Sanitize(),
		Index:       pgx.Identifier{UniqueIndex}.Sanitize(),
		PeriodIndex: pgx.Identifier{name + "_data_referencia_idx"}.Sanitize(),
	})
	if err != nil {
		return "", fmt.Errorf("render schema: %w", err)
	}
	return buf.String(), nil
}

// Migrate creates the target table and its unique index if they are missing.
// It is safe to run repeatedly.
func Migrate(ctx context.Context, db Execer, table string) error {
	if table == "" {
		table = DefaultTable
	}
	ddl, err := Schema(table)
	if err != nil {
		return err
	}

	// No bind arguments, so pgx sends the script over the simple protocol
	// and the statements run in one round-trip.
	if _, err := db.Exec(ctx, ddl); err != nil {
		return classify("migrate", err)
	}

	logging.Component(ctx, "database").Info("schema applied", "table", table, "index", UniqueIndex)
	return nil
}

// keyMatchesSchema reports whether key is the column list of the unique index
// created by Migrate.
func keyMatchesSchema(key core.ConflictKey) bool {
	if len(key) != len(core.DefaultConflictKey) {
		return false
	}
	for i := range key {
		if key[i] != core.DefaultConflictKey[i] {
			return false
		}
	}
	return true
}
