package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RawRow maps a header label to the raw cell read from the source sheet.
// Values are string, a numeric type, or nil for an empty cell.
type RawRow map[string]any

// Source column labels as they appear in the spreadsheet header.
const (
	ColBranch   = "Filial"
	ColGroup    = "Grupo"
	ColSubgroup = "SubGrupo"
	ColCenter   = "Centro"
	ColPlan     = "Plano"
	ColVendor   = "Fornecedor"
	ColTitle    = "Titulo"
	ColPaid     = "Pago R$"
	ColOpen     = "Aberto R$"
)

// SourceColumns lists the expected header labels in sheet order.
var SourceColumns = []string{
	ColBranch, ColGroup, ColSubgroup, ColCenter, ColPlan,
	ColVendor, ColTitle, ColPaid, ColOpen,
}

// ExpenseRecord is one row of the target table.
// Categorical fields are nil when the source cell was empty.
type ExpenseRecord struct {
	ReferenceDate string `json:"data_referencia"`
	Year          string `json:"ano"`
	Month         string `json:"mes"`

	Branch   *string `json:"filial"`
	Group    *string `json:"grupo"`
	Subgroup *string `json:"subgrupo"`
	Center   *string `json:"centro"`
	Plan     *string `json:"plano"`
	Vendor   *string `json:"fornecedor"`
	Title    *string `json:"titulo"`

	Paid float64 `json:"pago"`
	Open float64 `json:"aberto"`
}

// ConflictKey is the ordered list of target columns the backend uses to
// decide that a record already exists.
type ConflictKey []string

// DefaultConflictKey matches the despesa_unica constraint. centro is not part
// of it: two rows that differ only by cost center are duplicates.
var DefaultConflictKey = ConflictKey{
	"data_referencia", "filial", "grupo", "subgrupo", "plano",
	"fornecedor", "titulo", "pago", "aberto",
}

// LoadResult reports how many submitted records the backend actually stored.
type LoadResult struct {
	Submitted int
	Inserted  int
}

// Skipped returns the number of records ignored as duplicates.
func (r LoadResult) Skipped() int {
	return r.Submitted - r.Inserted
}

// Reader produces the raw rows of a source file.
type Reader interface {
	Read(ctx context.Context, path string) ([]RawRow, error)
}

// Sink persists a batch of records with insert-if-absent semantics.
type Sink interface {
	UpsertBatch(ctx context.Context, records []ExpenseRecord, key ConflictKey) (LoadResult, error)
}

// Job describes a single load run.
type Job struct {
	Path   string
	Period ReportingPeriod

	// DryRun reads and transforms the file but skips the load.
	DryRun bool
}

// Summary is the outcome of a pipeline run.
type Summary struct {
	RunID     string          `json:"runId"`
	File      string          `json:"file"`
	Period    ReportingPeriod `json:"period"`
	RowsRead  int             `json:"rowsRead"`
	Inserted  int             `json:"inserted"`
	Skipped   int             `json:"skipped"`
	TotalPaid decimal.Decimal `json:"totalPaid"`
	TotalOpen decimal.Decimal `json:"totalOpen"`
	Duration  time.Duration   `json:"duration"`
	Empty     bool            `json:"empty"` // source had no data rows; nothing was loaded
	DryRun    bool            `json:"dryRun"`
}
