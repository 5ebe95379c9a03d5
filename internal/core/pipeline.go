package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/despesas/internal/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultLoadTimeout bounds the sink call when no timeout is configured.
var DefaultLoadTimeout = 60 * time.Second

// Pipeline runs the read → transform → load sequence.
type Pipeline struct {
	reader      Reader
	sink        Sink
	conflictKey ConflictKey
	loadTimeout time.Duration
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLoadTimeout bounds the sink call. Zero or negative disables the bound.
func WithLoadTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.loadTimeout = d }
}

// WithConflictKey overrides DefaultConflictKey.
func WithConflictKey(key ConflictKey) Option {
	return func(p *Pipeline) { p.conflictKey = key }
}

// NewPipeline creates a pipeline over the given reader and sink.
func NewPipeline(reader Reader, sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		reader:      reader,
		sink:        sink,
		conflictKey: DefaultConflictKey,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one load. An empty source returns a summary with Empty set
// and a nil error; the sink is not called in that case.
func (p *Pipeline) Run(ctx context.Context, job Job) (summary *Summary, err error) {
	start := p.now()
	runID := uuid.NewString()
	logger := logging.WithFields(ctx,
		"component", "pipeline",
		"run_id", runID,
		"file", job.Path,
		"reference_date", job.Period.ReferenceDate,
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("run aborted", "panic", r)
			summary, err = nil, fmt.Errorf("run %s aborted: %v", runID, r)
		}
	}()

	logger.Info("run started")

	rows, err := p.reader.Read(ctx, job.Path)
	if err != nil {
		if !errors.Is(err, ErrRead) {
			err = fmt.Errorf("%w: %w", ErrRead, err)
		}
		logger.Error("read failed", "error", err)
		return nil, err
	}

	summary = &Summary{
		RunID:    runID,
		File:     job.Path,
		Period:   job.Period,
		RowsRead: len(rows),
	}

	if len(rows) == 0 {
		summary.Empty = true
		summary.Duration = p.now().Sub(start)
		logger.Warn("no rows", "error", ErrNoRows)
		return summary, nil
	}
	logger.Info("extraction complete", "rows", len(rows))

	records := Transform(rows, job.Period)
	summary.TotalPaid, summary.TotalOpen = totals(records)
	logger.Debug("transform complete", "records", len(records))

	if job.DryRun {
		summary.DryRun = true
		summary.Duration = p.now().Sub(start)
		logger.Info("dry run, load skipped",
			"records", len(records),
			"total_paid", summary.TotalPaid.StringFixed(2),
			"total_open", summary.TotalOpen.StringFixed(2),
		)
		return summary, nil
	}

	result, err := p.load(ctx, records)
	if err != nil {
		logger.Error("load failed", "records", len(records), "error", err)
		return nil, fmt.Errorf("load %d records: %w", len(records), err)
	}

	summary.Inserted = result.Inserted
	summary.Skipped = result.Skipped()
	summary.Duration = p.now().Sub(start)

	logger.Info("run complete",
		"rows", summary.RowsRead,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
		"total_paid", summary.TotalPaid.StringFixed(2),
		"total_open", summary.TotalOpen.StringFixed(2),
		"duration_ms", summary.Duration.Milliseconds(),
	)

	return summary, nil
}

func (p *Pipeline) load(ctx context.Context, records []ExpenseRecord) (LoadResult, error) {
	if p.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.loadTimeout)
		defer cancel()
	}

	result, err := p.sink.UpsertBatch(ctx, records, p.conflictKey)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrCommunication) {
			err = fmt.Errorf("%w: %w", ErrCommunication, err)
		}
		return LoadResult{}, err
	}
	return result, nil
}

// totals sums both amount columns exactly.
func totals(records []ExpenseRecord) (paid, open decimal.Decimal) {
	for _, r := range records {
		paid = paid.Add(decimal.NewFromFloat(r.Paid))
		open = open.Add(decimal.NewFromFloat(r.Open))
	}
	return paid, open
}
