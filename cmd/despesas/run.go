package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/despesas/internal/config"
	"github.com/JonMunkholm/despesas/internal/core"
	"github.com/JonMunkholm/despesas/internal/database"
	"github.com/JonMunkholm/despesas/internal/source"
	"github.com/spf13/cobra"
)

func (a *app) runLoad(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	period, err := resolvePeriod(a.cfg.ETL)
	if err != nil {
		return err
	}

	// Open does not dial, so a missing or empty file is reported before
	// the database is contacted.
	pool, err := database.Open(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	pipeline := newPipeline(a.cfg, pool)

	summary, err := pipeline.Run(ctx, core.Job{
		Path:   a.cfg.ETL.SourceFile,
		Period: period,
		DryRun: a.opts.dryRun,
	})
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

// newPipeline wires the reader and sink from cfg.
func newPipeline(cfg *config.Config, db database.Beginner) *core.Pipeline {
	return core.NewPipeline(
		source.NewReader(cfg.ETL.MaxFileSize),
		database.NewSink(db, cfg.ETL.Table, cfg.Load.BatchSize),
		core.WithLoadTimeout(cfg.Load.Timeout),
	)
}

// resolvePeriod requires year and month from flags or environment.
func resolvePeriod(etl config.ETLConfig) (core.ReportingPeriod, error) {
	if etl.Year == 0 || etl.Month == 0 {
		return core.ReportingPeriod{}, fmt.Errorf("%w: year and month are required (--year/--month or ETL_YEAR/ETL_MONTH)", core.ErrInvalidPeriod)
	}
	return core.NewReportingPeriod(etl.Year, etl.Month, etl.MonthLabel)
}

func printSummary(w io.Writer, s *core.Summary) {
	if s.Empty {
		fmt.Fprintf(w, "No rows found in %s; nothing was loaded.\n", s.File)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", s.File)
	fmt.Fprintf(tw, "Period:\t%s (%s/%s)\n", s.Period.ReferenceDate, s.Period.MonthLabel, s.Period.Year)
	fmt.Fprintf(tw, "Rows read:\t%d\n", s.RowsRead)
	if s.DryRun {
		fmt.Fprintf(tw, "Inserted:\t(dry run, nothing written)\n")
	} else {
		fmt.Fprintf(tw, "Inserted:\t%d\n", s.Inserted)
		fmt.Fprintf(tw, "Skipped (duplicates):\t%d\n", s.Skipped)
	}
	fmt.Fprintf(tw, "Total paid:\tR$ %s\n", s.TotalPaid.StringFixed(2))
	fmt.Fprintf(tw, "Total open:\tR$ %s\n", s.TotalOpen.StringFixed(2))
	fmt.Fprintf(tw, "Duration:\t%s\n", s.Duration.Round(time.Millisecond))
	tw.Flush()
}
