// Command despesas loads a monthly expense spreadsheet into Postgres.
//
//	despesas run --file DIGM.xlsx --year 2025 --month 10
//	despesas run --file DIGM.xlsx --year 2025 --month 10 --dry-run
//	despesas migrate
//	despesas serve
//
// Settings come from the environment (and a .env file); see internal/config.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/despesas/internal/config"
	"github.com/JonMunkholm/despesas/internal/core"
	"github.com/JonMunkholm/despesas/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		slog.Error("despesas failed", "error", err)
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		if msg := core.MapError(err); msg.Action != "" {
			fmt.Fprintln(os.Stderr, msg.Action)
		}
		os.Exit(1)
	}
}

// app carries state shared by the subcommands.
type app struct {
	cfg  *config.Config
	opts options
}

// options are the command-line overrides of the ETL settings.
type options struct {
	file       string
	year       int
	month      int
	monthLabel string
	dryRun     bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "despesas",
		Short:         "Load the monthly expense spreadsheet into the despesas table",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: a.runLoad,
	}

	a.opts.register(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Read the spreadsheet and insert new rows (default)",
			Args:  cobra.NoArgs,
			RunE:  a.runLoad,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the target table and its unique index",
			Args:  cobra.NoArgs,
			RunE:  a.runMigrate,
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP load trigger",
			Args:  cobra.NoArgs,
			RunE:  a.runServe,
		},
	)

	return root
}

// setup loads configuration, applies flag overrides and configures logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.opts.apply(cmd, &cfg.ETL)
	a.cfg = cfg

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

func (o *options) register(flags *pflag.FlagSet) {
	flags.StringVarP(&o.file, "file", "f", "", "spreadsheet to load (overrides ETL_SOURCE_FILE)")
	flags.IntVarP(&o.year, "year", "y", 0, "reporting year (overrides ETL_YEAR)")
	flags.IntVarP(&o.month, "month", "m", 0, "reporting month 1-12 (overrides ETL_MONTH)")
	flags.StringVar(&o.monthLabel, "month-label", "", "label stored in the mes column (overrides ETL_MONTH_LABEL)")
	flags.BoolVar(&o.dryRun, "dry-run", false, "read and transform only; do not write to the database")
}

// apply copies every flag the user set onto etl.
func (o options) apply(cmd *cobra.Command, etl *config.ETLConfig) {
	flags := cmd.Flags()
	if flags.Changed("file") {
		etl.SourceFile = o.file
	}
	if flags.Changed("year") {
		etl.Year = o.year
	}
	if flags.Changed("month") {
		etl.Month = o.month
	}
	if flags.Changed("month-label") {
		etl.MonthLabel = o.monthLabel
	}
}
