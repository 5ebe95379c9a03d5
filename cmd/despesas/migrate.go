package main

import (
	"fmt"

	"github.com/JonMunkholm/despesas/internal/database"
	"github.com/spf13/cobra"
)

func (a *app) runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	pool, err := database.Connect(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, a.cfg.ETL.Table); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Schema applied to %s.\n", a.cfg.ETL.Table)
	return nil
}
