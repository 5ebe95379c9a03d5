package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/despesas/internal/database"
	"github.com/JonMunkholm/despesas/internal/web"
	"github.com/spf13/cobra"
)

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	pool, err := database.Connect(ctx, a.cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	server := web.NewServer(newPipeline(a.cfg, pool), pool, a.cfg)

	// ctx is cancelled on SIGINT/SIGTERM.
	shutdownDone := make(chan error, 1)
	go func() {
		<-ctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		shutdownDone <- server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownDone; err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
