// Command server runs the rule enforcement API: a policy store over
// SQLite, a textual SQL rewriting pipeline, result masking, and at-rest
// trigger synchronization against user-connected Postgres databases.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"sqlward/internal/api"
	"sqlward/internal/config"
	"sqlward/internal/db"
	"sqlward/internal/db/repository"
	"sqlward/internal/engine"
	"sqlward/internal/executor"
	"sqlward/internal/mask"
	"sqlward/internal/rewrite"
	"sqlward/internal/service"
	"sqlward/internal/trigger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg := config.LoadFromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if dir := filepath.Dir(cfg.PolicyDBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	writeDB, readDB, err := db.OpenSQLitePair(cfg.PolicyDBPath, 0)
	if err != nil {
		return err
	}
	defer writeDB.Close()
	defer readDB.Close()

	if err := db.RunMigrations(writeDB); err != nil {
		return err
	}
	logger.Info("policy store ready", "path", cfg.PolicyDBPath)

	rules := repository.NewRuleRepo(writeDB, readDB)
	databases := repository.NewDatabaseRepo(writeDB, readDB)
	queryLogs := repository.NewQueryLogRepo(writeDB, readDB)

	pg := executor.NewPostgres(logger.With("component", "executor"))
	composer := rewrite.NewComposer(rules, logger.With("component", "rewrite"))
	masker := mask.NewTransformer(rules, logger.With("component", "mask"))
	synchronizer := trigger.NewSynchronizer(pg, logger.With("component", "trigger"))
	eng := engine.New(databases, composer, pg, masker, logger.With("component", "engine"))

	ruleSvc := service.NewRuleService(rules, databases, synchronizer, logger.With("component", "rules"))
	databaseSvc := service.NewDatabaseService(databases, logger.With("component", "databases"))
	querySvc := service.NewQueryService(eng, databases, queryLogs, logger.With("component", "queries"))

	if cfg.ResyncSchedule != "" {
		reconciler := trigger.NewReconciler(databases, rules, synchronizer, logger.With("component", "resync"))
		if err := reconciler.Start(cfg.ResyncSchedule); err != nil {
			return err
		}
		defer reconciler.Stop()
	}

	handler := api.NewHandler(ruleSvc, databaseSvc, querySvc, logger.With("component", "api"))
	router := api.NewRouter(handler, logger.With("component", "http"), cfg.CORSAllowedOrigins)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
