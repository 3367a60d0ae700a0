package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"gql2sql/internal/api"
	"gql2sql/internal/config"
	"gql2sql/internal/metrics"
	"gql2sql/internal/pg"
	"gql2sql/internal/registrar"
	"gql2sql/internal/schema"
	"gql2sql/internal/typemap"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1 // database or registrar failure
	exitInvalid = 2 // invalid model or configuration
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	if err := config.DotEnv(); err != nil {
		slog.Warn("dotenv", "error", err)
	}

	configPath := os.Getenv("GQL2SQL_CONFIG")
	if configPath == "" {
		configPath = "gql2sql.json"
	}
	cfg, err := config.LoadWithPath(configPath, args)
	if err != nil {
		slog.Error("config", "error", err)
		return exitInvalid
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	types, err := typemap.Resolve(cfg.TypesFile, cfg.Engine)
	if err != nil {
		logger.Error("type table", "engine", cfg.Engine, "file", cfg.TypesFile, "error", err)
		return exitInvalid
	}
	tr, err := schema.NewTranslator(types)
	if err != nil {
		logger.Error("type table", "engine", cfg.Engine, "error", err)
		return exitInvalid
	}

	m := metrics.New()
	cat := api.NewCatalog(api.Pipeline{
		Translator: tr,
		Options:    cfg.SchemaOptions(),
		DDL:        cfg.DDLOptions(),
	}, cfg.SchemaPath, m, logger)

	rev, err := cat.Reload("", "cli")
	if err != nil {
		return reportBuildError(logger, err)
	}

	var db *sql.DB
	if cfg.Apply || cfg.Registrar == registrar.FlavorPostgraphile {
		db, err = pg.Open(ctx, cfg.DSN(), cfg.Timeout)
		if err != nil {
			logger.Error("database", "error", err)
			return exitFailure
		}
		defer db.Close()
	}

	// a nil *sql.DB must not reach registrar.New as a non-nil interface
	var exec registrar.Execer
	if db != nil {
		exec = db
	}
	reg, err := registrar.New(cfg.RegistrarConfig(), exec, logger)
	if err != nil {
		logger.Error("registrar", "error", err)
		return exitInvalid
	}

	if code := emitAndRegister(ctx, cfg, rev, db, reg, m, logger, stdout); code != exitOK {
		return code
	}

	if cfg.Serve {
		logger.Info("serving metadata API", "addr", cfg.Addr(), "revision", rev.ID)
		if err := api.RunServer(cfg.Addr(), cat, m); err != nil {
			logger.Error("server", "error", err)
			return exitFailure
		}
	}
	return exitOK
}

// emitAndRegister runs the emitter and the registrar over the published
// revision. Registration waits for the DDL only when it is being applied
// in the same run, since both flavors need the tables to exist.
func emitAndRegister(ctx context.Context, cfg config.Config, rev *api.Revision, db *sql.DB, reg registrar.Registrar, m *metrics.Metrics, logger *slog.Logger, stdout io.Writer) int {
	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	applied := make(chan struct{})
	var failures registrar.Failures

	g.Go(func() error {
		if err := writeScript(cfg.Out, rev.DDL, stdout); err != nil {
			return err
		}
		if !cfg.Apply {
			return nil
		}
		res, err := pg.ApplyDDL(gctx, db, rev.DDL, logger)
		m.DDL.WithLabelValues("applied").Add(float64(res.Applied))
		m.DDL.WithLabelValues("skipped").Add(float64(res.Skipped))
		if err != nil {
			return err
		}
		logger.Info("ddl applied", "applied", res.Applied, "skipped", res.Skipped, "schema", cfg.DBSchema)
		close(applied)
		return nil
	})

	g.Go(func() error {
		if reg.Name() == registrar.FlavorNone {
			return nil
		}
		if cfg.Apply {
			select {
			case <-applied:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		var err error
		failures, err = registrar.Runner{Registrar: reg, Logger: logger, Metrics: m}.
			Run(gctx, registrar.Tables(rev.Schema), registrar.Plan(rev.Schema.Relations))
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("run failed", "revision", rev.ID, "error", err)
		return exitFailure
	}
	if len(failures) > 0 {
		logger.Error("registrations failed", "revision", rev.ID, "failed", len(failures), "error", failures)
		return exitFailure
	}
	return exitOK
}

func writeScript(out string, ddl map[string]string, stdout io.Writer) error {
	switch out {
	case "":
		return nil
	case "-":
		_, err := io.WriteString(stdout, pg.Script(ddl))
		return err
	}
	if err := os.WriteFile(out, []byte(pg.Script(ddl)), 0o644); err != nil {
		return fmt.Errorf("write ddl: %w", err)
	}
	return nil
}

func reportBuildError(logger *slog.Logger, err error) int {
	var issues schema.ValidationErrors
	var ve *schema.ValidationError
	switch {
	case errors.As(err, &issues):
	case errors.As(err, &ve):
		issues = schema.ValidationErrors{ve}
	}
	for _, issue := range issues {
		logger.Error("invalid model", "entity", issue.Entity, "field", issue.Field, "code", issue.Code, "message", issue.Message)
	}
	if len(issues) > 0 || schema.IsConfigError(err) {
		if len(issues) == 0 {
			logger.Error("configuration", "error", err)
		}
		return exitInvalid
	}
	logger.Error("schema load", "error", err)
	return exitFailure
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl, AddSource: lvl == slog.LevelDebug}))
}
