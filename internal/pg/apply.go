package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes treated as "already applied".
const (
	codeDuplicateObject = "42710"
	codeDuplicateTable  = "42P07"
)

// Execer is the part of *sql.DB (or *sql.Tx) the emitter needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplyResult counts what ApplyDDL did.
type ApplyResult struct {
	Applied int
	Skipped int
}

// ApplyDDL executes ddl in key order. Objects that already exist are logged
// and skipped; any other failure stops the run.
func ApplyDDL(ctx context.Context, db Execer, ddl map[string]string, logger *slog.Logger) (ApplyResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res ApplyResult
	for _, k := range Keys(ddl) {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, sqlText); err != nil {
			if alreadyExists(err) {
				logger.Info("ddl skipped, object exists", "phase", k, "error", err)
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("apply ddl %s: %w", k, err)
		}
		logger.Debug("ddl applied", "phase", k)
		res.Applied++
	}
	return res, nil
}

func alreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == codeDuplicateObject || pgErr.Code == codeDuplicateTable)
}
