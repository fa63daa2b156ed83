package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/laggedout/storefront-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// Status is one migration's state in the target database.
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Runner applies storefront schema migrations against Postgres.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

func NewRunner(db *sql.DB, dir string, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	fsys, err := source(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

func (r *Runner) Up(ctx context.Context) error {
	results, err := r.provider.Up(ctx)
	r.logResults(ctx, results...)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration only.
func (r *Runner) Down(ctx context.Context) error {
	result, err := r.provider.Down(ctx)
	if result != nil {
		r.logResults(ctx, result)
	}
	if err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// HasPending reports whether any embedded migration is not yet applied.
func (r *Runner) HasPending(ctx context.Context) (bool, error) {
	pending, err := r.provider.HasPending(ctx)
	if err != nil {
		return false, fmt.Errorf("goose pending: %w", err)
	}
	return pending, nil
}

func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	rows, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		out = append(out, Status{
			Version:   row.Source.Version,
			Name:      path.Base(row.Source.Path),
			Applied:   row.State == goose.StateApplied,
			AppliedAt: row.AppliedAt,
		})
	}
	return out, nil
}

// To moves the schema up or down until target (a YYYYMMDDHHMMSS version) is
// the newest applied migration.
func (r *Runner) To(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || len(target) != versionLen {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}

	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == version:
		r.logg.Info(r.logg.WithField(ctx, "version", version), "schema already at target version")
		return nil
	case current < version:
		results, err := r.provider.UpTo(ctx, version)
		r.logResults(ctx, results...)
		if err != nil {
			return fmt.Errorf("goose up-to %d: %w", version, err)
		}
	default:
		results, err := r.provider.DownTo(ctx, version)
		r.logResults(ctx, results...)
		if err != nil {
			return fmt.Errorf("goose down-to %d: %w", version, err)
		}
	}
	return nil
}

func (r *Runner) logResults(ctx context.Context, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		fields := r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        path.Base(res.Source.Path),
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			r.logg.Error(fields, "migration failed", res.Error)
			continue
		}
		r.logg.Info(fields, "migration applied")
	}
}
