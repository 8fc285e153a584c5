package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Applied describes one migration touched by a run.
type Applied struct {
	Version   int64
	Path      string
	Direction string
}

// Runner applies the goose migrations in a directory to a Postgres database.
// sqlite deployments never go through here; gorm AutoMigrate owns them.
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

func (r *Runner) Up(ctx context.Context) ([]Applied, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}
	return toApplied(results...), nil
}

// Down rolls back the most recent migration only.
func (r *Runner) Down(ctx context.Context) ([]Applied, error) {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return toApplied(result), nil
}

// Status returns one line per known migration.
func (r *Runner) Status(ctx context.Context) ([]string, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		applied := "pending"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		lines = append(lines, fmt.Sprintf("%-14d %-8s %s", s.Source.Version, string(s.State), applied))
	}
	return lines, nil
}

// To moves the schema up or down until it sits at targetVersion.
func (r *Runner) To(ctx context.Context, targetVersion string) ([]Applied, error) {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err := r.provider.UpTo(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("goose up-to %d: %w", target, err)
		}
		return toApplied(results...), nil
	default:
		results, err := r.provider.DownTo(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return toApplied(results...), nil
	}
}

func toApplied(results ...*goose.MigrationResult) []Applied {
	out := make([]Applied, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		out = append(out, Applied{Version: res.Source.Version, Path: res.Source.Path, Direction: res.Direction})
	}
	return out
}
