// Package store persists the imported trial registry and match-run
// history behind a driver-agnostic interface. SQLite is the default for
// single-user CLI work; Postgres backs the shared API deployment.
package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/oncomatch/trial-screener/internal/config"
	"github.com/oncomatch/trial-screener/internal/model"
)

// TrialFilter specifies criteria for listing trials.
type TrialFilter struct {
	Condition string                  `json:"condition,omitempty"` // substring, case-insensitive
	Status    model.RecruitmentStatus `json:"status,omitempty"`
	Limit     int                     `json:"limit,omitempty"`
	Offset    int                     `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing match runs.
type RunFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// Store defines the persistence interface for the screener.
type Store interface {
	// Trials
	UpsertTrials(ctx context.Context, rows []model.Trial) (int, error)
	GetTrial(ctx context.Context, nctID string) (*model.Trial, error)
	ListTrials(ctx context.Context, filter TrialFilter) ([]model.Trial, error)
	AllTrials(ctx context.Context) ([]model.Trial, error)
	CountTrials(ctx context.Context) (int, error)

	// Match runs
	SaveRun(ctx context.Context, run *model.MatchRun) error
	GetRun(ctx context.Context, runID string) (*model.MatchRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.MatchRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the store named by the config driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func lowerLike(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
