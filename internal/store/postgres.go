package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/oncomatch/trial-screener/internal/db"
	"github.com/oncomatch/trial-screener/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_trial":    `SELECT nct_id, title, url, status, conditions, sex, min_age, max_age, phases, study_type, locations, eligibility FROM trials WHERE nct_id = $1`,
	"count_trials": `SELECT COUNT(*) FROM trials`,
	"insert_run":   `INSERT INTO match_runs (id, query, results, trials_scanned, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"get_run":      `SELECT id, query, results, trials_scanned, created_at FROM match_runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS trials (
	nct_id      TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	url         TEXT,
	status      TEXT NOT NULL DEFAULT 'unknown',
	conditions  JSONB NOT NULL DEFAULT '[]',
	sex         TEXT NOT NULL DEFAULT 'all',
	min_age     INTEGER NOT NULL DEFAULT 0,
	max_age     INTEGER NOT NULL DEFAULT 0,
	phases      JSONB NOT NULL DEFAULT '[]',
	study_type  TEXT,
	locations   JSONB NOT NULL DEFAULT '[]',
	eligibility TEXT,
	imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS match_runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	query          JSONB NOT NULL,
	results        JSONB NOT NULL,
	trials_scanned INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_trials_status ON trials(status);
CREATE INDEX IF NOT EXISTS idx_trials_conditions ON trials USING gin(conditions);
CREATE INDEX IF NOT EXISTS idx_match_runs_created_at ON match_runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var trialColumns = []string{
	"nct_id", "title", "url", "status", "conditions", "sex",
	"min_age", "max_age", "phases", "study_type", "locations", "eligibility",
}

// UpsertTrials bulk-loads rows through a temp table so refreshed registry
// snapshots overwrite in place.
func (s *PostgresStore) UpsertTrials(ctx context.Context, rows []model.Trial) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	values := make([][]any, 0, len(rows))
	for i := range rows {
		t := &rows[i]
		conditions, err := json.Marshal(t.Conditions)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal conditions %s", t.NCTID)
		}
		phases, err := json.Marshal(t.Phases)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal phases %s", t.NCTID)
		}
		locations, err := json.Marshal(t.Locations)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal locations %s", t.NCTID)
		}
		values = append(values, []any{
			t.NCTID, t.Title, t.URL, string(t.Status), conditions, string(t.Sex),
			t.MinAge, t.MaxAge, phases, t.StudyType, locations, t.EligibilityText,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "trials",
		Columns:      trialColumns,
		ConflictKeys: []string{"nct_id"},
	}, values)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

const pgTrialSelect = `SELECT nct_id, title, url, status, conditions, sex, min_age, max_age, phases, study_type, locations, eligibility FROM trials`

func (s *PostgresStore) GetTrial(ctx context.Context, nctID string) (*model.Trial, error) {
	row := s.pool.QueryRow(ctx, pgTrialSelect+` WHERE nct_id = $1`, nctID)
	t, err := scanPGTrial(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("trial not found: %s", nctID)
		}
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) ListTrials(ctx context.Context, filter TrialFilter) ([]model.Trial, error) {
	query := pgTrialSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Condition != "" {
		query += fmt.Sprintf(` AND lower(conditions::text) LIKE $%d`, argIdx)
		args = append(args, "%"+lowerLike(filter.Condition)+"%")
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY nct_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list trials")
	}
	defer rows.Close()

	return collectTrials(rows)
}

func (s *PostgresStore) AllTrials(ctx context.Context) ([]model.Trial, error) {
	rows, err := s.pool.Query(ctx, pgTrialSelect+` ORDER BY nct_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: all trials")
	}
	defer rows.Close()

	return collectTrials(rows)
}

func (s *PostgresStore) CountTrials(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trials`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count trials")
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.MatchRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	queryJSON, err := json.Marshal(run.Query)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run query")
	}
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run results")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO match_runs (id, query, results, trials_scanned, created_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, queryJSON, resultsJSON, run.TrialsScanned, run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert match run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.MatchRun, error) {
	var r model.MatchRun
	var queryJSON, resultsJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, query, results, trials_scanned, created_at FROM match_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &queryJSON, &resultsJSON, &r.TrialsScanned, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("run not found: %s", runID)
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if err := json.Unmarshal(queryJSON, &r.Query); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run query")
	}
	if err := json.Unmarshal(resultsJSON, &r.Results); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run results")
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.MatchRun, error) {
	query := `SELECT id, query, results, trials_scanned, created_at FROM match_runs ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.MatchRun
	for rows.Next() {
		var r model.MatchRun
		var queryJSON, resultsJSON []byte

		if err := rows.Scan(&r.ID, &queryJSON, &resultsJSON, &r.TrialsScanned, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if err := json.Unmarshal(queryJSON, &r.Query); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run query")
		}
		if err := json.Unmarshal(resultsJSON, &r.Results); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run results")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// helpers

func scanPGTrial(row pgx.Row) (*model.Trial, error) {
	var t model.Trial
	var conditions, phases, locations []byte
	var url, studyType, eligibility *string

	err := row.Scan(&t.NCTID, &t.Title, &url, &t.Status, &conditions, &t.Sex,
		&t.MinAge, &t.MaxAge, &phases, &studyType, &locations, &eligibility)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan trial")
	}

	if url != nil {
		t.URL = *url
	}
	if studyType != nil {
		t.StudyType = *studyType
	}
	if eligibility != nil {
		t.EligibilityText = *eligibility
	}
	if err := json.Unmarshal(conditions, &t.Conditions); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal conditions %s", t.NCTID)
	}
	if err := json.Unmarshal(phases, &t.Phases); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal phases %s", t.NCTID)
	}
	if err := json.Unmarshal(locations, &t.Locations); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal locations %s", t.NCTID)
	}
	return &t, nil
}

func collectTrials(rows pgx.Rows) ([]model.Trial, error) {
	var out []model.Trial
	for rows.Next() {
		t, err := scanPGTrial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: trials iterate")
}
