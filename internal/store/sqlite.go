package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/oncomatch/trial-screener/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS trials (
	nct_id      TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	url         TEXT,
	status      TEXT NOT NULL DEFAULT 'unknown',
	conditions  TEXT NOT NULL DEFAULT '[]',
	sex         TEXT NOT NULL DEFAULT 'all',
	min_age     INTEGER NOT NULL DEFAULT 0,
	max_age     INTEGER NOT NULL DEFAULT 0,
	phases      TEXT NOT NULL DEFAULT '[]',
	study_type  TEXT,
	locations   TEXT NOT NULL DEFAULT '[]',
	eligibility TEXT,
	imported_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS match_runs (
	id             TEXT PRIMARY KEY,
	query          TEXT NOT NULL,
	results        TEXT NOT NULL,
	trials_scanned INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_trials_status ON trials(status);
CREATE INDEX IF NOT EXISTS idx_match_runs_created_at ON match_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsertTrial = `
INSERT INTO trials (nct_id, title, url, status, conditions, sex, min_age, max_age, phases, study_type, locations, eligibility)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(nct_id) DO UPDATE SET
	title = excluded.title, url = excluded.url, status = excluded.status,
	conditions = excluded.conditions, sex = excluded.sex,
	min_age = excluded.min_age, max_age = excluded.max_age,
	phases = excluded.phases, study_type = excluded.study_type,
	locations = excluded.locations, eligibility = excluded.eligibility`

// UpsertTrials writes the rows inside one transaction, overwriting
// existing rows keyed by NCT ID.
func (s *SQLiteStore) UpsertTrials(ctx context.Context, rows []model.Trial) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsertTrial)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	for i := range rows {
		t := &rows[i]
		conditions, phases, locations, err := marshalTrialLists(t)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx,
			t.NCTID, t.Title, t.URL, string(t.Status), conditions, string(t.Sex),
			t.MinAge, t.MaxAge, phases, t.StudyType, locations, t.EligibilityText,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert trial %s", t.NCTID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return len(rows), nil
}

const sqliteTrialColumns = `nct_id, title, url, status, conditions, sex, min_age, max_age, phases, study_type, locations, eligibility`

func (s *SQLiteStore) GetTrial(ctx context.Context, nctID string) (*model.Trial, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteTrialColumns+` FROM trials WHERE nct_id = ?`, nctID)
	t, err := scanTrial(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("trial not found: %s", nctID)
	}
	return t, err
}

func (s *SQLiteStore) ListTrials(ctx context.Context, filter TrialFilter) ([]model.Trial, error) {
	query := `SELECT ` + sqliteTrialColumns + ` FROM trials WHERE 1=1`
	var args []any

	if filter.Condition != "" {
		query += ` AND lower(conditions) LIKE ?`
		args = append(args, "%"+lowerLike(filter.Condition)+"%")
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY nct_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list trials")
	}
	defer rows.Close()

	var out []model.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list trials iterate")
}

// AllTrials loads the full table for matching, in NCT ID order.
func (s *SQLiteStore) AllTrials(ctx context.Context) ([]model.Trial, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteTrialColumns+` FROM trials ORDER BY nct_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: all trials")
	}
	defer rows.Close()

	var out []model.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: all trials iterate")
}

func (s *SQLiteStore) CountTrials(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trials`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count trials")
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.MatchRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	queryJSON, err := json.Marshal(run.Query)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run query")
	}
	resultsJSON, err := json.Marshal(run.Results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run results")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO match_runs (id, query, results, trials_scanned, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(queryJSON), string(resultsJSON), run.TrialsScanned, run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert match run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.MatchRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, query, results, trials_scanned, created_at FROM match_runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.MatchRun, error) {
	query := `SELECT id, query, results, trials_scanned, created_at FROM match_runs ORDER BY created_at DESC`
	var args []any

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.MatchRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanTrial(row scannable) (*model.Trial, error) {
	var t model.Trial
	var conditions, phases, locations string
	var url, studyType, eligibility sql.NullString

	err := row.Scan(&t.NCTID, &t.Title, &url, &t.Status, &conditions, &t.Sex,
		&t.MinAge, &t.MaxAge, &phases, &studyType, &locations, &eligibility)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan trial")
	}

	t.URL = url.String
	t.StudyType = studyType.String
	t.EligibilityText = eligibility.String
	if err := unmarshalTrialLists(&t, conditions, phases, locations); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanRun(row scannable) (*model.MatchRun, error) {
	var r model.MatchRun
	var queryJSON, resultsJSON string

	err := row.Scan(&r.ID, &queryJSON, &resultsJSON, &r.TrialsScanned, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(queryJSON), &r.Query); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run query")
	}
	if err := json.Unmarshal([]byte(resultsJSON), &r.Results); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run results")
	}
	return &r, nil
}

func marshalTrialLists(t *model.Trial) (conditions, phases, locations string, err error) {
	c, err := json.Marshal(t.Conditions)
	if err != nil {
		return "", "", "", eris.Wrapf(err, "store: marshal conditions %s", t.NCTID)
	}
	p, err := json.Marshal(t.Phases)
	if err != nil {
		return "", "", "", eris.Wrapf(err, "store: marshal phases %s", t.NCTID)
	}
	l, err := json.Marshal(t.Locations)
	if err != nil {
		return "", "", "", eris.Wrapf(err, "store: marshal locations %s", t.NCTID)
	}
	return string(c), string(p), string(l), nil
}

func unmarshalTrialLists(t *model.Trial, conditions, phases, locations string) error {
	if err := json.Unmarshal([]byte(conditions), &t.Conditions); err != nil {
		return eris.Wrapf(err, "store: unmarshal conditions %s", t.NCTID)
	}
	if err := json.Unmarshal([]byte(phases), &t.Phases); err != nil {
		return eris.Wrapf(err, "store: unmarshal phases %s", t.NCTID)
	}
	if err := json.Unmarshal([]byte(locations), &t.Locations); err != nil {
		return eris.Wrapf(err, "store: unmarshal locations %s", t.NCTID)
	}
	return nil
}
