package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
	"github.com/danielpatrickdp/halluprobe/internal/records"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	provider       TEXT,
	model          TEXT,
	conditions     TEXT,
	questions_path TEXT,
	status         TEXT NOT NULL,
	started_at     TEXT NOT NULL,
	finished_at    TEXT
);

CREATE TABLE IF NOT EXISTS generations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	question_id   TEXT NOT NULL,
	category      TEXT,
	condition     TEXT NOT NULL,
	question      TEXT,
	gold_answer   TEXT,
	raw_output    TEXT NOT NULL,
	provider      TEXT,
	model         TEXT,
	latency_ms    INTEGER,
	created_at    TEXT NOT NULL,
	UNIQUE (run_id, question_id, condition),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS scored (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	question_id   TEXT NOT NULL,
	category      TEXT,
	condition     TEXT NOT NULL,
	label         TEXT NOT NULL,
	confidence    REAL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	UNIQUE (run_id, question_id, condition),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	question_id   TEXT,
	condition     TEXT,
	decision      TEXT NOT NULL,
	label         TEXT,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store is the SQLite run ledger.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas below are per connection
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region runs

// BeginRun records a new run as running.
func (s *Store) BeginRun(rec RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("begin run: empty run id")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = RunRunning
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, provider, model, conditions, questions_path, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		nullIfEmpty(rec.Provider),
		nullIfEmpty(rec.Model),
		nullIfEmpty(strings.Join(rec.Conditions, ",")),
		nullIfEmpty(rec.QuestionsPath),
		string(rec.Status),
		rec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// EnsureRun inserts an imported run if runID is not yet known.
func (s *Store) EnsureRun(runID, provider, model string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, provider, model, status, started_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO NOTHING`,
		runID, nullIfEmpty(provider), nullIfEmpty(model), string(RunImported), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ensure run: %w", err)
	}
	return nil
}

// FinishRun sets the final status and finish time of a run.
func (s *Store) FinishRun(runID string, status RunStatus) error {
	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `r.run_id, r.provider, r.model, r.conditions, r.questions_path, r.status, r.started_at, r.finished_at,
	(SELECT COUNT(*) FROM generations g WHERE g.run_id = r.run_id),
	(SELECT COUNT(*) FROM scored sc WHERE sc.run_id = r.run_id)`

// GetRun reads one run with its row counts.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	q := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.run_id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var (
		rec                                     RunRecord
		provider, model, conds, qpath, finished sql.NullString
		status, started                         string
	)
	if err := sc.Scan(&rec.RunID, &provider, &model, &conds, &qpath, &status, &started, &finished, &rec.Generations, &rec.Scored); err != nil {
		return RunRecord{}, err
	}
	rec.Provider = provider.String
	rec.Model = model.String
	if conds.String != "" {
		rec.Conditions = strings.Split(conds.String, ",")
	}
	rec.QuestionsPath = qpath.String
	rec.Status = RunStatus(status)
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err == nil {
			rec.FinishedAt = &t
		}
	}
	return rec, nil
}

// #endregion runs

// #region generations

// SaveGenerations stores gens under runID in one transaction. A generation
// already stored for the same (question, condition) is replaced.
func (s *Store) SaveGenerations(runID string, gens []records.Generation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO generations (run_id, question_id, category, condition, question, gold_answer, raw_output, provider, model, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, question_id, condition) DO UPDATE SET
			raw_output = excluded.raw_output,
			latency_ms = excluded.latency_ms,
			created_at = excluded.created_at`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert generation: %w", err)
	}
	defer stmt.Close()

	for _, g := range gens {
		created := g.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		var gold any
		if g.GoldAnswer != nil {
			gold = *g.GoldAnswer
		}
		if _, err := stmt.Exec(
			runID, g.QuestionID, nullIfEmpty(string(g.Category)), string(g.Condition),
			nullIfEmpty(g.Question), gold, g.RawOutput,
			nullIfEmpty(g.Provider), nullIfEmpty(g.Model), g.LatencyMS,
			created.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert generation %s/%s: %w", g.QuestionID, g.Condition, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadGenerations returns a run's generations in insertion order.
func (s *Store) LoadGenerations(runID string) ([]records.Generation, error) {
	rows, err := s.db.Query(
		`SELECT question_id, category, condition, question, gold_answer, raw_output, provider, model, latency_ms, created_at
		 FROM generations WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var out []records.Generation
	for rows.Next() {
		var (
			g                                    records.Generation
			cat, question, gold, provider, model sql.NullString
			cond, created                        string
			latency                              sql.NullInt64
		)
		if err := rows.Scan(&g.QuestionID, &cat, &cond, &question, &gold, &g.RawOutput, &provider, &model, &latency, &created); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		g.RunID = runID
		g.Category = dataset.Category(cat.String)
		g.Condition = prompt.Condition(cond)
		g.Question = question.String
		if gold.Valid {
			v := gold.String
			g.GoldAnswer = &v
		}
		g.Provider = provider.String
		g.Model = model.String
		g.LatencyMS = latency.Int64
		g.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, g)
	}
	return out, rows.Err()
}

// #endregion generations

// #region scored

// SaveScored stores scored records under runID and logs one decision per record.
// Re-scoring a run replaces earlier labels.
func (s *Store) SaveScored(runID string, scored []records.Scored) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, sc := range scored {
		var conf any
		if sc.Confidence != nil {
			conf = *sc.Confidence
		}
		if _, err := tx.Exec(
			`INSERT INTO scored (run_id, question_id, category, condition, label, confidence, reason, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, question_id, condition) DO UPDATE SET
				label = excluded.label,
				confidence = excluded.confidence,
				reason = excluded.reason,
				created_at = excluded.created_at`,
			runID, sc.QuestionID, nullIfEmpty(string(sc.Category)), string(sc.Condition),
			string(sc.Label), conf, nullIfEmpty(sc.Reason), now.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert scored %s/%s: %w", sc.QuestionID, sc.Condition, err)
		}
		if err := logDecision(tx, DecisionEntry{
			RunID:      runID,
			QuestionID: sc.QuestionID,
			Condition:  string(sc.Condition),
			Decision:   DecisionLabeled,
			Label:      string(sc.Label),
			Reason:     sc.Reason,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// LoadScored returns a run's scored records in insertion order.
func (s *Store) LoadScored(runID string) ([]records.Scored, error) {
	rows, err := s.db.Query(
		`SELECT question_id, category, condition, label, confidence, reason
		 FROM scored WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scored: %w", err)
	}
	defer rows.Close()

	var out []records.Scored
	for rows.Next() {
		var (
			sc          records.Scored
			cat, reason sql.NullString
			cond, label string
			conf        sql.NullFloat64
		)
		if err := rows.Scan(&sc.QuestionID, &cat, &cond, &label, &conf, &reason); err != nil {
			return nil, fmt.Errorf("scan scored: %w", err)
		}
		sc.RunID = runID
		sc.Category = dataset.Category(cat.String)
		sc.Condition = prompt.Condition(cond)
		sc.Label = records.Label(label)
		if conf.Valid {
			v := conf.Float64
			sc.Confidence = &v
		}
		sc.Reason = reason.String
		out = append(out, sc)
	}
	return out, rows.Err()
}

// #endregion scored
