package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/halluprobe/internal/dataset"
)

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// #region log-decision
// LogDecision writes one entry to the decision_log table.
func (s *Store) LogDecision(entry DecisionEntry) error {
	return logDecision(s.db, entry)
}

// LogRejections records every data error from a scoring pass as a rejected decision.
func (s *Store) LogRejections(runID string, issues []*dataset.RecordError) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, is := range issues {
		if err := logDecision(tx, DecisionEntry{
			RunID:      runID,
			QuestionID: is.QuestionID,
			Condition:  is.Condition,
			Decision:   DecisionRejected,
			Reason:     is.Err.Error(),
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

func logDecision(db execer, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (run_id, question_id, condition, decision, label, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		nullIfEmpty(entry.QuestionID),
		nullIfEmpty(entry.Condition),
		string(entry.Decision),
		nullIfEmpty(entry.Label),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list-decisions
// ListDecisions returns a run's decision log, oldest first.
func (s *Store) ListDecisions(runID string) ([]DecisionEntry, error) {
	rows, err := s.db.Query(
		`SELECT question_id, condition, decision, label, reason, created_at
		 FROM decision_log WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var (
			qid, cond, label, reason sql.NullString
			decision, created        string
		)
		if err := rows.Scan(&qid, &cond, &decision, &label, &reason, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e := DecisionEntry{
			RunID:      runID,
			QuestionID: qid.String,
			Condition:  cond.String,
			Decision:   Decision(decision),
			Label:      label.String,
			Reason:     reason.String,
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
