package store

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// #region run-status

// RunStatus tracks where a run is in its lifecycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	// RunImported marks runs first seen when scoring a generations file.
	RunImported RunStatus = "imported"
)

// #endregion run-status

// #region run-record

// RunRecord is one row of the runs table plus row counts.
type RunRecord struct {
	RunID         string
	Provider      string
	Model         string
	Conditions    []string
	QuestionsPath string
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    *time.Time

	Generations int
	Scored      int
}

// #endregion run-record

// #region decision-entry

// Decision names what happened to one record during scoring.
type Decision string

const (
	DecisionLabeled  Decision = "labeled"
	DecisionRejected Decision = "rejected"
)

// DecisionEntry is one row of the decision_log table.
type DecisionEntry struct {
	RunID      string
	QuestionID string
	Condition  string
	Decision   Decision
	Label      string
	Reason     string
	CreatedAt  time.Time
}

// #endregion decision-entry
