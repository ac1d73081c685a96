// Package events publishes domain events to an append-only log. Analytics
// and dashboard aggregation consume the log out of process; the attempt
// lifecycle never computes stats itself.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const TypeAttemptCompleted = "AttemptCompleted"

// AttemptCompleted is emitted every time a test attempt is finalized,
// including re-finalizations that overwrite totals.
type AttemptCompleted struct {
	AttemptID  string  `json:"attempt_id"`
	TestID     string  `json:"test_id"`
	StudentID  string  `json:"student_id"`
	TotalScore int     `json:"total_score"`
	TotalMarks int     `json:"total_marks"`
	Percentage float64 `json:"percentage"`
}

type Publisher interface {
	PublishAttemptCompleted(ctx context.Context, evt AttemptCompleted) error
}

// Repo appends events to the event_log table.
type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) PublishAttemptCompleted(ctx context.Context, evt AttemptCompleted) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4)`,
		TypeAttemptCompleted, evt.AttemptID, string(data), time.Now().Unix())
	return err
}

// Nop drops events; used in tests and when no consumer is configured.
type Nop struct{}

func (Nop) PublishAttemptCompleted(context.Context, AttemptCompleted) error { return nil }
