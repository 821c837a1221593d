package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jandubois/zkcheck/internal/probe"
)

// Entry is one recorded verdict.
type Entry struct {
	RunID      string
	Check      string
	Target     string
	Result     *probe.Result
	Duration   time.Duration
	ExecutedAt time.Time
}

// NewRunID returns a fresh identifier grouping the entries of one invocation.
func NewRunID() string {
	return uuid.NewString()
}

// Record appends e to the journal.
func (d *DB) Record(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		e.RunID = NewRunID()
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now()
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO check_results (run_id, check_name, target, status, message, metrics, duration_ms, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.Check, e.Target, string(e.Result.Status), e.Result.Message,
		JSONMap(e.Result.Metrics), e.Duration.Milliseconds(), e.ExecutedAt.UTC().Format(SQLiteTimeFormat))
	if err != nil {
		return fmt.Errorf("record %s result: %w", e.Check, err)
	}
	return nil
}
