package runlog

import (
	"fmt"
	"time"
)

// Entry is one journaled execution.
type Entry struct {
	ID         int64     `json:"id"`
	BlockID    string    `json:"blockId"`
	BlockType  string    `json:"blockType"`
	Outcome    string    `json:"outcome"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	Cause      string    `json:"cause,omitempty"`
	DurationMS int64     `json:"durationMs"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Stats aggregates the journal by outcome.
type Stats struct {
	Total     int            `json:"total"`
	ByOutcome map[string]int `json:"byOutcome"`
}

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// Record appends an entry.
func (db *DB) Record(e Entry) error {
	_, err := db.conn.Exec(`
		INSERT INTO runs (block_id, block_type, outcome, error_code, cause, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.BlockID, e.BlockType, e.Outcome, e.ErrorCode, e.Cause, e.DurationMS, e.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("runlog: record: %w", err)
	}
	return nil
}

// List returns the most recent entries for a block, newest first. An empty
// blockID lists every block.
func (db *DB) List(blockID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := `SELECT id, block_id, block_type, outcome, error_code, cause, duration_ms, finished_at FROM runs`
	args := []any{}
	if blockID != "" {
		q += ` WHERE block_id = ?`
		args = append(args, blockID)
	}
	q += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("runlog: list: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BlockID, &e.BlockType, &e.Outcome, &e.ErrorCode, &e.Cause, &e.DurationMS, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats counts journaled executions per outcome.
func (db *DB) Stats() (Stats, error) {
	rows, err := db.conn.Query(`SELECT outcome, count(*) FROM runs GROUP BY outcome`)
	if err != nil {
		return Stats{}, fmt.Errorf("runlog: stats: %w", err)
	}
	defer rows.Close()

	s := Stats{ByOutcome: map[string]int{}}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return Stats{}, err
		}
		s.ByOutcome[outcome] = n
		s.Total += n
	}
	return s, rows.Err()
}
