package runlog

import (
	"log/slog"

	"github.com/starford/float/internal/executor"
	"github.com/starford/float/internal/models"
)

// Recorder journals finished executions reported by an executor.
type Recorder struct {
	db     *DB
	logger *slog.Logger
}

var _ executor.Observer = (*Recorder)(nil)

// NewRecorder returns an executor observer writing to db.
func NewRecorder(db *DB, logger *slog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// ExecutionChanged implements executor.Observer. Start notifications are
// ignored.
func (r *Recorder) ExecutionChanged(_ models.Block, run *executor.Run) {
	if run == nil {
		return
	}
	e := Entry{
		BlockID:    run.BlockID,
		BlockType:  string(run.Type),
		Outcome:    string(run.Outcome),
		ErrorCode:  run.ErrorCode,
		DurationMS: run.Duration.Milliseconds(),
		FinishedAt: run.FinishedAt,
	}
	if run.Cause != nil {
		e.Cause = run.Cause.Error()
	}
	if err := r.db.Record(e); err != nil {
		r.logger.Error("journal execution", slog.String("block_id", run.BlockID), slog.String("error", err.Error()))
	}
}
