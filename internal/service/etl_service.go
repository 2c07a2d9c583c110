package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"hkcovid/internal/etl"
)

// ─────────────────────────────────────────────────────────────
// ETLService — runs the dataset jobs of one ETL run in sequence
// ─────────────────────────────────────────────────────────────

// RunLogStore records the outcome of every job run.
type RunLogStore interface {
	CreateRunLog(log *etl.SyncRunLog) error
}

// ETLService runs jobs through the engine and records their history.
type ETLService struct {
	engine  *etl.Engine
	runLogs RunLogStore
	logger  *zap.Logger
}

// NewETLService creates the service. runLogs and logger may be nil.
func NewETLService(engine *etl.Engine, runLogs RunLogStore, logger *zap.Logger) *ETLService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ETLService{engine: engine, runLogs: runLogs, logger: logger}
}

// RunSummary is the outcome of one run over all jobs.
type RunSummary struct {
	RunID string
	// Version is the first snapshot version reported by a job.
	Version string
	Elapsed time.Duration
	Results []*etl.SyncResult
}

// Written returns the number of documents stored across all jobs.
func (s *RunSummary) Written() int {
	n := 0
	for _, r := range s.Results {
		n += r.RowsWritten
	}
	return n
}

// Run executes jobs in order. The first failing job aborts the run; the
// summary returned alongside the error holds the results gathered so far.
func (s *ETLService) Run(ctx context.Context, jobs []*etl.Job) (*RunSummary, error) {
	if s.engine == nil {
		return nil, errors.New("etl service has no engine")
	}

	start := time.Now()
	summary := &RunSummary{RunID: uuid.New().String()}
	logger := s.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("run started", zap.Int("jobs", len(jobs)))

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(start)
			return summary, errors.Wrap(err, "run cancelled")
		}

		result, err := s.runJob(ctx, summary.RunID, job)
		summary.Results = append(summary.Results, result)
		if summary.Version == "" {
			summary.Version = result.Version
		}
		if err != nil {
			summary.Elapsed = time.Since(start)
			logger.Error("run aborted", zap.String("job", job.Name), zap.Error(err))
			return summary, err
		}
	}

	summary.Elapsed = time.Since(start)
	logger.Info("run complete",
		zap.String("version", summary.Version),
		zap.Int("written", summary.Written()),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

func (s *ETLService) runJob(ctx context.Context, runID string, job *etl.Job) (*etl.SyncResult, error) {
	start := time.Now()
	result, runErr := s.engine.RunSync(ctx, job)

	runLog := &etl.SyncRunLog{
		RunID:       runID,
		Job:         job.Name,
		Version:     result.Version,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Status:      result.Status,
		RowsRead:    result.RowsRead,
		RowsWritten: result.RowsWritten,
		Rejected:    result.Rejected,
		Error:       result.Error,
	}
	s.recordRunLog(runLog)

	return result, runErr
}

// recordRunLog logs failures instead of returning them.
func (s *ETLService) recordRunLog(log *etl.SyncRunLog) {
	if s.runLogs == nil {
		return
	}
	if err := s.runLogs.CreateRunLog(log); err != nil {
		s.logger.Warn("record run log", zap.String("job", log.Job), zap.Error(err))
	}
}
