package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"voicebatch/internal/config"
	"voicebatch/internal/filetask"
	"voicebatch/internal/history"
	"voicebatch/internal/logging"
	"voicebatch/internal/notifications"
	"voicebatch/internal/services"
	"voicebatch/internal/staging"
	"voicebatch/internal/successlog"
)

// LockFileName is created in the output root while a batch owns it.
const LockFileName = ".voicebatch.lock"

// ErrBusy reports that another batch holds the output root.
var ErrBusy = errors.New("output directory is in use by another batch")

// HistoryStore persists batches and their task outcomes.
type HistoryStore interface {
	StartBatch(ctx context.Context, b history.Batch) error
	FinishBatch(ctx context.Context, id string, done, skipped int, finished time.Time) error
	RecordTask(ctx context.Context, t history.Task) error
}

// Summary describes a finished batch.
type Summary struct {
	BatchID    string
	OutputRoot string
	Total      int
	Done       int
	Skipped    int
	Started    time.Time
	Duration   time.Duration
	// Outcomes are ordered by task number.
	Outcomes []filetask.Outcome
}

// Option customizes a Runner.
type Option func(*Runner)

// WithHistory records every batch in store.
func WithHistory(store HistoryStore) Option {
	return func(r *Runner) { r.history = store }
}

// WithNotifier replaces the notification service built from the config.
func WithNotifier(n notifications.Service) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithRecords replaces the success log otherwise opened per output root.
func WithRecords(records filetask.RecordLog) Option {
	return func(r *Runner) { r.records = records }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner executes batches. A Runner may run several batches, one per output
// root at a time.
type Runner struct {
	cfg      *config.Config
	pipeline Pipeline
	logger   *slog.Logger
	tasks    *slog.Logger
	history  HistoryStore
	notifier notifications.Service
	records  filetask.RecordLog
	now      func() time.Time
}

// New constructs a runner.
func New(cfg *config.Config, pipeline Pipeline, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:      cfg,
		pipeline: pipeline,
		logger:   logging.NewComponentLogger(logger, "batch"),
		tasks:    logging.NewComponentLogger(logger, "task"),
		notifier: notifications.NewService(cfg),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes requests into outputRoot with up to concurrency parallel
// tasks. The returned error is non-nil only when the batch could not start.
func (r *Runner) Run(ctx context.Context, requests []filetask.Request, outputRoot string, concurrency int) (Summary, error) {
	if err := Validate(requests, r.logger); err != nil {
		return Summary{}, err
	}
	outputRoot = strings.TrimSpace(outputRoot)
	if outputRoot == "" {
		return Summary{}, services.Wrap(services.ErrValidation, "validation", "check output", "output directory required", nil)
	}
	outputRoot = filepath.Clean(outputRoot)
	lock, records, err := r.setup(outputRoot)
	if err != nil {
		r.notifySetupFailure(ctx, outputRoot, err)
		return Summary{}, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release batch lock", logging.Error(err))
		}
	}()

	summary := Summary{
		BatchID:    uuid.NewString(),
		OutputRoot: outputRoot,
		Total:      len(requests),
		Started:    r.now(),
	}
	ctx = services.WithBatchID(ctx, summary.BatchID)
	logger := logging.WithContext(ctx, r.logger)

	workspaceRoot := r.cfg.WorkspaceRoot(outputRoot)
	staging.CleanStale(ctx, workspaceRoot, r.cfg.StaleWorkspaceAge(), logger)

	workers := clampWorkers(concurrency, len(requests))
	logger.Info("batch started",
		logging.Int("files", len(requests)),
		logging.OutputDir(outputRoot),
		logging.Int("concurrency", workers),
		logging.String(logging.FieldEventType, "batch_started"),
	)
	r.recordStart(ctx, summary, workers, logger)

	deps := filetask.Deps{
		Submitter: r.pipeline.Submitter,
		Poller:    r.pipeline.Poller,
		Retriever: r.pipeline.Retriever,
		Records:   records,
		Logger:    r.tasks,
		Now:       r.now,
	}
	summary.Outcomes = r.dispatch(ctx, requests, outputRoot, workspaceRoot, workers, deps)

	for _, out := range summary.Outcomes {
		if out.State == filetask.StateDone {
			summary.Done++
		} else {
			summary.Skipped++
		}
	}
	summary.Duration = r.now().Sub(summary.Started)

	logger.Info("batch completed",
		logging.Int("total", summary.Total),
		logging.Int("done", summary.Done),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("duration", summary.Duration),
		logging.OutputDir(outputRoot),
		logging.String(logging.FieldEventType, "batch_completed"),
	)

	// Bookkeeping must still happen after an interrupt.
	finishCtx := context.WithoutCancel(ctx)
	r.recordFinish(finishCtx, summary, logger)
	if err := r.notifier.NotifyBatchCompleted(finishCtx, summary.Done, summary.Skipped, summary.Duration); err != nil {
		logging.WarnWithContext(logger, "batch notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
	return summary, nil
}

func (r *Runner) dispatch(ctx context.Context, requests []filetask.Request, outputRoot, workspaceRoot string, workers int, deps filetask.Deps) []filetask.Outcome {
	outcomes := make([]filetask.Outcome, len(requests))
	jobs := make(chan int, len(requests))
	for i := range requests {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				task := filetask.New(i+1, requests[i], outputRoot, workspaceRoot, deps)
				outcomes[i] = task.Run(ctx)
			}
		}()
	}
	wg.Wait()
	return outcomes
}

func (r *Runner) recordStart(ctx context.Context, summary Summary, workers int, logger *slog.Logger) {
	if r.history == nil {
		return
	}
	err := r.history.StartBatch(ctx, history.Batch{
		ID:          summary.BatchID,
		OutputRoot:  summary.OutputRoot,
		Concurrency: workers,
		Total:       summary.Total,
		Started:     summary.Started,
	})
	if err != nil {
		r.historyWarning(logger, err)
	}
}

func (r *Runner) recordFinish(ctx context.Context, summary Summary, logger *slog.Logger) {
	if r.history == nil {
		return
	}
	for _, out := range summary.Outcomes {
		if err := r.history.RecordTask(ctx, taskRecord(summary.BatchID, out)); err != nil {
			r.historyWarning(logger, err)
			return
		}
	}
	finished := summary.Started.Add(summary.Duration)
	if err := r.history.FinishBatch(ctx, summary.BatchID, summary.Done, summary.Skipped, finished); err != nil {
		r.historyWarning(logger, err)
	}
}

func (r *Runner) historyWarning(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "failed to update batch history", "history_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check paths.history_db"),
		logging.String(logging.FieldImpact, "batch missing from 'voicebatch history'"),
	)
}

func taskRecord(batchID string, out filetask.Outcome) history.Task {
	rec := history.Task{
		BatchID:      batchID,
		TaskNum:      out.TaskNum,
		Source:       out.Source,
		BaseName:     out.BaseName,
		State:        string(out.State),
		Stage:        string(out.Stage),
		Reason:       out.Reason,
		OutputDir:    out.OutputDir,
		SubtitlePath: out.SubtitlePath,
		JobID:        out.JobID,
		FileID:       out.FileID,
		Started:      out.Started,
		Finished:     out.Finished,
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	return rec
}

// setup creates the output root, takes its batch lock, and opens the success
// log. The lock is held only when err is nil.
func (r *Runner) setup(outputRoot string) (*flock.Flock, filetask.RecordLog, error) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, nil, services.Wrap(services.ErrDirectoryCreation, "setup", "create output directory", outputRoot, err)
	}

	lock := flock.New(filepath.Join(outputRoot, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, nil, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrBusy, outputRoot)
	}

	if r.records != nil {
		return lock, r.records, nil
	}
	successLog, err := successlog.Open(r.cfg.SuccessLogPath(outputRoot))
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, services.Wrap(services.ErrDirectoryCreation, "setup", "open success log", outputRoot, err)
	}
	return lock, successLog, nil
}

func (r *Runner) notifySetupFailure(ctx context.Context, outputRoot string, err error) {
	r.logger.Error("batch could not start",
		logging.OutputDir(outputRoot),
		logging.Error(err),
		logging.String(logging.FieldEventType, "batch_setup_failed"),
	)
	if notifyErr := r.notifier.NotifyError(context.WithoutCancel(ctx), err, "batch "+outputRoot); notifyErr != nil {
		logging.WarnWithContext(r.logger, "error notification failed", "notification_failed",
			logging.Error(notifyErr),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

// clampWorkers bounds the pool to 1..config.MaxConcurrency and never starts
// more workers than there are files.
func clampWorkers(concurrency, files int) int {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > config.MaxConcurrency {
		concurrency = config.MaxConcurrency
	}
	if files > 0 && concurrency > files {
		concurrency = files
	}
	return concurrency
}
