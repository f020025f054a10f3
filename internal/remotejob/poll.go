package remotejob

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voicebatch/internal/logging"
	"voicebatch/internal/services"
	"voicebatch/internal/services/minimax"
)

const (
	// DefaultPollInterval is the delay between two status queries.
	DefaultPollInterval = 5 * time.Second
	// DefaultPollAttempts bounds the number of status queries per job.
	DefaultPollAttempts = 100
)

// StatusAPI is the part of the API client needed to watch a job.
type StatusAPI interface {
	QueryJob(ctx context.Context, taskID minimax.ID) (minimax.QueryResponse, error)
}

// ArtifactRef identifies the downloadable result of a finished job.
type ArtifactRef struct {
	FileID minimax.ID
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithSleeper replaces the wall-clock sleep between attempts.
func WithSleeper(sleep Sleeper) PollerOption {
	return func(p *Poller) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithInterval sets the delay between attempts.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) PollerOption {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// Poller waits for jobs to reach a terminal status.
type Poller struct {
	api         StatusAPI
	interval    time.Duration
	maxAttempts int
	sleep       Sleeper
	logger      *slog.Logger
}

// NewPoller constructs a poller with the default interval and budget.
func NewPoller(api StatusAPI, logger *slog.Logger, opts ...PollerOption) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Poller{
		api:         api,
		interval:    DefaultPollInterval,
		maxAttempts: DefaultPollAttempts,
		sleep:       sleepContext,
		logger:      logging.NewComponentLogger(logger, "poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll queries the job status until it succeeds, fails, expires, or the
// attempt budget runs out. Query errors consume an attempt and do not end the
// poll.
func (p *Poller) Poll(ctx context.Context, handle JobHandle) (ArtifactRef, error) {
	logger := logging.WithContext(ctx, p.logger).With(logging.JobID(handle.TaskID.String()))
	if p.api == nil {
		return ArtifactRef{}, services.Wrap(services.ErrPollTimeout, stagePolling, "validate", "api client unavailable", nil)
	}
	if handle.TaskID.IsZero() {
		return ArtifactRef{}, services.Wrap(services.ErrPollTimeout, stagePolling, "validate", "missing task id", nil)
	}

	lastStatus := ""
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return ArtifactRef{}, fmt.Errorf("poll job %s: %w", handle.TaskID, err)
		}

		resp, err := p.api.QueryJob(ctx, handle.TaskID)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ArtifactRef{}, fmt.Errorf("poll job %s: %w", handle.TaskID, ctxErr)
			}
			logger.Warn("status query failed",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", p.maxAttempts),
				logging.Error(err),
			)
		default:
			status := strings.TrimSpace(resp.Status)
			if !strings.EqualFold(status, lastStatus) {
				logger.Info("job status changed",
					logging.String("status", status),
					logging.String("previous", lastStatus),
					logging.Int("attempt", attempt),
				)
				lastStatus = status
			}
			switch {
			case strings.EqualFold(status, minimax.StatusSuccess):
				if resp.FileID.IsZero() {
					return ArtifactRef{}, services.Wrap(services.ErrPollTimeout, stagePolling, "query status", "job succeeded without a file id", nil)
				}
				return ArtifactRef{FileID: resp.FileID}, nil
			case strings.EqualFold(status, minimax.StatusFailed):
				return ArtifactRef{}, services.Wrap(services.ErrJobFailed, stagePolling, "query status", fmt.Sprintf("job %s failed", handle.TaskID), nil)
			case strings.EqualFold(status, minimax.StatusExpired):
				return ArtifactRef{}, services.Wrap(services.ErrJobExpired, stagePolling, "query status", fmt.Sprintf("job %s expired", handle.TaskID), nil)
			}
		}

		if attempt < p.maxAttempts {
			if err := p.sleep(ctx, p.interval); err != nil {
				return ArtifactRef{}, fmt.Errorf("poll job %s: %w", handle.TaskID, err)
			}
		}
	}

	return ArtifactRef{}, services.Wrap(
		services.ErrPollTimeout,
		stagePolling,
		"query status",
		fmt.Sprintf("no terminal status after %d attempts (last %q)", p.maxAttempts, lastStatus),
		nil,
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
