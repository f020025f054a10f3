package batch

import (
	"log/slog"

	"voicebatch/internal/config"
	"voicebatch/internal/filetask"
	"voicebatch/internal/logging"
	"voicebatch/internal/remotejob"
	"voicebatch/internal/services/minimax"
)

// Pipeline groups the remote stages every task shares.
type Pipeline struct {
	Submitter filetask.Submitter
	Poller    filetask.Poller
	Retriever filetask.Retriever
}

// NewPipeline wires the remote stages to client using cfg's audio and
// polling settings. Extra poller options are applied last.
func NewPipeline(cfg *config.Config, client *minimax.Client, logger *slog.Logger, opts ...remotejob.PollerOption) Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	pollOpts := []remotejob.PollerOption{
		remotejob.WithInterval(cfg.PollInterval()),
		remotejob.WithMaxAttempts(cfg.Batch.PollMaxAttempts),
	}
	pollOpts = append(pollOpts, opts...)
	return Pipeline{
		Submitter: remotejob.NewSubmitter(client, cfg.Audio, cfg.API.UploadThresholdChars, logging.NewComponentLogger(logger, "submitter")),
		Poller:    remotejob.NewPoller(client, logging.NewComponentLogger(logger, "poller"), pollOpts...),
		Retriever: remotejob.NewRetriever(client, logging.NewComponentLogger(logger, "retriever")),
	}
}
