package filetask

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicebatch/internal/archive"
	"voicebatch/internal/config"
	"voicebatch/internal/logging"
	"voicebatch/internal/remotejob"
	"voicebatch/internal/services"
	"voicebatch/internal/staging"
	"voicebatch/internal/subtitles"
	"voicebatch/internal/successlog"
	"voicebatch/internal/textinput"
	"voicebatch/internal/textutil"
)

const workspaceScopeLen = 8

// State is a step of the per-file lifecycle.
type State string

const (
	StatePending      State = "pending"
	StateSubmitting   State = "submitting"
	StatePolling      State = "polling"
	StateDownloading  State = "downloading"
	StateExtracting   State = "extracting"
	StateSynthesizing State = "synthesizing"
	StatePlacing      State = "placing"
	StateDone         State = "done"
	StateSkipped      State = "skipped"
)

// Request is the immutable input for one file.
type Request struct {
	Source     string
	Text       string
	TextFileID string
	Voice      config.Voice
}

// Outcome reports how a task ended.
type Outcome struct {
	TaskNum      int
	Source       string
	BaseName     string
	State        State
	Stage        State
	Reason       string
	OutputDir    string
	SubtitlePath string
	JobID        string
	FileID       string
	Downloaded   bool
	Started      time.Time
	Finished     time.Time
	Err          error
}

// Duration returns the wall time the task took.
func (o Outcome) Duration() time.Duration {
	if o.Finished.IsZero() {
		return 0
	}
	return o.Finished.Sub(o.Started)
}

// Submitter creates remote jobs.
type Submitter interface {
	Submit(ctx context.Context, job remotejob.Job) (remotejob.JobHandle, error)
}

// Poller waits for remote jobs to finish.
type Poller interface {
	Poll(ctx context.Context, handle remotejob.JobHandle) (remotejob.ArtifactRef, error)
}

// Retriever downloads finished artifacts.
type Retriever interface {
	Retrieve(ctx context.Context, ref remotejob.ArtifactRef, dest, baseName string) (remotejob.Artifact, error)
}

// RecordLog receives one record per downloaded artifact.
type RecordLog interface {
	Append(rec successlog.Record) error
}

// Deps are the collaborators shared by every task in a batch.
type Deps struct {
	Submitter Submitter
	Poller    Poller
	Retriever Retriever
	Records   RecordLog
	Logger    *slog.Logger
	Now       func() time.Time
}

// Task is one file's run through the pipeline.
type Task struct {
	num           int
	req           Request
	baseName      string
	outputRoot    string
	workspaceRoot string
	deps          Deps
	workspace     string
}

// New builds a task. num is the 1-based task number within the batch.
func New(num int, req Request, outputRoot, workspaceRoot string, deps Deps) *Task {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Task{
		num:           num,
		req:           req,
		baseName:      textinput.BaseName(req.Source),
		outputRoot:    outputRoot,
		workspaceRoot: workspaceRoot,
		deps:          deps,
	}
}

// Run executes every stage and reports the outcome.
func (t *Task) Run(ctx context.Context) (out Outcome) {
	ctx = services.WithTaskNum(ctx, t.num)
	logger := logging.WithContext(ctx, t.deps.Logger).With(logging.File(t.req.Source))

	out = Outcome{
		TaskNum:  t.num,
		Source:   t.req.Source,
		BaseName: t.baseName,
		State:    StatePending,
		Stage:    StatePending,
		Started:  t.deps.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			t.skip(&out, fmt.Errorf("task panic: %v", r), logger)
		}
		out.Finished = t.deps.Now()
	}()

	if err := t.execute(ctx, &out, logger); err != nil {
		t.skip(&out, err, logger)
		return out
	}

	out.State = StateDone
	logger.Info("file completed",
		logging.OutputDir(out.OutputDir),
		logging.Bool("subtitle", out.SubtitlePath != ""),
		logging.Duration("elapsed", t.deps.Now().Sub(out.Started)),
		logging.String(logging.FieldEventType, "task_done"),
	)
	return out
}

func (t *Task) execute(ctx context.Context, out *Outcome, logger *slog.Logger) error {
	stageCtx := t.enter(ctx, out, StateSubmitting)
	job, err := t.buildJob()
	if err != nil {
		return err
	}
	handle, err := t.deps.Submitter.Submit(stageCtx, job)
	if err != nil {
		return err
	}
	out.JobID = handle.TaskID.String()

	stageCtx = t.enter(ctx, out, StatePolling)
	ref, err := t.deps.Poller.Poll(stageCtx, handle)
	if err != nil {
		return err
	}
	out.FileID = ref.FileID.String()

	stageCtx = t.enter(ctx, out, StateDownloading)
	workspace, err := staging.Prepare(t.workspaceRoot, workspaceScope(ctx), t.baseName, t.num)
	if err != nil {
		return services.Wrap(services.ErrRetrieval, string(StateDownloading), "prepare workspace", t.workspaceRoot, err)
	}
	t.workspace = workspace
	artifact, err := t.deps.Retriever.Retrieve(stageCtx, ref, workspace, t.baseName)
	if err != nil {
		return err
	}
	out.Downloaded = true
	t.recordSuccess(handle, ref, artifact, logger)

	stageCtx = t.enter(ctx, out, StateExtracting)
	extracted, err := archive.ExtractAndRename(artifact.Path, workspace, t.baseName, logging.WithContext(stageCtx, t.deps.Logger))
	if err != nil {
		return err
	}

	stageCtx = t.enter(ctx, out, StateSynthesizing)
	subtitlePath := t.synthesize(extracted.ContentDir, logging.WithContext(stageCtx, t.deps.Logger))

	stageCtx = t.enter(ctx, out, StatePlacing)
	if err := stageCtx.Err(); err != nil {
		return err
	}
	finalDir, err := Place(extracted.ContentDir, t.outputRoot, t.baseName)
	if err != nil {
		return services.Wrap(services.ErrPlacement, string(StatePlacing), "move content", t.outputRoot, err)
	}
	out.OutputDir = finalDir
	if subtitlePath != "" {
		if rel, err := filepath.Rel(extracted.ContentDir, subtitlePath); err == nil {
			out.SubtitlePath = filepath.Join(finalDir, rel)
		}
	}
	if finalDir != filepath.Join(t.outputRoot, t.baseName) {
		logging.WarnWithContext(logging.WithContext(stageCtx, t.deps.Logger), "output name taken, placed under suffixed name", "output_suffixed",
			logging.OutputDir(finalDir),
			logging.String(logging.FieldImpact, "earlier output with the same name was left untouched"),
		)
	}
	t.cleanup(logger)
	return nil
}

// workspaceScope names the batch in workspace directories. Tasks run outside
// a batch get a scope of their own.
func workspaceScope(ctx context.Context) string {
	id, ok := services.BatchIDFromContext(ctx)
	if !ok || strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	id = strings.ReplaceAll(textutil.SanitizeToken(id), "-", "")
	if len(id) > workspaceScopeLen {
		id = id[:workspaceScopeLen]
	}
	return id
}

func (t *Task) enter(ctx context.Context, out *Outcome, state State) context.Context {
	out.State = state
	out.Stage = state
	stageCtx := services.WithStage(ctx, string(state))
	logging.WithContext(stageCtx, t.deps.Logger).Debug("stage started", logging.File(t.req.Source))
	return stageCtx
}

func (t *Task) buildJob() (remotejob.Job, error) {
	job := remotejob.Job{
		Name:       t.req.Source,
		Text:       t.req.Text,
		TextFileID: strings.TrimSpace(t.req.TextFileID),
		Voice:      t.req.Voice,
	}
	if job.TextFileID != "" || strings.TrimSpace(job.Text) != "" {
		return job, nil
	}
	text, err := textinput.Read(t.req.Source)
	if err != nil {
		return remotejob.Job{}, services.Wrap(services.ErrValidation, string(StateSubmitting), "read input", t.req.Source, err)
	}
	job.Text = text
	return job, nil
}

func (t *Task) recordSuccess(handle remotejob.JobHandle, ref remotejob.ArtifactRef, artifact remotejob.Artifact, logger *slog.Logger) {
	if t.deps.Records == nil {
		return
	}
	voice := t.req.Voice
	rec := successlog.Record{
		File:        t.req.Source,
		BaseName:    t.baseName,
		TaskNum:     t.num,
		JobID:       handle.TaskID.String(),
		FileID:      ref.FileID.String(),
		VoiceID:     voice.VoiceID,
		Speed:       voice.Speed,
		Vol:         voice.Vol,
		Pitch:       voice.Pitch,
		Emotion:     voice.Emotion,
		Model:       voice.Model,
		DownloadURL: artifact.DownloadURL,
		Timestamp:   t.deps.Now(),
	}
	if err := t.deps.Records.Append(rec); err != nil {
		logging.WarnWithContext(logger, "failed to append success record", "success_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the success log path and permissions"),
			logging.String(logging.FieldImpact, "download is not listed in the success log"),
		)
	}
}

// synthesize writes {baseName}.srt into contentDir and returns its path, or ""
// when no subtitle could be produced.
func (t *Task) synthesize(contentDir string, logger *slog.Logger) string {
	metaPath, err := subtitles.FindMetadata(contentDir)
	if err != nil {
		logging.WarnWithContext(logger, "subtitle metadata scan failed", "subtitle_failed", logging.Error(err))
		return ""
	}
	if metaPath == "" {
		logging.WarnWithContext(logger, "no subtitle metadata found", "subtitle_missing",
			logging.String("content_dir", contentDir),
			logging.String(logging.FieldImpact, "output has no subtitle file"),
		)
		return ""
	}

	records, err := subtitles.LoadRecords(metaPath, logger)
	if err != nil {
		if errors.Is(err, subtitles.ErrEmptyInput) {
			logging.WarnWithContext(logger, "subtitle metadata has no usable records", "subtitle_empty",
				logging.String("metadata", metaPath),
				logging.String(logging.FieldImpact, "output has no subtitle file"),
			)
			return ""
		}
		logging.WarnWithContext(logger, "subtitle metadata unreadable", "subtitle_failed",
			logging.String("metadata", metaPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "output has no subtitle file"),
		)
		return ""
	}

	srtPath := filepath.Join(contentDir, t.baseName+".srt")
	if err := subtitles.WriteSRT(records, srtPath); err != nil {
		logging.WarnWithContext(logger, "failed to write subtitle", "subtitle_failed",
			logging.Path(srtPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "output has no subtitle file"),
		)
		return ""
	}
	cues, err := subtitles.CountCues(srtPath)
	if err != nil {
		logging.WarnWithContext(logger, "subtitle verification failed", "subtitle_failed",
			logging.Path(srtPath),
			logging.Error(err),
		)
		cues = len(records)
	} else if cues != len(records) {
		logging.WarnWithContext(logger, "subtitle cue count differs from metadata", "subtitle_mismatch",
			logging.Path(srtPath),
			logging.Int("records", len(records)),
			logging.Int("cues", cues),
			logging.String(logging.FieldErrorHint, "check for blank lines inside subtitle text"),
		)
	}
	logger.Info("subtitle written",
		logging.Path(srtPath),
		logging.Int("cues", cues),
		logging.String(logging.FieldEventType, "subtitle_written"),
	)
	return srtPath
}

func (t *Task) skip(out *Outcome, err error, logger *slog.Logger) {
	out.State = StateSkipped
	out.Err = err
	out.Reason = services.SkipReason(err)
	logger.Warn("file skipped",
		logging.String("reason", out.Reason),
		logging.String(logging.FieldStage, string(out.Stage)),
		logging.Error(err),
		logging.String(logging.FieldEventType, "task_skipped"),
		logging.String(logging.FieldImpact, "no output produced for this file"),
	)
	t.cleanup(logger)
}

func (t *Task) cleanup(logger *slog.Logger) {
	if t.workspace == "" {
		return
	}
	if err := staging.Remove(t.workspace); err != nil {
		logging.WarnWithContext(logger, "failed to remove workspace", "workspace_cleanup_failed",
			logging.String("workspace", t.workspace),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale workspace is reclaimed by the next batch"),
		)
		return
	}
	t.workspace = ""
}
