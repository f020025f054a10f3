package remotejob

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"voicebatch/internal/config"
	"voicebatch/internal/logging"
	"voicebatch/internal/services"
	"voicebatch/internal/services/minimax"
	"voicebatch/internal/textutil"
)

const (
	stageSubmitting  = "submitting"
	stagePolling     = "polling"
	stageDownloading = "downloading"
)

// JobAPI is the part of the API client needed to create jobs.
type JobAPI interface {
	SubmitJob(ctx context.Context, payload minimax.SubmitRequest) (minimax.SubmitResponse, error)
	UploadText(ctx context.Context, filename, text string) (minimax.ID, error)
}

// Job is one unit of text to synthesize. Either Text or TextFileID must be set.
type Job struct {
	Name       string
	Text       string
	TextFileID string
	Voice      config.Voice
}

// JobHandle identifies a submitted job.
type JobHandle struct {
	TaskID minimax.ID
	FileID minimax.ID
}

// Submitter creates remote jobs.
type Submitter struct {
	api             JobAPI
	audio           config.Audio
	uploadThreshold int
	logger          *slog.Logger
}

// NewSubmitter constructs a submitter. Texts longer than uploadThreshold runes
// are uploaded as files first; zero disables uploading.
func NewSubmitter(api JobAPI, audio config.Audio, uploadThreshold int, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Submitter{
		api:             api,
		audio:           audio,
		uploadThreshold: uploadThreshold,
		logger:          logging.NewComponentLogger(logger, "submitter"),
	}
}

// Submit sends job to the service and returns its handle. Submission is not
// retried.
func (s *Submitter) Submit(ctx context.Context, job Job) (JobHandle, error) {
	logger := logging.WithContext(ctx, s.logger)
	if s.api == nil {
		return JobHandle{}, services.Wrap(services.ErrSubmission, stageSubmitting, "validate", "api client unavailable", nil)
	}
	if strings.TrimSpace(job.Text) == "" && strings.TrimSpace(job.TextFileID) == "" {
		return JobHandle{}, services.Wrap(services.ErrSubmission, stageSubmitting, "validate", "no text to synthesize", nil)
	}

	if job.TextFileID == "" && s.uploadThreshold > 0 && utf8.RuneCountInString(job.Text) > s.uploadThreshold {
		fileID, err := s.api.UploadText(ctx, uploadName(job.Name), job.Text)
		if err != nil {
			return JobHandle{}, services.Wrap(services.ErrSubmission, stageSubmitting, "upload text", job.Name, err)
		}
		logger.Info("text uploaded",
			logging.FileID(fileID.String()),
			logging.Int("chars", utf8.RuneCountInString(job.Text)),
		)
		job.TextFileID = fileID.String()
		job.Text = ""
	}

	resp, err := s.api.SubmitJob(ctx, BuildPayload(job, s.audio))
	if err != nil {
		return JobHandle{}, services.Wrap(services.ErrSubmission, stageSubmitting, "submit job", job.Name, err)
	}
	if resp.TaskID.IsZero() {
		return JobHandle{}, services.Wrap(services.ErrSubmission, stageSubmitting, "submit job", "response missing task id", nil)
	}

	logger.Info("job submitted",
		logging.JobID(resp.TaskID.String()),
		logging.String("voice_id", job.Voice.VoiceID),
		logging.String("model", job.Voice.Model),
	)
	return JobHandle{TaskID: resp.TaskID, FileID: resp.FileID}, nil
}

// BuildPayload renders the request body for job. Voice values pass through
// unchanged; the emotion field is omitted for the default emotion.
func BuildPayload(job Job, audio config.Audio) minimax.SubmitRequest {
	emotion := strings.ToLower(strings.TrimSpace(job.Voice.Emotion))
	if emotion == config.DefaultEmotion {
		emotion = ""
	}
	payload := minimax.SubmitRequest{
		Model: job.Voice.Model,
		VoiceSetting: minimax.VoiceSetting{
			VoiceID: job.Voice.VoiceID,
			Speed:   job.Voice.Speed,
			Vol:     job.Voice.Vol,
			Pitch:   job.Voice.Pitch,
			Emotion: emotion,
		},
		AudioSetting: minimax.AudioSetting{
			SampleRate: audio.SampleRate,
			Bitrate:    audio.Bitrate,
			Format:     audio.Format,
			Channel:    audio.Channel,
		},
	}
	if job.TextFileID != "" {
		payload.TextFileID = minimax.ID(job.TextFileID)
	} else {
		payload.Text = job.Text
	}
	return payload
}

// uploadName derives an ASCII-safe multipart file name from the source path.
func uploadName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return textutil.SanitizeToken(base) + ".txt"
}
