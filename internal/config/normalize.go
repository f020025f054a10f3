package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeVoice()
	c.normalizeAudio()
	c.normalizeBatch()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Batch.OutputDir) == "" {
		c.Batch.OutputDir = defaultOutputDir
	}
	if c.Batch.OutputDir, err = expandPath(strings.TrimSpace(c.Batch.OutputDir)); err != nil {
		return fmt.Errorf("batch.output_dir: %w", err)
	}
	if c.Batch.WorkspaceDir, err = expandPath(strings.TrimSpace(c.Batch.WorkspaceDir)); err != nil {
		return fmt.Errorf("batch.workspace_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.SuccessLog, err = expandPath(strings.TrimSpace(c.Paths.SuccessLog)); err != nil {
		return fmt.Errorf("paths.success_log: %w", err)
	}
	if c.Paths.HistoryDB, err = expandPath(strings.TrimSpace(c.Paths.HistoryDB)); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}
	c.API.APIKey = strings.TrimSpace(c.API.APIKey)
	if c.API.APIKey == "" {
		if value, ok := os.LookupEnv("MINIMAX_API_KEY"); ok {
			c.API.APIKey = strings.TrimSpace(value)
		}
	}
	c.API.GroupID = strings.TrimSpace(c.API.GroupID)
	if c.API.GroupID == "" {
		if value, ok := os.LookupEnv("MINIMAX_GROUP_ID"); ok {
			c.API.GroupID = strings.TrimSpace(value)
		}
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.API.DownloadTimeoutSeconds <= 0 {
		c.API.DownloadTimeoutSeconds = defaultDownloadTimeoutSeconds
	}
	if c.API.UploadThresholdChars < 0 {
		c.API.UploadThresholdChars = 0
	}
}

func (c *Config) normalizeVoice() {
	c.Defaults.Model = strings.TrimSpace(c.Defaults.Model)
	if c.Defaults.Model == "" {
		c.Defaults.Model = defaultModel
	}
	c.Defaults.VoiceID = strings.TrimSpace(c.Defaults.VoiceID)
	if c.Defaults.VoiceID == "" {
		c.Defaults.VoiceID = defaultVoiceID
	}
	c.Defaults.Emotion = strings.ToLower(strings.TrimSpace(c.Defaults.Emotion))
	if c.Defaults.Emotion == "" {
		c.Defaults.Emotion = DefaultEmotion
	}
}

func (c *Config) normalizeAudio() {
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
	if c.Audio.Bitrate <= 0 {
		c.Audio.Bitrate = defaultBitrate
	}
	c.Audio.Format = strings.ToLower(strings.TrimSpace(c.Audio.Format))
	if c.Audio.Format == "" {
		c.Audio.Format = defaultAudioFormat
	}
	if c.Audio.Channel <= 0 {
		c.Audio.Channel = defaultChannel
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = defaultConcurrency
	}
	if c.Batch.PollIntervalSeconds <= 0 {
		c.Batch.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Batch.PollMaxAttempts <= 0 {
		c.Batch.PollMaxAttempts = defaultPollMaxAttempts
	}
	if c.Batch.StaleWorkspaceHours < 0 {
		c.Batch.StaleWorkspaceHours = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}
