package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
	MaxVol   = 10.0
	MinPitch = -12
	MaxPitch = 12
)

// Validate ensures the configuration is usable. Credentials are checked
// separately by RequireCredentials so read-only commands work without them.
func (c *Config) Validate() error {
	if err := ValidateVoice(c.Defaults); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	return c.validateLogging()
}

// RequireCredentials reports an error when the API key or group id is missing.
func (c *Config) RequireCredentials() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	if c.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required. Set MINIMAX_API_KEY env var or edit %s (create with 'voicebatch config init')", defaultPath)
	}
	if c.API.GroupID == "" {
		return fmt.Errorf("api.group_id is required. Set MINIMAX_GROUP_ID env var or edit %s", defaultPath)
	}
	return nil
}

// ValidateVoice checks per-file synthesis settings against the ranges the service accepts.
func ValidateVoice(v Voice) error {
	if strings.TrimSpace(v.VoiceID) == "" {
		return errors.New("voice_id must be set")
	}
	if strings.TrimSpace(v.Model) == "" {
		return errors.New("model must be set")
	}
	if v.Speed < MinSpeed || v.Speed > MaxSpeed {
		return fmt.Errorf("speed %.2f must be between %.1f and %.1f", v.Speed, MinSpeed, MaxSpeed)
	}
	if v.Vol <= 0 || v.Vol > MaxVol {
		return fmt.Errorf("vol %.2f must be greater than 0 and at most %.0f", v.Vol, MaxVol)
	}
	if v.Pitch < MinPitch || v.Pitch > MaxPitch {
		return fmt.Errorf("pitch %d must be between %d and %d", v.Pitch, MinPitch, MaxPitch)
	}
	if !IsKnownEmotion(v.Emotion) {
		return fmt.Errorf("emotion %q must be one of %s", v.Emotion, strings.Join(Emotions, ", "))
	}
	return nil
}

// IsKnownEmotion reports whether emotion is an accepted label. Empty means default.
func IsKnownEmotion(emotion string) bool {
	emotion = strings.ToLower(strings.TrimSpace(emotion))
	return emotion == "" || slices.Contains(Emotions, emotion)
}

// IsKnownModel reports whether model appears in the built-in catalogue.
func IsKnownModel(model string) bool {
	return slices.Contains(Models, strings.TrimSpace(model))
}

func (c *Config) validateAudio() error {
	switch c.Audio.Format {
	case "mp3", "pcm", "flac", "wav":
	default:
		return fmt.Errorf("audio.format %q must be one of mp3, pcm, flac, wav", c.Audio.Format)
	}
	if c.Audio.Channel != 1 && c.Audio.Channel != 2 {
		return errors.New("audio.channel must be 1 or 2")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > MaxConcurrency {
		return fmt.Errorf("batch.concurrency must be between 1 and %d", MaxConcurrency)
	}
	if c.Batch.OutputDir == "" {
		return errors.New("batch.output_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}
