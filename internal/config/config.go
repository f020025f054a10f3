package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// API contains connection settings for the remote speech service.
type API struct {
	BaseURL                string `toml:"base_url"`
	GroupID                string `toml:"group_id"`
	APIKey                 string `toml:"api_key"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
	// UploadThresholdChars switches submission to an uploaded text file when the
	// input is longer than this many characters. Zero disables uploads.
	UploadThresholdChars int `toml:"upload_threshold_chars"`
}

// Voice holds the per-file synthesis settings applied when a file does not override them.
type Voice struct {
	Model   string  `toml:"model"`
	VoiceID string  `toml:"voice_id"`
	Speed   float64 `toml:"speed"`
	Vol     float64 `toml:"vol"`
	Pitch   int     `toml:"pitch"`
	Emotion string  `toml:"emotion"`
}

// Audio describes the output encoding requested from the service.
type Audio struct {
	SampleRate int    `toml:"sample_rate"`
	Bitrate    int    `toml:"bitrate"`
	Format     string `toml:"format"`
	Channel    int    `toml:"channel"`
}

// Batch contains worker pool and polling settings.
type Batch struct {
	OutputDir           string `toml:"output_dir"`
	WorkspaceDir        string `toml:"workspace_dir"`
	Concurrency         int    `toml:"concurrency"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	PollMaxAttempts     int    `toml:"poll_max_attempts"`
	StaleWorkspaceHours int    `toml:"stale_workspace_hours"`
}

// Paths contains local state locations.
type Paths struct {
	LogDir     string `toml:"log_dir"`
	SuccessLog string `toml:"success_log"`
	HistoryDB  string `toml:"history_db"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for voicebatch.
//
// Configuration sections by subsystem:
//   - API: remote endpoint, credentials, and HTTP timeouts
//   - Defaults: voice settings used when a file has no override
//   - Audio: encoding requested for generated audio
//   - Batch: output/workspace roots, worker pool size, polling cadence
//   - Paths: log directory, success-record log, history database
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	API           API           `toml:"api"`
	Defaults      Voice         `toml:"defaults"`
	Audio         Audio         `toml:"audio"`
	Batch         Batch         `toml:"batch"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("voicebatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory. Output roots are created by the
// batch runner so a missing output drive fails the batch rather than config load.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// WorkspaceRoot returns the directory that holds per-task workspaces for outputRoot.
func (c *Config) WorkspaceRoot(outputRoot string) string {
	if c.Batch.WorkspaceDir != "" {
		return c.Batch.WorkspaceDir
	}
	return filepath.Join(outputRoot, defaultWorkspaceSubdir)
}

// SuccessLogPath returns the success-record log location for outputRoot.
func (c *Config) SuccessLogPath(outputRoot string) string {
	if c.Paths.SuccessLog != "" {
		return c.Paths.SuccessLog
	}
	return filepath.Join(outputRoot, defaultSuccessLogName)
}

// PollInterval returns the configured delay between status queries.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Batch.PollIntervalSeconds) * time.Second
}

// StaleWorkspaceAge returns how old a leftover workspace must be before cleanup removes it.
func (c *Config) StaleWorkspaceAge() time.Duration {
	return time.Duration(c.Batch.StaleWorkspaceHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
