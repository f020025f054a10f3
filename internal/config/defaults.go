package config

const (
	defaultConfigPath             = "~/.config/voicebatch/config.toml"
	defaultBaseURL                = "https://api.minimaxi.chat/v1"
	defaultTimeoutSeconds         = 30
	defaultDownloadTimeoutSeconds = 600
	defaultUploadThresholdChars   = 50000
	defaultModel                  = "speech-01-turbo"
	defaultVoiceID                = "audiobook_male_1"
	defaultSpeed                  = 1.0
	defaultVol                    = 1.0
	defaultSampleRate             = 32000
	defaultBitrate                = 128000
	defaultAudioFormat            = "mp3"
	defaultChannel                = 2
	defaultOutputDir              = "~/voicebatch/output"
	defaultWorkspaceSubdir        = ".workspaces"
	defaultSuccessLogName         = "success_records.json"
	defaultConcurrency            = 5
	defaultPollIntervalSeconds    = 5
	defaultPollMaxAttempts        = 100
	defaultStaleWorkspaceHours    = 24
	defaultLogDir                 = "~/.local/share/voicebatch/logs"
	defaultHistoryDB              = "~/.local/share/voicebatch/history.db"
	defaultLogFormat              = "json"
	defaultLogLevel               = "info"
	defaultNotifyRequestTimeout   = 10

	// MaxConcurrency bounds the worker pool.
	MaxConcurrency = 100

	// DefaultEmotion leaves the emotion to the voice; it is never sent to the service.
	DefaultEmotion = "default"
)

// Models lists the speech models offered by the service.
var Models = []string{
	"speech-01-turbo",
	"speech-01-240228",
	"speech-01-turbo-240228",
	"speech-01-hd",
}

// Emotions lists the accepted emotion labels. "default" omits the field from requests.
var Emotions = []string{
	"default",
	"neutral",
	"happy",
	"sad",
	"angry",
	"fearful",
	"disgusted",
	"surprised",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:                defaultBaseURL,
			TimeoutSeconds:         defaultTimeoutSeconds,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
			UploadThresholdChars:   defaultUploadThresholdChars,
		},
		Defaults: Voice{
			Model:   defaultModel,
			VoiceID: defaultVoiceID,
			Speed:   defaultSpeed,
			Vol:     defaultVol,
			Emotion: DefaultEmotion,
		},
		Audio: Audio{
			SampleRate: defaultSampleRate,
			Bitrate:    defaultBitrate,
			Format:     defaultAudioFormat,
			Channel:    defaultChannel,
		},
		Batch: Batch{
			OutputDir:           defaultOutputDir,
			Concurrency:         defaultConcurrency,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			PollMaxAttempts:     defaultPollMaxAttempts,
			StaleWorkspaceHours: defaultStaleWorkspaceHours,
		},
		Paths: Paths{
			LogDir:    defaultLogDir,
			HistoryDB: defaultHistoryDB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
	}
}
