package minimax

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is an opaque identifier that the service encodes as a JSON number but
// that occasionally arrives as a string. It is kept as text locally.
type ID string

// UnmarshalJSON accepts numbers, strings, and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as numbers and anything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// IsZero reports whether the id is missing. The service uses 0 as a null id.
func (id ID) IsZero() bool {
	return id == "" || id == "0"
}

func (id ID) String() string { return string(id) }

// BaseResp is the status envelope attached to every API response.
type BaseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

// VoiceSetting controls the synthesized voice.
type VoiceSetting struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Vol     float64 `json:"vol"`
	Pitch   int     `json:"pitch"`
	Emotion string  `json:"emotion,omitempty"`
}

// AudioSetting controls the encoding of the generated audio.
type AudioSetting struct {
	SampleRate int    `json:"audio_sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
	Channel    int    `json:"channel"`
}

// SubmitRequest is the body of an asynchronous synthesis request. Exactly one
// of Text and TextFileID should be set.
type SubmitRequest struct {
	Model        string       `json:"model"`
	Text         string       `json:"text,omitempty"`
	TextFileID   ID           `json:"text_file_id,omitempty"`
	VoiceSetting VoiceSetting `json:"voice_setting"`
	AudioSetting AudioSetting `json:"audio_setting"`
}

// SubmitResponse acknowledges a submitted job.
type SubmitResponse struct {
	TaskID          ID       `json:"task_id"`
	TaskToken       string   `json:"task_token,omitempty"`
	FileID          ID       `json:"file_id,omitempty"`
	UsageCharacters int64    `json:"usage_characters,omitempty"`
	BaseResp        BaseResp `json:"base_resp"`
}

// QueryResponse reports the state of a submitted job.
type QueryResponse struct {
	TaskID   ID       `json:"task_id"`
	Status   string   `json:"status"`
	FileID   ID       `json:"file_id"`
	BaseResp BaseResp `json:"base_resp"`
}

// Job status labels reported by the status endpoint.
const (
	StatusProcessing = "Processing"
	StatusSuccess    = "Success"
	StatusFailed     = "Failed"
	StatusExpired    = "Expired"
)

// FileInfo is the metadata returned for a stored file.
type FileInfo struct {
	FileID      ID     `json:"file_id"`
	Bytes       int64  `json:"bytes"`
	CreatedAt   int64  `json:"created_at"`
	Filename    string `json:"filename"`
	Purpose     string `json:"purpose"`
	DownloadURL string `json:"download_url"`
}

type retrieveResponse struct {
	File     FileInfo `json:"file"`
	BaseResp BaseResp `json:"base_resp"`
}

type uploadResponse struct {
	File     FileInfo `json:"file"`
	BaseResp BaseResp `json:"base_resp"`
}
