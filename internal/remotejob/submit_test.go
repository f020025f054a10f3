package remotejob

import (
	"context"
	"errors"
	"strings"
	"testing"

	"voicebatch/internal/config"
	"voicebatch/internal/services"
	"voicebatch/internal/services/minimax"
)

type fakeJobAPI struct {
	submitted []minimax.SubmitRequest
	uploads   []string
	resp      minimax.SubmitResponse
	err       error
}

func (f *fakeJobAPI) SubmitJob(_ context.Context, payload minimax.SubmitRequest) (minimax.SubmitResponse, error) {
	f.submitted = append(f.submitted, payload)
	return f.resp, f.err
}

func (f *fakeJobAPI) UploadText(_ context.Context, filename, text string) (minimax.ID, error) {
	f.uploads = append(f.uploads, filename+":"+text)
	return "555", nil
}

func testAudio() config.Audio {
	return config.Default().Audio
}

func TestBuildPayloadPassesVoiceValuesThrough(t *testing.T) {
	tests := []struct {
		name  string
		voice config.Voice
	}{
		{"minimums", config.Voice{Model: "speech-01-turbo", VoiceID: "v", Speed: 0.5, Vol: 1, Pitch: -12, Emotion: "happy"}},
		{"maximums", config.Voice{Model: "speech-01-hd", VoiceID: "v", Speed: 2.0, Vol: 10, Pitch: 12, Emotion: "sad"}},
		{"fractional", config.Voice{Model: "speech-01-turbo", VoiceID: "v", Speed: 1.37, Vol: 3.5, Pitch: 0, Emotion: "neutral"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := BuildPayload(Job{Text: "hi", Voice: tt.voice}, testAudio())
			got := payload.VoiceSetting
			if got.Speed != tt.voice.Speed || got.Vol != tt.voice.Vol || got.Pitch != tt.voice.Pitch {
				t.Fatalf("values altered: %+v vs %+v", got, tt.voice)
			}
			if got.Emotion != tt.voice.Emotion {
				t.Fatalf("expected emotion %q, got %q", tt.voice.Emotion, got.Emotion)
			}
			if payload.Model != tt.voice.Model || payload.Text != "hi" {
				t.Fatalf("unexpected payload: %+v", payload)
			}
		})
	}
}

func TestBuildPayloadOmitsDefaultEmotion(t *testing.T) {
	for _, emotion := range []string{"", "default", "Default"} {
		payload := BuildPayload(Job{Text: "x", Voice: config.Voice{Emotion: emotion}}, testAudio())
		if payload.VoiceSetting.Emotion != "" {
			t.Fatalf("expected emotion omitted for %q, got %q", emotion, payload.VoiceSetting.Emotion)
		}
	}
}

func TestBuildPayloadUsesTextFileID(t *testing.T) {
	payload := BuildPayload(Job{Text: "ignored", TextFileID: "42"}, testAudio())
	if payload.TextFileID != "42" || payload.Text != "" {
		t.Fatalf("expected text_file_id only, got %+v", payload)
	}
	if payload.AudioSetting.SampleRate != 32000 || payload.AudioSetting.Channel != 2 {
		t.Fatalf("unexpected audio setting: %+v", payload.AudioSetting)
	}
}

func TestSubmitReturnsHandle(t *testing.T) {
	api := &fakeJobAPI{resp: minimax.SubmitResponse{TaskID: "100", FileID: "200"}}
	submitter := NewSubmitter(api, testAudio(), 0, nil)
	handle, err := submitter.Submit(context.Background(), Job{Name: "a.txt", Text: "hello", Voice: config.Default().Defaults})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if handle.TaskID != "100" || handle.FileID != "200" {
		t.Fatalf("unexpected handle: %+v", handle)
	}
	if len(api.uploads) != 0 {
		t.Fatalf("expected no upload, got %v", api.uploads)
	}
}

func TestSubmitUploadsLongText(t *testing.T) {
	api := &fakeJobAPI{resp: minimax.SubmitResponse{TaskID: "1"}}
	submitter := NewSubmitter(api, testAudio(), 3, nil)
	if _, err := submitter.Submit(context.Background(), Job{Name: "/in/chapter one.txt", Text: "héllo"}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if len(api.uploads) != 1 || !strings.HasPrefix(api.uploads[0], "chapter_one.txt:") {
		t.Fatalf("unexpected uploads: %v", api.uploads)
	}
	if got := api.submitted[0]; got.TextFileID != "555" || got.Text != "" {
		t.Fatalf("expected uploaded file id in payload, got %+v", got)
	}
}

func TestSubmitFailures(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeJobAPI
		job  Job
	}{
		{"transport", &fakeJobAPI{err: errors.New("connection reset")}, Job{Text: "x"}},
		{"missing task id", &fakeJobAPI{resp: minimax.SubmitResponse{TaskID: "0"}}, Job{Text: "x"}},
		{"no text", &fakeJobAPI{resp: minimax.SubmitResponse{TaskID: "1"}}, Job{Text: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSubmitter(tt.api, testAudio(), 0, nil).Submit(context.Background(), tt.job)
			if !errors.Is(err, services.ErrSubmission) {
				t.Fatalf("expected ErrSubmission, got %v", err)
			}
		})
	}
}
