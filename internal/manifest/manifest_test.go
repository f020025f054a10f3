package manifest_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"voicebatch/internal/config"
	"voicebatch/internal/manifest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadCascadesVoiceSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.toml")
	writeFile(t, path, `
output_dir = "out"
concurrency = 3

[defaults]
voice_id = "female-shaonv"
speed = 1.1

[[file]]
path = "chapter1.txt"

[[file]]
path = "/abs/chapter2.txt"
speed = 1.5
emotion = "Happy"
pitch = -2
`)

	m, err := manifest.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if m.OutputDir != filepath.Join(dir, "out") {
		t.Fatalf("unexpected output dir %q", m.OutputDir)
	}
	if m.Concurrency != 3 {
		t.Fatalf("unexpected concurrency %d", m.Concurrency)
	}

	base := config.Default().Defaults
	requests := m.Requests(base)
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}

	first := requests[0]
	if first.Source != filepath.Join(dir, "chapter1.txt") {
		t.Fatalf("unexpected first source %q", first.Source)
	}
	if first.Voice.VoiceID != "female-shaonv" || first.Voice.Speed != 1.1 {
		t.Fatalf("manifest defaults not applied: %+v", first.Voice)
	}
	if first.Voice.Model != base.Model || first.Voice.Emotion != base.Emotion {
		t.Fatalf("config defaults not inherited: %+v", first.Voice)
	}

	second := requests[1]
	if second.Source != "/abs/chapter2.txt" {
		t.Fatalf("unexpected second source %q", second.Source)
	}
	if second.Voice.Speed != 1.5 || second.Voice.Emotion != "happy" || second.Voice.Pitch != -2 {
		t.Fatalf("entry overrides not applied: %+v", second.Voice)
	}
	if second.Voice.VoiceID != "female-shaonv" {
		t.Fatalf("expected voice id from manifest defaults, got %q", second.Voice.VoiceID)
	}
}

func TestLoadRejectsInvalidManifests(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no entries", "concurrency = 2\n", "no [[file]] entries"},
		{"missing path", "[[file]]\nspeed = 1.0\n", "has no path"},
		{"bad toml", "[[file]\npath = 1\n", "parse manifest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "batch.toml")
			writeFile(t, path, tt.content)
			_, err := manifest.Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestExpandDirectoriesAndFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "A.TXT"), "a")
	writeFile(t, filepath.Join(dir, "notes.md"), "skip")
	if err := os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	single := filepath.Join(t.TempDir(), "single.txt")
	writeFile(t, single, "s")

	files, err := manifest.Expand([]string{dir, single, filepath.Join(dir, "b.txt")})
	if err != nil {
		t.Fatalf("Expand returned error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "A.TXT"),
		filepath.Join(dir, "b.txt"),
		single,
	}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("unexpected files:\n got %v\nwant %v", files, want)
	}
}

func TestExpandErrors(t *testing.T) {
	if _, err := manifest.Expand(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := manifest.Expand([]string{filepath.Join(t.TempDir(), "missing.txt")}); err == nil {
		t.Fatal("expected error for missing path")
	}
	if _, err := manifest.Expand([]string{t.TempDir()}); err == nil {
		t.Fatal("expected error for directory without text files")
	}
}

func TestFromPathsUsesSharedVoice(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.txt"), "1")
	writeFile(t, filepath.Join(dir, "two.txt"), "2")
	voice := config.Default().Defaults
	voice.Speed = 0.8

	requests, err := manifest.FromPaths([]string{dir}, voice)
	if err != nil {
		t.Fatalf("FromPaths returned error: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	for _, req := range requests {
		if req.Voice != voice {
			t.Fatalf("unexpected voice %+v", req.Voice)
		}
	}
}
