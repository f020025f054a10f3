package subtitles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFormatTimestampCarries(t *testing.T) {
	tests := []struct {
		ms   float64
		want string
	}{
		{0, "00:00:00,000"},
		{1500, "00:00:01,500"},
		{999.4, "00:00:00,999"},
		{999.5, "00:00:01,000"},
		{59999.6, "00:01:00,000"},
		{3599999.5, "01:00:00,000"},
		{3723004, "01:02:03,004"},
		{-20, "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := FormatTimestamp(tt.ms); got != tt.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestFormatSecondsRollsOverMilliseconds(t *testing.T) {
	if got := FormatSeconds(59.9996); got != "00:01:00,000" {
		t.Fatalf("FormatSeconds(59.9996) = %q", got)
	}
	if got := FormatSeconds(1.5); got != "00:00:01,500" {
		t.Fatalf("FormatSeconds(1.5) = %q", got)
	}
}

func TestRenderExactOutput(t *testing.T) {
	records := []Record{
		{Text: "Hi", StartMS: 0, EndMS: 1500},
		{Text: "Bye", StartMS: 1500, EndMS: 3000},
	}
	got, err := Render(records)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\nHi\n\n2\n00:00:01,500 --> 00:00:03,000\nBye\n\n"
	if got != want {
		t.Fatalf("unexpected SRT:\n got %q\nwant %q", got, want)
	}
}

func TestRenderStripsByteOrderMark(t *testing.T) {
	got, err := Render([]Record{{Text: "\ufeffHello", StartMS: 0, EndMS: 10}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "1\n00:00:00,000 --> 00:00:00,010\nHello\n\n" {
		t.Fatalf("unexpected SRT %q", got)
	}
}

func TestWriteSRT(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chapter.srt")

	if err := WriteSRT(nil, path); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file for empty input, got %v", err)
	}

	records := []Record{{Text: "a", EndMS: 1}, {Text: "b", StartMS: 1, EndMS: 2}, {Text: "c", StartMS: 2, EndMS: 3}}
	if err := WriteSRT(records, path); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}
	count, err := CountCues(path)
	if err != nil {
		t.Fatalf("CountCues: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 cues, got %d", count)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, ".srt-*"))
	if len(leftovers) != 0 {
		t.Fatalf("expected temp files to be renamed, found %v", leftovers)
	}
}

func TestWriteSRTMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.srt")
	err := WriteSRT([]Record{{Text: "x", EndMS: 1}}, path)
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}
}
