package subtitles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"voicebatch/internal/logging"
)

func TestParseRecordsSchemaVariants(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []Record
	}{
		{
			name: "bare array",
			data: `[{"text":"Hi","time_begin":0,"time_end":1500},{"text":"Bye","time_begin":1500,"time_end":3000}]`,
			want: []Record{{"Hi", 0, 1500}, {"Bye", 1500, 3000}},
		},
		{
			name: "wrapped titles with aliases",
			data: `{"titles":[{"content":"One","start_time":10.5,"end_time":"20"}]}`,
			want: []Record{{"One", 10.5, 20}},
		},
		{
			name: "wrapped subtitles preferred over data",
			data: `{"data":[{"text":"D","start":0,"end":1}],"subtitles":[{"text":"S","start":0,"end":1}]}`,
			want: []Record{{"S", 0, 1}},
		},
		{
			name: "byte order mark prefix",
			data: "\ufeff" + `[{"sentence":"x","begin_time":1,"time_end":2}]`,
			want: []Record{{"x", 1, 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecords([]byte(tt.data), logging.NewNop())
			if err != nil {
				t.Fatalf("ParseRecords: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d records, got %d (%+v)", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("record %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseRecordsSkipsIncompleteEntries(t *testing.T) {
	hub := logging.NewStreamHub(8)
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{filepath.Join(t.TempDir(), "log")}, Hub: hub})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	data := `[{"text":"keep","time_begin":0,"time_end":1},{"text":"no end","time_begin":0},"junk",{"time_begin":0,"time_end":1}]`
	got, err := ParseRecords([]byte(data), logger)
	if err != nil {
		t.Fatalf("ParseRecords: %v", err)
	}
	if len(got) != 1 || got[0].Text != "keep" {
		t.Fatalf("unexpected records %+v", got)
	}
	events, _, _ := hub.Fetch(context.Background(), 0, 10, false)
	if len(events) == 0 || events[0].Fields["skipped"] != "3" {
		t.Fatalf("expected skip warning, got %+v", events)
	}
}

func TestParseRecordsErrors(t *testing.T) {
	if _, err := ParseRecords([]byte(`[]`), nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for empty array, got %v", err)
	}
	if _, err := ParseRecords([]byte(`[{"foo":1}]`), nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput when nothing usable, got %v", err)
	}
	if _, err := ParseRecords([]byte(`{"cues":[]}`), nil); !errors.Is(err, ErrUnrecognizedSchema) {
		t.Fatalf("expected ErrUnrecognizedSchema, got %v", err)
	}
	if _, err := ParseRecords([]byte(`42`), nil); !errors.Is(err, ErrUnrecognizedSchema) {
		t.Fatalf("expected ErrUnrecognizedSchema for scalar, got %v", err)
	}
	if _, err := ParseRecords([]byte(`{`), nil); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFindMetadataPrefersTitles(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{filepath.Join(dir, "a.json"), filepath.Join(nested, "z.titles"), filepath.Join(dir, "audio.mp3")} {
		if err := os.WriteFile(name, []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := FindMetadata(dir)
	if err != nil {
		t.Fatalf("FindMetadata: %v", err)
	}
	if got != filepath.Join(nested, "z.titles") {
		t.Fatalf("expected .titles file, got %q", got)
	}

	empty := t.TempDir()
	if got, err := FindMetadata(empty); err != nil || got != "" {
		t.Fatalf("expected no metadata, got %q %v", got, err)
	}
}
