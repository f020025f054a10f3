package filetask

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"voicebatch/internal/config"
	"voicebatch/internal/logging"
	"voicebatch/internal/remotejob"
	"voicebatch/internal/services"
	"voicebatch/internal/successlog"
)

const titlesJSON = `[{"text":"Hi","time_begin":0,"time_end":1500},{"text":"Bye","time_begin":1500,"time_end":3000}]`

const wantSRT = "1\n00:00:00,000 --> 00:00:01,500\nHi\n\n2\n00:00:01,500 --> 00:00:03,000\nBye\n\n"

func buildTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	dirs := map[string]bool{}
	for _, name := range names {
		if dir := strings.SplitN(name, "/", 2)[0]; strings.Contains(name, "/") && !dirs[dir] {
			dirs[dir] = true
			if err := tw.WriteHeader(&tar.Header{Name: dir + "/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
				t.Fatal(err)
			}
		}
		body := files[name]
		if err := tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeSubmitter struct {
	jobs  []remotejob.Job
	err   error
	panic bool
}

func (f *fakeSubmitter) Submit(_ context.Context, job remotejob.Job) (remotejob.JobHandle, error) {
	if f.panic {
		panic("boom")
	}
	f.jobs = append(f.jobs, job)
	return remotejob.JobHandle{TaskID: "11"}, f.err
}

type fakePoller struct{ err error }

func (f fakePoller) Poll(context.Context, remotejob.JobHandle) (remotejob.ArtifactRef, error) {
	if f.err != nil {
		return remotejob.ArtifactRef{}, f.err
	}
	return remotejob.ArtifactRef{FileID: "22"}, nil
}

type fakeRetriever struct {
	archive []byte
	err     error
}

func (f fakeRetriever) Retrieve(_ context.Context, _ remotejob.ArtifactRef, dest, baseName string) (remotejob.Artifact, error) {
	if f.err != nil {
		return remotejob.Artifact{}, f.err
	}
	path := filepath.Join(dest, baseName+remotejob.ArchiveExt)
	if err := os.WriteFile(path, f.archive, 0o644); err != nil {
		return remotejob.Artifact{}, err
	}
	return remotejob.Artifact{Path: path, DownloadURL: "https://cdn.example/" + baseName, Bytes: int64(len(f.archive))}, nil
}

type memoryRecords struct {
	mu      sync.Mutex
	records []successlog.Record
}

func (m *memoryRecords) Append(rec successlog.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

type fixture struct {
	outputRoot    string
	workspaceRoot string
	records       *memoryRecords
	submitter     *fakeSubmitter
}

func newFixture(t *testing.T) *fixture {
	root := t.TempDir()
	return &fixture{
		outputRoot:    filepath.Join(root, "out"),
		workspaceRoot: filepath.Join(root, "out", ".workspaces"),
		records:       &memoryRecords{},
		submitter:     &fakeSubmitter{},
	}
}

func (f *fixture) run(t *testing.T, req Request, poller Poller, retriever Retriever) Outcome {
	t.Helper()
	deps := Deps{Submitter: f.submitter, Poller: poller, Retriever: retriever, Records: f.records}
	return New(1, req, f.outputRoot, f.workspaceRoot, deps).Run(context.Background())
}

func defaultRequest(source string) Request {
	return Request{Source: source, Text: "hello", Voice: config.Default().Defaults}
}

func assertNoWorkspace(t *testing.T, f *fixture) {
	t.Helper()
	entries, err := os.ReadDir(f.workspaceRoot)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected workspaces removed, found %v", entries)
	}
}

func TestRunProducesOutputAndSubtitle(t *testing.T) {
	f := newFixture(t)
	archive := buildTar(t, map[string]string{
		"task_11/audio.mp3":     "mp3",
		"task_11/result.titles": titlesJSON,
	})

	out := f.run(t, defaultRequest("/in/report.txt"), fakePoller{}, fakeRetriever{archive: archive})
	if out.State != StateDone {
		t.Fatalf("expected done, got %s (%v)", out.State, out.Err)
	}
	wantDir := filepath.Join(f.outputRoot, "report")
	if out.OutputDir != wantDir {
		t.Fatalf("unexpected output dir %q", out.OutputDir)
	}
	if _, err := os.Stat(filepath.Join(wantDir, "audio.mp3")); err != nil {
		t.Fatalf("audio missing: %v", err)
	}
	srt, err := os.ReadFile(filepath.Join(wantDir, "report.srt"))
	if err != nil {
		t.Fatalf("subtitle missing: %v", err)
	}
	if string(srt) != wantSRT {
		t.Fatalf("unexpected subtitle:\n%q", srt)
	}
	if out.SubtitlePath != filepath.Join(wantDir, "report.srt") {
		t.Fatalf("unexpected subtitle path %q", out.SubtitlePath)
	}
	if _, err := os.Stat(filepath.Join(wantDir, "report.tar")); !os.IsNotExist(err) {
		t.Fatal("archive should not be placed in output")
	}
	if len(f.records.records) != 1 {
		t.Fatalf("expected 1 success record, got %d", len(f.records.records))
	}
	rec := f.records.records[0]
	if rec.JobID != "11" || rec.FileID != "22" || rec.DownloadURL != "https://cdn.example/report" || rec.VoiceID != "audiobook_male_1" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if out.JobID != "11" || out.FileID != "22" || !out.Downloaded {
		t.Fatalf("unexpected outcome %+v", out)
	}
	assertNoWorkspace(t, f)
}

func TestRunSuffixesExistingOutput(t *testing.T) {
	f := newFixture(t)
	existing := filepath.Join(f.outputRoot, "report")
	if err := os.MkdirAll(existing, 0o755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(existing, "keep.txt")
	if err := os.WriteFile(marker, []byte("previous run"), 0o644); err != nil {
		t.Fatal(err)
	}

	archive := buildTar(t, map[string]string{"x/audio.mp3": "new"})
	out := f.run(t, defaultRequest("report.txt"), fakePoller{}, fakeRetriever{archive: archive})
	if out.State != StateDone {
		t.Fatalf("expected done, got %s (%v)", out.State, out.Err)
	}
	if out.OutputDir != filepath.Join(f.outputRoot, "report_1") {
		t.Fatalf("expected suffixed output, got %q", out.OutputDir)
	}
	data, err := os.ReadFile(marker)
	if err != nil || string(data) != "previous run" {
		t.Fatalf("existing output disturbed: %q (%v)", data, err)
	}
	if _, err := os.Stat(filepath.Join(existing, "audio.mp3")); !os.IsNotExist(err) {
		t.Fatal("new content must not be merged into the existing output")
	}
}

func TestRunRecordsSuccessOnlyAfterDownload(t *testing.T) {
	tests := []struct {
		name       string
		poller     Poller
		retriever  Retriever
		wantReason string
		wantRecord bool
	}{
		{"job failed", fakePoller{err: services.ErrJobFailed}, fakeRetriever{}, "job failed", false},
		{"download failed", fakePoller{}, fakeRetriever{err: services.Wrap(services.ErrRetrieval, "downloading", "get", "", nil)}, "download failed", false},
		{"extraction failed", fakePoller{}, fakeRetriever{archive: []byte("not a tar archive at all")}, "extraction failed", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			out := f.run(t, defaultRequest("book.txt"), tt.poller, tt.retriever)
			if out.State != StateSkipped {
				t.Fatalf("expected skipped, got %s", out.State)
			}
			if out.Reason != tt.wantReason {
				t.Fatalf("expected reason %q, got %q (%v)", tt.wantReason, out.Reason, out.Err)
			}
			if got := len(f.records.records) == 1; got != tt.wantRecord {
				t.Fatalf("expected record=%v, got %d records", tt.wantRecord, len(f.records.records))
			}
			if out.Downloaded != tt.wantRecord {
				t.Fatalf("expected downloaded=%v", tt.wantRecord)
			}
			if _, err := os.Stat(filepath.Join(f.outputRoot, "book")); !os.IsNotExist(err) {
				t.Fatal("skipped task must not create an output directory")
			}
			assertNoWorkspace(t, f)
		})
	}
}

func TestRunWithoutSubtitleMetadataStillCompletes(t *testing.T) {
	f := newFixture(t)
	archive := buildTar(t, map[string]string{"d/audio.mp3": "mp3", "d/empty.titles": "[]"})
	out := f.run(t, defaultRequest("story.txt"), fakePoller{}, fakeRetriever{archive: archive})
	if out.State != StateDone {
		t.Fatalf("expected done, got %s (%v)", out.State, out.Err)
	}
	if out.SubtitlePath != "" {
		t.Fatalf("expected no subtitle, got %q", out.SubtitlePath)
	}
	if _, err := os.Stat(filepath.Join(out.OutputDir, "story.srt")); !os.IsNotExist(err) {
		t.Fatal("empty metadata must not produce a subtitle file")
	}
}

func TestRunReadsTextFromSource(t *testing.T) {
	f := newFixture(t)
	source := filepath.Join(t.TempDir(), "chapter.txt")
	if err := os.WriteFile(source, []byte("\xef\xbb\xbfOnce upon a time\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	req := Request{Source: source, Voice: config.Default().Defaults}
	archive := buildTar(t, map[string]string{"d/a.mp3": "x"})
	if out := f.run(t, req, fakePoller{}, fakeRetriever{archive: archive}); out.State != StateDone {
		t.Fatalf("expected done, got %s (%v)", out.State, out.Err)
	}
	if len(f.submitter.jobs) != 1 || f.submitter.jobs[0].Text != "Once upon a time" {
		t.Fatalf("unexpected submitted job %+v", f.submitter.jobs)
	}
}

func TestRunSkipsUnreadableSource(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, Request{Source: filepath.Join(t.TempDir(), "missing.txt")}, fakePoller{}, fakeRetriever{})
	if out.State != StateSkipped || out.Reason != "invalid input" || out.Stage != StateSubmitting {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	f := newFixture(t)
	f.submitter.panic = true
	out := f.run(t, defaultRequest("a.txt"), fakePoller{}, fakeRetriever{})
	if out.State != StateSkipped || out.Reason != "unexpected error" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Finished.IsZero() {
		t.Fatal("expected finish time on panic")
	}
}

func TestRunCancelledIsInterrupted(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	deps := Deps{Submitter: f.submitter, Poller: fakePoller{err: context.Canceled}, Retriever: fakeRetriever{}, Records: f.records}
	out := New(2, defaultRequest("a.txt"), f.outputRoot, f.workspaceRoot, deps).Run(ctx)
	if out.Reason != "interrupted" {
		t.Fatalf("expected interrupted, got %q (%v)", out.Reason, out.Err)
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Fatalf("expected context error, got %v", out.Err)
	}
}

// gatedRetriever writes the archive, then holds the task until released.
type gatedRetriever struct {
	inner   fakeRetriever
	ready   chan struct{}
	release chan struct{}
}

func (g gatedRetriever) Retrieve(ctx context.Context, ref remotejob.ArtifactRef, dest, baseName string) (remotejob.Artifact, error) {
	artifact, err := g.inner.Retrieve(ctx, ref, dest, baseName)
	close(g.ready)
	<-g.release
	return artifact, err
}

func TestRunKeepsBatchesApartInSharedWorkspaceRoot(t *testing.T) {
	root := t.TempDir()
	workspaceRoot := filepath.Join(root, "ws")
	archive := buildTar(t, map[string]string{"task_11/audio.mp3": "mp3"})

	gate := gatedRetriever{
		inner:   fakeRetriever{archive: archive},
		ready:   make(chan struct{}),
		release: make(chan struct{}),
	}
	depsA := Deps{Submitter: &fakeSubmitter{}, Poller: fakePoller{}, Retriever: gate, Records: &memoryRecords{}}
	depsB := Deps{Submitter: &fakeSubmitter{}, Poller: fakePoller{}, Retriever: fakeRetriever{archive: archive}, Records: &memoryRecords{}}

	ctxA := services.WithBatchID(context.Background(), "aaaaaaaa-0000-0000-0000-000000000001")
	ctxB := services.WithBatchID(context.Background(), "bbbbbbbb-0000-0000-0000-000000000002")

	resultA := make(chan Outcome, 1)
	go func() {
		resultA <- New(1, defaultRequest("/in/chapter.txt"), filepath.Join(root, "outA"), workspaceRoot, depsA).Run(ctxA)
	}()
	<-gate.ready

	outB := New(1, defaultRequest("/in/chapter.txt"), filepath.Join(root, "outB"), workspaceRoot, depsB).Run(ctxB)
	close(gate.release)
	outA := <-resultA

	for name, out := range map[string]Outcome{"A": outA, "B": outB} {
		if out.State != StateDone {
			t.Fatalf("task %s: expected done, got %s (%s: %v)", name, out.State, out.Reason, out.Err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "outA", "chapter", "audio.mp3")); err != nil {
		t.Fatalf("expected batch A output: %v", err)
	}
}

func TestWorkspaceScope(t *testing.T) {
	ctx := services.WithBatchID(context.Background(), "1F2E3D4C-aaaa-bbbb")
	if got := workspaceScope(ctx); got != "1f2e3d4c" {
		t.Fatalf("unexpected scope %q", got)
	}
	a, b := workspaceScope(context.Background()), workspaceScope(context.Background())
	if a == "" || a == b {
		t.Fatalf("expected distinct standalone scopes, got %q and %q", a, b)
	}
}

func TestRunWorkspaceFailureIsRetrievalSkip(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(f.outputRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.workspaceRoot, []byte("not a directory"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := f.run(t, defaultRequest("/in/report.txt"), fakePoller{}, fakeRetriever{})
	if out.State != StateSkipped || out.Reason != "download failed" {
		t.Fatalf("expected download failed skip, got %s %q", out.State, out.Reason)
	}
	if !errors.Is(out.Err, services.ErrRetrieval) {
		t.Fatalf("expected retrieval error, got %v", out.Err)
	}
}

func TestRunWarnsWhenSubtitleCuesDiffer(t *testing.T) {
	f := newFixture(t)
	hub := logging.NewStreamHub(64)
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{filepath.Join(t.TempDir(), "log")}, Hub: hub})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	archive := buildTar(t, map[string]string{
		"task_11/audio.mp3":     "mp3",
		"task_11/result.titles": `[{"text":"Hi\n\nthere","time_begin":0,"time_end":1500}]`,
	})
	deps := Deps{Submitter: f.submitter, Poller: fakePoller{}, Retriever: fakeRetriever{archive: archive}, Records: f.records, Logger: logger}

	out := New(1, defaultRequest("/in/report.txt"), f.outputRoot, f.workspaceRoot, deps).Run(context.Background())
	if out.State != StateDone || out.SubtitlePath == "" {
		t.Fatalf("expected done with subtitle, got %s %q (%v)", out.State, out.SubtitlePath, out.Err)
	}
	events, _, _ := hub.Fetch(context.Background(), 0, 0, false)
	for _, evt := range events {
		if evt.Fields[logging.FieldEventType] == "subtitle_mismatch" {
			return
		}
	}
	t.Fatalf("expected subtitle_mismatch warning, got %+v", events)
}
