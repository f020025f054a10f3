// Package successlog persists one record per downloaded artifact in a shared
// JSON array file. Appends rewrite the whole array and are serialised both
// within the process and across processes.
package successlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Record describes a successfully downloaded artifact.
type Record struct {
	File        string    `json:"file"`
	BaseName    string    `json:"base_name"`
	TaskNum     int       `json:"task_num"`
	JobID       string    `json:"job_id"`
	FileID      string    `json:"file_id"`
	VoiceID     string    `json:"voice_id"`
	Speed       float64   `json:"speed"`
	Vol         float64   `json:"vol"`
	Pitch       int       `json:"pitch"`
	Emotion     string    `json:"emotion"`
	Model       string    `json:"model"`
	DownloadURL string    `json:"download_url"`
	Timestamp   time.Time `json:"timestamp"`
}

// Log is a JSON array file of records.
type Log struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

// Open returns a log backed by path. The file is created on first append.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, errors.New("success log path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create success log directory: %w", err)
	}
	return &Log{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}, nil
}

// Path returns the backing file.
func (l *Log) Path() string { return l.path }

// Append adds rec to the log. A zero timestamp is set to the current time.
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock success log: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	records, err := readRecords(l.path)
	if err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	rec.Timestamp = rec.Timestamp.UTC()
	records = append(records, rec)
	return writeRecords(l.path, records)
}

// List returns every record in file order.
func (l *Log) List() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock success log: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()
	return readRecords(l.path)
}

func readRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read success log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode success log %s: %w", path, err)
	}
	return records, nil
}

func writeRecords(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode success log: %w", err)
	}
	data = append(data, '\n')

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write success log: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace success log: %w", err)
	}
	return nil
}
