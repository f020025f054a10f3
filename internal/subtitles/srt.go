package subtitles

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyInput reports that no usable records were available to render.
	ErrEmptyInput = errors.New("no usable subtitle records")
	// ErrWrite wraps failures persisting the rendered subtitle file.
	ErrWrite = errors.New("subtitle write failed")
)

const byteOrderMark = "\ufeff"

// FormatTimestamp renders a millisecond offset as HH:MM:SS,mmm. The value is
// rounded to the nearest millisecond before it is split, so a fraction that
// rounds up to 1000 ms carries into the seconds field.
func FormatTimestamp(ms float64) string {
	if math.IsNaN(ms) || ms < 0 {
		ms = 0
	}
	total := int64(math.Round(ms))
	millis := total % 1000
	totalSeconds := total / 1000
	seconds := totalSeconds % 60
	minutes := (totalSeconds / 60) % 60
	hours := totalSeconds / 3600
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

// FormatSeconds is FormatTimestamp for offsets expressed in seconds.
func FormatSeconds(seconds float64) string {
	return FormatTimestamp(seconds * 1000)
}

// Render produces SRT content for records, numbering cues from 1 in input order.
func Render(records []Record) (string, error) {
	if len(records) == 0 {
		return "", ErrEmptyInput
	}
	var b strings.Builder
	for i, rec := range records {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatTimestamp(rec.StartMS),
			FormatTimestamp(rec.EndMS),
			strings.TrimPrefix(rec.Text, byteOrderMark),
		)
	}
	return b.String(), nil
}

// WriteSRT renders records and writes them to outputPath through a temporary
// file in the same directory.
func WriteSRT(records []Record, outputPath string) error {
	content, err := Render(records)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".srt-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", ErrWrite, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %w", ErrWrite, outputPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: close %s: %w", ErrWrite, outputPath, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: chmod %s: %w", ErrWrite, outputPath, err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: rename %s: %w", ErrWrite, outputPath, err)
	}
	return nil
}

// CountCues reports how many non-empty cue blocks an SRT file holds.
func CountCues(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read srt: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return 0, nil
	}
	count := 0
	for _, block := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count, nil
}
