package subtitles

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"voicebatch/internal/logging"
)

// ErrUnrecognizedSchema reports timing metadata whose top-level layout matches
// none of the accepted variants.
var ErrUnrecognizedSchema = errors.New("unrecognized subtitle metadata schema")

// Record is one timed cue. Offsets are milliseconds and may be fractional.
type Record struct {
	Text    string
	StartMS float64
	EndMS   float64
}

// wrapperKeys lists, in priority order, the object keys under which the cue
// array may be nested. A bare top-level array is tried before any of them.
var wrapperKeys = []string{"subtitles", "titles", "data", "records", "sentences", "segments"}

var (
	textAliases  = []string{"text", "content", "sentence"}
	startAliases = []string{"time_begin", "begin_time", "start_time", "start"}
	endAliases   = []string{"time_end", "end_time", "end"}
)

// MetadataExtensions lists timing file extensions in preference order.
var MetadataExtensions = []string{".titles", ".json"}

// ParseRecords decodes timing metadata. Entries missing a field after every
// alias has been tried are skipped and counted in a single warning.
func ParseRecords(data []byte, logger *slog.Logger) ([]Record, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	data = bytes.TrimPrefix(data, []byte(byteOrderMark))

	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode subtitle metadata: %w", err)
	}

	items, variant, ok := locateItems(root)
	if !ok {
		logging.WarnWithContext(logger, "subtitle metadata schema not recognized", "subtitle_schema_unrecognized",
			logging.String("top_level", describe(root)),
			logging.String(logging.FieldErrorHint, "expected an array of cues or an object wrapping one"),
			logging.String(logging.FieldImpact, "no subtitle generated for this file"),
		)
		return nil, ErrUnrecognizedSchema
	}

	records := make([]Record, 0, len(items))
	skipped := 0
	for _, item := range items {
		rec, ok := recordFrom(item)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		logging.WarnWithContext(logger, "skipped unusable subtitle entries", "subtitle_entries_skipped",
			logging.Int("skipped", skipped),
			logging.Int("kept", len(records)),
			logging.String("schema", variant),
			logging.String(logging.FieldImpact, "subtitle omits the skipped cues"),
		)
	}
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}
	logger.Debug("parsed subtitle metadata", logging.String("schema", variant), logging.Int("records", len(records)))
	return records, nil
}

// LoadRecords reads and parses the timing metadata stored at path.
func LoadRecords(path string, logger *slog.Logger) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subtitle metadata: %w", err)
	}
	return ParseRecords(data, logger)
}

// FindMetadata returns the first timing file under dir, preferring the
// extensions earlier in MetadataExtensions. It returns "" when none exists.
func FindMetadata(dir string) (string, error) {
	found := make(map[string]string, len(MetadataExtensions))
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if _, seen := found[ext]; !seen {
			found[ext] = path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan for subtitle metadata: %w", err)
	}
	for _, ext := range MetadataExtensions {
		if path, ok := found[ext]; ok {
			return path, nil
		}
	}
	return "", nil
}

func locateItems(root any) ([]any, string, bool) {
	switch v := root.(type) {
	case []any:
		return v, "array", true
	case map[string]any:
		for _, key := range wrapperKeys {
			if items, ok := v[key].([]any); ok {
				return items, key, true
			}
		}
	}
	return nil, "", false
}

func recordFrom(item any) (Record, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Record{}, false
	}
	text, ok := firstString(obj, textAliases)
	if !ok {
		return Record{}, false
	}
	start, ok := firstNumber(obj, startAliases)
	if !ok {
		return Record{}, false
	}
	end, ok := firstNumber(obj, endAliases)
	if !ok {
		return Record{}, false
	}
	return Record{Text: text, StartMS: start, EndMS: end}, true
}

func firstString(obj map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

func firstNumber(obj map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		switch v := obj[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func describe(root any) string {
	switch v := root.(type) {
	case nil:
		return "null"
	case map[string]any:
		keys := slices.Sorted(maps.Keys(v))
		if len(keys) > 5 {
			keys = keys[:5]
		}
		return "object{" + strings.Join(keys, ",") + "}"
	default:
		return fmt.Sprintf("%T", v)
	}
}
