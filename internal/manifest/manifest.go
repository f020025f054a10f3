// Package manifest turns command-line inputs and TOML batch manifests into
// per-file requests.
//
// A manifest lists files with optional per-file voice settings:
//
//	output_dir = "~/audiobooks"
//	concurrency = 3
//
//	[defaults]
//	voice_id = "female-shaonv"
//
//	[[file]]
//	path = "chapter1.txt"
//	speed = 1.2
//	emotion = "happy"
//
// Relative paths resolve against the manifest's directory. Settings cascade
// from the configuration defaults, then [defaults], then the file entry.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"voicebatch/internal/config"
	"voicebatch/internal/filetask"
	"voicebatch/internal/textinput"
)

// Override holds optional voice settings. Nil fields inherit.
type Override struct {
	Model   *string  `toml:"model"`
	VoiceID *string  `toml:"voice_id"`
	Speed   *float64 `toml:"speed"`
	Vol     *float64 `toml:"vol"`
	Pitch   *int     `toml:"pitch"`
	Emotion *string  `toml:"emotion"`
}

// Apply returns v with every set field of o replacing the inherited value.
func (o Override) Apply(v config.Voice) config.Voice {
	if o.Model != nil {
		v.Model = strings.TrimSpace(*o.Model)
	}
	if o.VoiceID != nil {
		v.VoiceID = strings.TrimSpace(*o.VoiceID)
	}
	if o.Speed != nil {
		v.Speed = *o.Speed
	}
	if o.Vol != nil {
		v.Vol = *o.Vol
	}
	if o.Pitch != nil {
		v.Pitch = *o.Pitch
	}
	if o.Emotion != nil {
		v.Emotion = strings.ToLower(strings.TrimSpace(*o.Emotion))
	}
	return v
}

// Entry is one [[file]] table.
type Entry struct {
	Path       string   `toml:"path"`
	TextFileID string   `toml:"text_file_id"`
	Model      *string  `toml:"model"`
	VoiceID    *string  `toml:"voice_id"`
	Speed      *float64 `toml:"speed"`
	Vol        *float64 `toml:"vol"`
	Pitch      *int     `toml:"pitch"`
	Emotion    *string  `toml:"emotion"`
}

func (e Entry) override() Override {
	return Override{Model: e.Model, VoiceID: e.VoiceID, Speed: e.Speed, Vol: e.Vol, Pitch: e.Pitch, Emotion: e.Emotion}
}

// Manifest is a parsed batch manifest.
type Manifest struct {
	OutputDir   string   `toml:"output_dir"`
	Concurrency int      `toml:"concurrency"`
	Defaults    Override `toml:"defaults"`
	Files       []Entry  `toml:"file"`
}

// Load parses the manifest at path and resolves its relative paths.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Files) == 0 {
		return nil, fmt.Errorf("manifest %s lists no [[file]] entries", path)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve manifest directory: %w", err)
	}
	if m.OutputDir = strings.TrimSpace(m.OutputDir); m.OutputDir != "" {
		if m.OutputDir, err = resolve(dir, m.OutputDir); err != nil {
			return nil, fmt.Errorf("manifest output_dir: %w", err)
		}
	}
	for i := range m.Files {
		entry := &m.Files[i]
		entry.Path = strings.TrimSpace(entry.Path)
		if entry.Path == "" {
			return nil, fmt.Errorf("manifest %s: file entry %d has no path", path, i+1)
		}
		if entry.Path, err = resolve(dir, entry.Path); err != nil {
			return nil, fmt.Errorf("manifest file entry %d: %w", i+1, err)
		}
	}
	return &m, nil
}

// Requests builds one request per manifest entry on top of base.
func (m *Manifest) Requests(base config.Voice) []filetask.Request {
	base = m.Defaults.Apply(base)
	requests := make([]filetask.Request, 0, len(m.Files))
	for _, entry := range m.Files {
		requests = append(requests, filetask.Request{
			Source:     entry.Path,
			TextFileID: strings.TrimSpace(entry.TextFileID),
			Voice:      entry.override().Apply(base),
		})
	}
	return requests
}

// FromPaths builds requests for files and directories given on the command
// line. Directories contribute their *.txt files (case-insensitive, not
// recursive) in name order. Duplicates are dropped.
func FromPaths(paths []string, voice config.Voice) ([]filetask.Request, error) {
	files, err := Expand(paths)
	if err != nil {
		return nil, err
	}
	requests := make([]filetask.Request, 0, len(files))
	for _, file := range files {
		requests = append(requests, filetask.Request{Source: file, Voice: voice})
	}
	return requests, nil
}

// Expand resolves paths into a de-duplicated list of files.
func Expand(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, errors.New("no input files given")
	}
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		files = append(files, abs)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", path, err)
		}
		var names []string
		for _, entry := range entries {
			if entry.Type().IsRegular() && textinput.IsTextFile(entry.Name()) {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			add(filepath.Join(path, name))
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no .txt files found in the given inputs")
	}
	return files, nil
}

// resolve expands ~ and anchors relative paths at dir.
func resolve(dir, path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		return config.ExpandPath(path)
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	return filepath.Join(dir, path), nil
}
