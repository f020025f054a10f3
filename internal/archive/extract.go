package archive

import (
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"voicebatch/internal/logging"
	"voicebatch/internal/services"
)

const stageName = "extracting"

var gzipMagic = []byte{0x1f, 0x8b}

// Result describes where extracted content ended up.
type Result struct {
	ContentDir   string
	Files        int
	SkippedLinks int
	Renamed      bool
}

// ExtractAndRename unpacks archivePath into workDir and renames the first
// top-level directory it produced to canonicalName. Any existing
// workDir/canonicalName is removed first. When the archive holds only loose
// files, workDir itself is the content directory. The archive file is deleted
// once extraction succeeds.
func ExtractAndRename(archivePath, workDir, canonicalName string, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	canonicalName = strings.TrimSpace(canonicalName)
	if canonicalName == "" || canonicalName != filepath.Base(canonicalName) {
		return Result{}, services.Wrap(services.ErrExtraction, stageName, "validate", fmt.Sprintf("invalid canonical name %q", canonicalName), nil)
	}

	target := filepath.Join(workDir, canonicalName)
	if err := os.RemoveAll(target); err != nil {
		return Result{}, services.Wrap(services.ErrExtraction, stageName, "clear stale target", target, err)
	}

	topLevel, stats, err := extractAll(archivePath, workDir, logger)
	if err != nil {
		return Result{}, err
	}

	result := Result{Files: stats.files, SkippedLinks: stats.skippedLinks}
	contentDir, renamed, err := locateContent(workDir, canonicalName, topLevel, logger)
	if err != nil {
		return Result{}, err
	}
	result.ContentDir = contentDir
	result.Renamed = renamed

	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to delete archive after extraction", "archive_cleanup_failed",
			logging.String("archive", archivePath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check workspace permissions"),
			logging.String(logging.FieldImpact, "archive remains until the workspace is removed"),
		)
	}

	logger.Info("archive extracted",
		logging.String("content_dir", contentDir),
		logging.Int("files", stats.files),
		logging.Bool("renamed", renamed),
		logging.String(logging.FieldEventType, "archive_extracted"),
	)
	return result, nil
}

type extractStats struct {
	files        int
	skippedLinks int
}

func extractAll(archivePath, workDir string, logger *slog.Logger) (map[string]struct{}, extractStats, error) {
	var stats extractStats
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, stats, services.Wrap(services.ErrExtraction, stageName, "open archive", archivePath, err)
	}
	defer file.Close()

	stream, err := decompress(file)
	if err != nil {
		return nil, stats, services.Wrap(services.ErrExtraction, stageName, "open archive", archivePath, err)
	}
	defer stream.Close()

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, stats, services.Wrap(services.ErrExtraction, stageName, "create work dir", workDir, err)
	}

	topLevel := make(map[string]struct{})
	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, services.Wrap(services.ErrExtraction, stageName, "read archive", archivePath, err)
		}

		rel, ok := safeRelative(hdr.Name)
		if !ok {
			return nil, stats, services.Wrap(services.ErrExtraction, stageName, "read archive", fmt.Sprintf("entry %q escapes the workspace", hdr.Name), nil)
		}
		if rel == "" {
			continue
		}
		dest := filepath.Join(workDir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, stats, services.Wrap(services.ErrExtraction, stageName, "create directory", dest, err)
			}
		case tar.TypeReg:
			if err := writeEntry(dest, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return nil, stats, services.Wrap(services.ErrExtraction, stageName, "write entry", dest, err)
			}
			stats.files++
		default:
			stats.skippedLinks++
			logger.Warn("skipping unsupported archive entry",
				logging.String("entry", hdr.Name),
				logging.String("type", string(hdr.Typeflag)),
				logging.String(logging.FieldEventType, "archive_entry_skipped"),
				logging.String(logging.FieldErrorHint, "links and device files are not extracted"),
				logging.String(logging.FieldImpact, "entry missing from output"),
			)
			continue
		}
		topLevel[strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]] = struct{}{}
	}
	return topLevel, stats, nil
}

// decompress returns a reader over the tar stream, unwrapping gzip when the
// magic bytes are present.
func decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(gzipMagic))
	if err == nil && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip header: %w", err)
		}
		return zr, nil
	}
	return io.NopCloser(br), nil
}

func writeEntry(dest string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func safeRelative(name string) (string, bool) {
	name = filepath.FromSlash(strings.TrimSpace(name))
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", false
	}
	cleaned := filepath.Clean(name)
	if cleaned == "." {
		return "", true
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", false
	}
	return cleaned, true
}

func locateContent(workDir, canonicalName string, topLevel map[string]struct{}, logger *slog.Logger) (string, bool, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return "", false, services.Wrap(services.ErrExtraction, stageName, "list work dir", workDir, err)
	}
	var dirs []string
	loose := 0
	for _, entry := range entries {
		if _, ok := topLevel[entry.Name()]; !ok {
			continue
		}
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else {
			loose++
		}
	}

	switch {
	case len(dirs) > 0:
		if len(dirs) > 1 {
			logging.WarnWithContext(logger, "archive has several top-level directories", "archive_multiple_roots",
				logging.String("chosen", dirs[0]),
				logging.Int("directories", len(dirs)),
				logging.String(logging.FieldImpact, "only the first directory becomes the output"),
			)
		}
		target := filepath.Join(workDir, canonicalName)
		if dirs[0] == canonicalName {
			return target, false, nil
		}
		if err := os.Rename(filepath.Join(workDir, dirs[0]), target); err != nil {
			return "", false, services.Wrap(services.ErrExtraction, stageName, "rename", dirs[0]+" -> "+canonicalName, err)
		}
		return target, true, nil
	case loose > 0:
		logger.Debug("archive holds loose files, using work dir as content root", logging.Int("files", loose))
		return workDir, false, nil
	default:
		return "", false, services.Wrap(services.ErrExtraction, stageName, "locate content", "archive contained no files or directories", nil)
	}
}
