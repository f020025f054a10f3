package remotejob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"voicebatch/internal/logging"
	"voicebatch/internal/services"
	"voicebatch/internal/services/minimax"
)

// ArchiveExt is the extension given to downloaded artifacts.
const ArchiveExt = ".tar"

// FileAPI is the part of the API client needed to fetch artifacts.
type FileAPI interface {
	RetrieveFile(ctx context.Context, fileID minimax.ID) (minimax.FileInfo, error)
	Download(ctx context.Context, downloadURL string, w io.Writer) (int64, error)
}

// Artifact is a downloaded archive on local disk.
type Artifact struct {
	Path        string
	DownloadURL string
	Bytes       int64
}

// Retriever downloads job artifacts.
type Retriever struct {
	api    FileAPI
	logger *slog.Logger
}

// NewRetriever constructs a retriever.
func NewRetriever(api FileAPI, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Retriever{api: api, logger: logging.NewComponentLogger(logger, "retriever")}
}

// Retrieve resolves ref to a download URL and streams the archive to
// dest/baseName.tar. dest is created when missing. A partially written archive
// is removed on failure.
func (r *Retriever) Retrieve(ctx context.Context, ref ArtifactRef, dest, baseName string) (Artifact, error) {
	logger := logging.WithContext(ctx, r.logger).With(logging.FileID(ref.FileID.String()))
	if r.api == nil {
		return Artifact{}, services.Wrap(services.ErrRetrieval, stageDownloading, "validate", "api client unavailable", nil)
	}
	if ref.FileID.IsZero() {
		return Artifact{}, services.Wrap(services.ErrRetrieval, stageDownloading, "validate", "missing file id", nil)
	}
	baseName = strings.TrimSpace(baseName)
	if baseName == "" || baseName != filepath.Base(baseName) {
		return Artifact{}, services.Wrap(services.ErrRetrieval, stageDownloading, "validate", fmt.Sprintf("invalid base name %q", baseName), nil)
	}

	info, err := r.api.RetrieveFile(ctx, ref.FileID)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrRetrieval, stageDownloading, "lookup file", ref.FileID.String(), err)
	}
	downloadURL := strings.TrimSpace(info.DownloadURL)
	if downloadURL == "" {
		return Artifact{}, services.Wrap(services.ErrRetrieval, stageDownloading, "lookup file", "no download url in file metadata", nil)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Artifact{}, services.Wrap(services.ErrRetrieval, stageDownloading, "create destination", dest, err)
	}
	path := filepath.Join(dest, baseName+ArchiveExt)
	written, err := r.download(ctx, downloadURL, path)
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.Warn("failed to remove partial archive",
				logging.Path(path),
				logging.Error(removeErr),
			)
		}
		return Artifact{}, services.Wrap(services.ErrRetrieval, stageDownloading, "download archive", path, err)
	}

	logger.Info("archive downloaded",
		logging.Path(path),
		logging.Int64("bytes", written),
	)
	return Artifact{Path: path, DownloadURL: downloadURL, Bytes: written}, nil
}

func (r *Retriever) download(ctx context.Context, downloadURL, path string) (int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	written, err := r.api.Download(ctx, downloadURL, file)
	if err != nil {
		_ = file.Close()
		return written, err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return written, err
	}
	if err := file.Close(); err != nil {
		return written, err
	}
	if written == 0 {
		return 0, errors.New("empty archive")
	}
	return written, nil
}
