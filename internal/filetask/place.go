package filetask

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"voicebatch/internal/fileutil"
)

const maxPlacementSuffix = 1000

var renameMu sync.Mutex

// Place moves src to outputRoot/baseName, or to the first free
// outputRoot/baseName_N. Existing directories are never merged or replaced.
func Place(src, outputRoot, baseName string) (string, error) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return "", err
	}
	for i := 0; i <= maxPlacementSuffix; i++ {
		name := baseName
		if i > 0 {
			name = fmt.Sprintf("%s_%d", baseName, i)
		}
		target := filepath.Join(outputRoot, name)
		err := move(src, target)
		if err == nil {
			return target, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free output name for %s after %d attempts", baseName, maxPlacementSuffix)
}

func move(src, dst string) error {
	err := renameNoReplace(src, dst)
	if err == nil || !errors.Is(err, syscall.EXDEV) {
		return err
	}
	return copyAcross(src, dst)
}

// copyAcross claims dst with mkdir, copies src into it, then removes src.
func copyAcross(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.Mkdir(dst, info.Mode().Perm()); err != nil {
		return err
	}
	if _, err := fileutil.CopyTree(src, dst); err != nil {
		_ = os.RemoveAll(dst)
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// renameGuarded checks and renames under a process-wide lock. It cannot
// protect against other processes writing the same output root.
func renameGuarded(src, dst string) error {
	renameMu.Lock()
	defer renameMu.Unlock()
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}
