package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WorkspaceSuffix marks directories owned by this package.
const WorkspaceSuffix = "_workspace"

// Name returns the workspace directory name for a task. scope keeps tasks of
// different batches apart when they share a workspace root.
func Name(baseName, scope string, taskNum int) string {
	if scope == "" {
		return fmt.Sprintf("%s_task%d%s", baseName, taskNum, WorkspaceSuffix)
	}
	return fmt.Sprintf("%s_%s_task%d%s", baseName, scope, taskNum, WorkspaceSuffix)
}

// Prepare creates a fresh workspace for the task under root, removing any
// stale directory of the same name first.
func Prepare(root, scope, baseName string, taskNum int) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", errors.New("workspace root required")
	}
	if baseName == "" || baseName != filepath.Base(baseName) {
		return "", fmt.Errorf("invalid workspace base name %q", baseName)
	}
	if scope != filepath.Base(scope) {
		return "", fmt.Errorf("invalid workspace scope %q", scope)
	}
	dir := filepath.Join(root, Name(baseName, scope, taskNum))
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear stale workspace: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

// Remove deletes a workspace and everything in it. Missing directories are
// not an error.
func Remove(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
