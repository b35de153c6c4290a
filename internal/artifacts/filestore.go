package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/relay/pkg/models"
)

// FileStore writes documents under a local base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a store rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// BaseDir returns the root directory.
func (s *FileStore) BaseDir() string { return s.baseDir }

// Ensure creates the tasks, sessions, agents and shared directories.
func (s *FileStore) Ensure() error {
	for _, dir := range []string{"tasks", "sessions", "agents", "shared"} {
		if err := os.MkdirAll(filepath.Join(s.baseDir, dir), 0755); err != nil {
			return fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	return nil
}

// WriteTask implements Writer.
func (s *FileStore) WriteTask(ctx context.Context, task *models.Task) (string, error) {
	return s.write(TaskPath(task.ID), TaskMarkdown(task))
}

// WriteResult implements Writer.
func (s *FileStore) WriteResult(ctx context.Context, result *models.TaskResult) (string, error) {
	return s.write(ResultPath(result.ID), ResultMarkdown(result))
}

func (s *FileStore) write(rel, contents string) (string, error) {
	path := filepath.Join(s.baseDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", rel, err)
	}
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return path, nil
}

var _ Writer = (*FileStore)(nil)
