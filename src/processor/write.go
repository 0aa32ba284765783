package processor

import (
	"fmt"
	"os"

	"github.com/pboueri/assetc/src/util"
)

// FileWriter writes to disk, creating parent directories.
type FileWriter struct{}

func NewFileWriter() *FileWriter {
	return &FileWriter{}
}

func (w *FileWriter) Write(path, content string) error {
	if err := util.EnsureFileDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
