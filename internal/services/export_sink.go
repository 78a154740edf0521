package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ExportFileName is the name every CSV export is delivered under.
const ExportFileName = "invoice-mix-combinations.csv"

// ExportSink delivers an exported payload to the user.
type ExportSink interface {
	Deliver(ctx context.Context, name string, data []byte) (string, error)
}

// FileSink writes exports into a directory. The payload goes to a
// temporary file first, which is renamed into place and removed on
// every failure path.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

func (s *FileSink) Deliver(ctx context.Context, name string, data []byte) (path string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if !closed {
			tmp.Close()
		}
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync export: %w", err)
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}

	path = filepath.Join(dir, filepath.Base(name))
	if err = os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("move export into place: %w", err)
	}
	return path, nil
}
