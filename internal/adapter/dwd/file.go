package dwd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/storm-radar-overlay/internal/domain"
)

// DefaultLocalFile is read in local mode when no path is configured.
const DefaultLocalFile = "composite_hx_test.hd5"

// File implements domain.CompositeSource over a file on disk, for offline use.
type File struct {
	path   string
	logger *slog.Logger
}

// NewFile creates a local source.
func NewFile(path string, logger *slog.Logger) *File {
	if path == "" {
		path = DefaultLocalFile
	}
	return &File{path: path, logger: logger}
}

// Check compares the file's modification time with since.
func (f *File) Check(_ context.Context, since time.Time) (domain.Freshness, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return domain.Freshness{}, fmt.Errorf("stat composite file: %w", err)
	}
	mod := info.ModTime().UTC()
	return domain.Freshness{
		Changed:      since.IsZero() || mod.After(since),
		LastModified: mod,
	}, nil
}

// Fetch reads the whole file.
func (f *File) Fetch(_ context.Context) (domain.Payload, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("stat composite file: %w", err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("read composite file: %w", err)
	}
	if len(data) == 0 {
		return domain.Payload{}, fmt.Errorf("%s: %w", f.path, ErrEmptyPayload)
	}
	f.logger.Info("loaded local composite", "path", f.path, "bytes", len(data))
	return domain.Payload{Data: data, LastModified: info.ModTime().UTC(), Origin: f.path}, nil
}
