package warden

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FileArtifactWriter writes timestamped JSON artifacts under a configured
// directory, optionally mirroring each artifact to an object-storage bucket.
// The local write is authoritative; a mirror failure is logged, not returned.
type FileArtifactWriter struct {
	uploader Uploader
	logger   *slog.Logger
	now      func() time.Time
	dir      string
	bucket   string
	prefix   string
}

// FileArtifactConfig holds artifact writer configuration
type FileArtifactConfig struct {
	Logger *slog.Logger
	// Uploader is optional; when set together with Bucket, artifacts are
	// mirrored to object storage
	Uploader Uploader
	Dir      string
	Bucket   string
	Prefix   string
}

// NewFileArtifactWriter creates a new artifact writer
func NewFileArtifactWriter(cfg FileArtifactConfig) *FileArtifactWriter {
	return &FileArtifactWriter{
		dir:      cfg.Dir,
		uploader: cfg.Uploader,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// WriteJSON writes payload as <name>-<timestamp>.json and returns the path
func (w *FileArtifactWriter) WriteJSON(ctx context.Context, name string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s artifact: %w", name, err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory %s: %w", w.dir, err)
	}

	filename := fmt.Sprintf("%s-%s.json", name, w.now().UTC().Format("2006-01-02T15-04-05"))
	path := filepath.Join(w.dir, filename)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	w.logger.Info("artifact written", "path", path, "sizeBytes", len(data))

	if w.uploader != nil && w.bucket != "" {
		key := w.prefix + filename
		if err := w.uploader.Upload(ctx, w.bucket, key, data); err != nil {
			w.logger.Error("failed to mirror artifact to object storage",
				"bucket", w.bucket,
				"key", key,
				"error", err)
		} else {
			w.logger.Info("artifact mirrored", "bucket", w.bucket, "key", key)
		}
	}

	return path, nil
}
