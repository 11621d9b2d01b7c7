// Package feed keeps a backup scheduler fed with the content of a JSON
// results file that another process rewrites.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"results-backup/internal/backup"
	"results-backup/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Sink receives every snapshot read from the results file.
type Sink interface {
	UpdateResults(snapshot backup.Snapshot)
}

// Watcher reloads a results file whenever it changes and pushes the parsed
// snapshot to its sink. A file that fails to parse is logged and skipped, so
// the sink keeps the last good snapshot.
type Watcher struct {
	path   string
	sink   Sink
	logger *logging.Logger
}

// NewWatcher creates a watcher for the results file at path.
func NewWatcher(path string, sink Sink, logger *logging.Logger) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("results file path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve results file %s: %w", path, err)
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &Watcher{
		path:   abs,
		sink:   sink,
		logger: logger,
	}, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Load reads the results file once and hands the snapshot to the sink.
func (w *Watcher) Load() error {
	snapshot, err := ReadSnapshot(w.path)
	if err != nil {
		return err
	}

	w.sink.UpdateResults(snapshot)
	w.logger.WithFields(map[string]interface{}{
		"path": w.path,
		"keys": len(snapshot),
	}).Debug("Results reloaded")
	return nil
}

// Run watches the results file until ctx is cancelled. The parent directory
// is watched rather than the file so that atomic replacements are seen. The
// file is loaded once at start when it already exists.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.WithField("path", w.path).Info("Watching results file")

	if err := w.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.WithFields(map[string]interface{}{
			"path":  w.path,
			"error": err.Error(),
		}).Warn("Initial results load failed")
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := w.Load(); err != nil {
				w.logger.WithFields(map[string]interface{}{
					"path":  w.path,
					"op":    event.Op.String(),
					"error": err.Error(),
				}).Warn("Results reload failed, keeping previous snapshot")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithField("error", err.Error()).Error("Results watcher error")
		}
	}
}

// ReadSnapshot parses a JSON object from the file at path.
func ReadSnapshot(path string) (backup.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(data)
}

// ParseSnapshot parses a JSON object. Anything other than a single object is
// rejected. Numbers are kept as json.Number.
func ParseSnapshot(data []byte) (backup.Snapshot, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var snapshot backup.Snapshot
	if err := decoder.Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("results are not a JSON object: %w", err)
	}
	if snapshot == nil {
		return nil, fmt.Errorf("results are not a JSON object: %w", backup.ErrInvalidSnapshot)
	}
	if decoder.More() {
		return nil, errors.New("results contain trailing data after the JSON object")
	}
	return snapshot, nil
}
