// Package widelog appends one wide JSON record per processed message to a
// per-day JSONL file. The wide log is an analysis artifact, separate from the
// operational slog output: each record carries everything known about one
// message's processing in a single line.
package widelog

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one wide-log entry. Arbitrary fields are allowed; the writer
// stamps Timestamp itself.
type Record map[string]any

// Writer appends records to <dir>/<YYYY-MM-DD>.jsonl. Failures are logged
// and swallowed: the wide log must never affect message processing.
type Writer struct {
	dir string
	log *slog.Logger

	mu sync.Mutex
}

// NewWriter creates a wide-log writer rooted at dir. An empty dir disables
// the writer (Append becomes a no-op).
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		dir: dir,
		log: logger.With("component", "widelog"),
	}
}

// Append writes one record to today's file.
func (w *Writer) Append(ctx context.Context, record Record) {
	if w == nil || w.dir == "" {
		return
	}

	now := time.Now()
	out := Record{"timestamp": now.UTC().Format(time.RFC3339Nano)}
	for k, v := range record {
		out[k] = v
	}

	data, err := json.Marshal(out)
	if err != nil {
		w.log.WarnContext(ctx, "Failed to marshal wide log record", "error", err)
		return
	}
	data = append(data, '\n')

	path := filepath.Join(w.dir, now.Format("2006-01-02")+".jsonl")

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		w.log.WarnContext(ctx, "Failed to create wide log directory", "dir", w.dir, "error", err)
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		w.log.WarnContext(ctx, "Failed to open wide log file", "path", path, "error", err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			w.log.WarnContext(ctx, "Failed to close wide log file", "path", path, "error", closeErr)
		}
	}()

	if _, err := f.Write(data); err != nil {
		w.log.WarnContext(ctx, "Failed to write wide log record", "path", path, "error", err)
	}
}
