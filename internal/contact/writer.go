package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"driver-engagement-audit/internal/metrics"
	"driver-engagement-audit/internal/registry"
	"driver-engagement-audit/internal/source"
	"driver-engagement-audit/internal/table"
)

// WriteError is returned when the registry could not be read back or
// written. The registry is left as it was before the call.
type WriteError struct {
	DriverID string
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("contact write for driver %s: %v", e.DriverID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

type WriterConfig struct {
	Logger   *slog.Logger
	Provider source.Provider
	Sheet    string
}

func (c *WriterConfig) Validate() error {
	if c.Provider == nil {
		return errors.New("provider is required")
	}
	if c.Sheet == "" {
		return errors.New("registry sheet is required")
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Writer serializes read-modify-write cycles on the stable registry.
type Writer struct {
	log      *slog.Logger
	provider source.Provider
	sheet    string

	mu sync.Mutex
}

func NewWriter(cfg WriterConfig) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Writer{log: cfg.Logger, provider: cfg.Provider, sheet: cfg.Sheet}, nil
}

// MarkContact records status for entry and returns the updated stable
// snapshot. The registry is read past any cache so edits made directly in
// the store survive. A missing registry sheet is treated as empty.
func (w *Writer) MarkContact(ctx context.Context, entry Entry, status Status) (registry.Snapshot, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return registry.Snapshot{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	raw, err := source.ReadFresh(ctx, w.provider, w.sheet)
	if err != nil && !errors.Is(err, source.ErrSheetNotFound) {
		metrics.ContactWrites.WithLabelValues("error").Inc()
		return registry.Snapshot{}, &WriteError{DriverID: entry.DriverID, Err: err}
	}
	if err != nil {
		raw = table.Table{}
	}

	updated, appended := ApplyStatus(raw, entry, status)
	if err := w.provider.WriteTable(ctx, w.sheet, updated.Header, updated.Rows); err != nil {
		metrics.ContactWrites.WithLabelValues("error").Inc()
		return registry.Snapshot{}, &WriteError{DriverID: entry.DriverID, Err: err}
	}

	metrics.ContactWrites.WithLabelValues("ok").Inc()
	w.log.Info("marked contact", "driver_id", entry.DriverID, "status", status, "appended", appended)
	return registry.FromTable(updated), nil
}
