package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mawtrade/mawbot/internal/domain"
)

// archiveBatchSize bounds how many cycles are held in memory per upload.
const archiveBatchSize = 500

// CycleArchiver moves old trade cycles out of Postgres and into object
// storage. Cycles closed before the retention cutoff are serialized to JSONL,
// uploaded, and only then deleted from the primary store, so a failed upload
// never loses data.
type CycleArchiver struct {
	writer    domain.BlobWriter
	cycles    domain.CycleStore
	retention time.Duration
	logger    *slog.Logger
}

// NewCycleArchiver creates a CycleArchiver. Retention is how long cycles stay
// in the primary store before archival.
func NewCycleArchiver(writer domain.BlobWriter, cycles domain.CycleStore, retention time.Duration, logger *slog.Logger) *CycleArchiver {
	return &CycleArchiver{
		writer:    writer,
		cycles:    cycles,
		retention: retention,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Archive performs one archival pass and returns how many cycles were moved.
// It pages through expired cycles oldest first, uploading each batch before
// deleting it.
func (a *CycleArchiver) Archive(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-a.retention)

	var total int64
	for {
		cycles, err := a.cycles.ListBefore(ctx, cutoff, archiveBatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive query: %w", err)
		}
		if len(cycles) == 0 {
			return total, nil
		}

		buf, err := marshalJSONL(cycles)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive marshal: %w", err)
		}

		path := archivePath(cycles[len(cycles)-1].ClosedAt)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return total, fmt.Errorf("s3blob: archive upload: %w", err)
		}

		// Delete exactly the batch just uploaded: everything closed up to
		// and including the newest archived cycle.
		newest := cycles[len(cycles)-1].ClosedAt
		deleted, err := a.cycles.DeleteBefore(ctx, newest.Add(time.Nanosecond))
		if err != nil {
			return total, fmt.Errorf("s3blob: archive delete: %w", err)
		}
		total += deleted

		a.logger.Info("archived trade cycles",
			slog.String("path", path),
			slog.Int("count", len(cycles)),
			slog.Int64("deleted", deleted))

		if len(cycles) < archiveBatchSize {
			return total, nil
		}
	}
}

// RunPeriodic runs Archive on the given interval until the context is
// cancelled. Errors are logged and the next tick retries.
func (a *CycleArchiver) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Archive(ctx); err != nil {
				a.logger.Error("archival pass failed", slog.Any("error", err))
			}
		}
	}
}

// archivePath builds the S3 key for an archive batch, named after the newest
// cycle it contains.
//
//	archive/cycles/2026-09-01T12-30-05.jsonl
func archivePath(newest time.Time) string {
	return fmt.Sprintf("archive/cycles/%s.jsonl", newest.UTC().Format("2006-01-02T15-04-05"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON, one
// compact line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
