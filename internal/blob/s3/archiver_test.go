package s3blob

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mawtrade/mawbot/internal/domain"
)

type fakeWriter struct {
	puts    []string
	bodies  []string
	putErr  error
	content []string
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	if w.putErr != nil {
		return w.putErr
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.puts = append(w.puts, path)
	w.bodies = append(w.bodies, string(body))
	w.content = append(w.content, contentType)
	return nil
}

// fakeCycleStore keeps cycles sorted oldest first, matching the Postgres
// query order.
type fakeCycleStore struct {
	cycles []domain.TradeCycle
}

func (s *fakeCycleStore) Insert(context.Context, domain.TradeCycle) error { return nil }

func (s *fakeCycleStore) ListRecent(context.Context, int) ([]domain.TradeCycle, error) {
	return nil, nil
}

func (s *fakeCycleStore) ListBySymbol(context.Context, string, int) ([]domain.TradeCycle, error) {
	return nil, nil
}

func (s *fakeCycleStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.TradeCycle, error) {
	var out []domain.TradeCycle
	for _, c := range s.cycles {
		if c.ClosedAt.Before(cutoff) {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeCycleStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []domain.TradeCycle
	var deleted int64
	for _, c := range s.cycles {
		if c.ClosedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, c)
	}
	s.cycles = kept
	return deleted, nil
}

func cycleClosedAt(symbol string, closed time.Time) domain.TradeCycle {
	return domain.TradeCycle{
		ID:       "id-" + symbol + closed.Format("150405"),
		Symbol:   symbol,
		FinalPnL: 1.2,
		OpenedAt: closed.Add(-time.Hour),
		ClosedAt: closed,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCycleArchiverMovesExpiredCycles(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	fresh := time.Now().Add(-time.Hour)

	store := &fakeCycleStore{cycles: []domain.TradeCycle{
		cycleClosedAt("BTC", old),
		cycleClosedAt("HYPE", old.Add(time.Minute)),
		cycleClosedAt("HYPE", fresh),
	}}
	writer := &fakeWriter{}

	arch := NewCycleArchiver(writer, store, 24*time.Hour, discardLogger())

	moved, err := arch.Archive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	require.Len(t, writer.puts, 1)
	assert.True(t, strings.HasPrefix(writer.puts[0], "archive/cycles/"))
	assert.Equal(t, "application/x-ndjson", writer.content[0])

	lines := strings.Split(strings.TrimRight(writer.bodies[0], "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"BTC"`)
	assert.Contains(t, lines[1], `"HYPE"`)

	// The fresh cycle stays in the store.
	require.Len(t, store.cycles, 1)
	assert.Equal(t, fresh, store.cycles[0].ClosedAt)
}

func TestCycleArchiverNothingToDo(t *testing.T) {
	store := &fakeCycleStore{cycles: []domain.TradeCycle{
		cycleClosedAt("BTC", time.Now().Add(-time.Hour)),
	}}
	writer := &fakeWriter{}

	arch := NewCycleArchiver(writer, store, 24*time.Hour, discardLogger())

	moved, err := arch.Archive(context.Background())
	require.NoError(t, err)
	assert.Zero(t, moved)
	assert.Empty(t, writer.puts)
	assert.Len(t, store.cycles, 1)
}

func TestCycleArchiverUploadFailureKeepsRows(t *testing.T) {
	store := &fakeCycleStore{cycles: []domain.TradeCycle{
		cycleClosedAt("BTC", time.Now().Add(-48*time.Hour)),
	}}
	writer := &fakeWriter{putErr: assert.AnError}

	arch := NewCycleArchiver(writer, store, 24*time.Hour, discardLogger())

	moved, err := arch.Archive(context.Background())
	require.Error(t, err)
	assert.Zero(t, moved)
	assert.Len(t, store.cycles, 1)
}

func TestCycleArchiverPagesLargeBacklogs(t *testing.T) {
	base := time.Now().Add(-72 * time.Hour)
	store := &fakeCycleStore{}
	for i := 0; i < archiveBatchSize+10; i++ {
		store.cycles = append(store.cycles, cycleClosedAt("BTC", base.Add(time.Duration(i)*time.Second)))
	}
	writer := &fakeWriter{}

	arch := NewCycleArchiver(writer, store, 24*time.Hour, discardLogger())

	moved, err := arch.Archive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(archiveBatchSize+10), moved)
	assert.Len(t, writer.puts, 2)
	assert.Empty(t, store.cycles)
}
