package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mawtrade/mawbot/internal/domain"
)

// CycleStore implements domain.CycleStore using PostgreSQL.
type CycleStore struct {
	pool *pgxpool.Pool
}

// NewCycleStore creates a CycleStore backed by the given connection pool.
func NewCycleStore(pool *pgxpool.Pool) *CycleStore {
	return &CycleStore{pool: pool}
}

const cycleSelectCols = `id, symbol, entry_price, size_dollars, final_pnl,
	peak_pnl, opened_at, closed_at`

func scanCycleRows(rows pgx.Rows) ([]domain.TradeCycle, error) {
	var cycles []domain.TradeCycle
	for rows.Next() {
		var c domain.TradeCycle
		if err := rows.Scan(
			&c.ID, &c.Symbol, &c.EntryPrice, &c.SizeInDollars,
			&c.FinalPnL, &c.PeakPnL, &c.OpenedAt, &c.ClosedAt,
		); err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Insert journals one completed cycle.
func (s *CycleStore) Insert(ctx context.Context, cycle domain.TradeCycle) error {
	const query = `
		INSERT INTO trade_cycles (
			id, symbol, entry_price, size_dollars, final_pnl,
			peak_pnl, opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		cycle.ID, cycle.Symbol, cycle.EntryPrice, cycle.SizeInDollars,
		cycle.FinalPnL, cycle.PeakPnL, cycle.OpenedAt, cycle.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert cycle %s: %w", cycle.ID, err)
	}
	return nil
}

// ListRecent returns the most recently closed cycles, newest first.
func (s *CycleStore) ListRecent(ctx context.Context, limit int) ([]domain.TradeCycle, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM trade_cycles
		ORDER BY closed_at DESC
		LIMIT $1`, cycleSelectCols)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent cycles: %w", err)
	}
	defer rows.Close()

	return scanCycleRows(rows)
}

// ListBySymbol returns the most recent cycles for one symbol, newest first.
func (s *CycleStore) ListBySymbol(ctx context.Context, symbol string, limit int) ([]domain.TradeCycle, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM trade_cycles
		WHERE symbol = $1
		ORDER BY closed_at DESC
		LIMIT $2`, cycleSelectCols)

	rows, err := s.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycles for %s: %w", symbol, err)
	}
	defer rows.Close()

	return scanCycleRows(rows)
}

// ListBefore returns cycles closed before cutoff, oldest first, for archival.
func (s *CycleStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeCycle, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM trade_cycles
		WHERE closed_at < $1
		ORDER BY closed_at ASC
		LIMIT $2`, cycleSelectCols)

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cycles before %s: %w", cutoff, err)
	}
	defer rows.Close()

	return scanCycleRows(rows)
}

// DeleteBefore removes cycles closed before cutoff and reports how many rows
// went away.
func (s *CycleStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM trade_cycles WHERE closed_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete cycles before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}
