package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createCyclesSQL = `CREATE TABLE IF NOT EXISTS scraper_cycles (
        cycle_id          TEXT PRIMARY KEY,
        exchange          TEXT NOT NULL,
        status            TEXT NOT NULL,
        started_at        TIMESTAMPTZ NOT NULL,
        finished_at       TIMESTAMPTZ NOT NULL,
        symbols           INTEGER NOT NULL DEFAULT 0,
        rows_published    INTEGER NOT NULL DEFAULT 0,
        dropped           INTEGER NOT NULL DEFAULT 0,
        published         TEXT[] NOT NULL DEFAULT '{}',
        failed_artifacts  TEXT[] NOT NULL DEFAULT '{}',
        error             TEXT,
        created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE INDEX IF NOT EXISTS scraper_cycles_exchange_started_idx
        ON scraper_cycles (exchange, started_at DESC);`

	insertCycleSQL = `INSERT INTO scraper_cycles (
        cycle_id,
        exchange,
        status,
        started_at,
        finished_at,
        symbols,
        rows_published,
        dropped,
        published,
        failed_artifacts,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (cycle_id) DO UPDATE
    SET
        status           = EXCLUDED.status,
        finished_at      = EXCLUDED.finished_at,
        symbols          = EXCLUDED.symbols,
        rows_published   = EXCLUDED.rows_published,
        dropped          = EXCLUDED.dropped,
        published        = EXCLUDED.published,
        failed_artifacts = EXCLUDED.failed_artifacts,
        error            = EXCLUDED.error;`

	selectCycleColumns = `SELECT
        cycle_id,
        exchange,
        status,
        started_at,
        finished_at,
        symbols,
        rows_published,
        dropped,
        published,
        failed_artifacts,
        error,
        created_at
    FROM scraper_cycles`

	listRecentCyclesSQL = selectCycleColumns + `
    WHERE ($1::text = '' OR exchange = $1)
    ORDER BY started_at DESC
    LIMIT $2;`

	countCyclesSQL = `SELECT COUNT(*) FROM scraper_cycles WHERE ($1::text = '' OR exchange = $1) AND status = $2;`

	deleteCyclesBeforeSQL = `DELETE FROM scraper_cycles WHERE started_at < $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// CycleStore persists scraper cycle summaries.
type CycleStore interface {
	InsertCycle(ctx context.Context, cycle CycleRecord) error
	ListRecentCycles(ctx context.Context, exchange string, limit int) ([]CycleRecord, error)
	CountCycles(ctx context.Context, exchange, status string) (int64, error)
	DeleteCyclesBefore(ctx context.Context, olderThan time.Time) error
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store provides access to cycle history and advisory locks.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the cycle table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createCyclesSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// the session lock dies with the connection
			conn.Conn().Close(ctxUnlock)
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertCycle persists or updates a cycle summary.
func (s *Store) InsertCycle(ctx context.Context, cycle CycleRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if cycle.Error != nil {
		errMsg = *cycle.Error
	}

	_, execErr := pool.Exec(ctx, insertCycleSQL,
		cycle.ID,
		cycle.Exchange,
		cycle.Status,
		cycle.StartedAt,
		cycle.FinishedAt,
		cycle.Symbols,
		cycle.Rows,
		cycle.Dropped,
		nonNil(cycle.Published),
		nonNil(cycle.FailedArtifacts),
		errMsg,
	)
	if execErr != nil {
		return fmt.Errorf("insert cycle: %w", execErr)
	}
	return nil
}

// ListRecentCycles lists the latest cycles, optionally for one exchange.
func (s *Store) ListRecentCycles(ctx context.Context, exchange string, limit int) ([]CycleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentCyclesSQL, exchange, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent cycles: %w", queryErr)
	}
	defer rows.Close()

	cycles := make([]CycleRecord, 0, limit)
	for rows.Next() {
		cycle, scanErr := scanCycle(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		cycles = append(cycles, cycle)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return cycles, nil
}

// CountCycles counts stored cycles with status, optionally for one exchange.
func (s *Store) CountCycles(ctx context.Context, exchange, status string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countCyclesSQL, exchange, status).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count cycles: %w", scanErr)
	}
	return count, nil
}

// DeleteCyclesBefore prunes history older than olderThan.
func (s *Store) DeleteCyclesBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteCyclesBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete cycles before: %w", execErr)
	}
	return nil
}

func scanCycle(rows pgx.Rows) (CycleRecord, error) {
	var (
		cycle  CycleRecord
		errMsg sql.NullString
	)
	if err := rows.Scan(
		&cycle.ID,
		&cycle.Exchange,
		&cycle.Status,
		&cycle.StartedAt,
		&cycle.FinishedAt,
		&cycle.Symbols,
		&cycle.Rows,
		&cycle.Dropped,
		&cycle.Published,
		&cycle.FailedArtifacts,
		&errMsg,
		&cycle.CreatedAt,
	); err != nil {
		return CycleRecord{}, err
	}
	if errMsg.Valid {
		msg := errMsg.String
		cycle.Error = &msg
	}
	return cycle, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var (
	_ CycleStore     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
