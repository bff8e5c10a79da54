package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxSessionStore keeps session pointers in Postgres through a dedicated
// pgx pool, independent of the primary bun database. The pool is owned by
// the caller.
type PgxSessionStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

var _ SessionStore = (*PgxSessionStore)(nil)

func NewPgxSessionStore(pool *pgxpool.Pool, timeout time.Duration) *PgxSessionStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PgxSessionStore{pool: pool, timeout: timeout}
}

// NewPgxPool parses url, connects and pings within timeout.
func NewPgxPool(ctx context.Context, url string, timeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

const (
	pgxSessionPutSQL = `INSERT INTO sessions (principal_id, session_id, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (principal_id) DO UPDATE
SET session_id = EXCLUDED.session_id, updated_at = EXCLUDED.updated_at`

	pgxSessionGetSQL   = `SELECT session_id FROM sessions WHERE principal_id = $1`
	pgxSessionClearSQL = `DELETE FROM sessions WHERE principal_id = $1`

	pgxSessionSwapSQL = `UPDATE sessions
SET session_id = $3, updated_at = now()
WHERE principal_id = $1 AND session_id = $2`
)

func (s *PgxSessionStore) Put(ctx context.Context, principalID, sessionID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, pgxSessionPutSQL, principalID, sessionID)
	return wrapStorage(err, "session.put")
}

func (s *PgxSessionStore) Get(ctx context.Context, principalID uuid.UUID) (uuid.UUID, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var sessionID uuid.UUID
	err := s.pool.QueryRow(ctx, pgxSessionGetSQL, principalID).Scan(&sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, wrapStorage(err, "session.get")
	}
	return sessionID, true, nil
}

func (s *PgxSessionStore) Clear(ctx context.Context, principalID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, pgxSessionClearSQL, principalID)
	return wrapStorage(err, "session.clear")
}

func (s *PgxSessionStore) Swap(ctx context.Context, principalID, expected, next uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, pgxSessionSwapSQL, principalID, expected, next)
	if err != nil {
		return false, wrapStorage(err, "session.swap")
	}
	return tag.RowsAffected() == 1, nil
}
