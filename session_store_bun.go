package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunSessionStore persists session pointers in the sessions table of the
// primary database.
type BunSessionStore struct {
	db      *bun.DB
	timeout time.Duration
	now     func() time.Time
}

var _ SessionStore = (*BunSessionStore)(nil)

// NewBunSessionStore creates a store where every call is bounded by timeout.
func NewBunSessionStore(db *bun.DB, timeout time.Duration) *BunSessionStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BunSessionStore{db: db, timeout: timeout, now: time.Now}
}

func (s *BunSessionStore) Put(ctx context.Context, principalID, sessionID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := &SessionRecord{
		PrincipalID: principalID,
		SessionID:   sessionID,
		UpdatedAt:   s.now().UTC(),
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (principal_id) DO UPDATE").
		Set("session_id = EXCLUDED.session_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return wrapStorage(err, "session.put")
}

func (s *BunSessionStore) Get(ctx context.Context, principalID uuid.UUID) (uuid.UUID, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := &SessionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.principal_id = ?", principalID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, wrapStorage(err, "session.get")
	}

	return record.SessionID, true, nil
}

func (s *BunSessionStore) Clear(ctx context.Context, principalID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("principal_id = ?", principalID).
		Exec(ctx)

	return wrapStorage(err, "session.clear")
}

func (s *BunSessionStore) Swap(ctx context.Context, principalID, expected, next uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.NewUpdate().
		Model((*SessionRecord)(nil)).
		Set("session_id = ?", next).
		Set("updated_at = ?", s.now().UTC()).
		Where("principal_id = ?", principalID).
		Where("session_id = ?", expected).
		Exec(ctx)
	if err != nil {
		return false, wrapStorage(err, "session.swap")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapStorage(err, "session.swap")
	}

	return n == 1, nil
}
