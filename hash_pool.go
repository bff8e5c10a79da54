package auth

import (
	"context"
	"runtime"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/semaphore"
)

// HashPool runs password hashing off the request goroutine with a bounded
// number of concurrent workers. Callers stop waiting when their context ends.
type HashPool struct {
	hasher PasswordHasher
	sem    *semaphore.Weighted
}

// NewHashPool wraps hasher. workers <= 0 uses GOMAXPROCS.
func NewHashPool(hasher PasswordHasher, workers int) *HashPool {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &HashPool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

// Hash returns the digest of password.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	var digest string
	err := p.run(ctx, func() error {
		var err error
		digest, err = p.hasher.HashPassword(password)
		return err
	})
	if err != nil {
		return "", err
	}
	return digest, nil
}

// Compare checks password against digest. A mismatch yields
// ErrMismatchedHashAndPassword.
func (p *HashPool) Compare(ctx context.Context, password, digest string) error {
	return p.run(ctx, func() error {
		return p.hasher.ComparePasswordAndHash(password, digest)
	})
}

func (p *HashPool) run(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled waiting for a hash worker")
	}

	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password hashing")
	}
}
