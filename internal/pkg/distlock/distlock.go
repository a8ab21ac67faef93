package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/claims-pipeline/internal/pkg/logger"
)

var (
	// ErrHeld is returned by Guard when another run holds the lock.
	ErrHeld = errors.New("run lock held by another process")
	// ErrLost is returned by Guard when the lock expired or was taken mid-run.
	ErrLost = errors.New("run lock lost")
)

// RunLock keeps two pipeline runs from writing the same artifacts at once.
// A lock instance belongs to a single run.
type RunLock interface {
	// Acquire tries to take the lock without blocking. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this run still owns it.
	Release(ctx context.Context) error
}

// Options selects a backend. Redis wins when both URLs are set; with
// neither the lock is a no-op.
type Options struct {
	Key         string
	RedisURL    string
	DatabaseURL string
	TTL         time.Duration
}

// Open builds the lock described by opts. The returned close func
// releases the backend client and is never nil.
func Open(opts Options) (RunLock, func() error, error) {
	switch {
	case opts.RedisURL != "":
		ropts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(ropts)
		return NewRedisLock(client, opts.Key, opts.TTL), client.Close, nil
	case opts.DatabaseURL != "":
		db, err := sql.Open("postgres", opts.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return NewPGAdvisoryLock(db, opts.Key), db.Close, nil
	}
	return NoopLock{}, func() error { return nil }, nil
}

// Extender is implemented by locks that expire unless refreshed. Guard
// refreshes them every TTL/2 while the guarded function runs.
type Extender interface {
	TTL() time.Duration
	// Extend resets the TTL. It reports false when the lock is no longer owned.
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
}

// Guard acquires l, runs fn, and releases l. It returns ErrHeld without
// calling fn when the lock is taken. If l is an Extender, the lock is kept
// alive while fn runs; when it cannot be kept, fn's context is cancelled
// and Guard returns ErrLost.
func Guard(ctx context.Context, l RunLock, fn func(context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	defer func() {
		// The run's ctx may already be cancelled; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(rctx)
	}()

	ext, ok := l.(Extender)
	if !ok || ext.TTL() <= 0 {
		return fn(ctx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var lost atomic.Bool
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		heartbeat(runCtx, ext, done, func() {
			lost.Store(true)
			cancel()
		})
	}()

	err = fn(runCtx)
	close(done)
	<-stopped
	if lost.Load() {
		if err == nil {
			return ErrLost
		}
		return fmt.Errorf("%w: %v", ErrLost, err)
	}
	return err
}

func heartbeat(ctx context.Context, ext Extender, done <-chan struct{}, onLost func()) {
	ttl := ext.TTL()
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ectx, cancel := context.WithTimeout(ctx, ttl/2)
			owned, err := ext.Extend(ectx, ttl)
			cancel()
			if err != nil {
				// retried on the next tick
				logger.Warn("run lock extend failed", "error", err)
				continue
			}
			if !owned {
				logger.Error("run lock lost, cancelling run")
				onLost()
				return
			}
		}
	}
}

// NoopLock always succeeds. Used when locking is disabled.
type NoopLock struct{}

func (NoopLock) Acquire(context.Context) (bool, error) { return true, nil }
func (NoopLock) Release(context.Context) error         { return nil }

// PGAdvisoryLock uses pg_try_advisory_lock / pg_advisory_unlock. Advisory
// locks are session-scoped, so the lock pins one pooled connection from
// Acquire until Release. A dropped connection frees the lock.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock derives a deterministic lock ID from key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to take the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, fmt.Errorf("advisory lock %d already acquired", l.lockID)
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock connection: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("acquire advisory lock %d: %w", l.lockID, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks and returns the pinned connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID); err != nil {
		return fmt.Errorf("release advisory lock %d: %w", l.lockID, err)
	}
	return nil
}
