package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Locker serializes apply and rollback runs. The journal file is
// read-modify-write with no optimistic concurrency check, so two concurrent
// runners would race on both the database and the journal; the lock makes the
// second invocation wait or fail instead.
type Locker interface {
	// Lock acquires the lock. The returned function releases it and must be
	// called on every exit path.
	Lock(ctx context.Context) (func(), error)
}

// PostgresAdvisoryLock holds a pg_advisory_lock for the duration of a run.
// The lock is session-scoped, so a crashed runner releases it when its
// connection drops.
type PostgresAdvisoryLock struct {
	db  *sql.DB
	key int64
}

// NewPostgresAdvisoryLock creates a lock identified by name. The name is
// hashed to the int64 key space pg_advisory_lock expects.
func NewPostgresAdvisoryLock(db *sql.DB, name string) *PostgresAdvisoryLock {
	return &PostgresAdvisoryLock{db: db, key: advisoryKey(name)}
}

func (l *PostgresAdvisoryLock) Lock(ctx context.Context) (func(), error) {
	if _, err := l.db.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, l.key); err != nil {
		return nil, fmt.Errorf("pg_advisory_lock(%d): %w", l.key, err)
	}
	release := func() {
		_, _ = l.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, l.key)
	}
	return release, nil
}

// ProcessLock is a process-local lock for databases without advisory locks
// (sqlite, libsql). SQLite is single-writer and its file locking covers the
// cross-process case; the mutex covers concurrent runners inside one process.
type ProcessLock struct {
	mu sync.Mutex
}

func NewProcessLock() *ProcessLock {
	return &ProcessLock{}
}

func (l *ProcessLock) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire migration lock: %w", err)
	}
	l.mu.Lock()
	return func() { l.mu.Unlock() }, nil
}

// advisoryKey hashes a lock name into the positive int64 range using FNV-1a.
func advisoryKey(name string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= 1099511628211
	}
	return int64(h & 0x7FFFFFFFFFFFFFFF)
}
