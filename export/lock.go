package export

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborline/shopcsv/errors"
)

// LeaseStore is the non-blocking, TTL-based mutex preventing two runs of
// the same job id from overlapping. Acquire never queues: it returns false
// immediately when the lease is held. An unreleased lease expires after its
// TTL, bounding worst-case staleness after a crash.
type LeaseStore interface {
	Acquire(key string, ttl time.Duration) (bool, error)
	Release(key string) error
}

// SQLiteLeaseStore persists leases in the export_locks table
type SQLiteLeaseStore struct {
	db     *sql.DB
	holder string
}

// NewSQLiteLeaseStore creates a lease store over the given database.
// Each store instance gets a distinct holder id so Release only removes
// leases this instance acquired.
func NewSQLiteLeaseStore(db *sql.DB) *SQLiteLeaseStore {
	return &SQLiteLeaseStore{db: db, holder: uuid.NewString()}
}

// Acquire implements LeaseStore. An expired lease row is overwritten by the
// next Acquire rather than garbage-collected.
func (s *SQLiteLeaseStore) Acquire(key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	result, err := s.db.Exec(`
		INSERT INTO export_locks (key, holder, expires_at, acquired_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			holder = excluded.holder,
			expires_at = excluded.expires_at,
			acquired_at = excluded.acquired_at
		WHERE export_locks.expires_at <= ?`,
		key, s.holder, now.Add(ttl), now, now,
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to acquire lease %s", key)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows > 0, nil
}

// Release implements LeaseStore
func (s *SQLiteLeaseStore) Release(key string) error {
	_, err := s.db.Exec(`DELETE FROM export_locks WHERE key = ? AND holder = ?`, key, s.holder)
	if err != nil {
		return errors.Wrapf(err, "failed to release lease %s", key)
	}
	return nil
}

type memoryLease struct {
	holder    string
	expiresAt time.Time
}

// MemoryLeaseStore keeps leases in memory. Used in tests and single-process
// deployments that do not share a database.
type MemoryLeaseStore struct {
	mu     sync.Mutex
	holder string
	leases map[string]memoryLease
}

// NewMemoryLeaseStore creates an empty in-memory lease store
func NewMemoryLeaseStore() *MemoryLeaseStore {
	return &MemoryLeaseStore{
		holder: uuid.NewString(),
		leases: make(map[string]memoryLease),
	}
}

// Acquire implements LeaseStore
func (s *MemoryLeaseStore) Acquire(key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if lease, ok := s.leases[key]; ok && lease.expiresAt.After(now) {
		return false, nil
	}
	s.leases[key] = memoryLease{holder: s.holder, expiresAt: now.Add(ttl)}
	return true, nil
}

// Release implements LeaseStore
func (s *MemoryLeaseStore) Release(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lease, ok := s.leases[key]; ok && lease.holder == s.holder {
		delete(s.leases, key)
	}
	return nil
}

var (
	_ LeaseStore = (*SQLiteLeaseStore)(nil)
	_ LeaseStore = (*MemoryLeaseStore)(nil)
)
