package testfixtures

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/example/timecapsule/internal/persistence"
	"github.com/example/timecapsule/internal/persistence/sqlite"
	"github.com/example/timecapsule/internal/seed"
)

// SQLiteHarness is a migrated SQLite database in the test's temporary
// directory together with the repositories built on it.
type SQLiteHarness struct {
	DSN        string
	Pool       *sqlite.ConnectionPool
	Identities persistence.IdentityRepository
	Messages   persistence.MessageRepository
	KeyValues  persistence.KeyValueStore

	closeOnce sync.Once
}

// NewSQLiteHarness opens and migrates the database. It is closed
// automatically when the test ends; Close may be called earlier.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()
	return openSQLiteHarness(tb, "file:"+filepath.Join(tb.TempDir(), "timecapsule.db"))
}

// Reopen closes the database and opens it again at the same DSN, the way a
// process restart would.
func (h *SQLiteHarness) Reopen(tb testing.TB) *SQLiteHarness {
	tb.Helper()
	h.Close()
	return openSQLiteHarness(tb, h.DSN)
}

func openSQLiteHarness(tb testing.TB, dsn string) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	pool, err := sqlite.NewConnectionPool(ctx, sqlite.Config{DSN: dsn})
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate sqlite: %v", err)
	}

	harness := &SQLiteHarness{
		DSN:        dsn,
		Pool:       pool,
		Identities: sqlite.NewIdentityRepository(pool),
		Messages:   sqlite.NewMessageRepository(pool),
		KeyValues:  sqlite.NewKeyValueRepository(pool),
	}
	tb.Cleanup(harness.Close)
	return harness
}

// Close releases the database.
func (h *SQLiteHarness) Close() {
	if h == nil {
		return
	}
	h.closeOnce.Do(func() { _ = h.Pool.Close() })
}

// SeedDefault loads the built-in demo seed relative to ReferenceTime unless
// the database has already been seeded.
func (h *SQLiteHarness) SeedDefault(tb testing.TB) seed.Result {
	tb.Helper()

	data, err := seed.Default()
	if err != nil {
		tb.Fatalf("failed to parse default seed: %v", err)
	}
	result, err := seed.ApplyOnce(context.Background(), data, ReferenceTime(), h.KeyValues, h.Identities, h.Messages)
	if err != nil {
		tb.Fatalf("failed to apply seed: %v", err)
	}
	return result
}
