package catalogstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteBusyTimeout bounds how long a catalog file waits out a lock held by
// another process before giving up with SQLITE_BUSY. Catalog files are
// opened by exactly one fcatalogd process at a time in normal operation, so
// this only matters for the brief window where a second process (e.g. a
// restart racing the old one's shutdown) probes the same file.
const sqliteBusyTimeout = 10000 // milliseconds

// openSqlite opens one catalog's backing SQLite file and applies its
// pragmas.
//
// A single connection is enforced ([sql.DB.SetMaxOpenConns](1)) because the
// catalog's own consistency model depends on it, not just as a defensive
// default: CatalogStore holds one long-lived write transaction across many
// AddFunction calls (see store.go), and a reader must see that transaction's
// uncommitted rows — a guarantee SQLite only offers within one connection's
// session state, never across a pool of connections to the same file.
func openSqlite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	err = applyPragmas(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

// applyPragmas configures one catalog connection in a single batch
// statement, chosen for a write pattern of many small AddFunction inserts
// batched under one transaction (store.go's batchSize) rather than one
// commit per record:
//
//   - journal_mode=WAL: readers (GetSimilars, GetFuncNames, ...) must never
//     block behind the long-lived write transaction AddFunction accumulates
//     into, which a rollback-journal would force.
//   - synchronous=NORMAL, not the stricter FULL: a catalog is a derived
//     index rebuildable from the indexed binaries, so the fsync FULL forces
//     on every WAL checkpoint buys durability this domain doesn't need to
//     pay batch-insert latency for.
//   - mmap_size/cache_size/temp_store=MEMORY: the similarity scan in
//     GetSimilars touches many rows per query, so keeping the working set
//     memory-mapped and cached avoids repeated page-cache round trips.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA mmap_size = 268435456;
		PRAGMA cache_size = -20000;
		PRAGMA temp_store = MEMORY;
	`, sqliteBusyTimeout))
	if err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}

	return nil
}
