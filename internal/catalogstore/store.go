// Package catalogstore implements the per-catalog persistent index of
// function and structure records, backed by SQLite.
package catalogstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/calvinalkan/fcatalogd/internal/signature"
)

// DefaultBatchSize is the number of buffered AddFunction calls after which
// the pending write transaction auto-commits, used when Open is given a
// batchSize of zero. The exact threshold is not part of the observable
// contract; 2048 sits comfortably in the documented [1024, 8192] range.
// Operators that want a different tradeoff between write latency and
// commit overhead can override it via Open's batchSize parameter.
const DefaultBatchSize = 2048

// CatalogStore is a single catalog's SQLite-backed index of functions and
// structures, plus its fixed signature width N.
//
// All public operations are serialized by mu: readers must observe this
// store's own uncommitted writes, which only holds within one SQLite
// connection's transaction state — an RWMutex over a shared connection
// cannot express that safely, so a plain Mutex is used instead of a
// reader/writer lock.
type CatalogStore struct {
	mu        sync.Mutex
	db        *sql.DB
	tx        *sql.Tx
	n         int
	batchSize int
	pending   int
	closed    bool
	path      string
}

// Open opens the catalog file at path, creating it with signature width n if
// absent. If the file exists, its stored signature version and N must match
// this build's [signature.Version] and the requested n; a mismatch is a
// fatal open error, since catalogs from different signature families or
// widths must never be silently mixed.
//
// batchSize overrides the number of buffered AddFunction calls after which
// the pending write transaction auto-commits; a value <= 0 selects
// [DefaultBatchSize]. The batch size is a per-open runtime knob, not part of
// the on-disk catalog format, so it may differ across opens of the same
// file.
func Open(ctx context.Context, path string, n int, batchSize int) (*CatalogStore, error) {
	if ctx == nil {
		return nil, errors.New("catalogstore: context is nil")
	}

	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidArgument, n)
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	db, err := openSqlite(ctx, path)
	if err != nil {
		return nil, err
	}

	store, err := initSchema(ctx, db, path, n)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	store.batchSize = batchSize

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("catalogstore: begin initial transaction: %w", err)
	}

	store.tx = tx

	return store, nil
}

func initSchema(ctx context.Context, db *sql.DB, path string, n int) (*CatalogStore, error) {
	_, err := db.ExecContext(ctx, metaSchemaSQL)
	if err != nil {
		return nil, fmt.Errorf("catalogstore: create meta table: %w", err)
	}

	_, err = db.ExecContext(ctx, structsSchemaSQL)
	if err != nil {
		return nil, fmt.Errorf("catalogstore: create structs table: %w", err)
	}

	storedN, storedVersion, fresh, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}

	if fresh {
		if err := materializeSchema(ctx, db, n); err != nil {
			return nil, err
		}

		if err := writeMeta(ctx, db, n); err != nil {
			return nil, err
		}

		return &CatalogStore{db: db, n: n, path: path}, nil
	}

	if storedVersion != signature.Version {
		return nil, fmt.Errorf("%w: catalog %q has version %d, this build is version %d",
			ErrSigVersionMismatch, path, storedVersion, signature.Version)
	}

	if storedN != n {
		return nil, fmt.Errorf("%w: catalog %q has n=%d, requested n=%d",
			ErrNMismatch, path, storedN, n)
	}

	return &CatalogStore{db: db, n: storedN, path: path}, nil
}

func materializeSchema(ctx context.Context, db *sql.DB, n int) error {
	schema := newFuncsSchema(n)

	_, err := db.ExecContext(ctx, schema.createTableSQL())
	if err != nil {
		return fmt.Errorf("catalogstore: create funcs table: %w", err)
	}

	for _, stmt := range schema.createIndexSQL() {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("catalogstore: create funcs index: %w", err)
		}
	}

	return nil
}

func readMeta(ctx context.Context, db *sql.DB) (storedN int, storedVersion int, fresh bool, err error) {
	row := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaKeyN)

	var nStr string

	err = row.Scan(&nStr)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, true, nil
	}

	if err != nil {
		return 0, 0, false, fmt.Errorf("catalogstore: read meta n: %w", err)
	}

	_, err = fmt.Sscanf(nStr, "%d", &storedN)
	if err != nil {
		return 0, 0, false, fmt.Errorf("catalogstore: parse meta n %q: %w", nStr, err)
	}

	row = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaKeySigVersion)

	var versionStr string

	err = row.Scan(&versionStr)
	if err != nil {
		return 0, 0, false, fmt.Errorf("catalogstore: read meta sig_version: %w", err)
	}

	_, err = fmt.Sscanf(versionStr, "%d", &storedVersion)
	if err != nil {
		return 0, 0, false, fmt.Errorf("catalogstore: parse meta sig_version %q: %w", versionStr, err)
	}

	return storedN, storedVersion, false, nil
}

func writeMeta(ctx context.Context, db *sql.DB, n int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?), (?, ?)`,
		metaKeyN, fmt.Sprintf("%d", n),
		metaKeySigVersion, fmt.Sprintf("%d", signature.Version),
	)
	if err != nil {
		return fmt.Errorf("catalogstore: write meta: %w", err)
	}

	return nil
}

// N returns the catalog's fixed signature width.
func (s *CatalogStore) N() int {
	return s.n
}

// Path returns the catalog's backing file path.
func (s *CatalogStore) Path() string {
	return s.path
}

// Close commits any pending writes and releases the underlying connection.
// If the final commit fails, the transaction is rolled back and Close
// proceeds regardless — a store that cannot be closed cleanly still must
// not leak a connection.
func (s *CatalogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	var commitErr error

	if s.tx != nil {
		commitErr = s.tx.Commit()
		if commitErr != nil {
			_ = s.tx.Rollback()
		}
	}

	closeErr := s.db.Close()

	if commitErr != nil {
		return fmt.Errorf("catalogstore: close: final commit failed: %w", commitErr)
	}

	if closeErr != nil {
		return fmt.Errorf("catalogstore: close: %w", closeErr)
	}

	return nil
}

// commitTx commits the current write transaction, releasing the store's
// sole connection. Caller must hold s.mu and call beginTx before the next
// read or write.
func (s *CatalogStore) commitTx() error {
	err := s.tx.Commit()
	if err != nil {
		_ = s.tx.Rollback()
	}

	s.pending = 0
	s.tx = nil

	if err != nil {
		return fmt.Errorf("catalogstore: commit: %w", err)
	}

	return nil
}

// beginTx opens a new write transaction. Caller must hold s.mu.
func (s *CatalogStore) beginTx(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalogstore: begin transaction: %w", err)
	}

	s.tx = tx

	return nil
}

// forceCommit commits the current write transaction and opens a new one.
// Called on the batchSize threshold, per the "force-commit, then reopen"
// rule. Caller must hold s.mu.
func (s *CatalogStore) forceCommit(ctx context.Context) error {
	commitErr := s.commitTx()

	beginErr := s.beginTx(ctx)
	if beginErr != nil {
		return beginErr
	}

	return commitErr
}

// rollbackAndReopen discards the current transaction (and, with it, every
// buffered write since the last commit) and opens a fresh one. Used when a
// storage operation fails mid-transaction, so that writes after the failed
// one can still proceed.
func (s *CatalogStore) rollbackAndReopen(ctx context.Context) error {
	_ = s.tx.Rollback()

	newTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalogstore: reopen transaction after rollback: %w", err)
	}

	s.tx = newTx
	s.pending = 0

	return nil
}
