package catalogstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/fcatalogd/internal/signature"
)

// AddFunction inserts or replaces the function record keyed by the strong
// hash of data. The write is buffered in the store's open transaction and
// becomes visible to other opens of the same file only after the next
// commit (batch threshold, AddStructure, or Close).
//
// On a storage error the pending transaction is rolled back and reopened,
// discarding every buffered write since the last commit — not just this
// one. The store stays usable afterwards, so Session only logs the error
// and later records from the same client are still stored.
func (s *CatalogStore) AddFunction(ctx context.Context, name, comment string, data []byte) error {
	if ctx == nil {
		return errors.New("catalogstore: context is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if name == "" {
		return fmt.Errorf("%w: func name is empty", ErrInvalidArgument)
	}

	sig := signature.Sign(data, s.n)
	hash := signature.StrongHash(data)

	args := make([]any, 0, 3+s.n)
	args = append(args, hash[:], name, comment)

	for _, c := range sig {
		args = append(args, c)
	}

	_, err := s.tx.ExecContext(ctx, insertFuncSQL(s.n), args...)
	if err != nil {
		if reopenErr := s.rollbackAndReopen(ctx); reopenErr != nil {
			return reopenErr
		}

		return fmt.Errorf("catalogstore: add_function: %w", err)
	}

	s.pending++

	if s.pending >= s.batchSize {
		if err := s.forceCommit(ctx); err != nil {
			return err
		}
	}

	return nil
}

func insertFuncSQL(n int) string {
	cols := newFuncsSchema(n).sigColumns()

	placeholders := "?, ?, ?"
	for range cols {
		placeholders += ", ?"
	}

	colList := "func_hash, func_name, func_comment"
	for _, c := range cols {
		colList += ", " + c
	}

	return fmt.Sprintf("INSERT OR REPLACE INTO funcs (%s) VALUES (%s)", colList, placeholders)
}

// AddStructure inserts or replaces a named structure blob. Unlike
// AddFunction, this commits immediately: it force-commits the pending
// function transaction, writes the structure row in its own one-statement
// transaction, then reopens the function transaction — matching the
// spec's durability asymmetry between the two record types.
func (s *CatalogStore) AddStructure(ctx context.Context, name string, dump []byte) error {
	if ctx == nil {
		return errors.New("catalogstore: context is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if name == "" {
		return fmt.Errorf("%w: struct name is empty", ErrInvalidArgument)
	}

	if err := s.commitTx(); err != nil {
		_ = s.beginTx(ctx)

		return err
	}

	_, writeErr := s.db.ExecContext(ctx,
		`INSERT INTO structs (struct_name, struct_dump) VALUES (?, ?)
		 ON CONFLICT(struct_name) DO UPDATE SET struct_dump = excluded.struct_dump`,
		name, dump,
	)

	if err := s.beginTx(ctx); err != nil {
		return err
	}

	if writeErr != nil {
		return fmt.Errorf("catalogstore: add_structure: %w", writeErr)
	}

	return nil
}

// GetFuncNames returns every stored function name, in unspecified order. A
// storage error yields an empty list rather than propagating, per the
// spec's read-failure contract.
func (s *CatalogStore) GetFuncNames(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	rows, err := s.tx.QueryContext(ctx, `SELECT func_name FROM funcs`)
	if err != nil {
		return nil
	}

	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string

		if err := rows.Scan(&name); err != nil {
			return nil
		}

		names = append(names, name)
	}

	if rows.Err() != nil {
		return nil
	}

	return names
}

// GetStructNames returns every stored structure name, in unspecified order.
func (s *CatalogStore) GetStructNames(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	rows, err := s.tx.QueryContext(ctx, `SELECT struct_name FROM structs`)
	if err != nil {
		return nil
	}

	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string

		if err := rows.Scan(&name); err != nil {
			return nil
		}

		names = append(names, name)
	}

	if rows.Err() != nil {
		return nil
	}

	return names
}

// GetStruct returns the dump stored under name. ErrNotFound is returned (not
// wrapped in a storage error) when no such structure exists.
func (s *CatalogStore) GetStruct(ctx context.Context, name string) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("catalogstore: context is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	row := s.tx.QueryRowContext(ctx, `SELECT struct_dump FROM structs WHERE struct_name = ?`, name)

	var dump []byte

	err := row.Scan(&dump)
	if err != nil {
		// Both not-found and a storage error surface identically: the wire
		// protocol's ResponseStruct cannot distinguish "absent" from
		// "empty", so there is no separate signal worth preserving here.
		return nil, ErrNotFound
	}

	return dump, nil
}
