package catalogstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/calvinalkan/fcatalogd/internal/signature"
)

// Similar is one ranked candidate returned by GetSimilars.
type Similar struct {
	FuncHash    []byte
	FuncName    string
	FuncComment string
	Grade       int
}

// GetSimilars computes sig(data) and strong_hash(data), then returns at
// most k candidate rows ordered by grade descending (ties broken by
// storage order), with any exact-hash match preempted to position 0. A
// storage error yields an empty list, matching the contract of the other
// read operations.
func (s *CatalogStore) GetSimilars(ctx context.Context, data []byte, k int) []Similar {
	if ctx == nil || k <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	sig := signature.Sign(data, s.n)
	hash := signature.StrongHash(data)

	candidates, err := s.scanCandidates(ctx, sig, hash[:])
	if err != nil {
		return nil
	}

	for i := range candidates {
		candidates[i].Grade = grade(candidates[i].sigCols, sig)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Grade > candidates[j].Grade
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	result := make([]Similar, len(candidates))
	exactIdx := -1

	for i, c := range candidates {
		result[i] = Similar{
			FuncHash:    c.funcHash,
			FuncName:    c.funcName,
			FuncComment: c.funcComment,
			Grade:       c.Grade,
		}

		if exactIdx < 0 && bytes.Equal(c.funcHash, hash[:]) {
			exactIdx = i
		}
	}

	if exactIdx > 0 {
		match := result[exactIdx]
		result = append(result[:exactIdx], result[exactIdx+1:]...)
		result = append([]Similar{match}, result...)
	}

	return result
}

type candidateRow struct {
	funcHash    []byte
	funcName    string
	funcComment string
	sigCols     []int64
	Grade       int
}

// scanCandidates builds the candidate set as the union of rows matching any
// signature component plus the exact-hash row, in one query: a flat OR
// predicate across c_1..c_N and func_hash. Each physical row is returned at
// most once regardless of how many disjuncts it satisfies — OR across
// columns of a single row is not a join, so the "set union" the spec
// describes falls out of SQL's normal row semantics without an explicit
// dedup step.
func (s *CatalogStore) scanCandidates(ctx context.Context, sig []int64, hash []byte) ([]candidateRow, error) {
	cols := newFuncsSchema(s.n).sigColumns()

	var where strings.Builder

	args := make([]any, 0, len(cols)+1)

	for i, c := range cols {
		if i > 0 {
			where.WriteString(" OR ")
		}

		where.WriteString(c)
		where.WriteString(" = ?")

		args = append(args, sig[i])
	}

	if where.Len() > 0 {
		where.WriteString(" OR ")
	}

	where.WriteString("func_hash = ?")
	args = append(args, hash)

	query := fmt.Sprintf(
		"SELECT func_hash, func_name, func_comment, %s FROM funcs WHERE %s",
		strings.Join(cols, ", "), where.String(),
	)

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalogstore: get_similars: %w", err)
	}

	defer rows.Close()

	var candidates []candidateRow

	for rows.Next() {
		row := candidateRow{sigCols: make([]int64, len(cols))}

		scanArgs := make([]any, 0, 3+len(cols))
		scanArgs = append(scanArgs, &row.funcHash, &row.funcName, &row.funcComment)

		for i := range row.sigCols {
			scanArgs = append(scanArgs, &row.sigCols[i])
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("catalogstore: get_similars: scan: %w", err)
		}

		candidates = append(candidates, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalogstore: get_similars: %w", err)
	}

	return candidates, nil
}

func grade(cols []int64, sig []int64) int {
	g := 0

	for i := range cols {
		if cols[i] == sig[i] {
			g++
		}
	}

	return g
}
