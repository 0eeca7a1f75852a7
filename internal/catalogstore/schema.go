package catalogstore

import (
	"fmt"
	"strings"
)

// funcsSchema generates the CREATE TABLE and CREATE INDEX statements for a
// catalog's funcs table with n signature-component columns c_1..c_N, each
// carrying its own secondary index — the query plan in similars.go depends
// on every c_i being independently indexed.
//
// Adapted from the fluent table-builder idiom (append columns, then render),
// generalized from a fixed document schema to a signature width fixed only
// at catalog-creation time.
type funcsSchema struct {
	n int
}

func newFuncsSchema(n int) *funcsSchema {
	return &funcsSchema{n: n}
}

func (s *funcsSchema) sigColumns() []string {
	cols := make([]string, s.n)
	for i := range cols {
		cols[i] = fmt.Sprintf("c_%d", i+1)
	}

	return cols
}

func (s *funcsSchema) createTableSQL() string {
	var b strings.Builder

	b.WriteString("CREATE TABLE IF NOT EXISTS funcs (\n")
	b.WriteString("\tfunc_hash BLOB PRIMARY KEY,\n")
	b.WriteString("\tfunc_name TEXT NOT NULL,\n")
	b.WriteString("\tfunc_comment TEXT NOT NULL")

	for _, col := range s.sigColumns() {
		b.WriteString(",\n\t")
		b.WriteString(col)
		b.WriteString(" INTEGER NOT NULL")
	}

	b.WriteString("\n)")

	return b.String()
}

func (s *funcsSchema) createIndexSQL() []string {
	stmts := make([]string, 0, s.n)

	for _, col := range s.sigColumns() {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS funcs_%s ON funcs(%s)", col, col,
		))
	}

	return stmts
}

const structsSchemaSQL = `CREATE TABLE IF NOT EXISTS structs (
	struct_name TEXT PRIMARY KEY,
	struct_dump BLOB NOT NULL
)`

const metaSchemaSQL = `CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

const (
	metaKeySigVersion = "sig_version"
	metaKeyN          = "n"
)
