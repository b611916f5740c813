package querier

import (
	"fmt"
	"slices"
	"strings"
)

// CompileInsert builds
//
//	INSERT INTO "table" ("a", "b") VALUES ($1, $2) RETURNING *
//
// Columns are emitted in lexical order so equal inputs give equal statements.
func (c *Compiler) CompileInsert(table string, fields map[string]any) (Statement, error) {
	if len(fields) == 0 {
		return Statement{}, invalid("fields", "No fields provided.")
	}

	t, err := c.table(table)
	if err != nil {
		return Statement{}, err
	}

	b := c.newBuilder()
	names := sortedKeys(fields)
	columns := make([]string, len(names))
	placeholders := make([]string, len(names))

	for i, name := range names {
		col, err := b.identifier("fields", name)
		if err != nil {
			return Statement{}, err
		}
		columns[i] = col
		placeholders[i] = b.bind(fields[name])
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		t, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	return Statement{Query: query, Args: b.args, Kind: KindInsert}, nil
}

// CompileUpdate builds
//
//	UPDATE "table" SET "a" = $1, "b" = $2 WHERE "id" = $3 RETURNING *
func (c *Compiler) CompileUpdate(table string, id any, fields map[string]any) (Statement, error) {
	if isBlankID(id) {
		return Statement{}, invalid("id", "ID is required.")
	}

	if len(fields) == 0 {
		return Statement{}, invalid("fields", "No fields to update.")
	}

	t, err := c.table(table)
	if err != nil {
		return Statement{}, err
	}

	b := c.newBuilder()
	names := sortedKeys(fields)
	sets := make([]string, len(names))

	for i, name := range names {
		col, err := b.identifier("fields", name)
		if err != nil {
			return Statement{}, err
		}
		sets[i] = fmt.Sprintf("%s = %s", col, b.bind(fields[name]))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s RETURNING *",
		t, strings.Join(sets, ", "), QuoteIdentifier(IDColumn), b.bind(id))

	return Statement{Query: query, Args: b.args, Kind: KindUpdate}, nil
}

// CompileDelete builds DELETE FROM "table" WHERE "id" = $1 RETURNING *.
func (c *Compiler) CompileDelete(table string, id any) (Statement, error) {
	if isBlankID(id) {
		return Statement{}, invalid("id", "ID is required.")
	}

	t, err := c.table(table)
	if err != nil {
		return Statement{}, err
	}

	b := c.newBuilder()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s RETURNING *", t, QuoteIdentifier(IDColumn), b.bind(id))

	return Statement{Query: query, Args: b.args, Kind: KindDelete}, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func isBlankID(id any) bool {
	switch v := id.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}
