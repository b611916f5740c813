package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thisisjab/fuxi/entity"
	"github.com/thisisjab/fuxi/fault"
	"github.com/thisisjab/fuxi/querier"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCountTables(t *testing.T) {
	var seen []querier.Statement
	query := func(ctx context.Context, st querier.Statement) ([]entity.Row, error) {
		seen = append(seen, st)
		switch st.Query {
		case `SELECT COUNT(*) as total FROM "FuxiData"`:
			return []entity.Row{{"total": int64(12)}}, nil
		case `SELECT COUNT(*) as total FROM "broken"`:
			return nil, errors.New("permission denied")
		default:
			return []entity.Row{{"total": "3"}}, nil
		}
	}

	tables := []entity.Table{{Name: "FuxiData"}, {Name: "broken"}, {Name: "FuxiKuangBiao"}}
	countTables(context.Background(), discard, query, tables)

	require.Len(t, seen, 3)
	assert.Equal(t, int64(12), tables[0].RowCount)
	assert.Equal(t, entity.RowCountError, tables[1].RowCount)
	assert.Equal(t, int64(3), tables[2].RowCount)
}

func TestNormalizeValue(t *testing.T) {
	id := uuid.MustParse("5b3a6f9e-8a1c-4c8e-9d55-0d6a1f0b2c3d")

	assert.Equal(t, id.String(), normalizeValue([16]byte(id)))
	assert.Equal(t, id.String(), normalizeValue(id))
	assert.Equal(t, "x", normalizeValue("x"))
	assert.Nil(t, normalizeValue(nil))
}

func TestDerefValue(t *testing.T) {
	s := "hello"
	ps := &s
	var nilPtr *string

	assert.Equal(t, "hello", derefValue(&s))
	assert.Equal(t, "hello", derefValue(&ps))
	assert.Nil(t, derefValue(&nilPtr))
	assert.Equal(t, uint64(7), derefValue(ptr(uint64(7))))
}

func ptr[T any](v T) *T { return &v }

type fakeColumnType struct {
	driver.ColumnType
	scanType reflect.Type
}

func (c fakeColumnType) ScanType() reflect.Type { return c.scanType }

type fakeRows struct {
	driver.Rows
	columns []string
	types   []driver.ColumnType
	values  [][]any
	next    int
	err     error
}

func (r *fakeRows) Columns() []string                { return r.columns }
func (r *fakeRows) ColumnTypes() []driver.ColumnType { return r.types }
func (r *fakeRows) Err() error                       { return r.err }

func (r *fakeRows) Next() bool {
	if r.next >= len(r.values) {
		return false
	}
	r.next++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	for i, v := range r.values[r.next-1] {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func TestScanRows(t *testing.T) {
	types := []driver.ColumnType{
		fakeColumnType{scanType: reflect.TypeFor[uint64]()},
		fakeColumnType{scanType: reflect.TypeFor[string]()},
	}

	rows, err := scanRows(&fakeRows{columns: []string{"id", "type"}, types: types})
	require.NoError(t, err)
	require.NotNil(t, rows)
	assert.Empty(t, rows)

	rows, err = scanRows(&fakeRows{
		columns: []string{"id", "type"},
		types:   types,
		values:  [][]any{{uint64(1), "a"}, {uint64(2), "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []entity.Row{{"id": uint64(1), "type": "a"}, {"id": uint64(2), "type": "b"}}, rows)

	_, err = scanRows(&fakeRows{err: errors.New("broken stream")})
	assert.EqualError(t, err, "broken stream")
}

func TestClickHouseRefusesWrites(t *testing.T) {
	s, err := NewClickHouseStorage(discard, ClickHouseStorageConfig{Addr: []string{"localhost:9000"}})
	require.NoError(t, err)

	st, err := querier.NewCompiler(querier.Options{}).CompileDelete("FuxiData", 1)
	require.NoError(t, err)

	_, err = s.Query(context.Background(), st)

	var f fault.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, fault.UnsupportedCode, f.Code())
}

func TestNewStorageValidatesConfig(t *testing.T) {
	_, err := NewPostgresStorage(discard, PostgresStorageConfig{})
	assert.Error(t, err)

	_, err = NewClickHouseStorage(discard, ClickHouseStorageConfig{})
	assert.Error(t, err)

	s, err := NewPostgresStorage(discard, PostgresStorageConfig{URL: "postgres://u:p@localhost:5432/db"})
	require.NoError(t, err)
	assert.Equal(t, "public", s.cfg.Schema)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
