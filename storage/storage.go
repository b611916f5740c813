package storage

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/thisisjab/fuxi/entity"
	"github.com/thisisjab/fuxi/querier"
)

// Storage executes compiled statements against a SQL database.
type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error
	Query(ctx context.Context, st querier.Statement) ([]entity.Row, error)
	Tables(ctx context.Context) ([]entity.Table, error)
}

// counter compiles row counts for table listings. Names come from the
// database catalog, so only quoting is applied.
var counter = querier.NewCompiler(querier.Options{})

type queryFunc func(ctx context.Context, st querier.Statement) ([]entity.Row, error)

// countTables fills RowCount of every table. A failed count is logged and
// recorded as entity.RowCountError instead of failing the whole listing.
func countTables(ctx context.Context, logger *slog.Logger, query queryFunc, tables []entity.Table) {
	for i := range tables {
		tables[i].RowCount = entity.RowCountError

		st, err := counter.CompileCount(querier.Request{TableName: tables[i].Name})
		if err != nil {
			logger.Warn("cannot compile table count", "table", tables[i].Name, "error", err)
			continue
		}

		rows, err := query(ctx, st)
		if err != nil || len(rows) == 0 {
			logger.Warn("cannot count table rows", "table", tables[i].Name, "error", err)
			continue
		}

		total, err := entity.ParseTotal(rows[0]["total"])
		if err != nil {
			logger.Warn("cannot parse table row count", "table", tables[i].Name, "error", err)
			continue
		}

		tables[i].RowCount = total
	}
}

// normalizeValue turns driver specific values into JSON friendly ones.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case [16]byte:
		return uuid.UUID(t).String()
	case uuid.UUID:
		return t.String()
	default:
		return v
	}
}

func normalizeRow(m map[string]any) entity.Row {
	row := make(entity.Row, len(m))
	for k, v := range m {
		row[k] = normalizeValue(v)
	}
	return row
}
