package storage

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/thisisjab/fuxi/entity"
	"github.com/thisisjab/fuxi/fault"
	"github.com/thisisjab/fuxi/querier"
)

type ClickHouseStorageConfig struct {
	Addr         []string      `yaml:"addr"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// ClickHouseStorage serves reads from a ClickHouse replica of the tables.
// clickhouse-go binds $n placeholders positionally, so compiled select
// statements run unchanged. Writes are refused.
type ClickHouseStorage struct {
	conn   driver.Conn
	cfg    ClickHouseStorageConfig
	logger *slog.Logger
}

func NewClickHouseStorage(logger *slog.Logger, cfg ClickHouseStorageConfig) (*ClickHouseStorage, error) {
	if len(cfg.Addr) == 0 {
		return nil, fmt.Errorf("clickhouse address is required")
	}

	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 1 * time.Minute
	}

	return &ClickHouseStorage{cfg: cfg, logger: logger}, nil
}

func (s *ClickHouseStorage) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: s.cfg.Addr,
		Auth: clickhouse.Auth{
			Database: s.cfg.Database,
			Username: s.cfg.Username,
			Password: s.cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return fmt.Errorf("failed to connect: %v", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping the database: %w", err)
	}

	s.conn = conn

	return nil
}

func (s *ClickHouseStorage) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *ClickHouseStorage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.conn.Ping(ctx)
}

func (s *ClickHouseStorage) Query(ctx context.Context, st querier.Statement) ([]entity.Row, error) {
	if st.Kind.IsWrite() {
		return nil, fault.New(fault.UnsupportedCode, fmt.Sprintf("%s is not supported by the clickhouse storage.", st.Kind))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.conn.Query(ctx, st.Query, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't run %s statement: %w", st.Kind, err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("couldn't read %s result: %w", st.Kind, err)
	}

	return result, nil
}

// scanRows reads every row into a map keyed by column name. An empty result
// is an empty slice, never nil.
func scanRows(rows driver.Rows) ([]entity.Row, error) {
	columns := rows.Columns()
	types := rows.ColumnTypes()

	result := []entity.Row{}
	for rows.Next() {
		dest := make([]any, len(types))
		for i, ct := range types {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("couldn't scan row: %w", err)
		}

		row := make(entity.Row, len(columns))
		for i, name := range columns {
			row[name] = normalizeValue(derefValue(dest[i]))
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *ClickHouseStorage) Tables(ctx context.Context) ([]entity.Table, error) {
	rows, err := s.Query(ctx, querier.Statement{
		Query: "SELECT database, name FROM system.tables WHERE database = currentDatabase() AND is_temporary = 0 ORDER BY name",
		Kind:  querier.KindSelect,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't list tables: %w", err)
	}

	tables := make([]entity.Table, len(rows))
	for i, r := range rows {
		tables[i].Schema, _ = r["database"].(string)
		tables[i].Name, _ = r["name"].(string)
	}

	countTables(ctx, s.logger, s.Query, tables)

	return tables, nil
}

// derefValue unwraps the pointers created for scanning, including the extra
// level used by Nullable columns.
func derefValue(p any) any {
	v := reflect.ValueOf(p)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}
