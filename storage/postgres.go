package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thisisjab/fuxi/entity"
	"github.com/thisisjab/fuxi/querier"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresStorageConfig struct {
	// URL is a postgres:// connection string, e.g. a Neon pooled endpoint.
	URL          string        `yaml:"url"`
	MaxConns     int32         `yaml:"max_conns"`
	Migrate      bool          `yaml:"migrate"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	Schema       string        `yaml:"schema"`
}

type PostgresStorage struct {
	pool   *pgxpool.Pool
	cfg    PostgresStorageConfig
	logger *slog.Logger
}

func NewPostgresStorage(logger *slog.Logger, cfg PostgresStorageConfig) (*PostgresStorage, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres url is required")
	}

	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 30 * time.Second
	}

	if cfg.Schema == "" {
		cfg.Schema = "public"
	}

	return &PostgresStorage{cfg: cfg, logger: logger}, nil
}

func (s *PostgresStorage) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(s.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if s.cfg.MaxConns > 0 {
		poolCfg.MaxConns = s.cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping the database: %w", err)
	}

	s.pool = pool

	if s.cfg.Migrate {
		if err := migrateUp(s.cfg.URL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		s.logger.Info("database migrations applied")
	}

	return nil
}

func migrateUp(url string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("cannot open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}

func (s *PostgresStorage) Close(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.pool.Ping(ctx)
}

// Query runs any compiled statement. Statements with RETURNING yield the
// affected rows.
func (s *PostgresStorage) Query(ctx context.Context, st querier.Statement) ([]entity.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, st.Query, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("couldn't run %s statement: %w", st.Kind, err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("couldn't read %s result: %w", st.Kind, err)
	}

	result := make([]entity.Row, len(maps))
	for i, m := range maps {
		result[i] = normalizeRow(m)
	}

	return result, nil
}

// Tables lists the tables of the configured schema with their row counts.
func (s *PostgresStorage) Tables(ctx context.Context) ([]entity.Table, error) {
	qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.pool.Query(qctx, `
		SELECT schemaname, tablename, COALESCE(tableowner, ''), hasindexes, hasrules, hastriggers, rowsecurity
		FROM pg_tables
		WHERE schemaname = $1
		ORDER BY tablename
	`, s.cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("couldn't list tables: %w", err)
	}

	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Table, error) {
		var t entity.Table
		err := row.Scan(&t.Schema, &t.Name, &t.Owner, &t.HasIndexes, &t.HasRules, &t.HasTriggers, &t.RowSecurity)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't read tables: %w", err)
	}

	countTables(ctx, s.logger, s.Query, tables)

	return tables, nil
}
