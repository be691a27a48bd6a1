package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/log"
	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

const defaultMaxConns = 2

// PostgresStore reads the value column of a seed table.
// Supabase projects expose the same table over a plain Postgres connection.
type PostgresStore struct {
	pool  *pgxpool.Pool
	query string
	log   *logrus.Entry
}

// NewPostgresStore creates a pool for dsn. The pool connects lazily, so an
// unreachable database surfaces on the first FetchAll.
func NewPostgresStore(ctx context.Context, dsn, table string, maxConns int32, logger *logrus.Entry) (*PostgresStore, error) {
	query, err := selectQuery(table)
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: seed database DSN: %w", utils.ErrSeedFetch, err)
	}
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	cfg.MaxConns = maxConns

	pgLog := logger.WithField("component", "seed_db")
	cfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   log.NewPgxLogrusAdapter(pgLog),
		LogLevel: log.PgxTraceLevel(logger.Logger.GetLevel()),
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: seed database pool: %w", utils.ErrSeedFetch, err)
	}
	return &PostgresStore{pool: pool, query: query, log: pgLog}, nil
}

// selectQuery builds the seed query for a table name, optionally schema-qualified
func selectQuery(table string) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", fmt.Errorf("%w: seed table name is empty", utils.ErrConfigValidation)
	}
	ident := pgx.Identifier(strings.Split(table, "."))
	return fmt.Sprintf("SELECT value::text FROM %s WHERE value IS NOT NULL", ident.Sanitize()), nil
}

// FetchAll implements Store
func (s *PostgresStore) FetchAll(ctx context.Context) ([]models.SeedRow, error) {
	rows, err := s.pool.Query(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("%w: query seed table: %w", utils.ErrSeedFetch, err)
	}
	defer rows.Close()

	out := make([]models.SeedRow, 0, 256)
	for rows.Next() {
		var row models.SeedRow
		if err := rows.Scan(&row.Value); err != nil {
			return nil, fmt.Errorf("%w: scan seed row: %w", utils.ErrSeedFetch, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read seed rows: %w", utils.ErrSeedFetch, err)
	}
	s.log.Debugf("Fetched %d seed row(s)", len(out))
	return out, nil
}

// Close releases the pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
