// Package database persists fuel prices and their change history.
// PostgreSQL, MySQL and SQLite are supported; the dialect is chosen from the DSN.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/andygrunwald/fuel-price-scraper/internal/models"
)

// StorageError is a failure of the durable store. Nothing of the affected batch was committed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// dialect holds what differs between the supported databases.
type dialect struct {
	name   string
	driver string
	schema []string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
	// column that orders price_history rows by insertion
	historySeq string
}

var (
	postgresDialect = dialect{name: "postgres", driver: "pgx", schema: postgresSchema, numbered: true, historySeq: "id"}
	mysqlDialect    = dialect{name: "mysql", driver: "mysql", schema: mysqlSchema, historySeq: "id"}
	sqliteDialect   = dialect{name: "sqlite", driver: "sqlite", schema: sqliteSchema, historySeq: "rowid"}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseDSN returns the dialect and the driver specific data source name.
func parseDSN(dsn string) (dialect, string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgresDialect, dsn
	case strings.HasPrefix(dsn, "mysql://"):
		return mysqlDialect, strings.TrimPrefix(dsn, "mysql://")
	default:
		return sqliteDialect, strings.TrimPrefix(dsn, "sqlite://")
	}
}

// Engine reconciles price observations against the store.
type Engine struct {
	db       *sql.DB
	dialect  dialect
	now      func() time.Time
	recorder Recorder
	logger   zerolog.Logger
}

// Recorder receives the outcome of every Apply.
type Recorder interface {
	RecordApply(summary Summary, duration time.Duration, err error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock that stamps checked-at and changed-at.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics reports every Apply to r.
func WithMetrics(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// Open connects to the store described by dsn and creates the schema when needed.
// A DSN without a postgres:// or mysql:// scheme is a SQLite file path.
func Open(ctx context.Context, dsn string, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	d, source := parseDSN(dsn)
	logger = logger.With().Str("component", "database").Str("dialect", d.name).Logger()

	createSchema := true
	if d.name == sqliteDialect.name {
		// The SQLite schema is only created together with the file.
		_, err := os.Stat(source)
		createSchema = errors.Is(err, os.ErrNotExist) || source == ":memory:"
	}

	db, err := sql.Open(d.driver, source)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	// Configure connection pool
	if d.name == sqliteDialect.name {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &StorageError{Op: "ping", Err: err}
	}

	e := &Engine{
		db:      db,
		dialect: d,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	if createSchema {
		if err := e.migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return e, nil
}

// Close closes the database connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Ping checks if the database connection is alive.
func (e *Engine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e *Engine) migrate(ctx context.Context) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range e.dialect.schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &StorageError{Op: "migrate", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "migrate", Err: err}
	}

	e.logger.Info().Msg("created schema")
	return nil
}

// GetPrice returns the stored record for key, or nil when there is none.
func (e *Engine) GetPrice(ctx context.Context, key models.PriceKey) (*models.PriceRecord, error) {
	query := e.dialect.rebind(`
		SELECT price, checked_at, changed_at
		FROM price
		WHERE jurisdiction = ? AND station = ? AND fuel = ?
	`)

	var (
		price              models.Price
		checkedAt, changed int64
	)
	err := e.db.QueryRowContext(ctx, query, key.Jurisdiction, key.Station, key.Fuel).Scan(&price, &checkedAt, &changed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting price: %w", err)
	}

	return &models.PriceRecord{
		PriceKey:  key,
		Price:     price,
		CheckedAt: time.Unix(checkedAt, 0).UTC(),
		ChangedAt: time.Unix(changed, 0).UTC(),
	}, nil
}

// History returns every recorded change for key, oldest first.
// Changes stamped with the same second keep the order they were written in.
func (e *Engine) History(ctx context.Context, key models.PriceKey) ([]models.PriceHistoryEntry, error) {
	query := e.dialect.rebind(`
		SELECT changed_at, price
		FROM price_history
		WHERE jurisdiction = ? AND station = ? AND fuel = ?
		ORDER BY changed_at ASC, ` + e.dialect.historySeq + ` ASC
	`)

	rows, err := e.db.QueryContext(ctx, query, key.Jurisdiction, key.Station, key.Fuel)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []models.PriceHistoryEntry
	for rows.Next() {
		var (
			changedAt int64
			price     models.Price
		)
		if err := rows.Scan(&changedAt, &price); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		entries = append(entries, models.PriceHistoryEntry{
			PriceKey:  key,
			ChangedAt: time.Unix(changedAt, 0).UTC(),
			Price:     price,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return entries, nil
}

// CountPrices returns the number of price records.
func (e *Engine) CountPrices(ctx context.Context) (int64, error) {
	return e.count(ctx, "price")
}

// CountHistory returns the number of history entries.
func (e *Engine) CountHistory(ctx context.Context) (int64, error) {
	return e.count(ctx, "price_history")
}

func (e *Engine) count(ctx context.Context, table string) (int64, error) {
	var count int64
	err := e.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return count, nil
}
