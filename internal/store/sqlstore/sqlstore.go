package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/kiliankoe/sketchdash/internal/store/sqlstore/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrUnknownDriver = errors.New("unknown database driver")

// dialect hides the differences between the two supported databases.
type dialect struct {
	name       string
	sqlDriver  string
	goose      goose.Dialect
	dir        string
	builder    sq.StatementBuilderType
	millisTime bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres:
		return dialect{
			name:      DriverPostgres,
			sqlDriver: "pgx",
			goose:     goose.DialectPostgres,
			dir:       "postgres",
			builder:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		}, nil
	case DriverSQLite:
		return dialect{
			name:       DriverSQLite,
			sqlDriver:  "sqlite",
			goose:      goose.DialectSQLite3,
			dir:        "sqlite",
			builder:    sq.StatementBuilder.PlaceholderFormat(sq.Question),
			millisTime: true,
		}, nil
	}
	return dialect{}, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}

// DB is the relational store behind prompts and sketches.
type DB struct {
	db *sql.DB
	d  dialect
}

// Open connects to the database. For sqlite the DSN is a file path; busy
// timeout and WAL are added when no query string is given.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite && !strings.Contains(dsn, "?") && dsn != ":memory:" {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &DB{db: db, d: d}, nil
}

// New wraps an existing handle.
func New(db *sql.DB, driver string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &DB{db: db, d: d}, nil
}

func (s *DB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DB) Driver() string { return s.d.name }

// Migrate applies all pending embedded migrations.
func (s *DB) Migrate(ctx context.Context) error {
	dir, err := fs.Sub(migrations.FS, s.d.dir)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	provider, err := goose.NewProvider(s.d.goose, s.db, dir)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		log.Info().Str("driver", s.d.name).Str("migration", r.Source.Path).Dur("took", r.Duration).Msg("migration applied")
	}
	return nil
}

// timeArg converts t to the column representation of the dialect.
func (s *DB) timeArg(t time.Time) any {
	if s.d.millisTime {
		return t.UTC().UnixMilli()
	}
	return t.UTC()
}

// nullTime scans a nullable timestamp column of either representation.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(v any) error {
	switch t := v.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
	case time.Time:
		n.Time, n.Valid = t.UTC(), true
	case int64:
		n.Time, n.Valid = time.UnixMilli(t).UTC(), true
	default:
		return fmt.Errorf("unsupported time value %T", v)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
