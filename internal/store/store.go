package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/ballot/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Schema version tracking (golang-migrate schema_migrations):
// 1 - users, parties, votes, audit
// 2 - votes(party_id) index, immutability triggers on votes and audit
const currentSchemaVersion = 2

// Store provides durable storage for identities, registrants, votes and
// the audit trail.
//
// Writes go through a single-connection pool. Reads go through a second
// pool of deferred, query-only connections, so under WAL they see the last
// committed state without waiting on the write lock.
type Store struct {
	db     *sql.DB
	reader *sql.DB
	clock  Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp votes and audit events.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode, so View readers run alongside a writer
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - BEGIN IMMEDIATE for InTx, so two terminals sharing the file serialise
//     on the write lock instead of failing lock upgrades
//   - BEGIN DEFERRED and query_only for View
//
// An in-memory database has no second pool; View shares the writer there.
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, model.WrapError(model.KindUnavailable, "open store", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, model.WrapError(model.KindUnavailable, "open store", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, model.WrapError(model.KindUnavailable, "apply schema", err)
	}

	reader := db
	if !inMemory(path) {
		reader, err = sql.Open("sqlite3", readDSN(path))
		if err != nil {
			db.Close()
			return nil, model.WrapError(model.KindUnavailable, "open store", err)
		}
		if err := reader.Ping(); err != nil {
			reader.Close()
			db.Close()
			return nil, model.WrapError(model.KindUnavailable, "open store", err)
		}
		reader.SetMaxOpenConns(readConns)
		reader.SetMaxIdleConns(readConns)
	}

	s := &Store{db: db, reader: reader, clock: SystemClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// dsn builds a go-sqlite3 URI. Pragmas travel in the DSN so a connection
// reopened by the pool gets the same settings.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

const readConns = 4

// readDSN builds the DSN for the read pool. The journal mode is a property
// of the file and is already WAL once the writer has opened it.
func readDSN(path string) string {
	q := url.Values{}
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	q.Set("_query_only", "true")
	q.Set("_txlock", "deferred")
	return "file:" + path + "?" + q.Encode()
}

func inMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Close closes both connection pools.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	var readErr error
	if s.reader != nil && s.reader != s.db {
		readErr = s.reader.Close()
	}
	return errors.Join(s.db.Close(), readErr)
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise; either way there is no partial
// effect. Errors are translated into the model taxonomy.
//
// fn must only use tx: the pool holds a single connection, so touching
// s.DB() from inside fn would block forever.
func (s *Store) InTx(ctx context.Context, op string, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(op, err)
	}
	defer sqlTx.Rollback() // No-op if committed

	tx := &Tx{tx: sqlTx, now: s.clock.Now().UTC()}
	if err := fn(tx); err != nil {
		return translate(op, err)
	}

	if err := sqlTx.Commit(); err != nil {
		return translate(op, err)
	}
	return nil
}

// View runs fn inside a read-only transaction on the read pool. fn sees one
// consistent snapshot and never takes the write lock. Any write attempted
// through tx fails. Errors are translated into the model taxonomy.
func (s *Store) View(ctx context.Context, op string, fn func(tx *Tx) error) error {
	sqlTx, err := s.reader.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return translate(op, err)
	}
	defer sqlTx.Rollback()

	tx := &Tx{tx: sqlTx, now: s.clock.Now().UTC()}
	if err := fn(tx); err != nil {
		return translate(op, err)
	}
	return translate(op, sqlTx.Commit())
}

// applySchema runs the embedded migrations. Up on an already current schema
// returns migrate.ErrNoChange, which is not an error here.
func applySchema(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// m.Close would close db through the driver; only release the source.
	defer source.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version and whether the last
// migration left the schema dirty.
func (s *Store) SchemaVersion(ctx context.Context) (version int, dirty bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, false, translate("schema version", err)
	}
	return version, dirty, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// Clock supplies wall-clock time for commit timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
