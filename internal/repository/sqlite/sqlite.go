// Package sqlite implements the repository interfaces on top of SQLite.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the server builds without a C
// toolchain and tests can use ":memory:" databases.
//
// CONCURRENCY:
// The pool is capped at a single open connection. SQLite only allows one
// writer anyway, and with one connection every transaction below is
// serialized by database/sql itself. That is what makes the vote-once checks
// race-free together with the UNIQUE constraints in the schema. It also keeps
// ":memory:" databases coherent, since each new connection to ":memory:" would
// otherwise see an empty database.
//
// Inside a transaction, code must only use the *sql.Tx. Touching db.conn while
// a transaction is open would wait for the one connection forever.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// querier is the subset of *sql.DB and *sql.Tx the read helpers need, so the
// same scan code runs inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/civic.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent.
//
// responses.responded_at is stored as Unix milliseconds rather than DATETIME
// because the trending query compares it numerically against a cut-off.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			role       TEXT NOT NULL DEFAULT 'Citizen'
			           CHECK (role IN ('Citizen', 'Expert', 'Lawmaker')),
			password   TEXT NOT NULL DEFAULT '',
			google_id  TEXT UNIQUE,
			picture    TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// post_id is filled in from seq inside the insert transaction.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id        TEXT UNIQUE,
			author_id      TEXT NOT NULL REFERENCES users(id),
			article_number TEXT NOT NULL,
			article_title  TEXT NOT NULL,
			content        TEXT NOT NULL,
			agree_count    INTEGER NOT NULL DEFAULT 0 CHECK (agree_count >= 0),
			disagree_count INTEGER NOT NULL DEFAULT 0 CHECK (disagree_count >= 0),
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_article ON posts(article_number);
		CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	// The primary key is the vote-once rule: one response per (post, user).
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS responses (
			post_seq     INTEGER NOT NULL REFERENCES posts(seq),
			user_id      TEXT NOT NULL REFERENCES users(id),
			stance       TEXT NOT NULL CHECK (stance IN ('agree', 'disagree')),
			responded_at INTEGER NOT NULL,
			PRIMARY KEY (post_seq, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_responses_responded_at ON responses(responded_at);
	`)
	if err != nil {
		return fmt.Errorf("creating responses table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS comments (
			id         TEXT PRIMARY KEY,
			post_seq   INTEGER NOT NULL REFERENCES posts(seq),
			author_id  TEXT NOT NULL REFERENCES users(id),
			text       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_seq);
	`)
	if err != nil {
		return fmt.Errorf("creating comments table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS polls (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			question   TEXT NOT NULL,
			created_by TEXT NOT NULL,
			is_active  INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS poll_options (
			poll_id   INTEGER NOT NULL REFERENCES polls(id),
			option_id INTEGER NOT NULL,
			text      TEXT NOT NULL,
			votes     INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (poll_id, option_id)
		);
		CREATE TABLE IF NOT EXISTS poll_votes (
			poll_id   INTEGER NOT NULL REFERENCES polls(id),
			user_id   TEXT NOT NULL REFERENCES users(id),
			option_id INTEGER NOT NULL,
			voted_at  DATETIME NOT NULL,
			PRIMARY KEY (poll_id, user_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating poll tables: %w", err)
	}

	// Polls gained an optional end time after the first release.
	if err := db.addColumnIfNotExists("polls", "ends_at", "DATETIME"); err != nil {
		return fmt.Errorf("adding ends_at to polls: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// SQLite has no ADD COLUMN IF NOT EXISTS, so check pragma_table_info first.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// inTx runs fn inside a transaction, committing on nil and rolling back otherwise.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint. The driver reports these as "UNIQUE constraint failed: table.col".
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
