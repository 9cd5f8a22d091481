package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pearcircuitmike/replicate-codex/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database. Postgres is the production
// backend (similarity search needs pgvector); sqlite serves tests and
// local development.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "postgres":
		dsn := dbCfg.DSN
		if dsn == "" {
			sslMode := dbCfg.SSLMode
			if sslMode == "" {
				sslMode = "require"
			}
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.DBName,
				sslMode,
			)
		}
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = sqliteSchema
	case "postgres":
		stmts = postgresSchema
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		subscription_status TEXT NOT NULL DEFAULT 'none',
		stripe_customer_id TEXT NOT NULL DEFAULT '',
		paper_digest TEXT NOT NULL DEFAULT 'weekly',
		model_digest TEXT NOT NULL DEFAULT 'weekly',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_tokens (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_tokens_user ON user_tokens(user_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
	`CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		abstract TEXT NOT NULL DEFAULT '',
		authors TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		published_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		creator TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS highlights (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		paper_id TEXT NOT NULL,
		quote TEXT NOT NULL,
		prefix TEXT NOT NULL DEFAULT '',
		suffix TEXT NOT NULL DEFAULT '',
		text_offset INTEGER NOT NULL DEFAULT 0,
		context TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES profiles(id) ON DELETE CASCADE,
		FOREIGN KEY(paper_id) REFERENCES papers(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_highlights_paper ON highlights(paper_id)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		paper_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		parent_id TEXT,
		body TEXT NOT NULL,
		is_hidden INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(paper_id) REFERENCES papers(id) ON DELETE CASCADE,
		FOREIGN KEY(parent_id) REFERENCES notes(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_paper ON notes(paper_id)`,
	`CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		is_default INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES profiles(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id)`,
	`CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		folder_id TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(user_id) REFERENCES profiles(id) ON DELETE CASCADE,
		FOREIGN KEY(folder_id) REFERENCES folders(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookmarks_folder ON bookmarks(folder_id)`,
	`CREATE TABLE IF NOT EXISTS communities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS community_topics (
		community_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		PRIMARY KEY (community_id, topic),
		FOREIGN KEY(community_id) REFERENCES communities(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS memberships (
		user_id TEXT NOT NULL,
		community_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, community_id),
		FOREIGN KEY(user_id) REFERENCES profiles(id) ON DELETE CASCADE,
		FOREIGN KEY(community_id) REFERENCES communities(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS invites (
		token TEXT PRIMARY KEY,
		community_id TEXT NOT NULL,
		email TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		accepted_at DATETIME,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(community_id) REFERENCES communities(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invites_expiry ON invites(expires_at)`,
}

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		subscription_status TEXT NOT NULL DEFAULT 'none',
		stripe_customer_id TEXT NOT NULL DEFAULT '',
		paper_digest TEXT NOT NULL DEFAULT 'weekly',
		model_digest TEXT NOT NULL DEFAULT 'weekly',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_tokens (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_tokens_user ON user_tokens(user_id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		context TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
	`CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		abstract TEXT NOT NULL DEFAULT '',
		authors TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		embedding vector(1536),
		published_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS models (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		creator TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL DEFAULT '',
		embedding vector(1536),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS highlights (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
		quote TEXT NOT NULL,
		prefix TEXT NOT NULL DEFAULT '',
		suffix TEXT NOT NULL DEFAULT '',
		text_offset INTEGER NOT NULL DEFAULT 0,
		context TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_highlights_paper ON highlights(paper_id)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		parent_id TEXT REFERENCES notes(id),
		body TEXT NOT NULL,
		is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_paper ON notes(paper_id)`,
	`CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_folders_user ON folders(user_id)`,
	`CREATE TABLE IF NOT EXISTS bookmarks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		folder_id TEXT NOT NULL REFERENCES folders(id),
		resource_id TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookmarks_folder ON bookmarks(folder_id)`,
	`CREATE TABLE IF NOT EXISTS communities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS community_topics (
		community_id TEXT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
		topic TEXT NOT NULL,
		PRIMARY KEY (community_id, topic)
	)`,
	`CREATE TABLE IF NOT EXISTS memberships (
		user_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		community_id TEXT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, community_id)
	)`,
	`CREATE TABLE IF NOT EXISTS invites (
		token TEXT PRIMARY KEY,
		community_id TEXT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		accepted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invites_expiry ON invites(expires_at)`,
}
