package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"messenger-service/internal/logging"
)

// Connect opens the Postgres pool and applies migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return conn, nil
}

func runMigrations(conn *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            avatar_url TEXT NOT NULL DEFAULT '',
            is_online BOOLEAN NOT NULL DEFAULT FALSE,
            last_seen TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS user_blocks (
            id SERIAL PRIMARY KEY,
            blocker_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            blocked_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            blocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(blocker_id, blocked_id)
        );`,
		`CREATE TABLE IF NOT EXISTS chats (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL DEFAULT '',
            avatar_url TEXT NOT NULL DEFAULT '',
            is_group BOOLEAN NOT NULL DEFAULT FALSE,
            status TEXT NOT NULL DEFAULT 'active',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chat_participants (
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            is_admin BOOLEAN NOT NULL DEFAULT FALSE,
            is_muted BOOLEAN NOT NULL DEFAULT FALSE,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_read_at TIMESTAMPTZ,
            last_read_message_id INT,
            PRIMARY KEY(chat_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id INT NOT NULL REFERENCES users(id),
            content TEXT,
            sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            edited_at TIMESTAMPTZ,
            is_edited BOOLEAN NOT NULL DEFAULT FALSE,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            is_system BOOLEAN NOT NULL DEFAULT FALSE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_sent
            ON messages (chat_id, sent_at DESC, id DESC);`,
		`CREATE TABLE IF NOT EXISTS file_attachments (
            id SERIAL PRIMARY KEY,
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            file_name TEXT NOT NULL,
            file_url TEXT NOT NULL,
            file_type TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS message_reactions (
            id SERIAL PRIMARY KEY,
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            reaction TEXT NOT NULL,
            UNIQUE(message_id, user_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := conn.Exec(m); err != nil {
			return err
		}
	}
	logging.Component("db").Info("database migrations applied")
	return nil
}
