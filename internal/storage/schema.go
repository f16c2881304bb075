package storage

import (
	"context"
	"database/sql"
)

func initSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			about TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			avatar TEXT,
			is_self INTEGER NOT NULL DEFAULT 0,
			created_at_ms BIGINT NOT NULL,
			updated_at_ms BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_is_self ON users(is_self);`,

		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			counterpart_id TEXT,
			name TEXT NOT NULL,
			display_time TEXT NOT NULL DEFAULT '',
			last_message TEXT NOT NULL DEFAULT '',
			created_at_ms BIGINT NOT NULL,
			updated_at_ms BIGINT NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			display_time TEXT NOT NULL DEFAULT '',
			file_url TEXT,
			is_image INTEGER NOT NULL DEFAULT 0,
			file_name TEXT,
			created_at_ms BIGINT NOT NULL,
			FOREIGN KEY(chat_id) REFERENCES chats(id) ON DELETE CASCADE
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_chat_seq ON messages(chat_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// seedDirectory loads the demo user and contacts on first open. The chats
// table deliberately starts empty.
func (s *Store) seedDirectory(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users;").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	nowMs := nowUnixMilli()
	seed := []struct {
		id     string
		name   string
		isSelf int
	}{
		{"100001", "You", 1},
		{"200001", "Alex Chen", 0},
		{"200002", "Priya Patel", 0},
		{"300001", "Luis Martinez", 0},
		{"300002", "Emma Rossi", 0},
	}

	q := `INSERT INTO users (id, name, is_self, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?);`
	for _, u := range seed {
		if _, err := s.db.ExecContext(ctx, s.rebind(q), u.id, u.name, u.isSelf, nowMs, nowMs); err != nil {
			return err
		}
	}
	return nil
}
