package eventlog

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Presence/internal/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var sqlFiles embed.FS

const sqliteOperationTimeout = 5 * time.Second

// SQLiteStore persists messages so resync survives a hub restart.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if needed) the database at path.
// ":memory:" is accepted for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening db: %w", err)
	}
	// sqlite serializes writers anyway; one connection also keeps
	// ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error pinging db: %w", err)
	}
	schema, err := sqlFiles.ReadFile("schema.sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error reading schema: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, msg domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, sqliteOperationTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO messages (id, server_id, channel_id, author_id, author_name, content, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		msg.ID, string(msg.ServerID), string(msg.ChannelID), string(msg.AuthorID), msg.AuthorName, msg.Content, msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("error inserting message: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Since(ctx context.Context, q Query) ([]domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, sqliteOperationTimeout)
	defer cancel()

	var (
		query strings.Builder
		args  = []any{q.Since.UnixMilli()}
	)
	query.WriteString("SELECT id, server_id, channel_id, author_id, author_name, content, created_at FROM messages WHERE created_at >= ?")
	if len(q.Channels) > 0 {
		query.WriteString(" AND channel_id IN (")
		for i, ch := range q.Channels {
			if i > 0 {
				query.WriteString(", ")
			}
			query.WriteString("?")
			args = append(args, string(ch))
		}
		query.WriteString(")")
	}
	// newest Limit rows, returned oldest first
	query.WriteString(" ORDER BY created_at DESC, rowid DESC")
	if q.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Message, 0)
	for rows.Next() {
		var (
			msg     domain.Message
			created int64
		)
		if err := rows.Scan(&msg.ID, &msg.ServerID, &msg.ChannelID, &msg.AuthorID, &msg.AuthorName, &msg.Content, &created); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		msg.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
