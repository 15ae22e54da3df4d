package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore is the thread directory: it reads posts and records the
// Discord thread bound to each one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetPost returns sql.ErrNoRows when the post does not exist.
func (s *PostgresStore) GetPost(ctx context.Context, postID string) (Post, error) {
	var item Post
	var threadID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, discord_forum_post_id, created_at, updated_at
		FROM posts
		WHERE id=$1
	`, postID).Scan(&item.ID, &item.Title, &item.Description, &threadID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Post{}, err
	}
	if threadID.Valid && threadID.String != "" {
		item.ThreadID = &threadID.String
	}
	return item, nil
}

// BindThread records threadID against the post only if no thread is bound yet.
// An empty stored ID counts as unbound, as it does in GetPost. It returns the
// thread ID bound after the call and whether this call's write won. A losing
// write returns the previously bound ID.
func (s *PostgresStore) BindThread(ctx context.Context, postID, threadID string) (string, bool, error) {
	var bound string
	err := s.db.QueryRowContext(ctx, `
		UPDATE posts
		SET discord_forum_post_id=$2, updated_at=NOW()
		WHERE id=$1 AND (discord_forum_post_id IS NULL OR discord_forum_post_id = '')
		RETURNING discord_forum_post_id
	`, postID, threadID).Scan(&bound)
	if err == nil {
		return bound, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("bind thread: %w", err)
	}

	var current sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT discord_forum_post_id FROM posts WHERE id=$1`, postID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, err
		}
		return "", false, fmt.Errorf("read bound thread: %w", err)
	}
	return current.String, false, nil
}

// ListUnboundPosts returns up to limit posts without a thread, oldest first.
func (s *PostgresStore) ListUnboundPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, created_at, updated_at
		FROM posts
		WHERE discord_forum_post_id IS NULL OR discord_forum_post_id = ''
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unbound posts: %w", err)
	}
	defer rows.Close()

	items := make([]Post, 0)
	for rows.Next() {
		var item Post
		if err := rows.Scan(&item.ID, &item.Title, &item.Description, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

// InsertPost adds a post unless its ID exists. Posts are owned by the content
// store; this is the seeding path for fixtures and local databases.
func (s *PostgresStore) InsertPost(ctx context.Context, item Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, title, description, discord_forum_post_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Title, item.Description, item.ThreadID)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}
