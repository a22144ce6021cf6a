package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"promptvc.dev/internal/store"
)

// Store reads the web application's schema over a shared *sql.DB pool.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Read-only workload; a modest pool is plenty.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing pool, used by tests with sqlmock.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) FindSessionByToken(ctx context.Context, token string) (*store.Session, error) {
	var sess store.Session
	err := s.db.QueryRowContext(ctx, `
		select s.token, s.user_id, u.name, s.expires_at
		from sessions s
		join users u on u.id = s.user_id
		where s.token = $1
	`, token).Scan(&sess.Token, &sess.UserID, &sess.Username, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) FindWorkspaceAccess(ctx context.Context, workspaceID, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		select exists(
			select 1 from workspaces w
			where w.id = $1 and w.owner_id = $2
			union all
			select 1 from workspace_contributors c
			where c.workspace_id = $1 and c.user_id = $2
		)
	`, workspaceID, userID).Scan(&ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) FindWorkspaceMetadata(ctx context.Context, workspaceID string) (*store.Workspace, error) {
	var ws store.Workspace
	err := s.db.QueryRowContext(ctx, `
		select id, slug, name, owner_id from workspaces where id = $1
	`, workspaceID).Scan(&ws.ID, &ws.Slug, &ws.Name, &ws.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}
