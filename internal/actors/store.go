package actors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	apperrors "github.com/youruser/tokenizer/internal/errors"
)

// Store persists actor records in SQLite.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite file at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS actors (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'npc',
			portrait_url TEXT NOT NULL DEFAULT '',
			token_image_url TEXT NOT NULL DEFAULT '',
			token_wildcard INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Put inserts or replaces an actor.
func (s *Store) Put(ctx context.Context, a Actor) error {
	if a.ID == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "actor id is required")
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO actors (id, name, kind, portrait_url, token_image_url, token_wildcard, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			portrait_url = excluded.portrait_url,
			token_image_url = excluded.token_image_url,
			token_wildcard = excluded.token_wildcard,
			updated_at = CURRENT_TIMESTAMP`,
		a.ID, a.Name, a.Kind, a.PortraitURL, a.Token.ImageURL, a.Token.IsWildcard)
	if err != nil {
		return fmt.Errorf("put actor %s: %w", a.ID, err)
	}
	return nil
}

// Get returns the actor with id, or a NOT_FOUND error.
func (s *Store) Get(ctx context.Context, id string) (Actor, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, kind, portrait_url, token_image_url, token_wildcard
		FROM actors WHERE id = ?`, id)
	a, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Actor{}, apperrors.New(apperrors.CodeNotFound, "actor "+id+" not found")
	}
	if err != nil {
		return Actor{}, fmt.Errorf("get actor %s: %w", id, err)
	}
	return a, nil
}

// List returns all actors ordered by name.
func (s *Store) List(ctx context.Context) ([]Actor, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, kind, portrait_url, token_image_url, token_wildcard
		FROM actors ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var out []Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update applies p to the actor in a single transaction: either every field
// in the patch is written or none is.
func (s *Store) Update(ctx context.Context, id string, p Patch) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeActorUpdate, "update actor "+id, err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, name, kind, portrait_url, token_image_url, token_wildcard
		FROM actors WHERE id = ?`, id)
	a, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.Wrap(apperrors.CodeActorUpdate, "update actor "+id,
			apperrors.New(apperrors.CodeNotFound, "actor "+id+" not found"))
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeActorUpdate, "update actor "+id, err)
	}

	a = p.Apply(a)
	if _, err := tx.ExecContext(ctx, `
		UPDATE actors SET portrait_url = ?, token_image_url = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, a.PortraitURL, a.Token.ImageURL, id); err != nil {
		return apperrors.Wrap(apperrors.CodeActorUpdate, "update actor "+id, err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.CodeActorUpdate, "update actor "+id, err)
	}
	return nil
}

// Seed stores every actor, stopping at the first failure.
func (s *Store) Seed(ctx context.Context, actors []Actor) error {
	for _, a := range actors {
		if err := s.Put(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActor(sc scanner) (Actor, error) {
	var a Actor
	var wildcard int
	if err := sc.Scan(&a.ID, &a.Name, &a.Kind, &a.PortraitURL, &a.Token.ImageURL, &wildcard); err != nil {
		return Actor{}, err
	}
	a.Token.IsWildcard = wildcard != 0
	return a, nil
}
