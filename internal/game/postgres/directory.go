// Package postgres implements [game.Directory] on the game's PostgreSQL
// database. The game plugin owns the rows; the bridge reads them and records
// accounts it sees in world events.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/crossing/internal/game"
)

// Schema is the SQL DDL for the directory tables. Execute it via
// [Directory.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS game_users (
    stable_id  TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    link       TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_game_users_name ON game_users(lower(name));

CREATE TABLE IF NOT EXISTS game_listings (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL CHECK (kind IN ('contract', 'work_party')),
    client_id   TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_game_listings_client ON game_listings(client_id, kind, created_at DESC);
`

// Listing kinds stored in game_listings.kind.
const (
	kindContract  = "contract"
	kindWorkParty = "work_party"
)

// DB is the database interface used by [Directory]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Directory is a [game.Directory] backed by PostgreSQL.
type Directory struct {
	db DB
}

var _ game.Directory = (*Directory)(nil)

// New returns a Directory using db. Call [Directory.Migrate] before the
// first query when the schema may not exist.
func New(db DB) *Directory {
	return &Directory{db: db}
}

// Open connects a pool to dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// Migrate executes [Schema].
func (d *Directory) Migrate(ctx context.Context) error {
	if _, err := d.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// FindUserByStableID implements [game.Directory].
func (d *Directory) FindUserByStableID(ctx context.Context, id string) (game.User, error) {
	const query = `SELECT stable_id, name, link FROM game_users WHERE stable_id = $1`
	return d.user(ctx, query, id)
}

// FindUserByName implements [game.Directory]. Names match
// case-insensitively; the most recently updated account wins a tie.
func (d *Directory) FindUserByName(ctx context.Context, name string) (game.User, error) {
	const query = `
		SELECT stable_id, name, link FROM game_users
		WHERE lower(name) = lower($1)
		ORDER BY updated_at DESC
		LIMIT 1`
	return d.user(ctx, query, strings.TrimSpace(name))
}

func (d *Directory) user(ctx context.Context, query, arg string) (game.User, error) {
	var u game.User
	err := d.db.QueryRow(ctx, query, arg).Scan(&u.StableID, &u.Name, &u.Link)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.User{}, game.ErrUserNotFound
		}
		return game.User{}, fmt.Errorf("postgres: find user: %w", err)
	}
	return u, nil
}

// Reference implements [game.Directory].
func (d *Directory) Reference(u game.User) string { return game.DefaultReference(u) }

// LatestContract implements [game.Directory].
func (d *Directory) LatestContract(ctx context.Context, clientID string) (game.Listing, error) {
	return d.latest(ctx, kindContract, clientID)
}

// LatestWorkParty implements [game.Directory].
func (d *Directory) LatestWorkParty(ctx context.Context, clientID string) (game.Listing, error) {
	return d.latest(ctx, kindWorkParty, clientID)
}

func (d *Directory) latest(ctx context.Context, kind, clientID string) (game.Listing, error) {
	const query = `
		SELECT id, client_id, description, created_at FROM game_listings
		WHERE client_id = $1 AND kind = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var l game.Listing
	err := d.db.QueryRow(ctx, query, clientID, kind).Scan(&l.ID, &l.ClientID, &l.Description, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.Listing{}, game.ErrNoListing
		}
		return game.Listing{}, fmt.Errorf("postgres: latest %s: %w", kind, err)
	}
	return l, nil
}

// RecordUser inserts u or refreshes its name. An existing link markup is
// kept when u carries none.
func (d *Directory) RecordUser(ctx context.Context, u game.User) error {
	if u.StableID == "" || u.Name == "" {
		return fmt.Errorf("%w: user without stable id or name", game.ErrMalformed)
	}
	const query = `
		INSERT INTO game_users (stable_id, name, link) VALUES ($1, $2, $3)
		ON CONFLICT (stable_id) DO UPDATE SET
			name = EXCLUDED.name,
			link = CASE WHEN EXCLUDED.link = '' THEN game_users.link ELSE EXCLUDED.link END,
			updated_at = now()`
	if _, err := d.db.Exec(ctx, query, u.StableID, u.Name, u.Link); err != nil {
		return fmt.Errorf("postgres: record user %s: %w", u.StableID, err)
	}
	return nil
}
