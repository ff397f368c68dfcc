// Package identity keeps the durable link between Discord accounts and game
// accounts.
//
// The Store holds two flat maps: Discord user id → game stable id, and its
// reverse. Both are written through to disk as pretty-printed JSON objects on
// every [Store.Link] and loaded eagerly by [Store.Load]. Lookups made before
// Load has succeeded report "not found" instead of blocking.
//
// Link persists both tables before the in-memory maps change, so a failed
// write leaves lookups as they were.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// File names of the persisted tables inside the store directory.
const (
	ForwardFile = "discord_to_game.json"
	ReverseFile = "game_to_discord.json"
)

// ErrCorrupt is returned by [Store.Load] when a persisted table cannot be
// parsed. The mapping cannot be reconstructed safely, so this is fatal at
// startup.
var ErrCorrupt = errors.New("identity: corrupt link table")

// Store is the two-way identity mapping. The zero value is not usable; create
// one with [NewStore].
type Store struct {
	dir string

	// linkMu serializes Link so each write starts from the last persisted
	// tables.
	linkMu sync.Mutex

	mu      sync.RWMutex
	forward map[string]string // discord id → game stable id
	reverse map[string]string // game stable id → discord id

	loaded atomic.Bool
}

// NewStore returns a Store persisting into dir. Call [Store.Load] before use.
func NewStore(dir string) *Store {
	return &Store{
		dir:     dir,
		forward: make(map[string]string),
		reverse: make(map[string]string),
	}
}

// Dir returns the directory the tables are persisted in.
func (s *Store) Dir() string { return s.dir }

// Load reads both tables from disk. A missing file is an empty table; a
// malformed file yields an error wrapping [ErrCorrupt].
func (s *Store) Load() error {
	forward, err := readTable(filepath.Join(s.dir, ForwardFile))
	if err != nil {
		return err
	}
	reverse, err := readTable(filepath.Join(s.dir, ReverseFile))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.forward = forward
	s.reverse = reverse
	s.mu.Unlock()
	s.loaded.Store(true)

	slog.Info("identity: links loaded", "dir", s.dir, "forward", len(forward), "reverse", len(reverse))
	return nil
}

// Loaded reports whether [Store.Load] has completed successfully.
func (s *Store) Loaded() bool { return s.loaded.Load() }

// Link associates discordID with gameID, overwriting the forward entry for
// discordID and the reverse entry for gameID, then rewrites both tables.
//
// Links previously held by the other side are left untouched.
func (s *Store) Link(ctx context.Context, discordID, gameID string) error {
	if discordID == "" || gameID == "" {
		return fmt.Errorf("identity: link: both ids are required")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("identity: link: %w", err)
	}

	s.linkMu.Lock()
	defer s.linkMu.Unlock()

	s.mu.RLock()
	oldForward := cloneMap(s.forward)
	reverse := cloneMap(s.reverse)
	s.mu.RUnlock()
	forward := cloneMap(oldForward)
	forward[discordID] = gameID
	reverse[gameID] = discordID

	// The maps are only swapped in once both tables are on disk.
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("identity: link: create dir: %w", err)
	}
	forwardPath := filepath.Join(s.dir, ForwardFile)
	if err := writeTable(forwardPath, forward); err != nil {
		return fmt.Errorf("identity: link: %w", err)
	}
	if err := writeTable(filepath.Join(s.dir, ReverseFile), reverse); err != nil {
		if rerr := writeTable(forwardPath, oldForward); rerr != nil {
			slog.Error("identity: restore forward table", "path", forwardPath, "err", rerr)
		}
		return fmt.Errorf("identity: link: %w", err)
	}

	s.mu.Lock()
	s.forward = forward
	s.reverse = reverse
	s.mu.Unlock()

	slog.Info("identity: linked", "discord_id", discordID, "game_id", gameID)
	return nil
}

// LookupInternal returns the game stable id linked to discordID.
func (s *Store) LookupInternal(discordID string) (string, bool) {
	if !s.loaded.Load() {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.forward[discordID]
	return id, ok
}

// LookupExternal returns the Discord id linked to gameID.
func (s *Store) LookupExternal(gameID string) (string, bool) {
	if !s.loaded.Load() {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.reverse[gameID]
	return id, ok
}

// Len returns the number of forward links.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.forward)
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
