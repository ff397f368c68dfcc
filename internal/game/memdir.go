package game

import (
	"context"
	"strings"
	"sync"
)

// Compile-time assertion that MemDirectory satisfies the Directory interface.
var _ Directory = (*MemDirectory)(nil)

// MemDirectory is a thread-safe, in-memory implementation of [Directory].
// It backs deployments without a database and is used in tests.
type MemDirectory struct {
	mu          sync.RWMutex
	users       map[string]User
	contracts   map[string]Listing
	workParties map[string]Listing
	known       func(stableID string) bool
}

// NewMemDirectory returns a [MemDirectory] seeded with users.
func NewMemDirectory(users ...User) *MemDirectory {
	d := &MemDirectory{
		users:       make(map[string]User),
		contracts:   make(map[string]Listing),
		workParties: make(map[string]Listing),
	}
	for _, u := range users {
		d.users[u.StableID] = u
	}
	return d
}

// SetKnown makes [MemDirectory.FindUserByStableID] answer for ids it has not
// stored yet when known reports them, with the id standing in for the name
// until the account is recorded.
func (d *MemDirectory) SetKnown(known func(stableID string) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known = known
}

// PutUser inserts or replaces u.
func (d *MemDirectory) PutUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.StableID] = u
}

// PutContract records l as the latest contract of its client.
func (d *MemDirectory) PutContract(l Listing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.contracts[l.ClientID]; ok && cur.CreatedAt.After(l.CreatedAt) {
		return
	}
	d.contracts[l.ClientID] = l
}

// PutWorkParty records l as the latest work party of its client.
func (d *MemDirectory) PutWorkParty(l Listing) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.workParties[l.ClientID]; ok && cur.CreatedAt.After(l.CreatedAt) {
		return
	}
	d.workParties[l.ClientID] = l
}

// FindUserByStableID implements [Directory.FindUserByStableID].
func (d *MemDirectory) FindUserByStableID(_ context.Context, id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	if id != "" && d.known != nil && d.known(id) {
		return User{StableID: id, Name: id}, nil
	}
	return User{}, ErrUserNotFound
}

// FindUserByName implements [Directory.FindUserByName].
func (d *MemDirectory) FindUserByName(_ context.Context, name string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Name, name) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// Reference implements [Directory.Reference].
func (d *MemDirectory) Reference(u User) string { return DefaultReference(u) }

// LatestContract implements [Directory.LatestContract].
func (d *MemDirectory) LatestContract(_ context.Context, clientID string) (Listing, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.contracts[clientID]
	if !ok {
		return Listing{}, ErrNoListing
	}
	return l, nil
}

// LatestWorkParty implements [Directory.LatestWorkParty].
func (d *MemDirectory) LatestWorkParty(_ context.Context, clientID string) (Listing, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.workParties[clientID]
	if !ok {
		return Listing{}, ErrNoListing
	}
	return l, nil
}

// RecordUser stores u unless it lacks an id or name.
func (d *MemDirectory) RecordUser(_ context.Context, u User) error {
	if u.StableID == "" || u.Name == "" {
		return ErrMalformed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.users[u.StableID]; ok && u.Link == "" {
		u.Link = cur.Link
	}
	d.users[u.StableID] = u
	return nil
}
