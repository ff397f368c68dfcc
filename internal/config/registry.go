package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/crossing/internal/game"
)

// ErrTransportNotRegistered is returned by [Registry.CreateBus] when no
// factory has been registered for the configured transport.
var ErrTransportNotRegistered = errors.New("config: transport not registered")

// BusFactory builds a game bus from the game section of the config.
type BusFactory func(GameConfig) (game.Bus, error)

// Registry maps transport names to bus constructors. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	buses map[Transport]BusFactory
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{buses: make(map[Transport]BusFactory)}
}

// RegisterBus registers factory under t, replacing any previous entry.
func (r *Registry) RegisterBus(t Transport, factory BusFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buses[t] = factory
}

// CreateBus instantiates the bus for cfg.Transport.
func (r *Registry) CreateBus(cfg GameConfig) (game.Bus, error) {
	r.mu.RLock()
	factory, ok := r.buses[cfg.Transport]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTransportNotRegistered, cfg.Transport)
	}
	bus, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: create %s bus: %w", cfg.Transport, err)
	}
	return bus, nil
}
