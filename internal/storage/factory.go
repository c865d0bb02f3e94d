package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/lugondev/go-cash/internal/config"
)

// Backend names accepted in database.type.
const (
	DatabaseTypeMemory   = "memory"
	DatabaseTypeMongoDB  = "mongodb"
	DatabaseTypePostgres = "postgres"
	DatabaseTypeMySQL    = "mysql"
)

// Opener connects one backend, reading its own section of cfg.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (Repository, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// Register makes a backend available under name. Backends call it from
// init, so a node links only the drivers it imports.
func Register(name string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if _, dup := openers[name]; dup {
		panic("storage: backend registered twice: " + name)
	}
	openers[name] = open
}

// Registered lists the linked backends in name order.
func Registered() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	return slices.Sorted(maps.Keys(openers))
}

// Open connects the backend cfg.Type names and pings it.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Repository, error) {
	openersMu.RLock()
	open, ok := openers[cfg.Type]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage backend %q is not linked (have %v)", cfg.Type, Registered())
	}

	repo, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Type, err)
	}
	if err := repo.Ping(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Type, err)
	}
	return repo, nil
}
