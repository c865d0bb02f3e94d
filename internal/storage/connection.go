package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/lugondev/go-cash/internal/config"
)

// ConnectionManager opens the configured backend once and shares it.
type ConnectionManager struct {
	cfg *config.DatabaseConfig

	mu   sync.Mutex
	repo Repository
}

func NewConnectionManager(cfg *config.DatabaseConfig) (*ConnectionManager, error) {
	if !cfg.Enabled {
		return nil, errors.New("database is disabled")
	}
	return &ConnectionManager{cfg: cfg}, nil
}

// Connect opens the backend on first use and returns the same Repository
// afterwards.
func (cm *ConnectionManager) Connect(ctx context.Context) (Repository, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.repo == nil {
		repo, err := Open(ctx, cm.cfg)
		if err != nil {
			return nil, err
		}
		cm.repo = repo
	}
	return cm.repo, nil
}

// Close closes the open backend, if any. Connect may be called again.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.repo == nil {
		return nil
	}
	err := cm.repo.Close()
	cm.repo = nil
	return err
}
