package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/prasenjit/go-mockserver/internal/config"
	"github.com/prasenjit/go-mockserver/internal/models"
)

// Storage persists the mock collection and captured requests
type Storage interface {
	// LoadMocks returns the persisted mocks in registration order
	LoadMocks(ctx context.Context) ([]models.Mock, error)
	// SaveMocks replaces the persisted mock collection
	SaveMocks(ctx context.Context, mocks []models.Mock) error

	AppendRequest(ctx context.Context, rec *models.RequestRecord) error

	Info() Info
	Close() error
}

// Purger is implemented by stores that can drop old request records
type Purger interface {
	PurgeRequests(ctx context.Context, before time.Time) (int64, error)
}

// HistoryReader is implemented by stores that can read back persisted
// request records
type HistoryReader interface {
	// RecentRequests returns up to limit records, newest first
	RecentRequests(ctx context.Context, limit int) ([]models.RequestRecord, error)
}

// Info describes a storage backend
type Info struct {
	Type        string `json:"type"`
	Location    string `json:"location,omitempty"`
	Initialized bool   `json:"initialized"`
}

// Open creates the storage backend selected by cfg
func Open(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return NewMemoryStorage(), nil
	case config.StorageFile, "":
		return NewFileStorage(cfg.Path)
	case config.StoragePostgres:
		return OpenSQL(ctx, DialectPostgres, cfg.DSN)
	case config.StorageSQLite:
		return OpenSQL(ctx, DialectSQLite, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
