package store

import (
	"context"
	"encoding/json"

	"github.com/starford/feedwise/internal/models"
)

// ProfileStore defines the persistence operations on profiles and settings.
// The feeding service depends on it rather than on *DB.
type ProfileStore interface {
	Add(ctx context.Context, p models.Profile) (models.Profile, error)
	Update(ctx context.Context, p models.Profile) (models.Profile, error)
	Remove(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
	GetSetting(ctx context.Context, key string, dst any) (bool, error)
	SetSetting(ctx context.Context, key string, value any) error
	RawSetting(ctx context.Context, key string) (json.RawMessage, error)
	Export(ctx context.Context) (models.Snapshot, error)
	Import(ctx context.Context, snap models.Snapshot) error
	Close() error
}

// Verify *DB satisfies ProfileStore at compile time.
var _ ProfileStore = (*DB)(nil)
