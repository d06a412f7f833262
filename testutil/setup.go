package testutil

import (
	"sync"
	"testing"

	"github.com/pulsewire/server/cache"
	"github.com/pulsewire/server/config"
	dbadapter "github.com/pulsewire/server/db"
	"github.com/pulsewire/server/model"
	"github.com/pulsewire/server/notify"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SetupTestDB creates an isolated in-memory SQLite DB and runs AutoMigrate.
// It requires no external services and is safe to use in parallel tests.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode: dbadapter.ModeSQLiteMemory,
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// RecordingEmitter captures emitted notification events for assertions.
type RecordingEmitter struct {
	mu     sync.Mutex
	events []*notify.Event
}

func (r *RecordingEmitter) Emit(ev *notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a snapshot of everything emitted so far.
func (r *RecordingEmitter) Events() []*notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*notify.Event, len(r.events))
	copy(out, r.events)
	return out
}
