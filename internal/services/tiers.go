package services

import (
	"context"
	"errors"
	"time"

	"memgate/internal/models"
)

// ErrEngineUnavailable is returned by operations that cannot proceed without
// the long-term memory engine (promote, delete, agent-scoped retrieval).
var ErrEngineUnavailable = errors.New("long-term memory engine not initialized")

// ErrDatabaseUnavailable is returned by profile and history operations when
// the relational store is down.
var ErrDatabaseUnavailable = errors.New("database not available")

// ShortTermStore is the ephemeral-tier contract. All operations are
// best-effort: on connectivity failure they return empty results or false
// rather than an error, and callers degrade gracefully.
type ShortTermStore interface {
	// Put stores a record under key with the given TTL. A non-positive TTL
	// falls back to the store default; entries are never stored without one.
	Put(ctx context.Context, key string, mem *models.ShortTermMemory, ttl time.Duration) bool

	// GetMatching returns every entry whose key falls under the owner's
	// namespace ("" or "*" scans all owners), incrementing each returned
	// entry's access count exactly once.
	GetMatching(ctx context.Context, owner string) []models.ShortTermMemory

	// Snapshot is GetMatching without the access-count increment. Used by
	// the promotion scan so that scanning cannot make entries eligible.
	Snapshot(ctx context.Context, owner string) []models.ShortTermMemory

	// IncrementAccess atomically bumps the access count of one entry and
	// returns it; ok is false if the key is gone or the store is down.
	IncrementAccess(ctx context.Context, key string) (*models.ShortTermMemory, bool)

	// Get fetches one entry without touching its access count.
	Get(ctx context.Context, key string) (*models.ShortTermMemory, bool)

	Delete(ctx context.Context, key string) bool
	CountMatching(ctx context.Context, owner string) int
	Ping(ctx context.Context) error
}

// MemoryEngine is the narrow contract of the external long-term memory
// engine. Embedding generation, vector indexing and graph extraction are the
// engine's business; this side only translates calls.
type MemoryEngine interface {
	Add(ctx context.Context, messages []models.Message, userID, agentID, sessionID string, metadata map[string]interface{}) (interface{}, error)
	Search(ctx context.Context, query, userID, agentID, sessionID string, limit int) ([]models.MemoryResult, error)
	GetAll(ctx context.Context, userID, agentID string, limit int) ([]models.MemoryResult, error)
	Delete(ctx context.Context, id string) error

	// Embed is used only by the health probe.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PromotionLocker serializes concurrent promotion of one key across sweeps.
type PromotionLocker interface {
	AcquireLock(ctx context.Context, lockKey, lockValue string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error)
}
