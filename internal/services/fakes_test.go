package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"memgate/internal/models"
)

// fakeShortTermStore is an in-memory ShortTermStore for coordinator and
// promotion tests.
type fakeShortTermStore struct {
	mu      sync.Mutex
	entries map[string]*models.ShortTermMemory
	down    bool
}

func newFakeShortTermStore() *fakeShortTermStore {
	return &fakeShortTermStore{entries: make(map[string]*models.ShortTermMemory)}
}

func (f *fakeShortTermStore) Put(ctx context.Context, key string, mem *models.ShortTermMemory, ttl time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false
	}
	clone := *mem
	clone.RedisKey = key
	f.entries[key] = &clone
	return true
}

func (f *fakeShortTermStore) matching(owner string, increment bool) []models.ShortTermMemory {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil
	}
	prefix := ShortTermPrefix
	if owner != "" && owner != "*" {
		prefix = ShortTermPrefix + owner + ":"
	}
	keys := make([]string, 0, len(f.entries))
	for key := range f.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := make([]models.ShortTermMemory, 0, len(keys))
	for _, key := range keys {
		if increment {
			f.entries[key].AccessCount++
		}
		out = append(out, *f.entries[key])
	}
	return out
}

func (f *fakeShortTermStore) GetMatching(ctx context.Context, owner string) []models.ShortTermMemory {
	return f.matching(owner, true)
}

func (f *fakeShortTermStore) Snapshot(ctx context.Context, owner string) []models.ShortTermMemory {
	return f.matching(owner, false)
}

func (f *fakeShortTermStore) IncrementAccess(ctx context.Context, key string) (*models.ShortTermMemory, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mem, ok := f.entries[key]
	if !ok || f.down {
		return nil, false
	}
	mem.AccessCount++
	clone := *mem
	return &clone, true
}

func (f *fakeShortTermStore) Get(ctx context.Context, key string) (*models.ShortTermMemory, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mem, ok := f.entries[key]
	if !ok || f.down {
		return nil, false
	}
	clone := *mem
	return &clone, true
}

func (f *fakeShortTermStore) Delete(ctx context.Context, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; !ok {
		return false
	}
	delete(f.entries, key)
	return true
}

func (f *fakeShortTermStore) CountMatching(ctx context.Context, owner string) int {
	return len(f.matching(owner, false))
}

func (f *fakeShortTermStore) Ping(ctx context.Context) error {
	if f.down {
		return errors.New("store down")
	}
	return nil
}

// fakeEngine is a scriptable MemoryEngine.
type fakeEngine struct {
	mu            sync.Mutex
	added         []models.Message
	addCalls      int
	addErr        error
	searchResults []models.MemoryResult
	searchErr     error
	getAllResults []models.MemoryResult
	getAllErr     error
	deleted       []string
	deleteErr     error
	embedErr      error
	embedCalls    int
}

func (f *fakeEngine) Add(ctx context.Context, messages []models.Message, userID, agentID, sessionID string, metadata map[string]interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.added = append(f.added, messages...)
	return map[string]interface{}{"stored": true}, nil
}

func (f *fakeEngine) Search(ctx context.Context, query, userID, agentID, sessionID string, limit int) ([]models.MemoryResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

func (f *fakeEngine) GetAll(ctx context.Context, userID, agentID string, limit int) ([]models.MemoryResult, error) {
	if f.getAllErr != nil {
		return nil, f.getAllErr
	}
	return f.getAllResults, nil
}

func (f *fakeEngine) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{0.1, 0.2}, nil
}

// fakeLocker grants or denies promotion locks.
type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]string
	denied bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (f *fakeLocker) AcquireLock(ctx context.Context, lockKey, lockValue string, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied {
		return false, nil
	}
	if _, taken := f.held[lockKey]; taken {
		return false, nil
	}
	f.held[lockKey] = lockValue
	return true, nil
}

func (f *fakeLocker) ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[lockKey] != lockValue {
		return false, nil
	}
	delete(f.held, lockKey)
	return true, nil
}
