package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"memgate/internal/models"
)

const (
	// ShortTermPrefix namespaces every ephemeral key
	ShortTermPrefix = "stm:"

	// DefaultShortTermTTL bounds the lifetime of every ephemeral entry
	DefaultShortTermTTL = 24 * time.Hour

	shortTermScanBatch = 100
)

// ShortTermService is the ephemeral-tier adapter on top of Redis. Entries are
// stored as hashes ("data" JSON payload, "access" counter) so the access count
// can be bumped atomically with HINCRBY without rewriting the payload.
type ShortTermService struct {
	redis      *RedisService
	defaultTTL time.Duration
}

// NewShortTermService creates the ephemeral store adapter
func NewShortTermService(redisService *RedisService, defaultTTL time.Duration) *ShortTermService {
	if defaultTTL <= 0 {
		defaultTTL = DefaultShortTermTTL
	}
	return &ShortTermService{
		redis:      redisService,
		defaultTTL: defaultTTL,
	}
}

// ShortTermKey builds the namespaced key for an ephemeral entry:
// stm:{ownerOrAnon}:{timestampYYYYMMDDHHMMSS}:{8-hex content digest}
func ShortTermKey(userID string, createdAt time.Time, digest string) string {
	owner := userID
	if owner == "" {
		owner = "anon"
	}
	return fmt.Sprintf("%s%s:%s:%s", ShortTermPrefix, owner, createdAt.UTC().Format("20060102150405"), digest)
}

// ContentDigest returns the 8-hex digest of a message batch
func ContentDigest(messages []models.Message) string {
	h := sha256.New()
	for _, m := range messages {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// ownerPattern maps an owner id (or wildcard) to a key-prefix MATCH pattern
func ownerPattern(owner string) string {
	if owner == "" || owner == "*" {
		return ShortTermPrefix + "*"
	}
	return ShortTermPrefix + owner + ":*"
}

// Put stores a record under key with the given TTL
func (s *ShortTermService) Put(ctx context.Context, key string, mem *models.ShortTermMemory, ttl time.Duration) bool {
	if s.redis == nil {
		return false
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	payload, err := json.Marshal(mem)
	if err != nil {
		log.Printf("❌ [SHORT-TERM] Failed to encode entry: %v", err)
		return false
	}

	client := s.redis.Client()
	pipe := client.TxPipeline()
	pipe.HSet(ctx, key, "data", payload, "access", mem.AccessCount)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("⚠️ [SHORT-TERM] Redis store error: %v", err)
		return false
	}
	return true
}

// IncrementAccess atomically bumps the access counter and returns the entry
func (s *ShortTermService) IncrementAccess(ctx context.Context, key string) (*models.ShortTermMemory, bool) {
	if s.redis == nil {
		return nil, false
	}
	client := s.redis.Client()

	count, err := client.HIncrBy(ctx, key, "access", 1).Result()
	if err != nil {
		log.Printf("⚠️ [SHORT-TERM] Redis increment error for %s: %v", key, err)
		return nil, false
	}

	mem, ok := s.fetch(ctx, key)
	if !ok {
		return nil, false
	}
	mem.AccessCount = int(count)
	return mem, true
}

// GetMatching returns all entries under the owner's namespace, bumping each
// entry's access count exactly once
func (s *ShortTermService) GetMatching(ctx context.Context, owner string) []models.ShortTermMemory {
	return s.scan(ctx, owner, true)
}

// Snapshot returns all entries under the owner's namespace without touching
// access counts
func (s *ShortTermService) Snapshot(ctx context.Context, owner string) []models.ShortTermMemory {
	return s.scan(ctx, owner, false)
}

func (s *ShortTermService) scan(ctx context.Context, owner string, incrementAccess bool) []models.ShortTermMemory {
	results := []models.ShortTermMemory{}
	if s.redis == nil {
		return results
	}

	keys, err := s.scanKeys(ctx, ownerPattern(owner))
	if err != nil {
		log.Printf("⚠️ [SHORT-TERM] Redis scan error: %v", err)
		return results
	}

	for _, key := range keys {
		var mem *models.ShortTermMemory
		var ok bool
		if incrementAccess {
			mem, ok = s.IncrementAccess(ctx, key)
		} else {
			mem, ok = s.fetch(ctx, key)
		}
		// Entries can expire between SCAN and fetch
		if ok {
			results = append(results, *mem)
		}
	}
	return results
}

// Get fetches one entry without touching its access counter
func (s *ShortTermService) Get(ctx context.Context, key string) (*models.ShortTermMemory, bool) {
	if s.redis == nil {
		return nil, false
	}
	return s.fetch(ctx, key)
}

// fetch loads one entry without touching its access counter
func (s *ShortTermService) fetch(ctx context.Context, key string) (*models.ShortTermMemory, bool) {
	client := s.redis.Client()

	fields, err := client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return nil, false
	}

	var mem models.ShortTermMemory
	if err := json.Unmarshal([]byte(fields["data"]), &mem); err != nil {
		log.Printf("⚠️ [SHORT-TERM] Corrupt entry at %s: %v", key, err)
		return nil, false
	}
	if access, ok := fields["access"]; ok {
		fmt.Sscanf(access, "%d", &mem.AccessCount)
	}
	mem.RedisKey = key
	return &mem, true
}

// Delete removes one entry; used only by promotion after a confirmed
// long-term write (user-facing deletes never touch this tier)
func (s *ShortTermService) Delete(ctx context.Context, key string) bool {
	if s.redis == nil {
		return false
	}
	if err := s.redis.Client().Del(ctx, key).Err(); err != nil {
		log.Printf("⚠️ [SHORT-TERM] Redis delete error for %s: %v", key, err)
		return false
	}
	return true
}

// CountMatching counts entries under the owner's namespace
func (s *ShortTermService) CountMatching(ctx context.Context, owner string) int {
	if s.redis == nil {
		return 0
	}
	keys, err := s.scanKeys(ctx, ownerPattern(owner))
	if err != nil {
		log.Printf("⚠️ [SHORT-TERM] Redis count error: %v", err)
		return 0
	}
	return len(keys)
}

// Ping reports ephemeral-tier connectivity
func (s *ShortTermService) Ping(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return s.redis.Ping(ctx)
}

// scanKeys iterates the keyspace with SCAN rather than KEYS so large
// deployments don't block Redis
func (s *ShortTermService) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	client := s.redis.Client()

	var keys []string
	var cursor uint64
	for {
		batch, next, err := client.Scan(ctx, cursor, pattern, shortTermScanBatch).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// MatchesQuery reports whether the flattened message text matches the query:
// case-insensitive full-substring or any-word match
func MatchesQuery(messages []models.Message, query string) bool {
	if query == "" {
		return false
	}
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(strings.ToLower(m.Content))
		b.WriteString(" ")
	}
	content := b.String()
	queryLower := strings.ToLower(query)

	if strings.Contains(content, queryLower) {
		return true
	}
	for _, word := range strings.Fields(queryLower) {
		if strings.Contains(content, word) {
			return true
		}
	}
	return false
}

// FormatMessagesAsMemory flattens a message batch into a readable memory line
func FormatMessagesAsMemory(messages []models.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case "user":
			parts = append(parts, "User said: "+msg.Content)
		case "assistant":
			parts = append(parts, "Assistant said: "+msg.Content)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%v", messages)
	}
	return strings.Join(parts, " | ")
}
