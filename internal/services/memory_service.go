package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"memgate/internal/logging"
	"memgate/internal/models"
)

const defaultSearchLimit = 10

// MemoryService is the tiered memory coordinator. It owns the ephemeral
// write path, the dual-tier fan-out for reads, and the consistency contract
// between tiers. It keeps no shared mutable state of its own, so every
// request interleaves freely.
type MemoryService struct {
	shortTerm ShortTermStore
	engine    MemoryEngine
	audit     *AuditService
	promotion *PromotionService
	ttl       time.Duration
}

// NewMemoryService creates the coordinator. engine may be nil when no
// long-term engine is configured; read paths then degrade and write paths
// that require it report unavailable.
func NewMemoryService(shortTerm ShortTermStore, engine MemoryEngine, audit *AuditService, promotion *PromotionService, ttl time.Duration) *MemoryService {
	if ttl <= 0 {
		ttl = DefaultShortTermTTL
	}
	return &MemoryService{
		shortTerm: shortTerm,
		engine:    engine,
		audit:     audit,
		promotion: promotion,
		ttl:       ttl,
	}
}

// Add writes a message batch to the ephemeral tier and, unless suppressed,
// to the durable tier as well. Each tier succeeds or fails on its own; the
// response flags report which ones took the write.
func (s *MemoryService) Add(ctx context.Context, req models.AddMemoryRequest) models.AddMemoryResult {
	start := time.Now()
	digest := ContentDigest(req.Messages)
	now := time.Now().UTC()
	key := ShortTermKey(req.UserID, now, digest)

	mem := &models.ShortTermMemory{
		Messages:    req.Messages,
		UserID:      req.UserID,
		AgentID:     req.AgentID,
		SessionID:   req.SessionID,
		Metadata:    req.Metadata,
		AccessCount: 0,
		CreatedAt:   now.Format(time.RFC3339),
	}

	stored := false
	if s.shortTerm != nil {
		stored = s.shortTerm.Put(ctx, key, mem, s.ttl)
	}
	if stored {
		s.audit.Log(ctx, models.AuditEntry{
			Operation:   models.OpAdd,
			UserID:      req.UserID,
			AgentID:     req.AgentID,
			SessionID:   req.SessionID,
			ContentHash: digest,
			MemoryTier:  models.TierShortTerm,
			ExtraData:   map[string]interface{}{"key": key},
		})
		if metrics := GetMetrics(); metrics != nil {
			metrics.MemoryWrites.WithLabelValues(models.TierShortTerm).Inc()
		}
	} else if metrics := GetMetrics(); metrics != nil {
		metrics.TierErrors.WithLabelValues(models.TierShortTerm).Inc()
	}

	var engineResult interface{}
	longTerm := false
	if !req.ShortTermOnly && s.engine != nil {
		result, err := s.engine.Add(ctx, req.Messages, req.UserID, req.AgentID, req.SessionID, req.Metadata)
		if err != nil {
			// Degrade: the short-term copy already holds the memory
			opLog := logging.WithTier(logging.WithOperation("add", req.UserID, req.AgentID), models.TierLongTerm)
			opLog.Warn("durable write failed, memory kept in short-term only", "error", err)
			if metrics := GetMetrics(); metrics != nil {
				metrics.TierErrors.WithLabelValues(models.TierLongTerm).Inc()
			}
		} else {
			engineResult = result
			longTerm = true
			s.audit.Log(ctx, models.AuditEntry{
				Operation:   models.OpAdd,
				UserID:      req.UserID,
				AgentID:     req.AgentID,
				SessionID:   req.SessionID,
				ContentHash: digest,
				MemoryTier:  models.TierLongTerm,
				ExtraData:   map[string]interface{}{"result": truncate(fmt.Sprintf("%v", result), 500)},
			})
			if metrics := GetMetrics(); metrics != nil {
				metrics.MemoryWrites.WithLabelValues(models.TierLongTerm).Inc()
			}
		}
	}

	log.Printf("🧠 [MEMORY] add completed in %s (short_term=%t, long_term=%t)",
		time.Since(start).Round(time.Millisecond), stored, longTerm)

	out := models.AddMemoryResult{
		ShortTerm: stored,
		LongTerm:  longTerm,
		Result:    engineResult,
	}
	if stored {
		out.MemoryKey = key
	}
	return out
}

// Search fans out to both tiers in parallel and merges the results. An
// unavailable tier contributes nothing rather than failing the request.
func (s *MemoryService) Search(ctx context.Context, req models.SearchRequest) models.SearchResult {
	start := time.Now()
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	includeShortTerm := req.IncludeShortTerm == nil || *req.IncludeShortTerm

	var shortResults, longResults []models.MemoryResult
	var wg sync.WaitGroup

	if includeShortTerm && s.shortTerm != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, mem := range s.shortTerm.GetMatching(ctx, req.UserID) {
				if MatchesQuery(mem.Messages, req.Query) {
					shortResults = append(shortResults, ShortTermResult(mem))
				}
			}
		}()
	}

	if s.engine != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := s.engine.Search(ctx, req.Query, req.UserID, req.AgentID, req.SessionID, limit)
			if err != nil {
				// Degrade to short-term-only results
				opLog := logging.WithTier(logging.WithOperation("search", req.UserID, req.AgentID), models.TierLongTerm)
				opLog.Warn("durable search failed, serving short-term results only", "error", err)
				if metrics := GetMetrics(); metrics != nil {
					metrics.TierErrors.WithLabelValues(models.TierLongTerm).Inc()
				}
				return
			}
			longResults = results
		}()
	}

	wg.Wait()

	merged := MergeSearchResults(shortResults, longResults, limit)

	s.audit.Log(ctx, models.AuditEntry{
		Operation: models.OpSearch,
		UserID:    req.UserID,
		AgentID:   req.AgentID,
		SessionID: req.SessionID,
		ExtraData: map[string]interface{}{"query": truncate(req.Query, 200), "results": merged.Count},
	})

	if metrics := GetMetrics(); metrics != nil {
		metrics.SearchRequests.Inc()
		metrics.SearchLatency.Observe(time.Since(start).Seconds())
	}

	log.Printf("🔍 [MEMORY] search completed in %s (results=%d, short=%d, long=%d)",
		time.Since(start).Round(time.Millisecond), merged.Count, merged.Sources.ShortTerm, merged.Sources.LongTerm)
	return merged
}

// GetUserMemories returns all memories for a user from both tiers,
// short-term entries first
func (s *MemoryService) GetUserMemories(ctx context.Context, userID string, limit int, includeShortTerm bool) []models.MemoryResult {
	results := []models.MemoryResult{}

	if includeShortTerm && s.shortTerm != nil {
		for _, mem := range s.shortTerm.GetMatching(ctx, userID) {
			results = append(results, ShortTermResult(mem))
		}
	}

	if s.engine != nil {
		longTerm, err := s.engine.GetAll(ctx, userID, "", limit)
		if err != nil {
			if metrics := GetMetrics(); metrics != nil {
				metrics.TierErrors.WithLabelValues(models.TierLongTerm).Inc()
			}
		} else {
			results = append(results, longTerm...)
		}
	}

	return results
}

// GetAgentMemories returns an agent's private memories. The ephemeral tier
// is never consulted: its entries are not access-scoped by agent privacy
// rules, so agent memory is durable-tier-only information.
func (s *MemoryService) GetAgentMemories(ctx context.Context, agentID string, limit int) ([]models.MemoryResult, error) {
	if s.engine == nil {
		return nil, ErrEngineUnavailable
	}
	return s.engine.GetAll(ctx, "", agentID, limit)
}

// PromoteMemories moves eligible (or explicitly named) ephemeral entries to
// the durable tier
func (s *MemoryService) PromoteMemories(ctx context.Context, req models.PromoteRequest) (models.PromoteResult, error) {
	if s.engine == nil || s.promotion == nil {
		return models.PromoteResult{}, ErrEngineUnavailable
	}
	return s.promotion.Promote(ctx, req)
}

// Delete removes one memory from the durable tier by engine-assigned id.
// Ephemeral entries are never deleted directly; they leave via TTL expiry or
// promotion.
func (s *MemoryService) Delete(ctx context.Context, id string) error {
	if s.engine == nil {
		return ErrEngineUnavailable
	}
	if err := s.engine.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Log(ctx, models.AuditEntry{
		Operation:  models.OpDelete,
		MemoryTier: models.TierLongTerm,
		ExtraData:  map[string]interface{}{"memory_id": id},
	})
	return nil
}

// TierStats aggregates per-tier counts for GET /stats
type TierStats struct {
	Database  DatabaseStats  `json:"database"`
	ShortTerm ShortTermStats `json:"short_term"`
	LongTerm  LongTermStats  `json:"long_term"`
}

type DatabaseStats struct {
	Available    bool  `json:"available"`
	HistoryCount int64 `json:"history_count"`
}

type ShortTermStats struct {
	Available bool `json:"available"`
	Count     int  `json:"count"`
}

type LongTermStats struct {
	Available bool `json:"available"`
}

// Stats reports aggregate counts per tier
func (s *MemoryService) Stats(ctx context.Context) TierStats {
	stats := TierStats{
		LongTerm: LongTermStats{Available: s.engine != nil},
	}

	if s.audit.Available() {
		stats.Database.Available = true
		if count, err := s.audit.Count(ctx); err == nil {
			stats.Database.HistoryCount = count
		}
	}

	if s.shortTerm != nil {
		if err := s.shortTerm.Ping(ctx); err == nil {
			stats.ShortTerm.Available = true
			stats.ShortTerm.Count = s.shortTerm.CountMatching(ctx, "*")
		}
	}

	return stats
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
