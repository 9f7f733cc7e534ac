package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"memgate/internal/models"
)

const (
	// DefaultPromotionThreshold is the access count at which an ephemeral
	// entry becomes eligible for the durable tier
	DefaultPromotionThreshold = 3

	promotionLockTTL = 30 * time.Second
)

// PromotionService moves eligible ephemeral entries into the durable tier.
// Each record is promoted independently: a failure leaves the source entry in
// place and retryable, and never rolls back earlier successes in the batch.
type PromotionService struct {
	shortTerm ShortTermStore
	engine    MemoryEngine
	locker    PromotionLocker
	audit     *AuditService
	threshold int
}

// NewPromotionService creates a new promotion service
func NewPromotionService(shortTerm ShortTermStore, engine MemoryEngine, locker PromotionLocker, audit *AuditService, threshold int) *PromotionService {
	if threshold <= 0 {
		threshold = DefaultPromotionThreshold
	}
	return &PromotionService{
		shortTerm: shortTerm,
		engine:    engine,
		locker:    locker,
		audit:     audit,
		threshold: threshold,
	}
}

// SelectEligible returns ephemeral entries whose access count has reached the
// promotion threshold, scoped to an owner ("" scans all owners). The scan
// itself never bumps access counts.
func (s *PromotionService) SelectEligible(ctx context.Context, owner string) []models.ShortTermMemory {
	var eligible []models.ShortTermMemory
	for _, mem := range s.shortTerm.Snapshot(ctx, owner) {
		if mem.AccessCount >= s.threshold {
			eligible = append(eligible, mem)
		}
	}
	return eligible
}

// Promote moves a batch to the durable tier. With explicit keys only those
// entries are considered (regardless of access count); otherwise every
// eligible entry under the owner filter is attempted.
func (s *PromotionService) Promote(ctx context.Context, req models.PromoteRequest) (models.PromoteResult, error) {
	if s.engine == nil {
		return models.PromoteResult{}, ErrEngineUnavailable
	}
	if s.shortTerm == nil {
		return models.PromoteResult{Promoted: []models.PromotedMemory{}}, nil
	}

	var candidates []models.ShortTermMemory
	if len(req.MemoryIDs) > 0 {
		for _, key := range req.MemoryIDs {
			if mem, ok := s.shortTerm.Get(ctx, key); ok {
				candidates = append(candidates, *mem)
			}
		}
	} else {
		candidates = s.SelectEligible(ctx, req.UserID)
	}

	result := models.PromoteResult{Promoted: []models.PromotedMemory{}}
	for _, mem := range candidates {
		outcome := s.promoteOne(ctx, mem)
		switch outcome.status {
		case promoteOK:
			result.PromotedCount++
			result.Promoted = append(result.Promoted, models.PromotedMemory{
				OriginalKey: mem.RedisKey,
				Result:      outcome.engineResult,
			})
		case promoteFailed:
			result.FailedCount++
		case promoteSkipped:
			result.SkippedCount++
		}
	}

	if metrics := GetMetrics(); metrics != nil {
		metrics.Promotions.WithLabelValues("promoted").Add(float64(result.PromotedCount))
		metrics.Promotions.WithLabelValues("failed").Add(float64(result.FailedCount))
		metrics.Promotions.WithLabelValues("skipped").Add(float64(result.SkippedCount))
	}

	log.Printf("📤 [PROMOTION] Sweep complete: %d promoted, %d failed, %d skipped",
		result.PromotedCount, result.FailedCount, result.SkippedCount)
	return result, nil
}

type promoteStatus int

const (
	promoteOK promoteStatus = iota
	promoteFailed
	promoteSkipped
)

type promoteOutcome struct {
	status       promoteStatus
	engineResult interface{}
}

// promoteOne performs the move for a single entry: durable write first, then
// delete of the ephemeral copy. The per-key lock keeps two concurrent sweeps
// from double-promoting the same entry; a lost race is reported as skipped
// and the entry stays eligible for the next sweep.
func (s *PromotionService) promoteOne(ctx context.Context, mem models.ShortTermMemory) promoteOutcome {
	lockKey := "lock:promote:" + mem.RedisKey
	lockValue := uuid.New().String()

	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, lockKey, lockValue, promotionLockTTL)
		if err != nil || !acquired {
			return promoteOutcome{status: promoteSkipped}
		}
		defer s.locker.ReleaseLock(ctx, lockKey, lockValue)
	}

	engineResult, err := s.engine.Add(ctx, mem.Messages, mem.UserID, mem.AgentID, mem.SessionID, mem.Metadata)
	if err != nil {
		log.Printf("⚠️ [PROMOTION] Durable write failed for %s: %v", mem.RedisKey, err)
		return promoteOutcome{status: promoteFailed}
	}

	// The entry leaves the ephemeral tier only after the durable write is
	// confirmed, so a retry can never lose the memory
	s.shortTerm.Delete(ctx, mem.RedisKey)

	if s.audit != nil {
		s.audit.Log(ctx, models.AuditEntry{
			Operation:  models.OpPromote,
			UserID:     mem.UserID,
			AgentID:    mem.AgentID,
			SessionID:  mem.SessionID,
			MemoryTier: models.TierLongTerm,
			ExtraData:  map[string]interface{}{"original_key": mem.RedisKey},
		})
	}

	return promoteOutcome{status: promoteOK, engineResult: engineResult}
}
