package services

import (
	"sort"

	"memgate/internal/models"
)

// ShortTermScore is the fixed recency boost assigned to keyword-matched
// ephemeral results, which carry no semantic ranking of their own
const ShortTermScore = 0.8

// ShortTermResult converts an ephemeral entry into a search result
func ShortTermResult(mem models.ShortTermMemory) models.MemoryResult {
	owner := mem.UserID
	if owner == "" {
		owner = "anon"
	}
	return models.MemoryResult{
		ID:          ShortTermPrefix + owner + ":" + mem.CreatedAt,
		Memory:      FormatMessagesAsMemory(mem.Messages),
		UserID:      mem.UserID,
		AgentID:     mem.AgentID,
		Score:       ShortTermScore,
		Source:      models.TierShortTerm,
		AccessCount: mem.AccessCount,
		CreatedAt:   mem.CreatedAt,
		Metadata:    mem.Metadata,
	}
}

// MergeSearchResults combines both tiers into one ordered result set.
// Short-term results are concatenated ahead of long-term ones, stable-sorted
// by score descending and truncated to limit; ties keep input order, so
// ephemeral results precede durable ones at equal score. Per-tier counts
// describe the returned (truncated) list.
func MergeSearchResults(shortTerm, longTerm []models.MemoryResult, limit int) models.SearchResult {
	merged := make([]models.MemoryResult, 0, len(shortTerm)+len(longTerm))
	merged = append(merged, shortTerm...)
	merged = append(merged, longTerm...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	counts := models.SourceCounts{}
	for _, r := range merged {
		switch r.Source {
		case models.TierShortTerm:
			counts.ShortTerm++
		case models.TierLongTerm:
			counts.LongTerm++
		}
	}

	return models.SearchResult{
		Memories: merged,
		Count:    len(merged),
		Sources:  counts,
	}
}
