package models

import "time"

// Memory tiers as recorded in the audit log and search results
const (
	TierShortTerm = "short_term"
	TierLongTerm  = "long_term"
)

// Audit operations
const (
	OpAdd     = "add"
	OpSearch  = "search"
	OpPromote = "promote"
	OpDelete  = "delete"
)

// AuditEntry is one immutable row of the memory operation log.
// Write-only from the coordinator's perspective.
type AuditEntry struct {
	ID          int64                  `json:"id"`
	Operation   string                 `json:"operation"`
	UserID      string                 `json:"user_id,omitempty"`
	AgentID     string                 `json:"agent_id,omitempty"`
	SessionID   string                 `json:"session_id,omitempty"`
	ContentHash string                 `json:"content_hash,omitempty"`
	MemoryTier  string                 `json:"memory_tier,omitempty"`
	ExtraData   map[string]interface{} `json:"extra_data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// HistoryFilter narrows GET /history results
type HistoryFilter struct {
	UserID    string
	AgentID   string
	Operation string
	Limit     int
}
