package models

// Message is a single role-tagged message from a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ShortTermMemory is the ephemeral-tier representation of a memory.
// It lives in Redis under a TTL and tracks how often it has been read.
type ShortTermMemory struct {
	Messages    []Message              `json:"messages"`
	UserID      string                 `json:"user_id,omitempty"`
	AgentID     string                 `json:"agent_id,omitempty"`
	SessionID   string                 `json:"session_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	AccessCount int                    `json:"access_count"`
	CreatedAt   string                 `json:"created_at"`

	// RedisKey is populated on reads so callers can delete the entry
	// after a successful promotion. Never stored inside the entry itself.
	RedisKey string `json:"-"`
}

// MemoryResult is a single search/retrieval result from either tier
type MemoryResult struct {
	ID          string                 `json:"id"`
	Memory      string                 `json:"memory"`
	UserID      string                 `json:"user_id,omitempty"`
	AgentID     string                 `json:"agent_id,omitempty"`
	Score       float64                `json:"score"`
	Source      string                 `json:"source"` // "short_term" or "long_term"
	AccessCount int                    `json:"access_count,omitempty"`
	CreatedAt   string                 `json:"created_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// AddMemoryRequest is the body of POST /memories/add
type AddMemoryRequest struct {
	Messages      []Message              `json:"messages"`
	UserID        string                 `json:"user_id,omitempty"`
	AgentID       string                 `json:"agent_id,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	ShortTermOnly bool                   `json:"short_term_only"`
}

// AddMemoryResult reports which tiers accepted the write
type AddMemoryResult struct {
	ShortTerm bool        `json:"short_term"`
	LongTerm  bool        `json:"long_term"`
	MemoryKey string      `json:"memory_key,omitempty"`
	Result    interface{} `json:"result,omitempty"`
}

// SearchRequest is the body of POST /memories/search
type SearchRequest struct {
	Query            string `json:"query"`
	UserID           string `json:"user_id,omitempty"`
	AgentID          string `json:"agent_id,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	Limit            int    `json:"limit"`
	IncludeShortTerm *bool  `json:"include_short_term,omitempty"` // defaults to true
}

// SearchResult is a merged, capped result set with per-tier counts
type SearchResult struct {
	Memories []MemoryResult `json:"memories"`
	Count    int            `json:"count"`
	Sources  SourceCounts   `json:"sources"`
}

// SourceCounts reports how many results each tier contributed
type SourceCounts struct {
	ShortTerm int `json:"short_term"`
	LongTerm  int `json:"long_term"`
}

// PromoteRequest is the body of POST /memories/promote
type PromoteRequest struct {
	MemoryIDs []string `json:"memory_ids,omitempty"` // specific keys, or empty for all eligible
	UserID    string   `json:"user_id,omitempty"`
	AgentID   string   `json:"agent_id,omitempty"`
}

// PromotedMemory records the outcome of one promoted entry
type PromotedMemory struct {
	OriginalKey string      `json:"original_key"`
	Result      interface{} `json:"result,omitempty"`
}

// PromoteResult summarizes a promotion sweep. Each record succeeds or
// fails independently; successes are never rolled back.
type PromoteResult struct {
	PromotedCount int              `json:"promoted_count"`
	FailedCount   int              `json:"failed_count"`
	SkippedCount  int              `json:"skipped_count"`
	Promoted      []PromotedMemory `json:"promoted"`
}
