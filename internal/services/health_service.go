package services

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"memgate/internal/database"
)

const (
	embedderCacheKey = "embedder_status"
	embedderCacheTTL = 5 * time.Minute
	embedderTimeout  = 10 * time.Second
)

// EmbedderStatus is the cached result of the last embedder probe
type EmbedderStatus struct {
	Healthy    bool   `json:"healthy"`
	Dimensions int    `json:"dimensions,omitempty"`
	Error      string `json:"error,omitempty"`
	CheckedAt  string `json:"checked_at"`
}

// HealthStatus is the full health report returned by GET /health
type HealthStatus struct {
	Status          string          `json:"status"`
	Service         string          `json:"service"`
	Database        string          `json:"database"`
	Redis           string          `json:"redis"`
	MemoryEngine    string          `json:"memory_engine"`
	GraphMemory     string          `json:"graph_memory"`
	Embedder        string          `json:"embedder"`
	EmbedderDetails *EmbedderStatus `json:"embedder_details,omitempty"`
}

// HealthService probes each subsystem. The embedder probe runs a real
// embedding through the engine, which is expensive, so its result is cached
// and refreshed at most every five minutes.
type HealthService struct {
	db           *database.DB
	shortTerm    ShortTermStore
	engine       MemoryEngine
	graphEnabled bool
	probeText    string
	cache        *cache.Cache
}

func NewHealthService(db *database.DB, shortTerm ShortTermStore, engine MemoryEngine, graphEnabled bool) *HealthService {
	return &HealthService{
		db:           db,
		shortTerm:    shortTerm,
		engine:       engine,
		graphEnabled: graphEnabled,
		probeText:    "health check probe",
		cache:        cache.New(embedderCacheTTL, 10*time.Minute),
	}
}

// Check probes every subsystem and reports overall status. Overall is
// "healthy" only when the database, Redis, the engine and its embedder are
// all reachable; a missing engine makes the service degraded.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Service:      "memgate",
		Database:     "down",
		Redis:        "down",
		MemoryEngine: "not_configured",
		GraphMemory:  "disabled",
		Embedder:     "not_configured",
	}

	if s.db != nil {
		if err := s.db.Ping(); err == nil {
			status.Database = "up"
		}
	}

	if s.shortTerm != nil {
		if err := s.shortTerm.Ping(ctx); err == nil {
			status.Redis = "up"
		}
	}

	if s.engine != nil {
		status.MemoryEngine = "up"
		if s.graphEnabled {
			status.GraphMemory = "up"
		}
		embedder := s.embedderStatus(ctx)
		status.EmbedderDetails = &embedder
		if embedder.Healthy {
			status.Embedder = "up"
		} else {
			status.Embedder = "down"
		}
	} else if s.graphEnabled {
		status.GraphMemory = "not_configured"
	}

	// The durable tier is part of the contract: without a reachable engine
	// and a working embedder the service is degraded, not healthy
	healthy := status.Database == "up" && status.Redis == "up" &&
		status.MemoryEngine == "up" && status.Embedder == "up"
	if healthy {
		status.Status = "healthy"
	} else {
		status.Status = "degraded"
	}
	return status
}

// embedderStatus returns the cached probe result, refreshing it when stale.
// Concurrent refreshes may race; the last writer wins, which is fine for a
// health signal.
func (s *HealthService) embedderStatus(ctx context.Context) EmbedderStatus {
	if cached, found := s.cache.Get(embedderCacheKey); found {
		return cached.(EmbedderStatus)
	}

	probeCtx, cancel := context.WithTimeout(ctx, embedderTimeout)
	defer cancel()

	result := EmbedderStatus{
		Healthy:   true,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if vec, err := s.engine.Embed(probeCtx, s.probeText); err != nil {
		result.Healthy = false
		result.Error = err.Error()
	} else {
		result.Dimensions = len(vec)
	}

	s.cache.Set(embedderCacheKey, result, cache.DefaultExpiration)
	return result
}
