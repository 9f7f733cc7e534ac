package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"memgate/internal/models"
)

// EngineService is the adapter to the external long-term memory engine. The
// engine owns embedding generation, vector search and graph extraction; this
// client only translates coordinator calls to and from its REST shape.
type EngineService struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewEngineService creates an engine client for the given base URL.
// Returns nil if no URL is configured; callers treat a nil engine as the
// durable tier being unavailable.
func NewEngineService(baseURL string) *EngineService {
	if baseURL == "" {
		return nil
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &EngineService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		// The engine runs LLM + embedding work per call; cap outbound
		// pressure at 10 req/s with modest burst
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:  logger,
	}
}

type engineAddRequest struct {
	Messages  []models.Message       `json:"messages"`
	UserID    string                 `json:"user_id,omitempty"`
	AgentID   string                 `json:"agent_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type engineSearchRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Limit     int    `json:"limit"`
}

type engineResultsResponse struct {
	Results []models.MemoryResult `json:"results"`
}

type engineEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Add stores a message batch in the durable tier and returns the engine's
// opaque result
func (s *EngineService) Add(ctx context.Context, messages []models.Message, userID, agentID, sessionID string, metadata map[string]interface{}) (interface{}, error) {
	body := engineAddRequest{
		Messages:  messages,
		UserID:    userID,
		AgentID:   agentID,
		SessionID: sessionID,
		Metadata:  metadata,
	}

	var result interface{}
	if err := s.do(ctx, http.MethodPost, "/memories", body, &result); err != nil {
		s.diagnose("add", err)
		return nil, err
	}
	return result, nil
}

// Search runs a semantic search in the durable tier. Results carry the
// engine's own relevance scores and are tagged long_term.
func (s *EngineService) Search(ctx context.Context, query, userID, agentID, sessionID string, limit int) ([]models.MemoryResult, error) {
	body := engineSearchRequest{
		Query:     query,
		UserID:    userID,
		AgentID:   agentID,
		SessionID: sessionID,
		Limit:     limit,
	}

	var resp engineResultsResponse
	if err := s.do(ctx, http.MethodPost, "/search", body, &resp); err != nil {
		s.diagnose("search", err)
		return nil, err
	}

	results := resp.Results
	for i := range results {
		results[i].Source = models.TierLongTerm
	}
	return results, nil
}

// GetAll lists durable memories scoped to a user and/or agent
func (s *EngineService) GetAll(ctx context.Context, userID, agentID string, limit int) ([]models.MemoryResult, error) {
	params := url.Values{}
	if userID != "" {
		params.Set("user_id", userID)
	}
	if agentID != "" {
		params.Set("agent_id", agentID)
	}
	params.Set("limit", strconv.Itoa(limit))

	var resp engineResultsResponse
	if err := s.do(ctx, http.MethodGet, "/memories?"+params.Encode(), nil, &resp); err != nil {
		s.diagnose("get_all", err)
		return nil, err
	}

	results := resp.Results
	for i := range results {
		results[i].Source = models.TierLongTerm
	}
	return results, nil
}

// Delete removes one durable memory by engine-assigned id
func (s *EngineService) Delete(ctx context.Context, id string) error {
	if err := s.do(ctx, http.MethodDelete, "/memories/"+url.PathEscape(id), nil, nil); err != nil {
		s.diagnose("delete", err)
		return err
	}
	return nil
}

// Embed asks the engine's embedder for a test vector; only the health probe
// calls this
func (s *EngineService) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp engineEmbedResponse
	if err := s.do(ctx, http.MethodPost, "/embed", map[string]string{"text": text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embedder returned empty vector")
	}
	return resp.Embedding, nil
}

// do issues one rate-limited request and decodes the JSON response into out
func (s *EngineService) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("engine request throttled: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode engine request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build engine request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read engine response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode engine response: %w", err)
		}
	}
	return nil
}

// diagnose logs engine failures, calling out the embedder-misconfiguration
// signature (empty or malformed vectors) with actionable guidance
func (s *EngineService) diagnose(operation string, err error) {
	msg := err.Error()
	entry := s.logger.WithFields(logrus.Fields{
		"subsystem": "memory-engine",
		"operation": operation,
	})

	if strings.Contains(msg, "PointStruct") || strings.Contains(strings.ToLower(msg), "vector") {
		entry.WithError(err).Error("Long-term storage failed: embedder returned no vector. " +
			"Check the engine's embedder config (provider, model, API key / base URL).")
		return
	}
	entry.WithError(err).Error("Long-term memory engine error")
}
