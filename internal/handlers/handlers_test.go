package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"memgate/internal/database"
	"memgate/internal/models"
	"memgate/internal/services"
)

// setupTestApp wires the full route surface against a temp SQLite database,
// no Redis and no engine, which is the fully-degraded configuration the
// handlers must survive.
func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()
	tmpFile := "test_handlers.db"
	db, err := database.New(tmpFile)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(tmpFile)
	})

	auditService := services.NewAuditService(db)
	profileService := services.NewProfileService(db)
	promotionService := services.NewPromotionService(nil, nil, nil, auditService, 3)
	memoryService := services.NewMemoryService(nil, nil, auditService, promotionService, 0)
	healthService := services.NewHealthService(db, nil, nil, false)

	memoryHandler := NewMemoryHandler(memoryService)
	profileHandler := NewProfileHandler(profileService)
	historyHandler := NewHistoryHandler(auditService)
	healthHandler := NewHealthHandler(healthService)

	app := fiber.New()
	app.Get("/health", healthHandler.Check)
	api := app.Group("")
	api.Post("/memories/add", memoryHandler.AddMemory)
	api.Post("/memories/search", memoryHandler.SearchMemories)
	api.Post("/memories/promote", memoryHandler.PromoteMemories)
	api.Get("/memories/user/:id", memoryHandler.GetUserMemories)
	api.Get("/memories/agent/:id", memoryHandler.GetAgentMemories)
	api.Delete("/memories/:id", memoryHandler.DeleteMemory)
	api.Get("/stats", memoryHandler.GetStats)
	api.Get("/history", historyHandler.GetHistory)
	api.Get("/profiles/user/:id", profileHandler.GetUserProfile)
	api.Put("/profiles/user/:id", profileHandler.UpsertUserProfile)
	api.Get("/profiles/agent/:id", profileHandler.GetAgentProfile)
	api.Put("/profiles/agent/:id", profileHandler.UpsertAgentProfile)
	return app
}

func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Failed to decode response %q: %v", data, err)
	}
	return out
}

func TestAddMemory_MissingMessages(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest("POST", "/memories/add", strings.NewReader(`{"user_id":"u1"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestAddMemory_DegradedTiersStillRespond(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest("POST", "/memories/add",
		strings.NewReader(`{"messages":[{"role":"user","content":"I like tea"}],"user_id":"u1"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp.Body)
	if body["success"] != true {
		t.Errorf("Expected success even with both tiers degraded, got %+v", body)
	}
	if body["short_term"] != false || body["long_term"] != false {
		t.Errorf("Expected both tier flags false without backing stores, got %+v", body)
	}
}

func TestSearchMemories_MissingQuery(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest("POST", "/memories/search", strings.NewReader(`{"user_id":"u1"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestPromote_WithoutEngine(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest("POST", "/memories/promote", strings.NewReader(`{"user_id":"u1"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestGetAgentMemories_WithoutEngine(t *testing.T) {
	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/memories/agent/a1", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestDeleteMemory_WithoutEngine(t *testing.T) {
	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/memories/m1", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestGetUserMemories_DegradedReturnsEmpty(t *testing.T) {
	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/memories/user/u1", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp.Body)
	if body["count"] != float64(0) {
		t.Errorf("Expected empty merged list, got %+v", body)
	}
}

func TestHealth_Degraded(t *testing.T) {
	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp.Body)
	if body["status"] != "degraded" {
		t.Errorf("Expected degraded status, got %v", body["status"])
	}
	if body["database"] != "up" {
		t.Errorf("Expected database up, got %v", body["database"])
	}
	if body["redis"] != "down" {
		t.Errorf("Expected redis down, got %v", body["redis"])
	}
	if body["memory_engine"] != "not_configured" {
		t.Errorf("Expected engine not_configured, got %v", body["memory_engine"])
	}
	if body["service"] != "memgate" {
		t.Errorf("Expected service name in payload, got %v", body["service"])
	}
	if body["graph_memory"] != "disabled" {
		t.Errorf("Expected graph memory disabled, got %v", body["graph_memory"])
	}
}

func TestUserProfile_Lifecycle(t *testing.T) {
	app := setupTestApp(t)

	// Absent profile
	resp, err := app.Test(httptest.NewRequest("GET", "/profiles/user/u1", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body := decodeBody(t, resp.Body)
	if body["exists"] != false {
		t.Fatalf("Expected exists:false, got %+v", body)
	}

	// Create
	req := httptest.NewRequest("PUT", "/profiles/user/u1",
		strings.NewReader(`{"display_name":"Alex","preferences":{"theme":"dark"}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	// Read back
	resp, err = app.Test(httptest.NewRequest("GET", "/profiles/user/u1", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body = decodeBody(t, resp.Body)
	if body["exists"] != true {
		t.Fatalf("Expected exists:true after upsert, got %+v", body)
	}
	profile := body["profile"].(map[string]interface{})
	if profile["display_name"] != "Alex" {
		t.Errorf("Expected display name Alex, got %v", profile["display_name"])
	}
}

func TestAgentProfile_Absent(t *testing.T) {
	app := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/profiles/agent/a1", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	body := decodeBody(t, resp.Body)
	if body["exists"] != false {
		t.Errorf("Expected exists:false, got %+v", body)
	}
	if body["agent_id"] != "a1" {
		t.Errorf("Expected agent_id echoed back, got %+v", body)
	}
}

func TestHistory_RecordsWrites(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest("POST", "/memories/search",
		strings.NewReader(`{"query":"tea","user_id":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("Search request failed: %v", err)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/history?user_id=u1", nil))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp.Body)
	if body["count"] != float64(1) {
		t.Errorf("Expected 1 history entry, got %+v", body)
	}
}

// limitRecordingEngine captures the limit the handler passes through so the
// query-parameter defaults can be asserted.
type limitRecordingEngine struct {
	lastLimit int
}

func (e *limitRecordingEngine) Add(ctx context.Context, messages []models.Message, userID, agentID, sessionID string, metadata map[string]interface{}) (interface{}, error) {
	return nil, nil
}

func (e *limitRecordingEngine) Search(ctx context.Context, query, userID, agentID, sessionID string, limit int) ([]models.MemoryResult, error) {
	e.lastLimit = limit
	return nil, nil
}

func (e *limitRecordingEngine) GetAll(ctx context.Context, userID, agentID string, limit int) ([]models.MemoryResult, error) {
	e.lastLimit = limit
	return nil, nil
}

func (e *limitRecordingEngine) Delete(ctx context.Context, id string) error { return nil }

func (e *limitRecordingEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1}, nil
}

func TestGetAgentMemories_DefaultLimit(t *testing.T) {
	engine := &limitRecordingEngine{}
	memoryService := services.NewMemoryService(nil, engine, services.NewAuditService(nil), nil, 0)
	memoryHandler := NewMemoryHandler(memoryService)

	app := fiber.New()
	app.Get("/memories/agent/:id", memoryHandler.GetAgentMemories)
	app.Get("/memories/user/:id", memoryHandler.GetUserMemories)

	if _, err := app.Test(httptest.NewRequest("GET", "/memories/agent/a1", nil)); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if engine.lastLimit != 50 {
		t.Errorf("Expected default limit 50 for agent memories, got %d", engine.lastLimit)
	}

	if _, err := app.Test(httptest.NewRequest("GET", "/memories/user/u1?limit=7", nil)); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if engine.lastLimit != 7 {
		t.Errorf("Expected explicit limit 7 to pass through, got %d", engine.lastLimit)
	}

	if _, err := app.Test(httptest.NewRequest("GET", "/memories/user/u1", nil)); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if engine.lastLimit != 50 {
		t.Errorf("Expected default limit 50 for user memories, got %d", engine.lastLimit)
	}
}
