package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"strings"
	"time"

	"memgate/internal/database"
	"memgate/internal/models"
)

const defaultHistoryLimit = 100

// AuditService appends memory operations to the relational audit log.
// Rows are write-only from the coordinator's perspective.
type AuditService struct {
	db *database.DB
}

// NewAuditService creates a new audit service
func NewAuditService(db *database.DB) *AuditService {
	return &AuditService{db: db}
}

// Available reports whether the audit store can be used
func (s *AuditService) Available() bool {
	return s != nil && s.db != nil
}

// Log appends one operation row. Best-effort: failures are logged and
// swallowed so audit trouble never fails a memory operation.
func (s *AuditService) Log(ctx context.Context, entry models.AuditEntry) {
	if !s.Available() {
		return
	}

	var extra interface{}
	if entry.ExtraData != nil {
		data, err := json.Marshal(entry.ExtraData)
		if err == nil {
			extra = string(data)
		}
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_history
		(operation, user_id, agent_id, session_id, content_hash, memory_tier, extra_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Operation, nullable(entry.UserID), nullable(entry.AgentID), nullable(entry.SessionID),
		nullable(entry.ContentHash), nullable(entry.MemoryTier), extra, createdAt)
	if err != nil {
		log.Printf("⚠️ [AUDIT] Failed to log operation %s: %v", entry.Operation, err)
	}
}

// History returns audit rows newest first, filtered and capped
func (s *AuditService) History(ctx context.Context, filter models.HistoryFilter) ([]models.AuditEntry, error) {
	if !s.Available() {
		return nil, ErrDatabaseUnavailable
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	query := `
		SELECT id, operation, user_id, agent_id, session_id, content_hash, memory_tier, extra_data, created_at
		FROM memory_history
	`
	var conditions []string
	var args []interface{}
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, filter.AgentID)
	}
	if filter.Operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, filter.Operation)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var entry models.AuditEntry
		var userID, agentID, sessionID, contentHash, tier, extra sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Operation, &userID, &agentID, &sessionID,
			&contentHash, &tier, &extra, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.UserID = userID.String
		entry.AgentID = agentID.String
		entry.SessionID = sessionID.String
		entry.ContentHash = contentHash.String
		entry.MemoryTier = tier.String
		if extra.Valid && extra.String != "" {
			_ = json.Unmarshal([]byte(extra.String), &entry.ExtraData)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the total number of audit rows
func (s *AuditService) Count(ctx context.Context) (int64, error) {
	if !s.Available() {
		return 0, ErrDatabaseUnavailable
	}
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memory_history").Scan(&count)
	return count, err
}

// nullable maps empty strings to SQL NULL so filters stay meaningful
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
