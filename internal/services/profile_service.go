package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"memgate/internal/database"
	"memgate/internal/models"
)

// ProfileService manages user and agent profile records. Profiles are created
// on first write, updated in place afterwards, and never expire.
type ProfileService struct {
	db *database.DB
}

// NewProfileService creates a new profile service
func NewProfileService(db *database.DB) *ProfileService {
	return &ProfileService{db: db}
}

// Available reports whether the profile store can be used
func (s *ProfileService) Available() bool {
	return s != nil && s.db != nil
}

// GetUserProfile returns the profile for a user id; found is false when the
// user has never been written
func (s *ProfileService) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, bool, error) {
	if !s.Available() {
		return nil, false, ErrDatabaseUnavailable
	}

	var profile models.UserProfile
	var displayName, preferences sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, display_name, preferences, last_seen, created_at
		FROM user_profiles WHERE user_id = ?
	`, userID).Scan(&profile.UserID, &displayName, &preferences, &profile.LastSeen, &profile.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	profile.DisplayName = displayName.String
	if preferences.Valid && preferences.String != "" {
		_ = json.Unmarshal([]byte(preferences.String), &profile.Preferences)
	}
	return &profile, true, nil
}

// UpsertUserProfile creates or updates a user profile, refreshing last_seen
func (s *ProfileService) UpsertUserProfile(ctx context.Context, userID string, req models.UserProfileRequest) error {
	if !s.Available() {
		return ErrDatabaseUnavailable
	}

	existing, found, err := s.GetUserProfile(ctx, userID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	displayName := ""
	var preferences map[string]interface{}
	if found {
		displayName = existing.DisplayName
		preferences = existing.Preferences
	}
	if req.DisplayName != nil {
		displayName = *req.DisplayName
	}
	if req.Preferences != nil {
		preferences = *req.Preferences
	}

	var prefsJSON interface{}
	if preferences != nil {
		data, err := json.Marshal(preferences)
		if err != nil {
			return err
		}
		prefsJSON = string(data)
	}

	if found {
		_, err = s.db.ExecContext(ctx, `
			UPDATE user_profiles SET display_name = ?, preferences = ?, last_seen = ?
			WHERE user_id = ?
		`, nullable(displayName), prefsJSON, now, userID)
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, display_name, preferences, last_seen, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, nullable(displayName), prefsJSON, now, now)
	return err
}

// GetAgentProfile returns the profile for an agent id, including the agent's
// private notes
func (s *ProfileService) GetAgentProfile(ctx context.Context, agentID string) (*models.AgentProfile, bool, error) {
	if !s.Available() {
		return nil, false, ErrDatabaseUnavailable
	}

	var profile models.AgentProfile
	var displayName, personality, privateNotes sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT agent_id, display_name, personality, private_notes, created_at, updated_at
		FROM agent_profiles WHERE agent_id = ?
	`, agentID).Scan(&profile.AgentID, &displayName, &personality, &privateNotes,
		&profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	profile.DisplayName = displayName.String
	profile.Personality = personality.String
	profile.PrivateNotes = privateNotes.String
	return &profile, true, nil
}

// UpsertAgentProfile creates or updates an agent profile
func (s *ProfileService) UpsertAgentProfile(ctx context.Context, agentID string, req models.AgentProfileRequest) error {
	if !s.Available() {
		return ErrDatabaseUnavailable
	}

	existing, found, err := s.GetAgentProfile(ctx, agentID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	displayName, personality, privateNotes := "", "", ""
	if found {
		displayName = existing.DisplayName
		personality = existing.Personality
		privateNotes = existing.PrivateNotes
	}
	if req.DisplayName != nil {
		displayName = *req.DisplayName
	}
	if req.Personality != nil {
		personality = *req.Personality
	}
	if req.PrivateNotes != nil {
		privateNotes = *req.PrivateNotes
	}

	if found {
		_, err = s.db.ExecContext(ctx, `
			UPDATE agent_profiles SET display_name = ?, personality = ?, private_notes = ?, updated_at = ?
			WHERE agent_id = ?
		`, nullable(displayName), nullable(personality), nullable(privateNotes), now, agentID)
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_profiles (agent_id, display_name, personality, private_notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, agentID, nullable(displayName), nullable(personality), nullable(privateNotes), now, now)
	return err
}
