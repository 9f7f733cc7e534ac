package models

import "time"

// UserProfile stores per-user display name and free-form preferences.
// Created on first PUT, updated in place, never auto-expired.
type UserProfile struct {
	UserID      string                 `json:"user_id"`
	DisplayName string                 `json:"display_name,omitempty"`
	Preferences map[string]interface{} `json:"preferences,omitempty"`
	LastSeen    time.Time              `json:"last_seen"`
	CreatedAt   time.Time              `json:"created_at"`
}

// AgentProfile stores agent identity plus the agent's private notes
type AgentProfile struct {
	AgentID      string    `json:"agent_id"`
	DisplayName  string    `json:"display_name,omitempty"`
	Personality  string    `json:"personality,omitempty"`
	PrivateNotes string    `json:"private_notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserProfileRequest is the body of PUT /profiles/user/:id
type UserProfileRequest struct {
	DisplayName *string                 `json:"display_name,omitempty"`
	Preferences *map[string]interface{} `json:"preferences,omitempty"`
}

// AgentProfileRequest is the body of PUT /profiles/agent/:id
type AgentProfileRequest struct {
	DisplayName  *string `json:"display_name,omitempty"`
	Personality  *string `json:"personality,omitempty"`
	PrivateNotes *string `json:"private_notes,omitempty"`
}
