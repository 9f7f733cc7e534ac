package services

import (
	"context"
	"errors"
	"testing"

	"memgate/internal/models"
)

func strPtr(s string) *string { return &s }

func TestUserProfile_UpsertAndGet(t *testing.T) {
	db := newTestDB(t, "test_user_profiles.db")
	svc := NewProfileService(db)
	ctx := context.Background()

	// Absent profile is not an error
	_, found, err := svc.GetUserProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserProfile failed: %v", err)
	}
	if found {
		t.Fatal("Expected no profile before first write")
	}

	prefs := map[string]interface{}{"theme": "dark", "lang": "en"}
	err = svc.UpsertUserProfile(ctx, "u1", models.UserProfileRequest{
		DisplayName: strPtr("Alex"),
		Preferences: &prefs,
	})
	if err != nil {
		t.Fatalf("UpsertUserProfile failed: %v", err)
	}

	profile, found, err := svc.GetUserProfile(ctx, "u1")
	if err != nil || !found {
		t.Fatalf("Expected profile after upsert, found=%t err=%v", found, err)
	}
	if profile.DisplayName != "Alex" {
		t.Errorf("Expected display name Alex, got %q", profile.DisplayName)
	}
	if profile.Preferences["theme"] != "dark" {
		t.Errorf("Preferences not preserved: %+v", profile.Preferences)
	}
}

func TestUserProfile_PartialUpdateKeepsFields(t *testing.T) {
	db := newTestDB(t, "test_user_profiles_partial.db")
	svc := NewProfileService(db)
	ctx := context.Background()

	prefs := map[string]interface{}{"theme": "dark"}
	if err := svc.UpsertUserProfile(ctx, "u1", models.UserProfileRequest{
		DisplayName: strPtr("Alex"),
		Preferences: &prefs,
	}); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	// Update only the display name
	if err := svc.UpsertUserProfile(ctx, "u1", models.UserProfileRequest{
		DisplayName: strPtr("Alexandra"),
	}); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	profile, _, err := svc.GetUserProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserProfile failed: %v", err)
	}
	if profile.DisplayName != "Alexandra" {
		t.Errorf("Expected updated display name, got %q", profile.DisplayName)
	}
	if profile.Preferences["theme"] != "dark" {
		t.Errorf("Preferences must survive a partial update: %+v", profile.Preferences)
	}
}

func TestAgentProfile_UpsertAndGet(t *testing.T) {
	db := newTestDB(t, "test_agent_profiles.db")
	svc := NewProfileService(db)
	ctx := context.Background()

	_, found, err := svc.GetAgentProfile(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAgentProfile failed: %v", err)
	}
	if found {
		t.Fatal("Expected no profile before first write")
	}

	err = svc.UpsertAgentProfile(ctx, "a1", models.AgentProfileRequest{
		DisplayName:  strPtr("Clara"),
		Personality:  strPtr("curious"),
		PrivateNotes: strPtr("prefers short answers"),
	})
	if err != nil {
		t.Fatalf("UpsertAgentProfile failed: %v", err)
	}

	profile, found, err := svc.GetAgentProfile(ctx, "a1")
	if err != nil || !found {
		t.Fatalf("Expected profile after upsert, found=%t err=%v", found, err)
	}
	if profile.Personality != "curious" {
		t.Errorf("Expected personality curious, got %q", profile.Personality)
	}
	if profile.PrivateNotes != "prefers short answers" {
		t.Errorf("Private notes not preserved: %q", profile.PrivateNotes)
	}
}

func TestProfileService_WithoutDatabase(t *testing.T) {
	svc := NewProfileService(nil)

	_, _, err := svc.GetUserProfile(context.Background(), "u1")
	if !errors.Is(err, ErrDatabaseUnavailable) {
		t.Fatalf("Expected ErrDatabaseUnavailable, got %v", err)
	}

	err = svc.UpsertAgentProfile(context.Background(), "a1", models.AgentProfileRequest{})
	if !errors.Is(err, ErrDatabaseUnavailable) {
		t.Fatalf("Expected ErrDatabaseUnavailable, got %v", err)
	}
}
