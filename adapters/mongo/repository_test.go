package mongo

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/lifeline/domain/entities"
)

// TestRepositories_Integration requires a running MongoDB instance
// (skipped if MONGODB_URI is not set)
func TestRepositories_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, mongoURI, "lifeline_test", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)
	defer client.Database.Drop(ctx)

	sessions := NewSessionRepository(client.Database)
	profiles := NewProfileRepository(client.Database)

	t.Run("SessionLifecycle", func(t *testing.T) {
		session := entities.NewSession("user-1", "my dad collapsed")
		session.AddMessage(entities.NewUserMessage("my dad collapsed"))

		if err := sessions.Create(ctx, session); err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID == "" {
			t.Fatal("Expected generated session ID")
		}

		session.EmergencyType = "CPR_NEEDED"
		session.Status = entities.SessionStatusSpeaking
		session.AddMessage(entities.NewAssistantMessage(entities.Turn{Text: "Is he breathing?", AwaitsResponse: true}))
		if err := sessions.Update(ctx, session); err != nil {
			t.Fatalf("Failed to update session: %v", err)
		}

		got, err := sessions.GetByID(ctx, session.ID)
		if err != nil {
			t.Fatalf("Failed to get session: %v", err)
		}
		if got.ID != session.ID || got.EmergencyType != "CPR_NEEDED" || len(got.Transcript) != 2 {
			t.Errorf("Unexpected session %+v", got)
		}
	})

	t.Run("SessionNotFound", func(t *testing.T) {
		if _, err := sessions.GetByID(ctx, "000000000000000000000000"); !errors.Is(err, entities.ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
		if _, err := sessions.GetByID(ctx, "not-an-object-id"); !errors.Is(err, entities.ErrSessionNotFound) {
			t.Errorf("Expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("ProfileUpsert", func(t *testing.T) {
		profile := &entities.Profile{UserID: "user-1", FullName: "Ann", EmergencyContactPhone: "2487563656"}
		if err := profiles.Upsert(ctx, profile); err != nil {
			t.Fatalf("Failed to upsert profile: %v", err)
		}
		profile.EmergencyContactName = "Bob"
		if err := profiles.Upsert(ctx, profile); err != nil {
			t.Fatalf("Failed to upsert profile: %v", err)
		}

		got, err := profiles.GetByUserID(ctx, "user-1")
		if err != nil {
			t.Fatalf("Failed to get profile: %v", err)
		}
		if got.EmergencyContactName != "Bob" {
			t.Errorf("Expected updated contact name, got %q", got.EmergencyContactName)
		}

		if _, err := profiles.GetByUserID(ctx, "nobody"); !errors.Is(err, entities.ErrProfileNotFound) {
			t.Errorf("Expected ErrProfileNotFound, got %v", err)
		}
	})
}
