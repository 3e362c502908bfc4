package entities

import (
	"testing"
)

func TestSessionCreation(t *testing.T) {
	session := NewSession("user-123", "my dad collapsed")

	if session.UserID != "user-123" {
		t.Errorf("Expected user ID user-123, got %s", session.UserID)
	}

	if session.Status != SessionStatusCategorizing {
		t.Errorf("Expected status %s, got %s", SessionStatusCategorizing, session.Status)
	}

	if session.EmergencyType != EmergencyTypeUnknown {
		t.Errorf("Expected emergency type %s, got %s", EmergencyTypeUnknown, session.EmergencyType)
	}

	if len(session.Transcript) != 0 {
		t.Errorf("Expected empty transcript, got %d messages", len(session.Transcript))
	}
}

func TestAddMessage(t *testing.T) {
	session := NewSession("user", "someone is choking")

	session.AddMessage(NewUserMessage("someone is choking"))
	session.AddMessage(NewAssistantMessage(Turn{Text: "Can they speak?", AwaitsResponse: true, AssetKey: "heimlich_maneuver"}))

	if len(session.Transcript) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(session.Transcript))
	}

	if session.Transcript[0].Role != MessageRoleUser {
		t.Errorf("Expected user role, got %s", session.Transcript[0].Role)
	}

	assistant := session.Transcript[1]
	if assistant.Role != MessageRoleAssistant || !assistant.AwaitsResponse || assistant.AssetKey != "heimlich_maneuver" {
		t.Errorf("Unexpected assistant message: %+v", assistant)
	}

	if assistant.ID == "" || assistant.ID == session.Transcript[0].ID {
		t.Error("Expected distinct non-empty message IDs")
	}
}

func TestLastAssistantMessage(t *testing.T) {
	session := NewSession("user", "burn")

	if _, ok := session.LastAssistantMessage(); ok {
		t.Error("Expected no assistant message on empty transcript")
	}

	session.AddMessage(NewAssistantMessage(Turn{Text: "first", AwaitsResponse: false}))
	session.AddMessage(NewAssistantMessage(Turn{Text: "second", AwaitsResponse: true}))
	session.AddMessage(NewSystemMessage("Calling emergency contact: Mom"))

	last, ok := session.LastAssistantMessage()
	if !ok {
		t.Fatal("Expected an assistant message")
	}
	if last.Content != "second" || !last.AwaitsResponse {
		t.Errorf("Expected the second assistant turn, got %+v", last)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	session := NewSession("user", "seizure")
	session.AddMessage(NewUserMessage("seizure"))

	snap := session.Snapshot()
	session.AddMessage(NewUserMessage("still shaking"))
	session.Close()

	if len(snap.Transcript) != 1 {
		t.Errorf("Snapshot transcript should not grow, got %d", len(snap.Transcript))
	}
	if snap.Status != SessionStatusCategorizing {
		t.Errorf("Snapshot status should not change, got %s", snap.Status)
	}
	if snap.ClosedAt != nil {
		t.Error("Snapshot should not see ClosedAt")
	}
}

func TestSessionClose(t *testing.T) {
	session := NewSession("user", "bleeding")
	session.Close()

	if !session.Status.IsTerminal() {
		t.Error("Closed session should be terminal")
	}
	if session.ClosedAt == nil {
		t.Error("Expected ClosedAt to be set")
	}
}

func TestSessionValidation(t *testing.T) {
	session := NewSession("user", "bleeding")
	if err := session.Validate(); err != nil {
		t.Errorf("Valid session should not have validation errors, got: %v", err)
	}

	session.Description = ""
	if err := session.Validate(); err == nil {
		t.Error("Session with empty description should have validation error")
	}

	session.Description = "bleeding"
	session.Status = SessionStatus("invalid")
	if err := session.Validate(); err == nil {
		t.Error("Session with invalid status should have validation error")
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		raw    string
		want   Action
		wantOK bool
	}{
		{"", ActionNone, true},
		{"call_emergency_contact", ActionCallEmergencyContact, true},
		{" CALL_EMERGENCY_CONTACT ", ActionCallEmergencyContact, true},
		{"order_pizza", ActionNone, false},
	}

	for _, tt := range tests {
		got, ok := ParseAction(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseAction(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestTurnTexts(t *testing.T) {
	turns := []Turn{
		{Text: "Check for breathing."},
		{Text: "   ", Action: ActionCallEmergencyContact},
		{Text: "Are they breathing?", AwaitsResponse: true},
	}

	got := TurnTexts(turns)
	if len(got) != 2 || got[0] != "Check for breathing." || got[1] != "Are they breathing?" {
		t.Errorf("Unexpected segments %q", got)
	}
}

func TestFriendlyLabel(t *testing.T) {
	if got := FriendlyLabel("SEVERE_BLEEDING"); got != "severe bleeding" {
		t.Errorf("Expected 'severe bleeding', got %q", got)
	}
	if got := FriendlyLabel("CHOKING"); got != "choking" {
		t.Errorf("Expected 'choking', got %q", got)
	}
}

func TestProfileContactLabel(t *testing.T) {
	p := &Profile{UserID: "u", FullName: "Ann", EmergencyContactPhone: "+12487563656"}
	if p.ContactLabel() != "+12487563656" {
		t.Errorf("Expected phone as label, got %s", p.ContactLabel())
	}
	p.EmergencyContactName = "Bob"
	if p.ContactLabel() != "Bob" {
		t.Errorf("Expected name as label, got %s", p.ContactLabel())
	}
}
