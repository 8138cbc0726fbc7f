package amqp

import (
	"testing"
	"time"
)

func TestNewAuditMessage(t *testing.T) {
	msg := NewAuditMessage(42, "add_expense")

	if msg.UserID != 42 {
		t.Errorf("NewAuditMessage() UserID = %v, want %v", msg.UserID, 42)
	}
	if msg.Action != "add_expense" {
		t.Errorf("NewAuditMessage() Action = %v, want %v", msg.Action, "add_expense")
	}
	if msg.Timestamp.IsZero() {
		t.Error("NewAuditMessage() Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewAuditMessage() Timestamp should be recent")
	}
}

func TestAuditMessageFromJSON_Invalid(t *testing.T) {
	invalidJSON := []byte(`{"user_id": "not_a_number", "action": 7}`)

	_, err := AuditMessageFromJSON(invalidJSON)
	if err == nil {
		t.Error("AuditMessageFromJSON() should fail with invalid JSON")
	}
}
