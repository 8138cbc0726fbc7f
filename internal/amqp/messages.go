package amqp

import (
	"encoding/json"
	"time"
)

// AuditMessage carries one security-relevant action over the audit bus. The
// worker persists it to the append-only audit_logs table.
type AuditMessage struct {
	UserID    int64     `json:"user_id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAuditMessage creates an audit message stamped with the current time.
func NewAuditMessage(userID int64, action string) *AuditMessage {
	return &AuditMessage{
		UserID:    userID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *AuditMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AuditMessageFromJSON creates a message from JSON bytes.
func AuditMessageFromJSON(data []byte) (*AuditMessage, error) {
	var msg AuditMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
