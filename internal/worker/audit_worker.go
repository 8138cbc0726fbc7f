package worker

import (
	"context"
	"fmt"
	"time"

	"campusledger/internal/amqp"
	"campusledger/internal/core"
	"campusledger/internal/log"
)

// EventRecorder persists audit events. Satisfied by storage.Repository.
type EventRecorder interface {
	InsertAuditEvent(ctx context.Context, event core.AuditEvent) error
}

// AuditWorker drains the audit bus into the append-only audit_logs table.
// It runs as a separate process so a slow or unavailable database never
// backs up into the request path.
type AuditWorker struct {
	recorder EventRecorder
	logger   *log.Logger
}

func NewAuditWorker(recorder EventRecorder, logger *log.Logger) *AuditWorker {
	return &AuditWorker{
		recorder: recorder,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleAuditMessage persists a single audit message. Returning an error
// requeues the delivery.
func (w *AuditWorker) HandleAuditMessage(ctx context.Context, msg *amqp.AuditMessage) error {
	event := core.AuditEvent{
		UserID:    msg.UserID,
		Action:    msg.Action,
		Timestamp: msg.Timestamp,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := w.recorder.InsertAuditEvent(ctx, event); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	w.logger.InfoContext(ctx, "recorded audit event",
		log.FieldUserID, msg.UserID,
		log.FieldAction, msg.Action)

	return nil
}

// Run consumes audit messages until ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeAuditEvents(ctx, func(msg *amqp.AuditMessage) error {
		return w.HandleAuditMessage(ctx, msg)
	})
}
