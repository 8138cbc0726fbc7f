package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"campusledger/internal/amqp"
	"campusledger/internal/core"
	"campusledger/internal/log"
)

type recorderStub struct {
	events []core.AuditEvent
	err    error
}

func (r *recorderStub) InsertAuditEvent(_ context.Context, event core.AuditEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func newTestLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Component: log.ComponentWorker})
}

func TestHandleAuditMessage(t *testing.T) {
	rec := &recorderStub{}
	w := NewAuditWorker(rec, newTestLogger())

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := &amqp.AuditMessage{UserID: 7, Action: core.ActionAddExpense, Timestamp: ts}

	if err := w.HandleAuditMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleAuditMessage() error = %v", err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(rec.events))
	}
	got := rec.events[0]
	if got.UserID != 7 || got.Action != core.ActionAddExpense || !got.Timestamp.Equal(ts) {
		t.Errorf("recorded event = %+v, want user 7 action %q at %v", got, core.ActionAddExpense, ts)
	}
}

func TestHandleAuditMessage_FillsMissingTimestamp(t *testing.T) {
	rec := &recorderStub{}
	w := NewAuditWorker(rec, newTestLogger())

	msg := &amqp.AuditMessage{UserID: 3, Action: core.ActionLogin}
	if err := w.HandleAuditMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleAuditMessage() error = %v", err)
	}

	if rec.events[0].Timestamp.IsZero() {
		t.Error("zero timestamp should be replaced with current time")
	}
}

func TestHandleAuditMessage_RecorderFailure(t *testing.T) {
	rec := &recorderStub{err: errors.New("disk full")}
	w := NewAuditWorker(rec, newTestLogger())

	msg := &amqp.AuditMessage{UserID: 1, Action: core.ActionLogin, Timestamp: time.Now()}
	if err := w.HandleAuditMessage(context.Background(), msg); err == nil {
		t.Error("HandleAuditMessage() should propagate recorder errors for requeue")
	}
}
