package reservation

import (
	"context"
	"time"
)

type EventType string

const (
	EventBorrowCreated   EventType = "borrow.created"
	EventBorrowApproved  EventType = "borrow.approved"
	EventBorrowActivated EventType = "borrow.activated"
	EventBorrowRejected  EventType = "borrow.rejected"
	EventBorrowReturned  EventType = "borrow.returned"
	EventReturnCorrected EventType = "return.corrected"
	EventRenewalCreated  EventType = "renewal.created"
	EventRenewalApproved EventType = "renewal.approved"
	EventRenewalRejected EventType = "renewal.rejected"
)

// Event is a notification emitted after a transition commits.
type Event struct {
	Type          EventType `json:"type"`
	TargetUserIDs []string  `json:"targetUserIds,omitempty"`
	// TargetAdmins addresses every administrator.
	TargetAdmins     bool      `json:"targetAdmins,omitempty"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	RelatedRequestID string    `json:"relatedRequestId"`
	RelatedDeviceID  string    `json:"relatedDeviceId"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// AuditRecord describes one state mutation. Before is nil for creations.
type AuditRecord struct {
	Action     string
	ObjectType string
	ObjectID   string
	ActorID    string
	Before     any
	After      any
	At         time.Time
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type Auditor interface {
	Record(ctx context.Context, rec AuditRecord) error
}

type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

type AuditorFunc func(ctx context.Context, rec AuditRecord) error

func (f AuditorFunc) Record(ctx context.Context, rec AuditRecord) error { return f(ctx, rec) }

var (
	nopNotifier = NotifierFunc(func(context.Context, Event) error { return nil })
	nopAuditor  = AuditorFunc(func(context.Context, AuditRecord) error { return nil })
)

// effects are collected inside a transaction and only dispatched once it
// commits. A retried attempt builds a fresh set.
type effects struct {
	events []Event
	audits []AuditRecord
}

func (fx *effects) audit(action, objectType, objectID string, actor Actor, before, after any, at time.Time) {
	fx.audits = append(fx.audits, AuditRecord{
		Action:     action,
		ObjectType: objectType,
		ObjectID:   objectID,
		ActorID:    actor.ID,
		Before:     before,
		After:      after,
		At:         at,
	})
}

func (fx *effects) notify(ev Event) {
	fx.events = append(fx.events, ev)
}

// dispatch runs post-commit hooks in the background. Failures are logged and
// never reach the caller: the transition has already committed. After Close
// the hooks run inline instead.
func (s *Service) dispatch(ctx context.Context, op string, fx *effects) {
	if fx == nil || (len(fx.events) == 0 && len(fx.audits) == 0) {
		return
	}
	ctx = context.WithoutCancel(ctx)

	s.hooksMu.Lock()
	if s.closed {
		s.hooksMu.Unlock()
		s.runHooks(ctx, op, fx)
		return
	}
	s.hooks.Add(1)
	s.hooksMu.Unlock()

	go func() {
		defer s.hooks.Done()
		s.runHooks(ctx, op, fx)
	}()
}

func (s *Service) runHooks(ctx context.Context, op string, fx *effects) {
	for _, rec := range fx.audits {
		if err := s.auditor.Record(ctx, rec); err != nil {
			s.log.Warn("audit hook failed", "op", op, "object", rec.ObjectType, "id", rec.ObjectID, "err", err)
		}
	}
	for _, ev := range fx.events {
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.log.Warn("notify hook failed", "op", op, "event", ev.Type, "request", ev.RelatedRequestID, "err", err)
		}
	}
}

// Close waits for in-flight post-commit hooks. It is safe to call while
// operations are still running and more than once.
func (s *Service) Close() {
	s.hooksMu.Lock()
	s.closed = true
	s.hooksMu.Unlock()
	s.hooks.Wait()
}
