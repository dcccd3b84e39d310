// Package service implements the registration flow on top of the remote
// API: loading the form, validating and dispatching a submission, and
// finishing a paid registration after the payment redirect.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AurelionFutureForge/registration-gateway/internal/audit"
	"github.com/AurelionFutureForge/registration-gateway/internal/backend"
	"github.com/AurelionFutureForge/registration-gateway/internal/ctxlog"
	"github.com/AurelionFutureForge/registration-gateway/internal/handoff"
	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

// Backend is the subset of the remote API the flow needs.
type Backend interface {
	GetEvent(ctx context.Context, eventID string) (*model.EventDescriptor, error)
	RoleRegistrations(ctx context.Context, eventID string) (model.RoleRegistrationCounts, error)
	GetAdmin(ctx context.Context, companyName string) (*model.Admin, error)
	CheckEmail(ctx context.Context, email, eventID string) (bool, error)
	FreeRegister(ctx context.Context, eventID string, answers model.Answers, idempotencyKey string) (string, error)
	InitiatePayment(ctx context.Context, p backend.PaymentRequest) (string, error)
	Register(ctx context.Context, h *model.HandoffState, transactionID string) error
	GetRegistrant(ctx context.Context, eventID, email string) (*model.Registrant, error)
}

// PaymentLedger records payment returns that could not be confirmed.
type PaymentLedger interface {
	Record(ctx context.Context, p *model.UnconfirmedPayment) error
}

// RegistrationService orchestrates the registration flow.
type RegistrationService struct {
	backend  Backend
	handoffs handoff.Store
	ledger   PaymentLedger
	sink     audit.Sink
	now      func() time.Time
	newID    func() string
	guard    *guard
}

// Option customises a RegistrationService.
type Option func(*RegistrationService)

// WithLedger sets where unconfirmed payment returns are recorded.
func WithLedger(l PaymentLedger) Option {
	return func(s *RegistrationService) { s.ledger = l }
}

// WithAuditSink sets where lifecycle records are published.
func WithAuditSink(sink audit.Sink) Option {
	return func(s *RegistrationService) { s.sink = sink }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *RegistrationService) { s.now = now }
}

// WithPhaseObserver registers a callback invoked on every phase change of
// a submission.
func WithPhaseObserver(fn func(formKey string, p Phase)) Option {
	return func(s *RegistrationService) { s.guard.observe = fn }
}

// NewRegistrationService constructs a RegistrationService with its dependencies.
func NewRegistrationService(b Backend, handoffs handoff.Store, opts ...Option) *RegistrationService {
	s := &RegistrationService{
		backend:  b,
		handoffs: handoffs,
		now:      time.Now,
		newID:    uuid.NewString,
		guard:    newGuard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FormContext is what a form page needs from the remote API.
type FormContext struct {
	Event  *model.EventDescriptor
	Fields []model.Field
	Counts model.RoleRegistrationCounts

	// Admin is nil when the organizer lookup failed.
	Admin *model.Admin
}

// Category returns the organizer category, or "" when unknown.
func (f *FormContext) Category() string {
	if f.Admin == nil {
		return ""
	}
	return f.Admin.Category
}

// LoadForm fetches the event, its inventory and its organizer. The
// organizer lookup is best effort: without it the form still renders, but a
// paid submission retries the lookup before pricing.
func (s *RegistrationService) LoadForm(ctx context.Context, eventID string) (*FormContext, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	ev, err := s.backend.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	fields, err := ev.FormFields()
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}
	counts, err := s.backend.RoleRegistrations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load role registrations: %w", err)
	}

	fc := &FormContext{Event: ev, Fields: fields, Counts: counts}
	if ev.CompanyName != "" {
		admin, err := s.backend.GetAdmin(ctx, ev.CompanyName)
		if err != nil {
			ctxlog.FromContext(ctx).Warn("organizer lookup failed", "event_id", eventID, "company", ev.CompanyName, "error", err)
		} else {
			fc.Admin = admin
		}
	}
	return fc, nil
}

// publish sends an audit record; failures are logged and otherwise ignored.
func (s *RegistrationService) publish(ctx context.Context, rec audit.Record) {
	if s.sink == nil {
		return
	}
	rec.At = s.now().UTC()
	if err := s.sink.Publish(ctx, rec); err != nil {
		ctxlog.FromContext(ctx).Warn("audit publish failed", "action", rec.Action, "error", err)
	}
}
