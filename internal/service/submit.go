package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/AurelionFutureForge/registration-gateway/internal/audit"
	"github.com/AurelionFutureForge/registration-gateway/internal/backend"
	"github.com/AurelionFutureForge/registration-gateway/internal/ctxlog"
	"github.com/AurelionFutureForge/registration-gateway/internal/form"
	"github.com/AurelionFutureForge/registration-gateway/internal/model"
	"github.com/AurelionFutureForge/registration-gateway/internal/pricing"
)

// Phase is the state of one in-flight submission.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseCheckingDuplicate
	PhaseFreeRegistering
	PhaseInitiatingPayment
	PhaseNavigatedAway
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseCheckingDuplicate:
		return "checking_duplicate"
	case PhaseFreeRegistering:
		return "free_registering"
	case PhaseInitiatingPayment:
		return "initiating_payment"
	case PhaseNavigatedAway:
		return "navigated_away"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// guard allows one in-flight submission per form instance.
type guard struct {
	mu       sync.Mutex
	inflight map[string]Phase
	observe  func(formKey string, p Phase)
}

func newGuard() *guard {
	return &guard{inflight: make(map[string]Phase)}
}

func (g *guard) begin(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[key]; busy {
		return model.ErrSubmissionInFlight
	}
	g.inflight[key] = PhaseIdle
	return nil
}

func (g *guard) advance(key string, p Phase) {
	g.mu.Lock()
	g.inflight[key] = p
	observe := g.observe
	g.mu.Unlock()
	if observe != nil {
		observe(key, p)
	}
}

// end releases the form instance, reporting where the submission landed.
func (g *guard) end(key string, final Phase) {
	g.mu.Lock()
	delete(g.inflight, key)
	observe := g.observe
	g.mu.Unlock()
	if observe != nil {
		observe(key, final)
	}
}

// Phase reports the current phase of a form instance.
func (s *RegistrationService) Phase(sessionID, eventID string) Phase {
	s.guard.mu.Lock()
	defer s.guard.mu.Unlock()
	return s.guard.inflight[formKey(sessionID, eventID)]
}

func formKey(sessionID, eventID string) string {
	return sessionID + "/" + eventID
}

// OutcomeKind tells the caller where to navigate after a submission.
type OutcomeKind int

const (
	OutcomeFreeRegistered OutcomeKind = iota + 1
	OutcomePaymentRedirect
)

// Outcome is a successful submission.
type Outcome struct {
	Kind    OutcomeKind
	EventID string
	Email   string

	// RedirectURL is the payment page for paid roles and the confirmation
	// route for free ones.
	RedirectURL string
	Message     string
	Pricing     pricing.Breakdown
}

// Validate applies the submission rules in order and returns the chosen
// role. The first failing rule wins.
func Validate(fc *FormContext, answers model.Answers) (model.RoleDescriptor, error) {
	role, err := form.ActiveRole(fc.Event, fc.Counts, answers)
	if err != nil {
		return model.RoleDescriptor{}, err
	}

	for _, desc := range fc.Event.RegistrationFields {
		if !desc.Required || desc.FieldName == model.RoleFieldName {
			continue
		}
		if v, ok := answers[desc.FieldName]; !ok || v.IsBlank() {
			return model.RoleDescriptor{}, &model.ValidationError{Field: desc.FieldName, Err: model.ErrMissingRequired}
		}
	}

	for _, desc := range fc.Event.RegistrationFields {
		if !model.IsContactField(desc.FieldName) {
			continue
		}
		v, ok := answers[desc.FieldName]
		if !ok || v.IsBlank() {
			continue
		}
		if len(digits(v.String())) != 10 {
			return model.RoleDescriptor{}, &model.ValidationError{Field: desc.FieldName, Err: model.ErrInvalidContact}
		}
		break
	}

	if answers.Email() == "" {
		return model.RoleDescriptor{}, &model.ValidationError{Field: "EMAIL", Err: model.ErrMissingEmail}
	}
	return role, nil
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Submit runs one submission of a loaded form. Phases run strictly in
// order: validation, the duplicate-email check, then either the free
// registration or the payment initiation. Answers are never modified, so a
// failed submission can be re-rendered as typed.
func (s *RegistrationService) Submit(ctx context.Context, fc *FormContext, sessionID string, answers model.Answers) (*Outcome, error) {
	if !form.IsOpen(fc.Event, s.now()) {
		return nil, model.ErrFormClosed
	}
	key := formKey(sessionID, fc.Event.ID)
	if err := s.guard.begin(key); err != nil {
		return nil, err
	}
	final := PhaseIdle
	defer func() { s.guard.end(key, final) }()

	logger := ctxlog.FromContext(ctx).With("event_id", fc.Event.ID, "session_id", sessionID)

	s.guard.advance(key, PhaseValidating)
	role, err := Validate(fc, answers)
	if err != nil {
		logger.Info("submission rejected", "error", err)
		return nil, err
	}
	email := answers.Email()

	s.guard.advance(key, PhaseCheckingDuplicate)
	exists, err := s.backend.CheckEmail(ctx, email, fc.Event.ID)
	if err != nil {
		return nil, s.failed(ctx, fc.Event.ID, email, role.Name, fmt.Errorf("check email: %w", err))
	}
	if exists {
		logger.Info("duplicate registration", "email", email)
		return nil, model.ErrAlreadyRegistered
	}

	var out *Outcome
	if role.IsFree() {
		s.guard.advance(key, PhaseFreeRegistering)
		out, err = s.registerFree(ctx, fc, answers, role)
	} else {
		s.guard.advance(key, PhaseInitiatingPayment)
		out, err = s.initiatePayment(ctx, fc, sessionID, answers, role)
	}
	if err != nil {
		return nil, s.failed(ctx, fc.Event.ID, email, role.Name, err)
	}

	final = PhaseNavigatedAway
	logger.Info("submission accepted", "role", role.Name, "paid", !role.IsFree())
	return out, nil
}

func (s *RegistrationService) failed(ctx context.Context, eventID, email, role string, err error) error {
	ctxlog.FromContext(ctx).Warn("submission failed", "event_id", eventID, "error", err)
	s.publish(ctx, audit.Record{Action: audit.ActionSubmissionFailed, EventID: eventID, Email: email, Role: role, Error: err.Error()})
	return err
}

func (s *RegistrationService) registerFree(ctx context.Context, fc *FormContext, answers model.Answers, role model.RoleDescriptor) (*Outcome, error) {
	email := answers.Email()
	msg, err := s.backend.FreeRegister(ctx, fc.Event.ID, answers, s.newID())
	if err != nil {
		return nil, fmt.Errorf("free register: %w", err)
	}
	if msg == "" {
		msg = "Registered successfully!"
	}
	s.publish(ctx, audit.Record{Action: audit.ActionFreeRegistered, EventID: fc.Event.ID, Email: email, Role: role.Name})
	return &Outcome{
		Kind:        OutcomeFreeRegistered,
		EventID:     fc.Event.ID,
		Email:       email,
		RedirectURL: ConfirmationPath("free-success", fc.Event.ID, email),
		Message:     msg,
	}, nil
}

func (s *RegistrationService) initiatePayment(ctx context.Context, fc *FormContext, sessionID string, answers model.Answers, role model.RoleDescriptor) (*Outcome, error) {
	if fc.Admin == nil {
		admin, err := s.backend.GetAdmin(ctx, fc.Event.CompanyName)
		if err != nil {
			return nil, fmt.Errorf("load organizer: %w", err)
		}
		fc.Admin = admin
	}
	b := pricing.Compute(role, fc.Category())
	email := answers.Email()

	h := &model.HandoffState{
		SessionID:      sessionID,
		EventID:        fc.Event.ID,
		Answers:        answers.Clone(),
		Amount:         b.Total,
		FeeRate:        b.FeeRate,
		IdempotencyKey: s.newID(),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.handoffs.Save(ctx, h); err != nil {
		return nil, fmt.Errorf("persist handoff: %w", err)
	}

	redirect, err := s.backend.InitiatePayment(ctx, backend.PaymentRequest{Amount: b.Total, Email: email, EventID: fc.Event.ID})
	if err == nil && redirect == "" {
		err = model.ErrPaymentRedirectMissing
	}
	if err != nil {
		if derr := s.handoffs.Delete(ctx, sessionID); derr != nil {
			ctxlog.FromContext(ctx).Warn("drop handoff", "session_id", sessionID, "error", derr)
		}
		if errors.Is(err, model.ErrPaymentRedirectMissing) {
			return nil, err
		}
		return nil, fmt.Errorf("initiate payment: %w", err)
	}

	s.publish(ctx, audit.Record{Action: audit.ActionPaymentInitiated, EventID: fc.Event.ID, Email: email, Role: role.Name, Amount: b.Total})
	return &Outcome{
		Kind:        OutcomePaymentRedirect,
		EventID:     fc.Event.ID,
		Email:       email,
		RedirectURL: redirect,
		Pricing:     b,
	}, nil
}

// ConfirmationPath builds a confirmation route such as
// /free-success/{eventID}/{email}.
func ConfirmationPath(prefix, eventID, email string) string {
	return "/" + prefix + "/" + url.PathEscape(eventID) + "/" + url.PathEscape(email)
}
