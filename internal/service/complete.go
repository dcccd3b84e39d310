package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AurelionFutureForge/registration-gateway/internal/audit"
	"github.com/AurelionFutureForge/registration-gateway/internal/ctxlog"
	"github.com/AurelionFutureForge/registration-gateway/internal/invoice"
	"github.com/AurelionFutureForge/registration-gateway/internal/model"
	"github.com/AurelionFutureForge/registration-gateway/internal/pricing"
)

// Completion is a paid registration committed after the payment redirect.
type Completion struct {
	EventID       string
	Email         string
	TransactionID string
	Pricing       pricing.Breakdown
	RedirectURL   string
}

// Complete finishes the paid registration stored for sessionID. A visit
// without a hand-off or without a transaction id makes no backend call.
// When the backend has not seen the payment yet the hand-off is kept, so
// the registrant can come back through the same link until it expires.
func (s *RegistrationService) Complete(ctx context.Context, sessionID, transactionID string) (*Completion, error) {
	logger := ctxlog.FromContext(ctx).With("session_id", sessionID)

	h, err := s.handoffs.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, model.ErrNoHandoff) {
			logger.Info("payment return without handoff")
			return nil, err
		}
		return nil, fmt.Errorf("load handoff: %w", err)
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		logger.Info("payment return without transaction id", "event_id", h.EventID)
		return nil, model.ErrMissingTransaction
	}

	email := h.Answers.Email()
	logger = logger.With("event_id", h.EventID, "transaction_id", transactionID)

	paid, err := s.backend.CheckEmail(ctx, email, h.EventID)
	if err != nil {
		return nil, s.completionFailed(ctx, h, transactionID, fmt.Errorf("check email: %w", err))
	}
	if !paid {
		logger.Warn("payment not confirmed", "email", email, "amount", h.Amount)
		if s.ledger != nil {
			rec := &model.UnconfirmedPayment{EventID: h.EventID, Email: email, TransactionID: transactionID, Amount: h.Amount}
			if err := s.ledger.Record(ctx, rec); err != nil {
				logger.Error("record unconfirmed payment", "error", err)
			}
		}
		s.publish(ctx, audit.Record{Action: audit.ActionUnconfirmed, EventID: h.EventID, Email: email, Amount: h.Amount, TransactionID: transactionID})
		return nil, model.ErrPaymentUnconfirmed
	}

	if err := s.backend.Register(ctx, h, transactionID); err != nil {
		return nil, s.completionFailed(ctx, h, transactionID, fmt.Errorf("register: %w", err))
	}
	if err := s.handoffs.Delete(ctx, sessionID); err != nil {
		logger.Warn("drop handoff", "error", err)
	}

	s.publish(ctx, audit.Record{Action: audit.ActionCompleted, EventID: h.EventID, Email: email, Role: h.Answers.Role(), Amount: h.Amount, TransactionID: transactionID})
	logger.Info("registration completed", "amount", h.Amount)
	return &Completion{
		EventID:       h.EventID,
		Email:         email,
		TransactionID: transactionID,
		Pricing:       pricing.Inverse(h.Amount, h.FeeRate),
		RedirectURL:   ConfirmationPath("success", h.EventID, email),
	}, nil
}

func (s *RegistrationService) completionFailed(ctx context.Context, h *model.HandoffState, transactionID string, err error) error {
	ctxlog.FromContext(ctx).Warn("completion failed", "event_id", h.EventID, "transaction_id", transactionID, "error", err)
	s.publish(ctx, audit.Record{Action: audit.ActionCompletionFailed, EventID: h.EventID, Email: h.Answers.Email(), TransactionID: transactionID, Error: err.Error()})
	return err
}

// Confirmation is what the confirmation page shows.
type Confirmation struct {
	Event      *model.EventDescriptor
	Registrant *model.Registrant

	// Name and Contact are read from the stored answers; Contact is "N/A"
	// when the form had no phone field.
	Name    string
	Contact string
}

// Confirmation loads a stored registration together with its event.
func (s *RegistrationService) Confirmation(ctx context.Context, eventID, email string) (*Confirmation, error) {
	ev, err := s.backend.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	reg, err := s.backend.GetRegistrant(ctx, eventID, email)
	if err != nil {
		return nil, fmt.Errorf("load registrant: %w", err)
	}
	return &Confirmation{
		Event:      ev,
		Registrant: reg,
		Name:       reg.RegistrationData.Name(),
		Contact:    reg.RegistrationData.Contact(ev.FieldNames()),
	}, nil
}

// Invoice assembles the invoice of a stored registration. The fee rate
// follows the organizer category; when the organizer cannot be loaded the
// standard rate is assumed.
func (s *RegistrationService) Invoice(ctx context.Context, eventID, email string) (invoice.Invoice, error) {
	c, err := s.Confirmation(ctx, eventID, email)
	if err != nil {
		return invoice.Invoice{}, err
	}
	var category string
	if c.Event.CompanyName != "" {
		admin, err := s.backend.GetAdmin(ctx, c.Event.CompanyName)
		if err != nil {
			ctxlog.FromContext(ctx).Warn("organizer lookup failed", "event_id", eventID, "error", err)
		} else {
			category = admin.Category
		}
	}
	return invoice.Invoice{
		EventName:     c.Event.Name,
		CompanyName:   c.Event.CompanyName,
		BilledTo:      c.Name,
		Contact:       c.Contact,
		Registrant:    c.Registrant.RegistrationData,
		Role:          c.Registrant.Role,
		TransactionID: c.Registrant.TransactionID,
		PaymentStatus: c.Registrant.PaymentStatus,
		Pricing:       pricing.Inverse(c.Registrant.Amount, pricing.FeeRate(category)),
		IssuedAt:      s.now(),
	}, nil
}
