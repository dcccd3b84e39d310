package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// HandoffState carries a paid submission across the payment redirect. It is
// written right before payment initiation and removed once the completion
// step has committed the registration.
type HandoffState struct {
	SessionID      string    `json:"sessionId"`
	EventID        string    `json:"eventId"`
	Answers        Answers   `json:"answers"`
	Amount         float64   `json:"amount"`
	FeeRate        float64   `json:"feeRate"`
	IdempotencyKey string    `json:"idempotencyKey"`
	CreatedAt      time.Time `json:"createdAt"`
}

// EncodeHandoff serialises a hand-off for storage.
func EncodeHandoff(h *HandoffState) ([]byte, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode handoff: %w", err)
	}
	return b, nil
}

// DecodeHandoff parses a stored hand-off.
func DecodeHandoff(b []byte) (*HandoffState, error) {
	var h HandoffState
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, fmt.Errorf("decode handoff: %w", err)
	}
	if h.EventID == "" {
		return nil, fmt.Errorf("decode handoff: missing event id")
	}
	if h.Answers == nil {
		h.Answers = Answers{}
	}
	return &h, nil
}

// UnconfirmedPayment records a payment return that could not be matched to
// a registration, for manual support lookup.
type UnconfirmedPayment struct {
	ID            string    `json:"id"`
	EventID       string    `json:"eventId"`
	Email         string    `json:"email"`
	TransactionID string    `json:"transactionId"`
	Amount        float64   `json:"amount"`
	CreatedAt     time.Time `json:"createdAt"`
}
