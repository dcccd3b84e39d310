// Package repository implements the gateway's own PostgreSQL tables: the
// payment hand-off and the ledger of unconfirmed payment returns.
// It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AurelionFutureForge/registration-gateway/internal/handoff"
	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

// HandoffRepository is a handoff.Store backed by PostgreSQL.
type HandoffRepository struct {
	db  *pgxpool.Pool
	ttl time.Duration
	now func() time.Time
}

// NewHandoffRepository constructs a HandoffRepository whose rows expire
// after ttl. A non-positive ttl uses handoff.DefaultTTL.
func NewHandoffRepository(db *pgxpool.Pool, ttl time.Duration) *HandoffRepository {
	if ttl <= 0 {
		ttl = handoff.DefaultTTL
	}
	return &HandoffRepository{db: db, ttl: ttl, now: time.Now}
}

// Save upserts the hand-off of a session.
func (r *HandoffRepository) Save(ctx context.Context, h *model.HandoffState) error {
	payload, err := model.EncodeHandoff(h)
	if err != nil {
		return err
	}
	now := r.now().UTC()
	_, err = r.db.Exec(ctx,
		`INSERT INTO registration_handoffs (session_id, event_id, payload, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id) DO UPDATE
		 SET event_id = EXCLUDED.event_id,
		     payload = EXCLUDED.payload,
		     created_at = EXCLUDED.created_at,
		     expires_at = EXCLUDED.expires_at`,
		h.SessionID, h.EventID, payload, now, now.Add(r.ttl),
	)
	if err != nil {
		return fmt.Errorf("save handoff: %w", err)
	}
	return nil
}

// Load returns the live hand-off of a session or model.ErrNoHandoff.
func (r *HandoffRepository) Load(ctx context.Context, sessionID string) (*model.HandoffState, error) {
	var payload []byte
	err := r.db.QueryRow(ctx,
		`SELECT payload FROM registration_handoffs
		 WHERE session_id = $1 AND expires_at > $2`,
		sessionID, r.now().UTC(),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNoHandoff
		}
		return nil, fmt.Errorf("load handoff: %w", err)
	}
	return model.DecodeHandoff(payload)
}

// Delete removes the hand-off of a session.
func (r *HandoffRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM registration_handoffs WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete handoff: %w", err)
	}
	return nil
}

// PurgeExpired deletes abandoned hand-offs and returns how many were removed.
func (r *HandoffRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM registration_handoffs WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge handoffs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UnconfirmedPaymentRepository records payment returns the backend could not
// match to a registration.
type UnconfirmedPaymentRepository struct {
	db *pgxpool.Pool
}

// NewUnconfirmedPaymentRepository constructs an UnconfirmedPaymentRepository.
func NewUnconfirmedPaymentRepository(db *pgxpool.Pool) *UnconfirmedPaymentRepository {
	return &UnconfirmedPaymentRepository{db: db}
}

// Record inserts p, assigning its id and timestamp when unset.
func (r *UnconfirmedPaymentRepository) Record(ctx context.Context, p *model.UnconfirmedPayment) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO unconfirmed_payments (id, event_id, email, transaction_id, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.EventID, p.Email, p.TransactionID, p.Amount, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record unconfirmed payment: %w", err)
	}
	return nil
}

// ListByEvent returns the unconfirmed payments of an event, oldest first.
func (r *UnconfirmedPaymentRepository) ListByEvent(ctx context.Context, eventID string) ([]model.UnconfirmedPayment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, email, transaction_id, amount, created_at
		 FROM unconfirmed_payments
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unconfirmed payments: %w", err)
	}
	defer rows.Close()

	var out []model.UnconfirmedPayment
	for rows.Next() {
		var p model.UnconfirmedPayment
		if err := rows.Scan(&p.ID, &p.EventID, &p.Email, &p.TransactionID, &p.Amount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan unconfirmed payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
