package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AurelionFutureForge/registration-gateway/internal/backend"
	"github.com/AurelionFutureForge/registration-gateway/internal/ctxlog"
	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

var (
	// ErrDebounced is returned for a scan dropped by the debouncer.
	ErrDebounced = errors.New("scan ignored")

	// ErrMissingCredentials is returned when no privilege session is usable.
	ErrMissingCredentials = errors.New("missing privilege credentials, please log in again")

	// ErrSessionExpired is returned when the privilege token has expired.
	ErrSessionExpired = errors.New("privilege session expired, please log in again")
)

// Verifier is the backend call a scan needs.
type Verifier interface {
	VerifyScan(ctx context.Context, s *backend.PrivilegeSession, qrCode string) (*backend.ScanResult, error)
}

// Result is the verdict on one scanned code.
type Result struct {
	Code     string
	Verified bool
	User     *backend.ScanUser
	Message  string
}

// Scanner checks scanned codes against the backend.
type Scanner struct {
	verifier Verifier
	session  *backend.PrivilegeSession
	debounce *Debouncer
	now      func() time.Time
}

// NewScanner returns a Scanner for a signed-in privilege. A nil now uses
// time.Now for both the debouncer and the token expiry check.
func NewScanner(v Verifier, session *backend.PrivilegeSession, now func() time.Time) *Scanner {
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		verifier: v,
		session:  session,
		debounce: NewDebouncer(DefaultWindow, now),
		now:      now,
	}
}

// Handle verifies one scanned code. A rejected code is a Result with
// Verified false; errors are reserved for dropped scans and unusable
// credentials.
func (s *Scanner) Handle(ctx context.Context, text string) (*Result, error) {
	if !s.debounce.Begin(text) {
		return nil, ErrDebounced
	}
	defer s.debounce.Done()

	if err := CheckSession(s.session, s.now()); err != nil {
		return nil, err
	}

	res, err := s.verifier.VerifyScan(ctx, s.session, text)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("verify scan", "event_id", s.session.EventID, "error", err)
		return &Result{Code: text, Message: model.UserMessage(err, "Invalid QR Code or already claimed!")}, nil
	}
	if !res.OK() {
		return &Result{Code: text, Message: res.Message}, nil
	}
	return &Result{Code: text, Verified: true, User: res.User, Message: res.Message}, nil
}

// Next clears the last scan, as after the staff member moves on to the
// next attendee.
func (s *Scanner) Next() {
	s.debounce.Reset()
}

// CheckSession rejects a privilege session whose token is unusable or past
// its expiry. The signature is left to the backend.
func CheckSession(session *backend.PrivilegeSession, now time.Time) error {
	if session == nil || session.Token == "" || session.PrivilegeName == "" {
		return ErrMissingCredentials
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(session.Token, &claims); err != nil {
		return fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return ErrSessionExpired
	}
	return nil
}
