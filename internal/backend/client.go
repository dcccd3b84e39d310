// Package backend is the typed client of the remote registration API:
// events, role inventory, organizers, registrations, payments and QR scans.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/AurelionFutureForge/registration-gateway/internal/ctxlog"
	"github.com/AurelionFutureForge/registration-gateway/internal/model"
)

// Client calls the remote API. It is safe for concurrent use.
type Client struct {
	http *resty.Client
}

// Options configures a Client.
type Options struct {
	BaseURL string

	// Timeout bounds every call; zero means 15 seconds.
	Timeout time.Duration
}

// New constructs a Client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	h := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	h.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		ctxlog.FromContext(resp.Request.Context()).Debug("backend call",
			"method", resp.Request.Method,
			"url", resp.Request.URL,
			"status", resp.StatusCode(),
			"duration", resp.Time(),
		)
		return nil
	})
	return &Client{http: h}
}

// apiError is the error envelope the backend sends on failure.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, op, method, path string, build func(*resty.Request)) error {
	var env apiError
	req := c.http.R().SetContext(ctx).SetError(&env)
	if build != nil {
		build(req)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return &model.BackendError{Op: op, Status: resp.StatusCode(), Message: msg}
	}
	return nil
}

// ─── Events & inventory ───────────────────────────────────────────────────────

// GetEvent fetches an event descriptor.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*model.EventDescriptor, error) {
	var ev model.EventDescriptor
	err := c.do(ctx, "get event", resty.MethodGet, "/events/{eventId}", func(r *resty.Request) {
		r.SetPathParam("eventId", eventID).SetResult(&ev)
	})
	if err != nil {
		return nil, err
	}
	if ev.ID == "" {
		ev.ID = eventID
	}
	return &ev, nil
}

// RoleRegistrations fetches confirmed registrations per role.
func (c *Client) RoleRegistrations(ctx context.Context, eventID string) (model.RoleRegistrationCounts, error) {
	counts := model.RoleRegistrationCounts{}
	err := c.do(ctx, "role registrations", resty.MethodGet, "/users/{eventId}/role-registrations", func(r *resty.Request) {
		r.SetPathParam("eventId", eventID).SetResult(&counts)
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// GetAdmin fetches the organizer owning companyName.
func (c *Client) GetAdmin(ctx context.Context, companyName string) (*model.Admin, error) {
	var admin model.Admin
	err := c.do(ctx, "get admin", resty.MethodGet, "/admin/get-admin", func(r *resty.Request) {
		r.SetQueryParam("companyName", NormalizeCompanyName(companyName)).SetResult(&admin)
	})
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// NormalizeCompanyName undoes form-encoding of spaces and collapses runs of
// whitespace, matching how company names are stored.
func NormalizeCompanyName(name string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(name, "+", " ")), " ")
}

// ─── Registration ─────────────────────────────────────────────────────────────

// FormData is the formData payload: the answers, plus the charged amount
// for paid registrations.
type FormData struct {
	Answers model.Answers
	Amount  *float64
}

// MarshalJSON flattens the amount into the answers object.
func (f FormData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Answers)+1)
	for k, v := range f.Answers {
		out[k] = v
	}
	if f.Amount != nil {
		out["amount"] = *f.Amount
	}
	return json.Marshal(out)
}

// CheckEmail reports whether email is already registered for the event.
func (c *Client) CheckEmail(ctx context.Context, email, eventID string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	err := c.do(ctx, "check email", resty.MethodPost, "/users/check-email", func(r *resty.Request) {
		r.SetBody(map[string]string{"email": email, "eventId": eventID}).SetResult(&out)
	})
	if err != nil {
		return false, err
	}
	return out.Exists, nil
}

// FreeRegister registers for a free role and returns the backend's message.
func (c *Client) FreeRegister(ctx context.Context, eventID string, answers model.Answers, idempotencyKey string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, "free register", resty.MethodPost, "/users/freeRegister", func(r *resty.Request) {
		setIdempotencyKey(r, idempotencyKey)
		r.SetBody(map[string]any{"formData": FormData{Answers: answers}, "eventID": eventID}).
			SetResult(&out)
	})
	if err != nil {
		return "", err
	}
	return out.Message, nil
}

// PaymentRequest starts a payment for a paid role.
type PaymentRequest struct {
	Amount  float64 `json:"amount"`
	Email   string  `json:"email"`
	EventID string  `json:"eventId"`
}

// InitiatePayment asks the payment endpoint for the gateway redirect URL.
// An empty URL is returned as is; callers decide how to treat it.
func (c *Client) InitiatePayment(ctx context.Context, p PaymentRequest) (string, error) {
	var out struct {
		RedirectURL string `json:"redirectUrl"`
	}
	err := c.do(ctx, "initiate payment", resty.MethodPost, "/api/phonepe/initiate-payment", func(r *resty.Request) {
		r.SetBody(p).SetResult(&out)
	})
	if err != nil {
		return "", err
	}
	return out.RedirectURL, nil
}

// Register commits a paid registration.
func (c *Client) Register(ctx context.Context, h *model.HandoffState, transactionID string) error {
	amount := h.Amount
	return c.do(ctx, "register", resty.MethodPost, "/users/register", func(r *resty.Request) {
		setIdempotencyKey(r, h.IdempotencyKey)
		r.SetBody(map[string]any{
			"formData":      FormData{Answers: h.Answers, Amount: &amount},
			"eventID":       h.EventID,
			"transactionId": transactionID,
		})
	})
}

// setIdempotencyKey lets the backend deduplicate a repeated commit of the
// same submission.
func setIdempotencyKey(r *resty.Request, key string) {
	if key != "" {
		r.SetHeader("Idempotency-Key", key)
	}
}

// GetRegistrant fetches a stored registration by event and email.
func (c *Client) GetRegistrant(ctx context.Context, eventID, email string) (*model.Registrant, error) {
	var out struct {
		User *model.Registrant `json:"user"`
	}
	err := c.do(ctx, "get registrant", resty.MethodGet, "/users/by-id/{eventId}/{email}", func(r *resty.Request) {
		r.SetPathParams(map[string]string{"eventId": eventID, "email": email}).SetResult(&out)
	})
	if err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, &model.BackendError{Op: "get registrant", Status: 404, Message: "registration not found"}
	}
	return out.User, nil
}
