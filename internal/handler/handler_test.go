package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/AurelionFutureForge/registration-gateway/internal/backend"
	"github.com/AurelionFutureForge/registration-gateway/internal/handoff"
	"github.com/AurelionFutureForge/registration-gateway/internal/service"
)

var testNow = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

// fakeAPI is an in-process stand-in for the remote registration API.
type fakeAPI struct {
	mu         sync.Mutex
	toggleForm any
	exists     bool
	registered []map[string]any
	paidEmails map[string]bool
}

func (f *fakeAPI) routes(t *testing.T) chi.Router {
	r := chi.NewRouter()
	r.Get("/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "evt-1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Event not found"})
			return
		}
		f.mu.Lock()
		toggle := f.toggleForm
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"_id":         "evt-1",
			"eventName":   "Go Meetup",
			"companyName": "Gophers",
			"startDate":   "2026-11-01T10:00:00Z",
			"toggleForm":  toggle,
			"registrationFields": []map[string]any{
				{"fieldName": "NAME", "fieldType": "text", "required": true},
				{"fieldName": "EMAIL", "fieldType": "email", "required": true},
				{"fieldName": "Phone", "fieldType": "number"},
				{"fieldName": "Track", "fieldType": "select", "options": []string{"Web", "Infra"}},
				{"fieldName": "ROLE", "fieldType": "radio", "required": true},
			},
			"eventRoles": []map[string]any{
				{"roleName": "Student", "roleDescription": "Entry, Lunch", "rolePrice": 0, "maxRegistrations": 50},
				{"roleName": "Pro", "rolePrice": 500, "maxRegistrations": 10},
			},
		})
	})
	r.Get("/users/{id}/role-registrations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"Student": 3})
	})
	r.Get("/admin/get-admin", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"companyName": "Gophers", "category": "Tech"})
	})
	r.Post("/users/check-email", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		exists := f.exists || f.paidEmails[body.Email]
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
	})
	r.Post("/users/freeRegister", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Registered successfully!"})
	})
	r.Post("/api/phonepe/initiate-payment", func(w http.ResponseWriter, r *http.Request) {
		var body backend.PaymentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 512.5, body.Amount)
		writeJSON(w, http.StatusOK, map[string]string{"redirectUrl": "https://pay.example.com/checkout/abc"})
	})
	r.Post("/users/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.registered = append(f.registered, body)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	r.Get("/users/by-id/{eventId}/{email}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{
			"registrationData": map[string]any{"NAME": "Asha", "EMAIL": chi.URLParam(r, "email"), "ROLE": "Pro"},
			"role":             "Pro",
			"paymentStatus":    "COMPLETED",
			"qrCode":           "REG-evt-1-asha",
			"transactionId":    "T123",
			"amount":           512.5,
		}})
	})
	return r
}

type testEnv struct {
	api    *fakeAPI
	store  *handoff.MemoryStore
	router http.Handler
}

func newTestEnv(t *testing.T, limit func(http.Handler) http.Handler) *testEnv {
	t.Helper()
	api := &fakeAPI{toggleForm: false, paidEmails: map[string]bool{}}
	srv := httptest.NewServer(api.routes(t))
	t.Cleanup(srv.Close)

	store := handoff.NewMemoryStore()
	clock := func() time.Time { return testNow }
	svc := service.NewRegistrationService(
		backend.New(backend.Options{BaseURL: srv.URL, Timeout: 2 * time.Second}),
		store,
		service.WithClock(clock),
	)
	h := NewRegistrationHandler(svc, Options{HomeURL: "https://example.com/", Now: clock})
	return &testEnv{
		api:    api,
		store:  store,
		router: NewRouter(h, RouterOptions{CORSOrigins: []string{"*"}, SubmitLimit: limit}),
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func postForm(target string, values url.Values, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFormPage(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/register/evt-1", "/Go-Meetup/register/evt-1"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		body := rec.Body.String()
		assert.Contains(t, body, `name="NAME"`)
		assert.Contains(t, body, "Select an option")
		assert.Contains(t, body, "FREE")
		assert.Contains(t, body, "₹500.00")
		assert.Contains(t, body, "₹512.50")
		assert.Contains(t, body, "31D : 1H : 0M : 0S")
		assert.NotNil(t, sessionCookie(t, rec))
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/register/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFormPageClosed(t *testing.T) {
	tests := map[string]any{"toggled on": true, "flag missing": nil}
	for name, toggle := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.api.toggleForm = toggle

			rec := env.do(httptest.NewRequest(http.MethodGet, "/register/evt-1", nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), "Registration Closed")
			assert.NotContains(t, rec.Body.String(), "<form")
		})
	}
}

func TestSubmitFreeRole(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(postForm("/register/evt-1", url.Values{
		"NAME":  {"Asha"},
		"EMAIL": {"asha@example.com"},
		"Phone": {"9845012345"},
		"ROLE":  {"Student"},
	}, nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/free-success/evt-1/asha@example.com", rec.Header().Get("Location"))
	assert.Equal(t, 0, env.store.Len())
}

func TestSubmitRerendersOnError(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(postForm("/register/evt-1", url.Values{
		"NAME":  {"Asha"},
		"EMAIL": {"asha@example.com"},
		"Phone": {"12345"},
		"Track": {"Infra"},
		"ROLE":  {"Pro"},
	}, nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Please enter a valid 10-digit contact number.")
	assert.Contains(t, body, `value="12345"`, "answers are kept")
	assert.Contains(t, body, `<option value="Infra" selected>`)

	env.api.exists = true
	rec = env.do(postForm("/register/evt-1", url.Values{
		"NAME":  {"Asha"},
		"EMAIL": {"asha@example.com"},
		"ROLE":  {"Student"},
	}, nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "You have already registered for this event with this email.")
}

func TestPaidFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	page := env.do(httptest.NewRequest(http.MethodGet, "/register/evt-1", nil))
	cookie := sessionCookie(t, page)

	rec := env.do(postForm("/register/evt-1", url.Values{
		"NAME":  {"Asha"},
		"EMAIL": {"asha@example.com"},
		"ROLE":  {"Pro"},
	}, cookie))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://pay.example.com/checkout/abc", rec.Header().Get("Location"))
	assert.Equal(t, 1, env.store.Len())

	// The backend has not seen the payment yet: go home, keep the hand-off.
	ret := httptest.NewRequest(http.MethodGet, "/payment-success?transactionId=T123", nil)
	ret.AddCookie(cookie)
	rec = env.do(ret)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://example.com/?notice=payment-unconfirmed", rec.Header().Get("Location"))
	assert.Equal(t, 1, env.store.Len())
	assert.Contains(t, followHome(t, env, rec), "Please complete the payment before registration.")

	env.api.paidEmails["asha@example.com"] = true
	ret = httptest.NewRequest(http.MethodGet, "/payment-success?transactionId=T123", nil)
	ret.AddCookie(cookie)
	rec = env.do(ret)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/success/evt-1/asha@example.com", rec.Header().Get("Location"))
	assert.Equal(t, 0, env.store.Len())

	require.Len(t, env.api.registered, 1)
	assert.Equal(t, "T123", env.api.registered[0]["transactionId"])
	formData := env.api.registered[0]["formData"].(map[string]any)
	assert.Equal(t, 512.5, formData["amount"])
	assert.Equal(t, "Pro", formData["ROLE"])
}

func TestPaymentSuccessWithoutState(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/payment-success?transactionId=T1", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://example.com/?notice=missing-data", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/payment-success?transactionId=T1", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "6f1c1a52-8f7e-4d7a-9a55-0f5a1f9b3c11"})
	rec = env.do(req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://example.com/?notice=missing-data", rec.Header().Get("Location"))
	assert.Contains(t, followHome(t, env, rec), "Missing payment or registration data.")
	assert.Empty(t, env.api.registered)
}

func TestPaymentSuccessWithoutTransaction(t *testing.T) {
	env := newTestEnv(t, nil)

	page := env.do(httptest.NewRequest(http.MethodGet, "/register/evt-1", nil))
	cookie := sessionCookie(t, page)
	rec := env.do(postForm("/register/evt-1", url.Values{
		"NAME":  {"Asha"},
		"EMAIL": {"asha@example.com"},
		"ROLE":  {"Pro"},
	}, cookie))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	ret := httptest.NewRequest(http.MethodGet, "/payment-success", nil)
	ret.AddCookie(cookie)
	rec = env.do(ret)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://example.com/?notice=missing-data", rec.Header().Get("Location"))
	assert.Contains(t, followHome(t, env, rec), "Missing payment or registration data.")
	assert.Equal(t, 1, env.store.Len())
}

func TestHomeNotice(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `role="alert"`)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/?notice=bogus", nil))
	assert.NotContains(t, rec.Body.String(), `role="alert"`)
}

// followHome requests the home page a payment return redirected to and
// returns its body.
func followHome(t *testing.T, env *testEnv, rec *httptest.ResponseRecorder) string {
	t.Helper()
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	home := env.do(httptest.NewRequest(http.MethodGet, loc.RequestURI(), nil))
	require.Equal(t, http.StatusOK, home.Code)
	return home.Body.String()
}

func TestConfirmationPage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/success/evt-1/asha@example.com", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Registration Successful")
	assert.Contains(t, body, "data:image/png;base64,")
	assert.Contains(t, body, "T123")
	assert.Contains(t, body, "/success/evt-1/asha@example.com/invoice.pdf")
	assert.Contains(t, body, "Thank you, Asha.")
	assert.Contains(t, body, `href="/Go-Meetup/register/evt-1"`)
}

func TestInvoicePDF(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/success/evt-1/asha@example.com/invoice.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}

func TestFormJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/events/evt-1/form", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got formResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Open)
	assert.Equal(t, "Go Meetup", got.EventName)
	require.Len(t, got.Controls, 4)
	assert.Equal(t, "select", string(got.Controls[3].Kind))
	require.Len(t, got.Roles, 2)
	assert.Equal(t, 47, got.Roles[0].Remaining)
	assert.Equal(t, 512.5, got.Roles[1].Pricing.Total)
}

func TestSubmitJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `{"answers":{"NAME":"Asha","EMAIL":"asha@example.com","ROLE":"Student"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/events/evt-1/submissions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "/free-success/evt-1/asha@example.com")

	req = httptest.NewRequest(http.MethodPost, "/api/events/evt-1/submissions", strings.NewReader(`{"answers":{}}`))
	rec = env.do(req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"error":"Please select a role before proceeding."}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/events/evt-1/submissions", strings.NewReader(`{"bogus":1}`))
	rec = env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRateLimited(t *testing.T) {
	limit := RateLimit(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 1})
	env := newTestEnv(t, limit)

	values := url.Values{"NAME": {"Asha"}, "EMAIL": {"asha@example.com"}, "ROLE": {"Student"}}
	rec := env.do(postForm("/register/evt-1", values, nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = env.do(postForm("/register/evt-1", values, nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/register/evt-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "form pages are not throttled")
}

func TestPathParamDecodesOnce(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/success/{eventID}/{email}", func(_ http.ResponseWriter, req *http.Request) {
		got = pathParam(req, "email")
	})

	tests := map[string]string{
		"/success/evt-1/asha@example.com":       "asha@example.com",
		"/success/evt-1/50%2525off@example.com": "50%25off@example.com",
		"/success/evt-1/a%2Fb@example.com":      "a/b@example.com",
	}
	for target, want := range tests {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, want, got, target)
	}
}
