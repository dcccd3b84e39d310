// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/AurelionFutureForge/registration-gateway/internal/ctxlog"
	"github.com/AurelionFutureForge/registration-gateway/internal/form"
	"github.com/AurelionFutureForge/registration-gateway/internal/invoice"
	"github.com/AurelionFutureForge/registration-gateway/internal/model"
	"github.com/AurelionFutureForge/registration-gateway/internal/service"
)

// Options tunes a RegistrationHandler.
type Options struct {
	// HomeURL is where abandoned or invalid payment returns are sent.
	HomeURL string

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool

	Now func() time.Time
}

// RegistrationHandler holds all HTTP handlers of the registration gateway.
type RegistrationHandler struct {
	svc   *service.RegistrationService
	pages *template.Template
	opts  Options
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService, opts Options) *RegistrationHandler {
	if opts.HomeURL == "" {
		opts.HomeURL = "/"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RegistrationHandler{svc: svc, pages: pages, opts: opts}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// render executes a page into a buffer so a template failure still yields
// a clean 500.
func (h *RegistrationHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, page, data); err != nil {
		ctxlog.FromContext(r.Context()).Error("render page", "page", page, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *RegistrationHandler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, "error.html", errorView{Status: status, Message: msg})
}

// loadStatus maps a failed form or registration lookup to a status code.
func loadStatus(err error) int {
	var berr *model.BackendError
	if errors.As(err, &berr) && berr.Status == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

// submitStatus maps a failed submission to a status code.
func submitStatus(err error) int {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrAlreadyRegistered), errors.Is(err, model.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, model.ErrFormClosed):
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

// pathParam returns a decoded chi URL parameter. chi matches against
// RawPath when it is set, so only then is the value still escaped.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// ─── Form ─────────────────────────────────────────────────────────────────────

type formView struct {
	Event     *model.EventDescriptor
	Action    string
	DateRange string
	Countdown string
	Controls  []form.Control
	Roles     []form.RoleOption
	Error     string
}

func (h *RegistrationHandler) formView(fc *service.FormContext, answers model.Answers) formView {
	return formView{
		Event:     fc.Event,
		Action:    "/register/" + url.PathEscape(fc.Event.ID),
		DateRange: form.DateRange(fc.Event),
		Countdown: form.Countdown(h.opts.Now(), fc.Event.StartDate.Time),
		Controls:  form.Render(fc.Fields, answers),
		Roles:     form.RoleOptions(fc.Event, fc.Counts, answers, fc.Category()),
	}
}

// FormPage handles GET /register/{eventID} and GET /{eventName}/register/{eventID}.
// Renders the registration form, or the closed notice.
func (h *RegistrationHandler) FormPage(w http.ResponseWriter, r *http.Request) {
	h.session(w, r)
	eventID := pathParam(r, "eventID")

	fc, err := h.svc.LoadForm(r.Context(), eventID)
	if err != nil {
		ctxlog.FromContext(r.Context()).Warn("load form", "event_id", eventID, "error", err)
		h.renderError(w, r, loadStatus(err), "Error fetching event details.")
		return
	}
	if !form.IsOpen(fc.Event, h.opts.Now()) {
		h.render(w, r, http.StatusOK, "closed.html", h.formView(fc, model.Answers{}))
		return
	}

	h.render(w, r, http.StatusOK, "form.html", h.formView(fc, model.Answers{}))
}

// SubmitForm handles POST /register/{eventID}
// Redirects to the payment page or the confirmation page; on failure the
// form is rendered again with the posted answers.
func (h *RegistrationHandler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	sessionID := h.session(w, r)
	eventID := pathParam(r, "eventID")

	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "Invalid form submission.")
		return
	}
	fc, err := h.svc.LoadForm(r.Context(), eventID)
	if err != nil {
		ctxlog.FromContext(r.Context()).Warn("load form", "event_id", eventID, "error", err)
		h.renderError(w, r, loadStatus(err), "Error fetching event details.")
		return
	}
	answers := form.Collect(fc.Fields, r.PostForm)

	out, err := h.svc.Submit(r.Context(), fc, sessionID, answers)
	if err != nil {
		if errors.Is(err, model.ErrFormClosed) {
			h.render(w, r, http.StatusForbidden, "closed.html", h.formView(fc, answers))
			return
		}
		view := h.formView(fc, answers)
		view.Error = model.UserMessage(err, "Registration failed.")
		h.render(w, r, submitStatus(err), "form.html", view)
		return
	}

	http.Redirect(w, r, out.RedirectURL, http.StatusSeeOther)
}

type formResponse struct {
	EventID     string            `json:"eventId"`
	EventName   string            `json:"eventName"`
	Place       string            `json:"place,omitempty"`
	Time        string            `json:"time,omitempty"`
	CompanyName string            `json:"companyName,omitempty"`
	Poster      string            `json:"companyPoster,omitempty"`
	Description string            `json:"eventDescription,omitempty"`
	DateRange   string            `json:"dateRange,omitempty"`
	Countdown   string            `json:"countdown"`
	Open        bool              `json:"open"`
	Controls    []form.Control    `json:"controls"`
	Roles       []form.RoleOption `json:"roles"`
}

// FormJSON handles GET /api/events/{eventID}/form
// Returns the form as JSON for script clients.
func (h *RegistrationHandler) FormJSON(w http.ResponseWriter, r *http.Request) {
	h.session(w, r)
	eventID := pathParam(r, "eventID")

	fc, err := h.svc.LoadForm(r.Context(), eventID)
	if err != nil {
		writeError(w, loadStatus(err), "failed to load event")
		return
	}
	view := h.formView(fc, model.Answers{})
	writeJSON(w, http.StatusOK, formResponse{
		EventID:     fc.Event.ID,
		EventName:   fc.Event.Name,
		Place:       fc.Event.Place,
		Time:        fc.Event.Time,
		CompanyName: fc.Event.CompanyName,
		Poster:      fc.Event.Poster,
		Description: fc.Event.Description,
		DateRange:   view.DateRange,
		Countdown:   view.Countdown,
		Open:        form.IsOpen(fc.Event, h.opts.Now()),
		Controls:    view.Controls,
		Roles:       view.Roles,
	})
}

type submitRequest struct {
	Answers model.Answers `json:"answers"`
}

type submitResponse struct {
	RedirectURL string  `json:"redirectUrl"`
	Message     string  `json:"message,omitempty"`
	Total       float64 `json:"total,omitempty"`
}

// SubmitJSON handles POST /api/events/{eventID}/submissions
// Same as SubmitForm for script clients.
func (h *RegistrationHandler) SubmitJSON(w http.ResponseWriter, r *http.Request) {
	sessionID := h.session(w, r)
	eventID := pathParam(r, "eventID")

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Answers == nil {
		req.Answers = model.Answers{}
	}
	fc, err := h.svc.LoadForm(r.Context(), eventID)
	if err != nil {
		writeError(w, loadStatus(err), "failed to load event")
		return
	}

	out, err := h.svc.Submit(r.Context(), fc, sessionID, req.Answers)
	if err != nil {
		writeError(w, submitStatus(err), model.UserMessage(err, "Registration failed."))
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{RedirectURL: out.RedirectURL, Message: out.Message, Total: out.Pricing.Total})
}

// ─── Payment return ───────────────────────────────────────────────────────────

// PaymentSuccess handles GET /payment-success?transactionId=
// Commits the paid registration stored for this session. Visits without a
// hand-off, without a transaction id or with an unconfirmed payment go home
// with a notice.
func (h *RegistrationHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())
	sessionID, ok := sessionFrom(r)
	if !ok {
		logger.Info("payment return without session")
		h.homeWithNotice(w, r, noticeMissingData)
		return
	}

	c, err := h.svc.Complete(r.Context(), sessionID, r.URL.Query().Get("transactionId"))
	switch {
	case err == nil:
		http.Redirect(w, r, c.RedirectURL, http.StatusSeeOther)
	case errors.Is(err, model.ErrPaymentUnconfirmed):
		h.homeWithNotice(w, r, noticePaymentUnconfirmed)
	case errors.Is(err, model.ErrNoHandoff), errors.Is(err, model.ErrMissingTransaction):
		h.homeWithNotice(w, r, noticeMissingData)
	default:
		h.renderError(w, r, http.StatusBadGateway, model.UserMessage(err, "Registration failed. Please contact support."))
	}
}

// Notice codes carried to the home page in the notice query parameter.
const (
	noticePaymentUnconfirmed = "payment-unconfirmed"
	noticeMissingData        = "missing-data"
)

var notices = map[string]error{
	noticePaymentUnconfirmed: model.ErrPaymentUnconfirmed,
	noticeMissingData:        model.ErrMissingTransaction,
}

// homeWithNotice redirects to HomeURL with a notice code added to its query.
func (h *RegistrationHandler) homeWithNotice(w http.ResponseWriter, r *http.Request, notice string) {
	target := h.opts.HomeURL
	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		q.Set("notice", notice)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// ─── Confirmation ─────────────────────────────────────────────────────────────

type confirmationView struct {
	Event       *model.EventDescriptor
	Registrant  *model.Registrant
	Name        string
	Answers     []answerRow
	QRCode      template.URL
	Paid        bool
	InvoiceURL  string
	RegisterURL string
}

type answerRow struct {
	Label string
	Value string
}

// Confirmation handles GET /free-success/{eventID}/{email} and GET /success/{eventID}/{email}.
// Shows the stored registration with its QR code.
func (h *RegistrationHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	eventID, email := pathParam(r, "eventID"), pathParam(r, "email")

	c, err := h.svc.Confirmation(r.Context(), eventID, email)
	if err != nil {
		ctxlog.FromContext(r.Context()).Warn("load confirmation", "event_id", eventID, "error", err)
		h.renderError(w, r, loadStatus(err), "Error fetching registration details.")
		return
	}

	view := confirmationView{
		Event:       c.Event,
		Registrant:  c.Registrant,
		Name:        c.Name,
		Paid:        c.Registrant.Amount > 0,
		InvoiceURL:  service.ConfirmationPath("success", eventID, email) + "/invoice.pdf",
		RegisterURL: "/" + url.PathEscape(c.Event.SlugName()) + "/register/" + url.PathEscape(c.Event.ID),
	}
	for _, k := range c.Registrant.RegistrationData.SortedKeys() {
		if k == model.RoleFieldName {
			continue
		}
		view.Answers = append(view.Answers, answerRow{Label: form.Label(k), Value: c.Registrant.RegistrationData[k].String()})
	}
	if c.Registrant.QRCode != "" {
		uri, err := qrDataURI(c.Registrant.QRCode)
		if err != nil {
			ctxlog.FromContext(r.Context()).Warn("encode qr code", "event_id", eventID, "error", err)
		} else {
			view.QRCode = uri
		}
	}
	h.render(w, r, http.StatusOK, "confirmation.html", view)
}

// qrDataURI encodes text as an inline PNG. Values that already are image
// data URIs are passed through.
func qrDataURI(text string) (template.URL, error) {
	if strings.HasPrefix(text, "data:image/") {
		return template.URL(text), nil
	}
	png, err := qrcode.Encode(text, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("qr encode: %w", err)
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}

// InvoicePDF handles GET /success/{eventID}/{email}/invoice.pdf
func (h *RegistrationHandler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	eventID, email := pathParam(r, "eventID"), pathParam(r, "email")

	inv, err := h.svc.Invoice(r.Context(), eventID, email)
	if err != nil {
		ctxlog.FromContext(r.Context()).Warn("load invoice", "event_id", eventID, "error", err)
		h.renderError(w, r, loadStatus(err), "Error fetching registration details.")
		return
	}
	var buf bytes.Buffer
	if err := invoice.Render(&buf, inv); err != nil {
		ctxlog.FromContext(r.Context()).Error("render invoice", "event_id", eventID, "error", err)
		h.renderError(w, r, http.StatusInternalServerError, "Could not generate the invoice.")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invoice-"+eventID+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type homeView struct {
	Error string
}

// Home handles GET /
// Shows the notice of a payment return that could not be completed.
func (h *RegistrationHandler) Home(w http.ResponseWriter, r *http.Request) {
	var view homeView
	if err, ok := notices[r.URL.Query().Get("notice")]; ok {
		view.Error = model.UserMessage(err, "")
	}
	h.render(w, r, http.StatusOK, "home.html", view)
}
