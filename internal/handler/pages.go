package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/google/uuid"

	"github.com/AurelionFutureForge/registration-gateway/internal/pricing"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"inr": pricing.FormatINR,
}).ParseFS(templateFS, "templates/*.html"))

type errorView struct {
	Status  int
	Message string
}

// SessionCookie identifies one browser's form instance and its payment
// hand-off.
const SessionCookie = "regsession"

func sessionFrom(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// session returns the caller's session id, issuing a new cookie when the
// request carries none.
func (h *RegistrationHandler) session(w http.ResponseWriter, r *http.Request) string {
	if id, ok := sessionFrom(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
