package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/idea-generator/internal/auth"
)

type homePageData struct {
	SignedIn bool
	UserName string
	Error    string
}

// HandleHome renders the landing page. It is the root every signed-out viewer is sent to.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s := m.identity.Session(r)
	m.renderHome(w, http.StatusOK, homePageData{
		SignedIn: s.SignedIn,
		UserName: s.User.Name,
	})
}

// HandleSignIn accepts a session token from the "token" form field, stores it in the session cookie and
// sends the viewer to the product page.
func (m Main) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimSpace(r.FormValue("token"))
	if token == "" {
		m.renderHome(w, http.StatusBadRequest, homePageData{Error: "A session token is required"})
		return
	}

	s := m.identity.SessionFromToken(r.Context(), token)
	if !s.SignedIn {
		m.renderHome(w, http.StatusUnauthorized, homePageData{Error: "That session token is not valid"})
		return
	}

	auth.SetSessionCookie(w, token, m.identity.SessionTTL())
	http.Redirect(w, r, "/product", http.StatusSeeOther)
}

// HandleSignOut clears the session cookie and sends the viewer back to the landing page.
func (m Main) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	auth.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (m Main) renderHome(w http.ResponseWriter, status int, data homePageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
	}
}
