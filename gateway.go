package cropauth

import (
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"math"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rpratheek/cropauth/predict"
)

// AuthGateway orchestrates the credential store, token service, session
// manager and OAuth linker behind the app's HTTP surface. Fields are wired by
// the host; optional collaborators (Provider, Mailer, Predictor) degrade to
// a "not configured" error when left nil.
type AuthGateway struct {
	Credentials *CredentialStore
	Tokens      *TokenService
	Sessions    *SessionManager
	Linker      *OAuthLinker

	// Provider is the external OAuth provider (Google in the reference
	// wiring).
	Provider OAuthProvider

	// Mailer delivers password-reset links.
	Mailer Mailer

	// Predictor is the opaque price/yield model.
	Predictor predict.Service

	// BaseURL is used when rendering absolute links (reset emails).
	BaseURL string

	Logger *slog.Logger
}

// Handler returns the routed HTTP surface, wrapped with session load/save.
func (g *AuthGateway) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", g.handleHome).Methods(http.MethodGet)
	r.HandleFunc("/login", g.handleLogin).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/signup", g.handleSignup).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/forgot-password", g.handleForgotPassword).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/reset-request", g.handleResetRequest).Methods(http.MethodPost)
	r.HandleFunc("/reset/{token}", g.handleReset).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/google_login", g.handleGoogleLogin).Methods(http.MethodGet)
	r.HandleFunc("/google_login/callback", g.handleGoogleCallback).Methods(http.MethodGet)
	r.HandleFunc("/logout", g.handleLogout).Methods(http.MethodGet)
	r.HandleFunc("/index", g.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/predict", g.handlePredict).Methods(http.MethodPost)
	return g.Sessions.Handler(r)
}

func (g *AuthGateway) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

func (g *AuthGateway) handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (g *AuthGateway) handleIndex(w http.ResponseWriter, r *http.Request) {
	username, ok := g.Sessions.Current(r.Context())
	if !ok {
		g.Sessions.Flash(r.Context(), "Please login to continue.")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	g.renderPage(w, r, "Home", fmt.Sprintf(`<h1>Welcome, %s</h1>
<p><a href="/logout">Log out</a></p>`, htmlEscape(username)))
}

func (g *AuthGateway) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := g.Sessions.End(r.Context()); err != nil {
		g.logger().Error("ending session", "error", err)
	}
	g.Sessions.Flash(r.Context(), "Logged out successfully.")
	http.Redirect(w, r, "/login", http.StatusFound)
}

// handlePredict forwards the scaled-feature prediction to the model
// collaborator. It lives outside the auth state machine: any malformed input
// is the caller's problem, any model failure is reported verbatim.
func (g *AuthGateway) handlePredict(w http.ResponseWriter, r *http.Request) {
	if g.Predictor == nil {
		http.Error(w, `{"error": "Prediction not configured"}`, http.StatusInternalServerError)
		return
	}

	var features predict.Features
	if err := json.NewDecoder(r.Body).Decode(&features); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := g.Predictor.Predict(r.Context(), features)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(predict.Prediction{
		Price: math.Round(result.Price*100) / 100,
		Yield: math.Round(result.Yield*100) / 100,
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": msg})
}

// renderPage writes a minimal HTML page with any pending flash notice. The
// real app fronts these routes with its own templates; these inline pages
// keep the gateway usable stand-alone.
func (g *AuthGateway) renderPage(w http.ResponseWriter, r *http.Request, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	notice := ""
	if flash := g.Sessions.PopFlash(r.Context()); flash != "" {
		notice = fmt.Sprintf(`<p class="notice">%s</p>`, htmlEscape(flash))
	}
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
%s%s
</body>
</html>`, htmlEscape(title), notice, body)
}

func htmlEscape(s string) string { return html.EscapeString(s) }
