package cropauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const oauthStateCookie = "oauthstate"

func (g *AuthGateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		g.renderPage(w, r, "Login", `<h1>Login</h1>
<form method="POST" action="/login">
	<label>Username: <input type="text" name="username" required></label>
	<label>Password: <input type="password" name="password" required></label>
	<button type="submit">Login</button>
</form>
<p><a href="/signup">Sign up</a> | <a href="/forgot-password">Forgot password</a> | <a href="/google_login">Login with Google</a></p>`)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := g.Credentials.Verify(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			g.Sessions.Flash(r.Context(), "Invalid credentials.")
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		g.logger().Error("verifying credentials", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := g.Sessions.Start(r.Context(), user.Username); err != nil {
		g.logger().Error("starting session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	g.logger().Info("login", "username", user.Username)
	g.Sessions.Flash(r.Context(), "Login successful.")
	http.Redirect(w, r, "/index", http.StatusFound)
}

func (g *AuthGateway) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		g.renderPage(w, r, "Sign Up", `<h1>Sign Up</h1>
<form method="POST" action="/signup">
	<label>Username: <input type="text" name="username" required></label>
	<label>Email: <input type="email" name="email"></label>
	<label>Password: <input type="password" name="password" required></label>
	<label>Confirm Password: <input type="password" name="confirm_password" required></label>
	<button type="submit">Create account</button>
</form>`)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")
	email := r.FormValue("email")
	if email == "" {
		email = fmt.Sprintf("%s@example.com", username)
	}

	if password != confirm {
		g.Sessions.Flash(r.Context(), "Passwords do not match.")
		http.Redirect(w, r, "/signup", http.StatusFound)
		return
	}

	err := g.Credentials.Create(r.Context(), username, password, email)
	switch {
	case err == nil:
		// Signup does not auto-login; the new account authenticates through
		// the normal login flow.
		g.logger().Info("signup", "username", username)
		g.Sessions.Flash(r.Context(), "Account created successfully.")
		http.Redirect(w, r, "/login", http.StatusFound)
	case errors.Is(err, ErrUserExists):
		g.Sessions.Flash(r.Context(), "Username already exists.")
		http.Redirect(w, r, "/signup", http.StatusFound)
	default:
		g.logger().Error("creating user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleForgotPassword updates a password directly by username. Demo-grade:
// there is no token step on this path; the token-verified path is /reset.
func (g *AuthGateway) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		g.renderPage(w, r, "Forgot Password", `<h1>Forgot Password</h1>
<form method="POST" action="/forgot-password">
	<label>Username: <input type="text" name="username" required></label>
	<label>New Password: <input type="password" name="password" required></label>
	<button type="submit">Update password</button>
</form>
<form method="POST" action="/reset-request">
	<label>Or email me a reset link: <input type="email" name="email" required></label>
	<button type="submit">Send link</button>
</form>`)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	err := g.Credentials.UpdatePassword(r.Context(), r.FormValue("username"), r.FormValue("password"))
	switch {
	case err == nil:
		g.Sessions.Flash(r.Context(), "Password updated successfully.")
		http.Redirect(w, r, "/login", http.StatusFound)
	case errors.Is(err, ErrUserNotFound):
		g.Sessions.Flash(r.Context(), "Username not found.")
		http.Redirect(w, r, "/forgot-password", http.StatusFound)
	default:
		g.logger().Error("updating password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleResetRequest issues a reset token for an email address and mails the
// link. The response never reveals whether the address exists.
func (g *AuthGateway) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	email := r.FormValue("email")
	if email == "" {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}

	if _, err := g.Credentials.FindByEmail(r.Context(), email); err == nil {
		token, err := g.Tokens.Issue(email, SaltPasswordReset)
		if err != nil {
			g.logger().Error("issuing reset token", "error", err)
		} else if g.Mailer != nil {
			link := fmt.Sprintf("%s/reset/%s", g.BaseURL, token)
			if err := g.Mailer.SendPasswordResetEmail(email, link); err != nil {
				g.logger().Error("sending reset email", "error", err)
			}
		}
	} else if !errors.Is(err, ErrUserNotFound) {
		g.logger().Error("looking up email for reset", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	g.Sessions.Flash(r.Context(), "If that email exists, a reset link has been sent.")
	http.Redirect(w, r, "/login", http.StatusFound)
}

// handleReset serves the token-verified password reset. The token is checked
// on both GET and POST; a bad signature or an expired stamp is terminal for
// that token and surfaces as a plain failure page, since there is no safe
// form to redirect back to.
func (g *AuthGateway) handleReset(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	email, err := g.Tokens.Verify(token, SaltPasswordReset, TokenTTLPasswordReset)
	if err != nil {
		http.Error(w, "The reset link is invalid or expired.", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodGet {
		g.renderPage(w, r, "Reset Password", fmt.Sprintf(`<h1>Reset Password</h1>
<form method="POST" action="/reset/%s">
	<label>New Password: <input type="password" name="password" required></label>
	<button type="submit">Reset password</button>
</form>`, htmlEscape(token)))
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	err = g.Credentials.UpdatePassword(r.Context(), email, r.FormValue("password"))
	switch {
	case err == nil:
		g.Sessions.Flash(r.Context(), "Password reset successful.")
		http.Redirect(w, r, "/login", http.StatusFound)
	case errors.Is(err, ErrUserNotFound):
		g.Sessions.Flash(r.Context(), "No account matches that reset link.")
		http.Redirect(w, r, "/reset/"+token, http.StatusFound)
	default:
		g.logger().Error("resetting password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleGoogleLogin starts the provider consent flow with a fresh state
// nonce carried in a short-lived cookie.
func (g *AuthGateway) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if g.Provider == nil {
		http.Error(w, "OAuth login not configured", http.StatusInternalServerError)
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		MaxAge:   600,
		HttpOnly: true,
	})
	http.Redirect(w, r, g.Provider.AuthCodeURL(state), http.StatusFound)
}

// handleGoogleCallback completes the provider flow. Any denial (provider
// error, state mismatch, failed exchange) sends the user back into the
// consent flow.
func (g *AuthGateway) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if g.Provider == nil {
		http.Error(w, "OAuth login not configured", http.StatusInternalServerError)
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		g.logger().Warn("oauth denied", "error", fmt.Errorf("%s: %w", errParam, ErrOAuthDenied))
		http.Redirect(w, r, "/google_login", http.StatusFound)
		return
	}

	stateCookie, _ := r.Cookie(oauthStateCookie)
	if stateCookie == nil || r.URL.Query().Get("state") != stateCookie.Value {
		g.logger().Warn("oauth state mismatch")
		http.Redirect(w, r, "/google_login", http.StatusFound)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	ident, err := g.Provider.FetchIdentity(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		g.logger().Warn("oauth identity fetch failed", "error", err)
		http.Redirect(w, r, "/google_login", http.StatusFound)
		return
	}

	user, err := g.Linker.CompleteLogin(r.Context(), ident)
	if err != nil {
		if errors.Is(err, ErrOAuthDenied) {
			http.Redirect(w, r, "/google_login", http.StatusFound)
			return
		}
		g.logger().Error("linking oauth identity", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := g.Sessions.Start(r.Context(), user.Username); err != nil {
		g.logger().Error("starting session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	g.logger().Info("oauth login", "username", user.Username)
	g.Sessions.Flash(r.Context(), "Google login successful.")
	http.Redirect(w, r, "/index", http.StatusFound)
}
