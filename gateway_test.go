package cropauth_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rpratheek/cropauth"
	"github.com/rpratheek/cropauth/predict"
	"github.com/rpratheek/cropauth/stores"
)

// fakeProvider stands in for Google in gateway tests.
type fakeProvider struct {
	ident cropauth.ExternalIdentity
}

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example/consent?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) FetchIdentity(_ context.Context, code string) (cropauth.ExternalIdentity, error) {
	if code != "good-code" {
		return cropauth.ExternalIdentity{}, errors.New("unknown code")
	}
	return p.ident, nil
}

type testEnv struct {
	t       *testing.T
	server  *httptest.Server
	client  *http.Client
	store   *stores.Memory
	tokens  *cropauth.TokenService
	gateway *cropauth.AuthGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := stores.NewMemory()
	tokens, err := cropauth.NewTokenService("gateway-test-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	gateway := &cropauth.AuthGateway{
		Credentials: cropauth.NewCredentialStore(store),
		Tokens:      tokens,
		Sessions:    cropauth.NewSessionManager(),
		Linker:      cropauth.NewOAuthLinker(store),
		Provider:    &fakeProvider{ident: cropauth.ExternalIdentity{DisplayName: "Carol Danvers", Email: "carol@example.com"}},
		Mailer:      &cropauth.ConsoleMailer{},
		Predictor: &predict.Linear{
			Scale:          [3]float64{1, 1, 1},
			PriceCoef:      [3]float64{1, 1, 1},
			YieldCoef:      [3]float64{0, 0, 1},
			YieldIntercept: 1,
		},
	}

	server := httptest.NewServer(gateway.Handler())
	t.Cleanup(server.Close)
	gateway.BaseURL = server.URL

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{t: t, server: server, client: client, store: store, tokens: tokens, gateway: gateway}
}

func (e *testEnv) get(path string) *http.Response {
	e.t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	if err != nil {
		e.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) postForm(path string, form url.Values) *http.Response {
	e.t.Helper()
	resp, err := e.client.PostForm(e.server.URL+path, form)
	if err != nil {
		e.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) body(resp *http.Response) string {
	e.t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("reading body: %v", err)
	}
	return string(b)
}

func (e *testEnv) wantRedirect(resp *http.Response, location string) {
	e.t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		e.t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if got := resp.Header.Get("Location"); got != location {
		e.t.Fatalf("Location = %q, want %q", got, location)
	}
}

func (e *testEnv) signup(username, password, confirm string) *http.Response {
	return e.postForm("/signup", url.Values{
		"username":         {username},
		"password":         {password},
		"confirm_password": {confirm},
	})
}

func (e *testEnv) login(username, password string) *http.Response {
	return e.postForm("/login", url.Values{
		"username": {username},
		"password": {password},
	})
}

func TestSignupLoginLogoutJourney(t *testing.T) {
	e := newTestEnv(t)

	// Home redirects to login; index is gated while anonymous.
	e.wantRedirect(e.get("/"), "/login")
	e.wantRedirect(e.get("/index"), "/login")

	// Signup succeeds and lands on login, not on an authenticated page.
	e.wantRedirect(e.signup("alice", "pw1", "pw1"), "/login")
	e.wantRedirect(e.get("/index"), "/login")

	// Login sets the session.
	e.wantRedirect(e.login("alice", "pw1"), "/index")
	body := e.body(e.get("/index"))
	if !strings.Contains(body, "Welcome, alice") {
		t.Fatalf("index body = %q, want greeting", body)
	}

	// Logout clears it again.
	e.wantRedirect(e.get("/logout"), "/login")
	e.wantRedirect(e.get("/index"), "/login")
}

func TestLoginInvalidCredentials(t *testing.T) {
	e := newTestEnv(t)
	e.wantRedirect(e.signup("alice", "pw1", "pw1"), "/login")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "wrong"},
		{"unknown user", "mallory", "wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.wantRedirect(e.login(tt.username, tt.password), "/login")

			body := e.body(e.get("/login"))
			if !strings.Contains(body, "Invalid credentials.") {
				t.Errorf("login page missing notice, body = %q", body)
			}
			// No session was set either way.
			e.wantRedirect(e.get("/index"), "/login")
		})
	}
}

func TestSignupValidation(t *testing.T) {
	e := newTestEnv(t)

	e.wantRedirect(e.signup("bob", "pw1", "pw2"), "/signup")
	if body := e.body(e.get("/signup")); !strings.Contains(body, "Passwords do not match.") {
		t.Errorf("signup page missing mismatch notice, body = %q", body)
	}

	e.wantRedirect(e.signup("bob", "pw1", "pw1"), "/login")
	e.wantRedirect(e.signup("bob", "other", "other"), "/signup")
	if body := e.body(e.get("/signup")); !strings.Contains(body, "Username already exists.") {
		t.Errorf("signup page missing duplicate notice, body = %q", body)
	}
}

func TestForgotPassword(t *testing.T) {
	e := newTestEnv(t)
	e.wantRedirect(e.signup("alice", "old-pw", "old-pw"), "/login")

	e.wantRedirect(e.postForm("/forgot-password", url.Values{
		"username": {"alice"},
		"password": {"new-pw"},
	}), "/login")

	e.wantRedirect(e.login("alice", "old-pw"), "/login")
	e.wantRedirect(e.login("alice", "new-pw"), "/index")

	e.wantRedirect(e.postForm("/forgot-password", url.Values{
		"username": {"nobody"},
		"password": {"x"},
	}), "/forgot-password")
	if body := e.body(e.get("/forgot-password")); !strings.Contains(body, "Username not found.") {
		t.Errorf("forgot page missing notice, body = %q", body)
	}
}

func TestResetFlow(t *testing.T) {
	e := newTestEnv(t)
	e.wantRedirect(e.signup("bob", "old-pw", "old-pw"), "/login")

	// bob signed up without an email, so the default one applies.
	token, err := e.tokens.Issue("bob@example.com", cropauth.SaltPasswordReset)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	resp := e.get("/reset/" + token)
	if body := e.body(resp); resp.StatusCode != http.StatusOK || !strings.Contains(body, "Reset Password") {
		t.Fatalf("GET reset form: status %d body %q", resp.StatusCode, body)
	}

	e.wantRedirect(e.postForm("/reset/"+token, url.Values{"password": {"reset-pw"}}), "/login")
	e.wantRedirect(e.login("bob", "reset-pw"), "/index")
}

func TestResetRejectsBadTokens(t *testing.T) {
	e := newTestEnv(t)

	// Garbage token.
	resp := e.get("/reset/garbage")
	if body := e.body(resp); resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "invalid or expired") {
		t.Fatalf("garbage token: status %d body %q", resp.StatusCode, body)
	}

	// A token for a different purpose must not open the reset form.
	token, err := e.tokens.Issue("bob@example.com", "verify-salt")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	resp = e.get("/reset/" + token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("cross-purpose token: status %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	resp.Body.Close()
}

func TestResetRequestIsUniform(t *testing.T) {
	e := newTestEnv(t)
	e.wantRedirect(e.signup("alice", "pw1", "pw1"), "/login")

	for _, email := range []string{"alice@example.com", "stranger@example.com"} {
		e.wantRedirect(e.postForm("/reset-request", url.Values{"email": {email}}), "/login")
		if body := e.body(e.get("/login")); !strings.Contains(body, "If that email exists") {
			t.Errorf("reset-request for %s missing uniform notice, body = %q", email, body)
		}
	}
}

func TestGoogleLoginFlow(t *testing.T) {
	e := newTestEnv(t)

	// Entering the flow redirects to the provider consent URL with a state.
	resp := e.get("/google_login")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("google_login status = %d", resp.StatusCode)
	}
	consent, err := url.Parse(resp.Header.Get("Location"))
	if err != nil || consent.Host != "provider.example" {
		t.Fatalf("consent redirect = %q", resp.Header.Get("Location"))
	}
	state := consent.Query().Get("state")
	if state == "" {
		t.Fatal("no state in consent URL")
	}

	// Provider calls back with the matching state.
	e.wantRedirect(e.get("/google_login/callback?state="+url.QueryEscape(state)+"&code=good-code"), "/index")
	if body := e.body(e.get("/index")); !strings.Contains(body, "Welcome, carol.danvers") {
		t.Fatalf("index after oauth login = %q", body)
	}

	// Exactly one account exists for the external identity.
	if _, err := e.store.Get(context.Background(), "carol.danvers"); err != nil {
		t.Errorf("oauth account missing: %v", err)
	}
}

func TestGoogleLoginDenied(t *testing.T) {
	e := newTestEnv(t)

	// Provider denial restarts the consent flow.
	e.wantRedirect(e.get("/google_login/callback?error=access_denied"), "/google_login")

	// A forged state is treated the same way.
	e.wantRedirect(e.get("/google_login/callback?state=forged&code=good-code"), "/google_login")
	e.wantRedirect(e.get("/index"), "/login")
}

func TestPredictEndpoint(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.client.Post(e.server.URL+"/predict", "application/json",
		strings.NewReader(`{"temperature": 1, "rainfall": 2, "yield": 3}`))
	if err != nil {
		t.Fatalf("POST /predict: %v", err)
	}
	var out struct {
		Price float64 `json:"predicted_price"`
		Yield float64 `json:"predicted_yield"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	resp.Body.Close()
	if out.Price != 6 || out.Yield != 4 {
		t.Errorf("prediction = %+v, want price 6 yield 4", out)
	}

	resp, err = e.client.Post(e.server.URL+"/predict", "application/json", strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("POST /predict: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed input status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
