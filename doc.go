// Package cropauth implements the identity and session subsystem for the
// crop-market web app: username/password accounts, login sessions, signed
// time-limited password-reset tokens, and reconciliation of Google OAuth
// identities into local accounts.
//
// The package is transport-light: AuthGateway exposes an http.Handler that a
// host binary mounts, and every collaborator (user persistence, mail delivery,
// the price predictor, the OAuth provider) is an interface the host wires in.
// See cmd/server for the reference wiring.
package cropauth
