package cropauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose salts scope a token to one flow so it cannot be replayed in
// another. The salt participates in key derivation, not just in a claim.
const (
	SaltPasswordReset = "reset-salt"
)

// TokenTTLPasswordReset is how long a reset link stays valid.
const TokenTTLPasswordReset = time.Hour

var (
	// ErrBadSignature is returned for tokens that are malformed, tampered
	// with, or signed under a different purpose salt.
	ErrBadSignature = errors.New("token signature invalid")

	// ErrTokenExpired is returned for correctly signed tokens whose age
	// exceeds the caller's limit.
	ErrTokenExpired = errors.New("token expired")
)

// TokenService issues and verifies tamper-evident, expiring, URL-safe tokens.
// It is stateless: the only state is a process-wide secret established at
// startup and never rotated at runtime. Tokens are signed JWTs (HS256) whose
// signing key is derived per purpose salt, so a token issued for one flow
// fails signature verification in every other flow.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Issue seals payload under the given purpose salt and returns the encoded
// token. The issuance timestamp is embedded and signed; verification applies
// the age limit.
func (s *TokenService) Issue(payload, salt string) (string, error) {
	claims := jwt.MapClaims{
		"sub": payload,
		"iat": jwt.NewNumericDate(s.now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.deriveKey(salt))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes a token issued under the given purpose salt and returns its
// payload. It fails with ErrBadSignature on any decode or signature problem
// (including a salt mismatch) and with ErrTokenExpired when the token is
// authentic but older than maxAge. The signature is always checked before
// the age, so an expired-but-tampered token still reports ErrBadSignature
// and an expired authentic token never does.
func (s *TokenService) Verify(token, salt string, maxAge time.Duration) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.deriveKey(salt), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuedAt(), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return "", ErrBadSignature
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrBadSignature
	}
	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return "", ErrBadSignature
	}
	if s.now().Sub(issuedAt.Time) > maxAge {
		return "", ErrTokenExpired
	}

	payload, err := claims.GetSubject()
	if err != nil {
		return "", ErrBadSignature
	}
	return payload, nil
}

// deriveKey mixes the purpose salt into the signing key. Two services with
// the same secret agree on keys; two salts never share one.
func (s *TokenService) deriveKey(salt string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(salt))
	return mac.Sum(nil)
}
