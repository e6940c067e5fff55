// Package credx encodes and decodes the compact credentials the dashboard
// hands to browsers: the session credential (cookie or bearer token) and the
// OAuth state parameter that rides through the platform redirect.
//
// Both token kinds are HMAC-SHA256 signed (HS256). The payload is readable by
// anyone who base64-decodes it, but a token that was not produced with the
// service key fails decoding the same way a corrupt one does. Expiry and age
// bounds are NOT enforced here; callers own those checks so that an expired
// token can still be inspected.
package credx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedCredential reports a session credential that is corrupt,
	// truncated, missing required fields, or carries a bad signature.
	ErrMalformedCredential = errors.New("credx: malformed credential")

	// ErrMalformedState reports an OAuth state parameter that is corrupt,
	// truncated, missing required fields, or carries a bad signature.
	ErrMalformedState = errors.New("credx: malformed state")

	// ErrKeyRequired is returned by NewCodec when no signing key is supplied.
	ErrKeyRequired = errors.New("credx: signing key is required")
)

// MinKeyBytes is the smallest signing key the codec accepts. Anything shorter
// makes HMAC forgery too cheap to bother protecting against.
const MinKeyBytes = 16

// Credential is the self-contained proof of an authenticated dashboard
// session. TenantID is the company the session is scoped to and never changes
// after issuance.
type Credential struct {
	TenantID    string
	UserID      string
	DisplayName string // optional, empty when unknown
	ExpiresAt   int64  // unix epoch milliseconds
}

// Expired reports whether the credential's validity window has passed at now.
func (c Credential) Expired(now time.Time) bool {
	return now.UnixMilli() >= c.ExpiresAt
}

// State carries tenant context and a CSRF nonce through the external
// authorization redirect. It is never stored server-side while pending; the
// encoded parameter is its only home until the callback returns it.
type State struct {
	Nonce             string
	TenantIDHint      string // optional, caller-supplied hint
	CandidateTenantID string // optional, resolver's best effort
	IssuedAt          int64  // unix epoch milliseconds
}

// Age returns how long ago the state was issued.
func (s State) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(s.IssuedAt))
}

// Codec signs and verifies both token kinds with a single service key.
type Codec struct {
	key []byte
}

// NewCodec builds a codec around the given signing key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) < MinKeyBytes {
		return nil, ErrKeyRequired
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Codec{key: k}, nil
}

// credentialClaims is the wire shape of a session credential. Timestamps are
// kept as explicit millisecond integers rather than the registered exp claim
// so the round trip is exact.
type credentialClaims struct {
	TenantID    string `json:"tid"`
	UserID      string `json:"sub"`
	DisplayName string `json:"name,omitempty"`
	ExpiresAtMS int64  `json:"exp_ms"`
}

func (credentialClaims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (credentialClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (credentialClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (credentialClaims) GetIssuer() (string, error)                   { return "", nil }
func (c credentialClaims) GetSubject() (string, error)                { return c.UserID, nil }
func (credentialClaims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

// stateClaims is the wire shape of an OAuth state parameter.
type stateClaims struct {
	Nonce             string `json:"nonce"`
	TenantIDHint      string `json:"hint,omitempty"`
	CandidateTenantID string `json:"cand,omitempty"`
	IssuedAtMS        int64  `json:"iat_ms"`
}

func (stateClaims) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (stateClaims) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (stateClaims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (stateClaims) GetIssuer() (string, error)                   { return "", nil }
func (stateClaims) GetSubject() (string, error)                  { return "", nil }
func (stateClaims) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }

// EncodeCredential serializes and signs a session credential. Deterministic,
// no side effects.
func (cd *Codec) EncodeCredential(c Credential) (string, error) {
	if c.TenantID == "" || c.UserID == "" {
		return "", ErrMalformedCredential
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, credentialClaims{
		TenantID:    c.TenantID,
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
		ExpiresAtMS: c.ExpiresAt,
	})
	signed, err := token.SignedString(cd.key)
	if err != nil {
		return "", ErrMalformedCredential
	}
	return signed, nil
}

// DecodeCredential verifies and deserializes a session credential. An expired
// credential decodes successfully; only structural and signature problems
// fail. decode(encode(x)) == x for every valid x.
func (cd *Codec) DecodeCredential(raw string) (Credential, error) {
	var claims credentialClaims
	if err := cd.parse(raw, &claims); err != nil {
		return Credential{}, ErrMalformedCredential
	}
	if claims.TenantID == "" || claims.UserID == "" || claims.ExpiresAtMS == 0 {
		return Credential{}, ErrMalformedCredential
	}
	return Credential{
		TenantID:    claims.TenantID,
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
		ExpiresAt:   claims.ExpiresAtMS,
	}, nil
}

// EncodeState serializes and signs an OAuth state parameter. The output is
// URL-safe and survives a query-string round trip unescaped.
func (cd *Codec) EncodeState(s State) (string, error) {
	if s.Nonce == "" || s.IssuedAt == 0 {
		return "", ErrMalformedState
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		Nonce:             s.Nonce,
		TenantIDHint:      s.TenantIDHint,
		CandidateTenantID: s.CandidateTenantID,
		IssuedAtMS:        s.IssuedAt,
	})
	signed, err := token.SignedString(cd.key)
	if err != nil {
		return "", ErrMalformedState
	}
	return signed, nil
}

// DecodeState verifies and deserializes an OAuth state parameter. Age bounds
// are the handshake manager's job; a stale state still decodes here.
func (cd *Codec) DecodeState(raw string) (State, error) {
	var claims stateClaims
	if err := cd.parse(raw, &claims); err != nil {
		return State{}, ErrMalformedState
	}
	if claims.Nonce == "" || claims.IssuedAtMS == 0 {
		return State{}, ErrMalformedState
	}
	return State{
		Nonce:             claims.Nonce,
		TenantIDHint:      claims.TenantIDHint,
		CandidateTenantID: claims.CandidateTenantID,
		IssuedAt:          claims.IssuedAtMS,
	}, nil
}

func (cd *Codec) parse(raw string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return cd.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	return err
}
