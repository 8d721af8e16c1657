/*
Package auth resolves the caller of a request to an Identity.

PURPOSE:
  Session handling belongs to the identity provider in front of this service.
  What reaches us is a bearer token. Paseto verifies PASETO v2.local tokens
  signed with the shared secret; Static maps fixed tokens for tests and local
  development.

ADMIN:
  Admin rights live on the user document, not in the token. StoreAdmin looks
  the caller up by id, then by email for accounts created before ids were
  issued.

SEE ALSO:
  - api/middleware.go: RequireAuth, RequireAdmin
*/
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/o1egl/paseto"

	"github.com/warp/attendance/attendance"
)

// ErrUnauthenticated is returned for missing, malformed or expired tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the authenticated caller.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Authenticator verifies a bearer token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// AdminChecker reports whether an identity has admin rights.
type AdminChecker interface {
	IsAdmin(ctx context.Context, id Identity) (bool, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: authorization header is required", ErrUnauthenticated)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: authorization header format must be Bearer <token>", ErrUnauthenticated)
	}
	return strings.TrimSpace(token), nil
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}

// =============================================================================
// PASETO
// =============================================================================

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = 24 * time.Hour

// Paseto issues and verifies v2.local tokens.
type Paseto struct {
	v2  *paseto.V2
	key []byte
	ttl time.Duration
	now func() time.Time
}

// DecodeKey decodes a base64 secret (URL, padded URL or standard alphabet)
// and checks it is 32 bytes.
func DecodeKey(secret string) ([]byte, error) {
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		key, err := enc.DecodeString(secret)
		if err != nil {
			lastErr = err
			continue
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("PASETO secret must be exactly 32 bytes after base64 decoding, got %d bytes", len(key))
		}
		return key, nil
	}
	return nil, fmt.Errorf("failed to decode PASETO secret: %w", lastErr)
}

// NewPaseto builds a Paseto from a base64 secret. A zero ttl means DefaultTTL.
func NewPaseto(secret string, ttl time.Duration) (*Paseto, error) {
	key, err := DecodeKey(secret)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Paseto{v2: paseto.NewV2(), key: key, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for id.
func (p *Paseto) Issue(id Identity) (string, error) {
	now := p.now()
	token := paseto.JSONToken{
		Jti:        uuid.NewString(),
		Subject:    id.UserID,
		IssuedAt:   now,
		NotBefore:  now,
		Expiration: now.Add(p.ttl),
	}
	token.Set("email", id.Email)
	return p.v2.Encrypt(p.key, token, "")
}

// Authenticate decrypts and validates a token.
func (p *Paseto) Authenticate(_ context.Context, tok string) (*Identity, error) {
	var token paseto.JSONToken
	var footer string
	if err := p.v2.Decrypt(tok, p.key, &token, &footer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if err := token.Validate(paseto.ValidAt(p.now())); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if token.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return &Identity{UserID: token.Subject, Email: token.Get("email")}, nil
}

// =============================================================================
// STATIC
// =============================================================================

// Static authenticates a fixed set of tokens.
type Static map[string]Identity

func (s Static) Authenticate(_ context.Context, tok string) (*Identity, error) {
	id, ok := s[tok]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", ErrUnauthenticated)
	}
	return &id, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// StoreAdmin reads the admin flag from the user store.
type StoreAdmin struct {
	Users attendance.UserStore
}

func (a StoreAdmin) IsAdmin(ctx context.Context, id Identity) (bool, error) {
	u, err := a.Users.GetUser(ctx, id.UserID)
	if attendance.IsNotFound(err) && id.Email != "" {
		u, err = a.Users.FindUserByEmail(ctx, id.Email)
	}
	if attendance.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}
