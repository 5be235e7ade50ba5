// Package auth resolves Supabase-issued bearer tokens to active chatrelay
// users. Token issuance, sign-up and OAuth stay with Supabase.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

var (
	// ErrMissingToken means the request carried no bearer token.
	ErrMissingToken = errors.New("missing authorization token")

	// ErrInvalidToken means the token failed verification or has no subject.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrInactive means the token is valid but the profile is missing or
	// deactivated.
	ErrInactive = errors.New("account inactive or not found")

	// ErrForbidden means the user lacks the admin role.
	ErrForbidden = errors.New("admin access required")
)

// User is the authenticated caller.
type User struct {
	ID    string
	Email string
	Role  storage.Role
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == storage.RoleAdmin
}

// Claims is the subset of a Supabase access token chatrelay reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier turns a raw token into verified claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (*Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (*Claims, error) {
	return f(ctx, token)
}

// HMACVerifier verifies HS256 tokens signed with the project's JWT secret.
type HMACVerifier struct {
	secret   []byte
	audience string
	parser   *jwt.Parser
}

// NewHMACVerifier returns a verifier for secret. A non-empty audience is
// enforced ("authenticated" for Supabase user sessions).
func NewHMACVerifier(secret, audience string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &HMACVerifier{
		secret:   []byte(secret),
		audience: audience,
		parser:   jwt.NewParser(opts...),
	}, nil
}

// Verify checks the signature, expiry and audience of token.
func (v *HMACVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return claims, nil
}

// Authenticator verifies a token and loads the caller's profile.
type Authenticator struct {
	verifier Verifier
	profiles storage.ProfileStore
	logger   *slog.Logger
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(verifier Verifier, profiles storage.ProfileStore, log *slog.Logger) *Authenticator {
	if log == nil {
		log = logger.Nop()
	}
	return &Authenticator{verifier: verifier, profiles: profiles, logger: log}
}

// Authenticate resolves token to an active user. It returns ErrMissingToken,
// ErrInvalidToken or ErrInactive for caller errors, and the storage error
// otherwise.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims, err := a.verifier.Verify(ctx, token)
	if err != nil {
		a.logger.Warn("authentication failed", "error", err)
		return nil, err
	}

	profile, err := a.profiles.GetProfile(ctx, claims.Subject)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrInactive
		}
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if !profile.IsActive {
		return nil, ErrInactive
	}

	email := claims.Email
	if email == "" {
		email = profile.Email
	}

	return &User{ID: profile.ID, Email: email, Role: profile.Role}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
