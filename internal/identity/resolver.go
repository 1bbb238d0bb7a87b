package identity

import (
	"context"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/internal/domain"
)

// Mode decides how an inbound bearer token becomes an identity. It is
// selected once at process start; a deployment never mixes modes.
type Mode string

const (
	// Trusted verifies tokens against the identity authority's key set.
	Trusted Mode = "trusted"
	// Permissive accepts developer token shapes. Non-production only.
	Permissive Mode = "permissive"
)

// User is the canonical identity derived from a credential. ID is used
// verbatim for every downstream query and cache key of the request.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Resolver turns bearer tokens into identities under a fixed mode.
type Resolver struct {
	mode     Mode
	audience string
	keys     keyfunc.Keyfunc
	logger   *logrus.Logger
}

// New builds a resolver. In trusted mode the JWKS endpoint is fetched and
// kept refreshed; an empty jwksURI leaves the resolver failing closed with
// a ConfigError per request rather than crashing the process.
func New(ctx context.Context, mode Mode, jwksURI, audience string, logger *logrus.Logger) (*Resolver, error) {
	r := &Resolver{mode: mode, audience: audience, logger: logger}
	if mode == Trusted && jwksURI != "" {
		keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURI})
		if err != nil {
			return nil, err
		}
		r.keys = keys
	}
	return r, nil
}

func (r *Resolver) Mode() Mode { return r.mode }

// Resolve derives the canonical identity from a bearer token. The token has
// already been stripped of its "Bearer " prefix.
func (r *Resolver) Resolve(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &domain.AuthError{Code: "missing_token"}
	}
	if r.mode == Permissive {
		return r.resolvePermissive(token)
	}
	return r.resolveTrusted(ctx, token)
}

// resolvePermissive accepts three developer token shapes: the "demo"
// sentinel, "user:<id>", and a bare email whose local part becomes the id.
func (r *Resolver) resolvePermissive(token string) (*User, error) {
	if token == "demo" {
		return &User{ID: "demo", Email: "demo@local", Name: "Demo User"}, nil
	}
	if rest, ok := strings.CutPrefix(token, "user:"); ok && rest != "" {
		return &User{ID: rest, Email: rest + "@local", Name: rest}, nil
	}
	if at := strings.Index(token, "@"); at > 0 {
		local := token[:at]
		return &User{ID: local, Email: token, Name: local}, nil
	}
	return nil, &domain.AuthError{Code: "invalid_token"}
}

func (r *Resolver) resolveTrusted(_ context.Context, token string) (*User, error) {
	if r.keys == nil {
		return nil, &domain.ConfigError{Feature: "jwks"}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if r.audience != "" {
		opts = append(opts, jwt.WithAudience(r.audience))
	}

	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, r.keys.Keyfunc, opts...)
	if err != nil || !tkn.Valid {
		if r.logger != nil {
			r.logger.WithField("err", errString(err)).Warn("auth_failed")
		}
		return nil, &domain.AuthError{Code: "invalid_token"}
	}

	u := &User{}
	if sub, _ := claims["sub"].(string); sub != "" {
		u.ID = sub
	} else if uid, _ := claims["uid"].(string); uid != "" {
		u.ID = uid
	}
	if u.ID == "" {
		return nil, &domain.AuthError{Code: "invalid_token"}
	}
	if email, _ := claims["email"].(string); email != "" {
		u.Email = email
	}
	if name, _ := claims["name"].(string); name != "" {
		u.Name = name
	}
	return u, nil
}

// EffectiveUserID applies the identity substitution rule: a trusted
// deployment always uses the resolved identity; a permissive one honors a
// client-supplied userId only when nothing was resolved from the token.
func EffectiveUserID(mode Mode, resolved, supplied string) string {
	if mode == Trusted {
		return resolved
	}
	if resolved != "" {
		return resolved
	}
	return supplied
}

func errString(err error) string {
	if err == nil {
		return "invalid token"
	}
	return err.Error()
}
