package middleware

import (
	"net/http"
	"strings"

	"github.com/felixgeelhaar/caffe/protocol"
)

// IdentityField is the context field holding the authenticated identity.
const IdentityField = "identity"

// Identity represents an authenticated identity.
type Identity struct {
	// ID is a unique identifier for the identity (e.g., user ID, API key ID).
	ID string
	// Name is a human-readable name for the identity.
	Name string
	// Metadata contains additional identity information.
	Metadata map[string]any
}

// IdentityFrom returns the authenticated identity stored in c.
// Returns nil if no identity is present.
func IdentityFrom(c *Context) *Identity {
	id, _ := Lookup[*Identity](c, IdentityField)
	return id
}

// AuthOption configures the authentication middleware.
type AuthOption func(*authConfig)

type authConfig struct {
	logger       Logger
	skipMethods  map[string]bool
	realm        string
	errorMessage string
}

// WithAuthLogger sets the logger for auth events.
func WithAuthLogger(l Logger) AuthOption {
	return func(c *authConfig) {
		c.logger = l
	}
}

// WithAuthSkipMethods specifies HTTP methods that don't require authentication.
// By default, OPTIONS is always skipped so CORS preflights pass.
func WithAuthSkipMethods(methods ...string) AuthOption {
	return func(c *authConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// WithAuthRealm sets the realm reported in the WWW-Authenticate header.
func WithAuthRealm(realm string) AuthOption {
	return func(c *authConfig) {
		c.realm = realm
	}
}

// WithAuthErrorMessage sets a custom error message for auth failures.
func WithAuthErrorMessage(msg string) AuthOption {
	return func(c *authConfig) {
		c.errorMessage = msg
	}
}

// Authenticator validates the credentials carried by a request.
// It returns a nil identity when no valid credentials are present and an
// error only when validation itself failed.
type Authenticator func(c *Context) (*Identity, error)

// Auth returns middleware that authenticates requests using the provided authenticator.
// If authentication fails, the chain stops with a 401 error.
func Auth(authenticator Authenticator, opts ...AuthOption) Handler {
	cfg := &authConfig{
		skipMethods: map[string]bool{
			http.MethodOptions: true,
		},
		realm:        "caffe",
		errorMessage: "authentication required",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *Context, next Next) error {
		if c.Request != nil && cfg.skipMethods[c.Request.Method] {
			return next()
		}

		identity, err := authenticator(c)
		if err != nil || identity == nil {
			if cfg.logger != nil {
				fields := []Field{F("request_id", RequestIDFrom(c))}
				if err != nil {
					fields = append(fields, F("error", err.Error()))
				}
				cfg.logger.Warn("authentication failed", fields...)
			}
			c.header().Set("WWW-Authenticate", `Bearer realm="`+cfg.realm+`"`)
			return protocol.NewUnauthorized(cfg.errorMessage)
		}

		if cfg.logger != nil {
			cfg.logger.Debug("authenticated", F("identity", identity.ID))
		}

		if err := c.Set(IdentityField, identity); err != nil {
			return err
		}
		return next()
	}
}

// APIKeyAuthenticator creates an authenticator that validates API keys sent
// in the named header. keyValidator returns the identity for a valid key, or
// nil for an invalid one.
func APIKeyAuthenticator(headerName string, keyValidator func(key string) *Identity) Authenticator {
	return func(c *Context) (*Identity, error) {
		if c.Request == nil {
			return nil, nil
		}
		key := c.Request.Header.Get(headerName)
		if key == "" {
			return nil, nil
		}
		return keyValidator(key), nil
	}
}

// BearerTokenAuthenticator creates an authenticator that validates bearer tokens.
// The tokenValidator function should return the identity for a valid token, or nil for invalid.
func BearerTokenAuthenticator(tokenValidator func(token string) *Identity) Authenticator {
	return func(c *Context) (*Identity, error) {
		if c.Request == nil {
			return nil, nil
		}
		auth := c.Request.Header.Get(protocol.HeaderAuthorization)
		if auth == "" {
			return nil, nil
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return nil, nil
		}

		token := strings.TrimPrefix(auth, prefix)
		if token == "" {
			return nil, nil
		}

		return tokenValidator(token), nil
	}
}

// StaticAPIKeys creates a simple key validator from a map of key -> identity.
func StaticAPIKeys(keys map[string]*Identity) func(string) *Identity {
	return func(key string) *Identity {
		return keys[key]
	}
}

// StaticTokens creates a simple token validator from a map of token -> identity.
func StaticTokens(tokens map[string]*Identity) func(string) *Identity {
	return func(token string) *Identity {
		return tokens[token]
	}
}

// ChainAuthenticators chains multiple authenticators, returning the first successful identity.
func ChainAuthenticators(authenticators ...Authenticator) Authenticator {
	return func(c *Context) (*Identity, error) {
		for _, auth := range authenticators {
			identity, err := auth(c)
			if err != nil {
				return nil, err
			}
			if identity != nil {
				return identity, nil
			}
		}
		return nil, nil
	}
}
