package gateway

import (
	"crypto/subtle"

	"mentorstream/internal/domain"
)

// Authenticator validates incoming gateway connections.
type Authenticator interface {
	Authenticate(token string) error
}

// StaticTokenAuth authenticates clients against a single pre-shared token
// using constant-time comparison to prevent timing attacks. An empty
// configured token disables authentication entirely.
type StaticTokenAuth struct {
	token []byte
}

// NewStaticTokenAuth builds an authenticator for the given token.
func NewStaticTokenAuth(token string) *StaticTokenAuth {
	return &StaticTokenAuth{token: []byte(token)}
}

// Authenticate returns nil if the presented token matches.
func (s *StaticTokenAuth) Authenticate(token string) error {
	if len(s.token) == 0 {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), s.token) == 1 {
		return nil
	}
	return domain.ErrGatewayAuth
}
