package gateway

import (
	"errors"
	"testing"

	"mentorstream/internal/domain"
)

func TestStaticTokenAuth(t *testing.T) {
	auth := NewStaticTokenAuth("sekrit")

	if err := auth.Authenticate("sekrit"); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := auth.Authenticate("wrong"); !errors.Is(err, domain.ErrGatewayAuth) {
		t.Errorf("invalid token: err = %v, want ErrGatewayAuth", err)
	}
	if err := auth.Authenticate(""); !errors.Is(err, domain.ErrGatewayAuth) {
		t.Errorf("empty token: err = %v, want ErrGatewayAuth", err)
	}
}

func TestStaticTokenAuth_DisabledWhenEmpty(t *testing.T) {
	auth := NewStaticTokenAuth("")
	if err := auth.Authenticate("anything"); err != nil {
		t.Errorf("auth disabled but rejected: %v", err)
	}
	if err := auth.Authenticate(""); err != nil {
		t.Errorf("auth disabled but rejected empty: %v", err)
	}
}
