package lapp

import (
	"testing"
	"time"
)

func TestNewHTTPHostUsesConfiguredTimeout(t *testing.T) {
	h := newHTTPHost("demo", nil, nil, 5000)
	if h.timeout != 5*time.Second {
		t.Fatalf("expected a 5s timeout, got %v", h.timeout)
	}
}

func TestNewHTTPHostDefaultsWhenTimeoutUnset(t *testing.T) {
	h := newHTTPHost("demo", nil, nil, 0)
	if h.timeout != 30*time.Second {
		t.Fatalf("expected the 30s default, got %v", h.timeout)
	}
}
