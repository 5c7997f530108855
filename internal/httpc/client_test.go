package httpc

import (
	"net/http"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	c := NewClient(5 * time.Second)
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}
	if _, ok := c.Transport.(*http.Transport); !ok {
		t.Errorf("Transport = %T, want *http.Transport", c.Transport)
	}
}

func TestNewClient_ZeroTimeoutUsesDefault(t *testing.T) {
	c := NewClient(0)
	if c.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.Timeout, DefaultTimeout)
	}
}

func TestSharedClient(t *testing.T) {
	if Client == nil || Client.Timeout != DefaultTimeout {
		t.Fatalf("shared Client misconfigured: %+v", Client)
	}
}
