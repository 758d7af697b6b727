package auth

import (
	"net/http/httptest"
	"testing"
)

func TestAllowlist_CheckHeader(t *testing.T) {
	a := New([]string{"key-1", "key-2"})

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set(HeaderName, "key-1")

	cred, ok := a.Check(req)
	if !ok || cred != "key-1" {
		t.Errorf("expected (key-1, true), got (%q, %v)", cred, ok)
	}
}

func TestAllowlist_CheckQueryParam(t *testing.T) {
	a := New([]string{"key-1"})

	req := httptest.NewRequest("GET", "/ws?api_key=key-1", nil)
	cred, ok := a.Check(req)
	if !ok || cred != "key-1" {
		t.Errorf("expected (key-1, true), got (%q, %v)", cred, ok)
	}
}

func TestAllowlist_HeaderTakesPrecedenceOverQuery(t *testing.T) {
	a := New([]string{"key-1", "key-2"})

	req := httptest.NewRequest("GET", "/ws?api_key=key-2", nil)
	req.Header.Set(HeaderName, "key-1")

	cred, ok := a.Check(req)
	if !ok || cred != "key-1" {
		t.Errorf("expected header credential to win, got (%q, %v)", cred, ok)
	}
}

func TestAllowlist_RejectsUnknownOrMissing(t *testing.T) {
	a := New([]string{"key-1"})

	req := httptest.NewRequest("GET", "/ws", nil)
	if _, ok := a.Check(req); ok {
		t.Error("expected missing credential to be rejected")
	}

	req = httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set(HeaderName, "bogus")
	if _, ok := a.Check(req); ok {
		t.Error("expected unknown credential to be rejected")
	}
}
