package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identities/raw-42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{"party_id":"usr_42"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.Resolve(context.Background(), "raw-42")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "usr_42" {
		t.Fatalf("got %q, want usr_42", got)
	}
}

func TestClientResolveErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Resolve(context.Background(), "raw-42"); err == nil {
		t.Fatalf("expected error on 404")
	}
}

func TestPassthroughTrims(t *testing.T) {
	got, err := Passthrough{}.Resolve(context.Background(), "  usr_7 ")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "usr_7" {
		t.Fatalf("got %q, want usr_7", got)
	}
}
