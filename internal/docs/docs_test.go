package docs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"remedy/internal/logging"
)

func TestLookupSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("type") != "Vec<i32>" || r.URL.Query().Get("member") != "sort_unstable" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"exists": true, "signature": "fn sort_unstable(&mut self)"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, logging.Nop())
	res := c.Lookup(context.Background(), "Vec<i32>", "sort_unstable")

	if !res.Known || !res.Exists {
		t.Errorf("expected known+exists, got %+v", res)
	}
	if res.Signature == "" {
		t.Error("expected signature")
	}
}

func TestLookupDegradesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, logging.Nop())
	if res := c.Lookup(context.Background(), "T", "m"); res.Known {
		t.Errorf("expected unknown on server error, got %+v", res)
	}
}

func TestLookupDegradesOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 10*time.Millisecond, logging.Nop())
	start := time.Now()
	res := c.Lookup(context.Background(), "T", "m")
	if res.Known {
		t.Errorf("expected unknown on timeout, got %+v", res)
	}
	if time.Since(start) > time.Second {
		t.Error("lookup did not respect the bounded timeout")
	}
}

func TestLookupDegradesOnUnreachableService(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", 50*time.Millisecond, logging.Nop())
	if res := c.Lookup(context.Background(), "T", "m"); res.Known {
		t.Error("expected unknown when service is unreachable")
	}
}

func TestUnavailable(t *testing.T) {
	if res := Unavailable.Lookup(context.Background(), "T", "m"); res.Known {
		t.Error("Unavailable must answer unknown")
	}
}
