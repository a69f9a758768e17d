package imaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchSendsBrowserHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla/5.0") {
			t.Fatalf("unexpected user-agent: %s", ua)
		}
		if accept := r.Header.Get("Accept"); !strings.Contains(accept, "image/") {
			t.Fatalf("unexpected accept header: %s", accept)
		}
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer ts.Close()

	f := NewFetcher(0)
	data, err := f.Fetch(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Fatalf("unexpected body: %q", data)
	}
}

func TestFetchNon2xxWrapsErrFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	f := NewFetcher(0)
	_, err := f.Fetch(context.Background(), ts.URL)
	if err == nil {
		t.Fatalf("expected error for 403 response")
	}
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("error %v does not wrap ErrFetch", err)
	}
}

func TestFetchConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	f := NewFetcher(time.Second)
	_, err := f.Fetch(context.Background(), ts.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("error %v does not wrap ErrFetch", err)
	}
}
