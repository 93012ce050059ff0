package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestGetCachesAndRevalidates(t *testing.T) {
	t.Parallel()

	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing auth header: %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := New(srv.Client(), t.TempDir())
	hdr := http.Header{"Authorization": []string{"Bearer tok"}}

	first, err := f.Get(context.Background(), srv.URL+"/schedule", hdr)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if string(first.Body) != "payload" || first.FromCache {
		t.Fatalf("first result = %+v", first)
	}

	second, err := f.Get(context.Background(), srv.URL+"/schedule", hdr)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if string(second.Body) != "payload" || !second.FromCache {
		t.Fatalf("second result = %+v", second)
	}
	if hits.Load() != 2 || notModified.Load() != 1 {
		t.Fatalf("hits=%d notModified=%d", hits.Load(), notModified.Load())
	}
}

func TestGetFallsBackToCacheOnServerError(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("cached"))
	}))
	defer srv.Close()

	f := New(srv.Client(), t.TempDir())
	if _, err := f.Get(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("warm Get: %v", err)
	}
	fail.Store(true)

	res, err := f.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("fallback Get: %v", err)
	}
	if string(res.Body) != "cached" || !res.FromCache {
		t.Fatalf("fallback result = %+v", res)
	}
}

func TestGetWithoutCacheReportsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.Client(), "").Get(context.Background(), srv.URL, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 StatusError", err)
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	if got := RedactURL("https://example.com/private.ics?token=abc"); got != "https://example.com/...(redacted)" {
		t.Fatalf("RedactURL = %q", got)
	}
	if got := RedactURL("not a url"); got != "...(redacted)" {
		t.Fatalf("RedactURL = %q", got)
	}
}
