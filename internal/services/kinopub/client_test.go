package kinopub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// validStore returns a store whose access token outlives the expiry buffer
func validStore() *memStore {
	return &memStore{token: &Token{
		AccessToken:       "valid-acc",
		RefreshToken:      "valid-ref",
		AccessTokenExpire: time.Now().Add(24 * time.Hour).UnixMilli(),
	}}
}

func newTestClient(store TokenStore, apiURL, oauthURL string) *Client {
	session := newTestSession(store, oauthURL)
	c := NewClient(session, testLogger())
	c.baseURL = apiURL
	c.retryDelay = time.Millisecond
	return c
}

func TestDoRetriesServerErrors(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(validStore(), srv.URL, "http://unused")

	err := c.get(context.Background(), "/items", nil, nil)
	var serverErr *ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serverErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", serverErr.StatusCode)
	}
	if requests != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", requests)
	}
}

func TestDoRecoversFromRateLimit(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"status":200,"items":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(validStore(), srv.URL, "http://unused")

	var result envelope
	if err := c.get(context.Background(), "/items", nil, &result); err != nil {
		t.Fatalf("expected recovery after rate limiting, got %v", err)
	}
	if requests != 3 {
		t.Errorf("expected 3 attempts, got %d", requests)
	}
}

func TestDoClientErrorNoRetry(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"status":404,"error":"not found"}`)
	}))
	defer srv.Close()

	c := newTestClient(validStore(), srv.URL, "http://unused")

	err := c.get(context.Background(), "/items/999", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if requests != 1 {
		t.Errorf("client errors must not retry, got %d attempts", requests)
	}
}

func TestDoRejectsMalformedBody(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	c := newTestClient(validStore(), srv.URL, "http://unused")

	err := c.get(context.Background(), "/items", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError for non-JSON body, got %v", err)
	}
	if requests != 1 {
		t.Errorf("malformed bodies must not retry, got %d attempts", requests)
	}
}

func TestDoRefreshesOnUnauthorized(t *testing.T) {
	var apiRequests, refreshes int

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		fmt.Fprint(w, `{"access_token":"fresh-acc","refresh_token":"fresh-ref","expires_in":3600}`)
	})
	mux.HandleFunc("/v1/items", func(w http.ResponseWriter, r *http.Request) {
		apiRequests++
		if r.URL.Query().Get("access_token") != "fresh-acc" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"status":401}`)
			return
		}
		fmt.Fprint(w, `{"status":200,"items":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(validStore(), srv.URL+"/v1", srv.URL+"/oauth")

	var result envelope
	if err := c.get(context.Background(), "/items", nil, &result); err != nil {
		t.Fatalf("expected success after token refresh, got %v", err)
	}
	if refreshes != 1 {
		t.Errorf("expected 1 refresh, got %d", refreshes)
	}
	if apiRequests != 2 {
		t.Errorf("expected 2 API requests, got %d", apiRequests)
	}
}

func TestDoUnauthorizedAfterRefresh(t *testing.T) {
	var apiRequests int

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"fresh-acc","refresh_token":"fresh-ref","expires_in":3600}`)
	})
	mux.HandleFunc("/v1/items", func(w http.ResponseWriter, r *http.Request) {
		apiRequests++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":401}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(validStore(), srv.URL+"/v1", srv.URL+"/oauth")

	err := c.get(context.Background(), "/items", nil, nil)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if apiRequests != 2 {
		t.Errorf("expected exactly 2 API requests, got %d", apiRequests)
	}
}

func TestDoSendsFormParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("bad form: %v", err)
		}
		if r.PostForm.Get("title") != "movies-ai" {
			t.Errorf("form title = %q", r.PostForm.Get("title"))
		}
		if r.URL.Query().Get("access_token") != "valid-acc" {
			t.Errorf("missing access token in query")
		}
		fmt.Fprint(w, `{"status":200}`)
	}))
	defer srv.Close()

	c := newTestClient(validStore(), srv.URL, "http://unused")

	params := url.Values{"title": {"movies-ai"}}
	if err := c.postForm(context.Background(), "/bookmarks/create", params, nil); err != nil {
		t.Fatalf("postForm failed: %v", err)
	}
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{delay: time.Second}
	if d := b.NextBackOff(); d != time.Second {
		t.Errorf("first delay = %v, want 1s", d)
	}
	if d := b.NextBackOff(); d != 2*time.Second {
		t.Errorf("second delay = %v, want 2s", d)
	}
	b.Reset()
	if d := b.NextBackOff(); d != time.Second {
		t.Errorf("delay after reset = %v, want 1s", d)
	}
}
