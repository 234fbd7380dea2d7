package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doRequest(t *testing.T, h http.HandlerFunc) (*httptest.ResponseRecorder, result) {
	t.Helper()
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var res result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, res
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()

	h := New(Check{Name: "broken", Fn: func(context.Context) error {
		return errors.New("down")
	}})

	rec, res := doRequest(t, h.Healthz)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if res.Status != "ok" {
		t.Errorf("body status = %q, want %q", res.Status, "ok")
	}
}

func TestReadyz_AllPassing(t *testing.T) {
	t.Parallel()

	h := New(
		Check{Name: "audio", Fn: func(context.Context) error { return nil }},
		Check{Name: "backend", Fn: func(context.Context) error { return nil }},
	)

	rec, res := doRequest(t, h.Readyz)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if res.Status != "ok" {
		t.Errorf("body status = %q, want %q", res.Status, "ok")
	}
	if got := res.Checks["audio"]; got != "ok" {
		t.Errorf("audio check = %q, want %q", got, "ok")
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	t.Parallel()

	h := New(
		Check{Name: "good", Fn: func(context.Context) error { return nil }},
		Check{Name: "bad", Fn: func(context.Context) error {
			return errors.New("device gone")
		}},
	)

	rec, res := doRequest(t, h.Readyz)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if res.Status != "fail" {
		t.Errorf("body status = %q, want %q", res.Status, "fail")
	}
	if got := res.Checks["bad"]; got != "fail: device gone" {
		t.Errorf("bad check = %q, want %q", got, "fail: device gone")
	}
	if got := res.Checks["good"]; got != "ok" {
		t.Errorf("good check = %q, want %q", got, "ok")
	}
}

func TestBoolCheck(t *testing.T) {
	t.Parallel()

	running := false
	c := BoolCheck("port", func() bool { return running }, "not started")

	if err := c.Fn(context.Background()); err == nil || err.Error() != "not started" {
		t.Fatalf("err = %v, want not started", err)
	}
	running = true
	if err := c.Fn(context.Background()); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}

func TestRegister_Routes(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	New().Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", http.NewServeMux()) }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v, want nil", err)
	}
}
