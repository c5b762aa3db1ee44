package routing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	a := Allowlist{
		Version: 1,
		Entrypoints: map[string]Entrypoint{
			"server": {Routes: []Route{{Path: "/health", Methods: []string{"GET"}, RouteClass: "ops"}}},
		},
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRouter_PanicBecomes500JSON(t *testing.T) {
	t.Parallel()

	r := NewRouter(testClassifier(t))
	var hooked any
	r.OnPanic(func(_ *http.Request, rec any, stack []byte) {
		hooked = rec
		if len(stack) == 0 {
			t.Error("expected stack")
		}
	})
	r.Handle(RouteClassPublicAPI, http.MethodPost, "/rank-math-api/v1/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodPost, "/rank-math-api/v1/panic", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("content-type=%q", rec.Header().Get("Content-Type"))
	}
	if hooked != "boom" {
		t.Fatalf("hooked=%v", hooked)
	}
}

func TestRouter_NotFound_RESTShape(t *testing.T) {
	t.Parallel()

	r := NewRouter(testClassifier(t))
	req := httptest.NewRequest(http.MethodPost, "/wp-json/rank-math-api/v1/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Code != "rest_no_route" || body.Data.Status != http.StatusNotFound {
		t.Fatalf("body=%+v", body)
	}
}

func TestRouter_MethodNotAllowed_JSONOnly(t *testing.T) {
	t.Parallel()

	r := NewRouter(testClassifier(t))
	r.Handle(RouteClassPublicAPI, http.MethodPost, "/rank-math-api/v1/update-meta", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/rank-math-api/v1/update-meta", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("content-type=%q", rec.Header().Get("Content-Type"))
	}
}

func TestRouter_MethodNotAllowed_OpsPlainText(t *testing.T) {
	t.Parallel()

	r := NewRouter(testClassifier(t))
	r.Handle(RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("content-type=%q", rec.Header().Get("Content-Type"))
	}
}

func TestRouter_AllowHeaderAndHEAD(t *testing.T) {
	t.Parallel()

	r := NewRouter(testClassifier(t))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle(RouteClassOps, http.MethodGet, "/health", ok)
	r.Handle(RouteClassPublicAPI, http.MethodPost, "/rank-math-api/v1/update-meta", ok)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("head status=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/health", nil))
	if got := rec.Header().Get("Allow"); got != "GET, HEAD" {
		t.Fatalf("allow=%q", got)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/rank-math-api/v1/update-meta", nil))
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "POST" {
		t.Fatalf("status=%d allow=%q", rec.Code, rec.Header().Get("Allow"))
	}
}
