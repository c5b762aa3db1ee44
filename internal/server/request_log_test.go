package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jacksonlee411/rank-math-api/internal/metrics"
	"github.com/jacksonlee411/rank-math-api/internal/routing"
	"github.com/jacksonlee411/rank-math-api/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestLogging(t *testing.T) {
	a, err := routing.ParseAllowlistYAML([]byte("version: 1\nentrypoints:\n  server:\n    routes:\n      - path: /health\n        methods: [GET]\n        route_class: ops\n"))
	if err != nil {
		t.Fatal(err)
	}
	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}
	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.New(prometheus.NewRegistry())

	h := routing.WithRequestIDs(withRequestLogging(zap.New(core), m, classifier, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context(), nil).Info("inner")
		switch r.URL.Path {
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
			w.WriteHeader(http.StatusOK)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	})))

	for _, path := range []string{"/health", "/wp-json/x", "/boom", "/bad"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(routing.RequestIDHeader, "req-1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	inner := logs.FilterMessage("inner").All()
	if len(inner) != 4 || inner[0].ContextMap()["request_id"] != "req-1" {
		t.Fatalf("inner=%v", inner)
	}
	reqLogs := logs.FilterMessage("request").All()
	if len(reqLogs) != 3 {
		t.Fatalf("ops requests must not be logged: %d", len(reqLogs))
	}
	levels := []zapcore.Level{reqLogs[0].Level, reqLogs[1].Level, reqLogs[2].Level}
	if levels[0] != zapcore.InfoLevel || levels[1] != zapcore.ErrorLevel || levels[2] != zapcore.WarnLevel {
		t.Fatalf("levels=%v", levels)
	}
	if got := reqLogs[2].ContextMap()["status"]; got != int64(http.StatusBadRequest) {
		t.Fatalf("status=%v", got)
	}
}
