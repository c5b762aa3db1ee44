package server

import (
	"net/http"
	"time"

	"github.com/jacksonlee411/rank-math-api/internal/metrics"
	"github.com/jacksonlee411/rank-math-api/internal/routing"
	"github.com/jacksonlee411/rank-math-api/pkg/logger"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// withRequestLogging attaches a request-scoped logger and records one log
// line and one metrics sample per request. It must run inside
// routing.WithRequestIDs.
func withRequestLogging(base *zap.Logger, m *metrics.Metrics, classifier *routing.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rc := classifier.Classify(r.URL.Path)

		l := base.With(zap.String("method", r.Method), zap.String("path", r.URL.Path))
		if id, ok := routing.RequestIDFromContext(r.Context()); ok {
			l = l.With(zap.String("request_id", id))
		}
		r = r.WithContext(logger.WithContext(r.Context(), l))

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		elapsed := time.Since(start)
		if m != nil {
			m.ObserveRequest(string(rc), r.Method, rec.status, elapsed)
		}
		if rc == routing.RouteClassOps {
			return
		}
		fields := []zap.Field{zap.Int("status", rec.status), zap.Duration("duration", elapsed), zap.String("route_class", string(rc))}
		switch {
		case rec.status >= http.StatusInternalServerError:
			l.Error("request", fields...)
		case rec.status >= http.StatusBadRequest:
			l.Warn("request", fields...)
		default:
			l.Info("request", fields...)
		}
	})
}
