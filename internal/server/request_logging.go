package server

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder keeps the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// withRequestLogging logs status routes by name. Blob lookups carry the
// requested id; a miss logs at info since the id came from an operator.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route, known := routeNames[r.Pattern]
		if !known {
			route = "unmatched"
		}
		if quietRoutes[route] && rec.code() < http.StatusInternalServerError {
			return
		}

		attrs := []any{
			"route", route,
			"status", rec.code(),
			"duration", time.Since(start),
		}
		if route == routeBlob {
			attrs = append(attrs, "blob_id", r.PathValue("id"))
		}
		if !known {
			attrs = append(attrs, "method", r.Method, "path", r.URL.Path)
		}

		s.log().Log(r.Context(), requestLogLevel(route, rec.code()), "status request", attrs...)
	})
}

func requestLogLevel(route string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case route == routeBlob && status == http.StatusNotFound:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
