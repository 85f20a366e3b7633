package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingOptions mirrors the per-category log toggles from config.
type LoggingOptions struct {
	APIRequests    bool
	RequestHeaders bool
	ResponseDetail bool
	ProcessingTime bool
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// RequestLogger logs each request per the configured toggles. Devices hit
// these endpoints every 30 seconds, so everything here stays cheap and the
// verbose fields are opt-in.
func RequestLogger(opts LoggingOptions, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !opts.APIRequests {
				next.ServeHTTP(w, req)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, req)

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.String("remote", clientIP(req)),
				zap.Int64("content_length", req.ContentLength),
			}
			if opts.RequestHeaders {
				fields = append(fields, zap.String("user_agent", req.UserAgent()))
			}
			if opts.ResponseDetail {
				fields = append(fields,
					zap.Int("status", rec.status),
					zap.Int("response_bytes", rec.bytes),
				)
			}
			if opts.ProcessingTime {
				fields = append(fields, zap.Duration("duration", time.Since(start)))
			}
			logger.Info("request handled", fields...)
		})
	}
}
