package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// TransferTimeout bounds serving a stored image without buffering the body
// the way http.TimeoutHandler does. total caps the whole response; idle caps
// the gap between two writes, so a client that stops reading is cut off long
// before total.
func TransferTimeout(total time.Duration, idle time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), total)
			defer cancel()

			rc := http.NewResponseController(w)
			_ = rc.SetWriteDeadline(time.Now().Add(total))

			tw := &transferWriter{ResponseWriter: w, idle: idle}
			tw.stall = time.AfterFunc(idle, func() {
				slog.Warn("image transfer stalled",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"idle", idle.String())
				_ = rc.SetWriteDeadline(time.Now())
				cancel()
			})
			defer tw.stall.Stop()

			next.ServeHTTP(tw, r.WithContext(ctx))
		})
	}
}

// transferWriter re-arms the stall timer after every write. Once the timer
// has fired it stays fired.
type transferWriter struct {
	http.ResponseWriter
	idle  time.Duration
	stall *time.Timer
}

func (tw *transferWriter) Write(b []byte) (int, error) {
	n, err := tw.ResponseWriter.Write(b)
	if tw.stall.Stop() {
		tw.stall.Reset(tw.idle)
	}
	return n, err
}

func (tw *transferWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

// Flush keeps http.ServeContent range responses streaming.
func (tw *transferWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
