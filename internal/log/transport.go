package log

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport returns an http.RoundTripper that logs every outbound request
// and its outcome. A nil next uses http.DefaultTransport.
func Transport(logger *Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{logger: logger.WithComponent(ComponentClient), next: next}
}

type loggingTransport struct {
	logger *Logger
	next   http.RoundTripper
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	start := time.Now()

	t.logger.DebugContext(ctx, "HTTP request started",
		NewFields().WithHTTPRequest(r.Method, r.URL.String()).ToSlice()...)

	resp, err := t.next.RoundTrip(r)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		fields := NewFields().
			WithHTTPRequest(r.Method, r.URL.String()).
			WithErrorType(ErrorTypeNetwork).
			WithError(err)
		fields[FieldDuration] = elapsed
		t.logger.WarnContext(ctx, "HTTP request failed", fields.ToSlice()...)
		return nil, err
	}

	level := slog.LevelInfo
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		level = slog.LevelWarn
	} else if resp.StatusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.String()).
		WithHTTPResponse(resp.StatusCode, elapsed, resp.StatusCode < 400).
		WithComponent(t.logger.Component())
	t.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
	return resp, nil
}
