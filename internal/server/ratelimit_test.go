package server

import (
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRateLimitedEndpointsRejectBursts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	server := newTestServer(t, withRateLimit(1, 2), withServerLogger(zap.New(core)))

	body := map[string]string{"poll_id": "missing", "session_token": "t"}
	for i := 0; i < 2; i++ {
		recorder := server.do(t, http.MethodPost, "/sessions/create", body, nil)
		if recorder.Code != http.StatusNotFound {
			t.Fatalf("request %d: expected 404, got %d", i, recorder.Code)
		}
	}
	expectError(t, server.do(t, http.MethodPost, "/sessions/create", body, nil), http.StatusTooManyRequests, "Too many requests")
	if limited := logs.FilterMessage("request rate limited").Len(); limited != 1 {
		t.Fatalf("expected one rate limit log entry, got %d", limited)
	}

	recorder := server.do(t, http.MethodGet, "/admin/verify", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected verify to be unthrottled, got %d", recorder.Code)
	}
}

func TestClientRateLimiterTracksClientsSeparately(t *testing.T) {
	now := time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)
	limiter := newClientRateLimiter(1, 1, func() time.Time { return now })

	if !limiter.allow("10.0.0.1") {
		t.Fatalf("expected first request to pass")
	}
	if limiter.allow("10.0.0.1") {
		t.Fatalf("expected second request to be limited")
	}
	if !limiter.allow("10.0.0.2") {
		t.Fatalf("expected another client to have its own bucket")
	}

	now = now.Add(time.Second)
	if !limiter.allow("10.0.0.1") {
		t.Fatalf("expected the bucket to refill")
	}

	now = now.Add(rateLimitIdleTTL + time.Second)
	limiter.allow("10.0.0.3")
	if _, tracked := limiter.clients["10.0.0.2"]; tracked {
		t.Fatalf("expected idle clients to be swept")
	}
}
