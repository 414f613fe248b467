package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/livepoll/internal/auth"
	"github.com/MarcoPoloResearchLab/livepoll/internal/database"
	"github.com/MarcoPoloResearchLab/livepoll/internal/polls"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	handler http.Handler
	gateway *auth.AdminGateway
	service *polls.Service
}

type testServerOption func(*Dependencies)

func withRateLimit(requestsPerSecond float64, burst int) testServerOption {
	return func(deps *Dependencies) {
		deps.RateLimit = RateLimitConfig{Enabled: true, RequestsPerSecond: requestsPerSecond, Burst: burst}
	}
}

func withServerLogger(logger *zap.Logger) testServerOption {
	return func(deps *Dependencies) { deps.Logger = logger }
}

func newTestServer(t *testing.T, options ...testServerOption) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "livepoll.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	hasher, err := auth.NewSecretHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to build hasher: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte("router-test-secret")})
	if err != nil {
		t.Fatalf("failed to build token issuer: %v", err)
	}
	gateway, err := auth.NewAdminGateway(auth.AdminGatewayConfig{
		Tokens:                 issuer,
		Hasher:                 hasher,
		AllowDevelopmentSecret: true,
	})
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	service, err := polls.NewService(polls.ServiceConfig{
		Database:   db,
		IDProvider: polls.NewUUIDProvider(),
		Secrets:    gateway,
	})
	if err != nil {
		t.Fatalf("failed to build poll service: %v", err)
	}

	deps := Dependencies{Admin: gateway, Polls: service}
	for _, option := range options {
		option(&deps)
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return testServer{handler: handler, gateway: gateway, service: service}
}

func (s testServer) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch typed := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(typed))
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func (s testServer) adminToken(t *testing.T) string {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/admin/login", map[string]string{"password": "admin"}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var payload loginResponsePayload
	decodeBody(t, recorder, &payload)
	return payload.Token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode body %q: %v", recorder.Body.String(), err)
	}
}

func expectError(t *testing.T, recorder *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, recorder.Code, recorder.Body.String())
	}
	var payload map[string]interface{}
	decodeBody(t, recorder, &payload)
	if payload["error"] != message {
		t.Fatalf("expected error %q, got %v", message, payload["error"])
	}
}
