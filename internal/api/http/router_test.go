package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/api/dto"
	"github.com/spec-kit/doubt-service/internal/api/http/handlers"
	"github.com/spec-kit/doubt-service/internal/auth"
	"github.com/spec-kit/doubt-service/internal/config"
	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/events"
	"github.com/spec-kit/doubt-service/internal/observability"
	"github.com/spec-kit/doubt-service/internal/realtime"
	"github.com/spec-kit/doubt-service/internal/repository/memstore"
	"github.com/spec-kit/doubt-service/internal/service"
)

type testServer struct {
	app    *fiber.App
	tokens map[domain.Role]string
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	repos := store.Repositories()
	ctx := context.Background()
	users := map[domain.Role]string{
		domain.RoleStudent: "student-1",
		domain.RoleSupport: "support-1",
		domain.RoleAdmin:   "admin-1",
	}
	tm := auth.NewTokenManager("test-secret", "", 5)
	tokens := make(map[domain.Role]string)
	for role, id := range users {
		require.NoError(t, repos.Roles.Assign(ctx, &domain.RoleAssignment{UserID: id, Role: role}))
		token, _, err := tm.GenerateToken(id, id+"@example.com")
		require.NoError(t, err)
		tokens[role] = token
	}

	broker := realtime.NewMemoryBroker(16, nil)
	t.Cleanup(func() { _ = broker.Close() })
	metrics := observability.NewMetrics("doubt_test")
	deps := service.Dependencies{
		Store:      repos,
		Dispatcher: events.NewInMemoryDispatcher(),
		Broker:     broker,
		Metrics:    metrics,
	}
	notifications := service.NewNotificationService(deps, config.NotificationConfig{})
	doubts := service.NewDoubtService(deps, notifications)
	chat := service.NewChatService(deps, doubts, notifications)
	validator := dto.NewValidator()

	app := fiber.New()
	RegisterMiddlewares(app, nil, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("doubt-service", "test", map[string]handlers.Check{"store": repos.Ping}),
		Doubts:         handlers.NewDoubtsHandler(doubts, chat, validator),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		Catalog:        handlers.NewCatalogHandler(service.NewCatalogService(deps), service.NewBadgeService(deps, notifications), validator),
		Streams:        handlers.NewStreamHandler(broker, doubts, time.Second, nil, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tm, repos.Roles),
		Metrics:        metrics,
		Idempotency:    NewMemoryKeyStore(),
		IdempotencyTTL: time.Minute,
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) do(t *testing.T, role domain.Role, method, path string, body any, headers ...string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[role])
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func (s *testServer) createDoubt(t *testing.T) dto.DoubtSummary {
	t.Helper()
	status, env := s.do(t, domain.RoleStudent, http.MethodPost, "/doubts", dto.CreateDoubtRequest{
		Title:       "Closures",
		Description: "loop variable capture",
	})
	require.Equal(t, http.StatusCreated, status)
	var d dto.DoubtSummary
	require.NoError(t, json.Unmarshal(env.Data, &d))
	return d
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, "", http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, "", http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestDoubtLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	d := s.createDoubt(t)
	assert.Equal(t, domain.DoubtStatusSubmitted, d.Status)
	assert.Equal(t, "Submitted", d.StatusLabel)

	status, env := s.do(t, domain.RoleStudent, http.MethodPost, "/doubts/"+d.ID+"/close", nil)
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "GUARD_VIOLATION", env.Error.Code)
	assert.Equal(t, "invalid_status", env.Error.Details["reason_code"])

	status, env = s.do(t, domain.RoleStudent, http.MethodPost, "/doubts/"+d.ID+"/start", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = s.do(t, domain.RoleSupport, http.MethodPost, "/doubts/"+d.ID+"/start", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, domain.RoleSupport, http.MethodPost, "/doubts/"+d.ID+"/resolve", nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.do(t, domain.RoleStudent, http.MethodGet, "/doubts/"+d.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var detail dto.DoubtDetailResponse
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, []string{"confirm_close"}, detail.AllowedActions)

	status, env = s.do(t, domain.RoleStudent, http.MethodPost, "/doubts/"+d.ID+"/close", nil)
	require.Equal(t, http.StatusOK, status)
	var closed dto.DoubtSummary
	require.NoError(t, json.Unmarshal(env.Data, &closed))
	assert.Equal(t, domain.DoubtStatusClosed, closed.Status)

	status, env = s.do(t, domain.RoleStudent, http.MethodGet, "/notifications/unread-count", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"unread":2}`, string(env.Data))
}

func TestChatOverHTTP(t *testing.T) {
	s := newTestServer(t)
	d := s.createDoubt(t)

	status, _ := s.do(t, domain.RoleSupport, http.MethodPost, "/doubts/"+d.ID+"/responses", dto.CreateResponseRequest{Text: "hello"})
	require.Equal(t, http.StatusCreated, status)

	status, env := s.do(t, domain.RoleStudent, http.MethodGet, "/doubts/"+d.ID+"/responses", nil)
	require.Equal(t, http.StatusOK, status)
	var thread []dto.ResponseResponse
	require.NoError(t, json.Unmarshal(env.Data, &thread))
	require.Len(t, thread, 1)
	assert.Equal(t, domain.RoleSupport, thread[0].ResponderRole)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, domain.RoleStudent, http.MethodPost, "/doubts", dto.CreateDoubtRequest{Description: "no title"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Equal(t, "title", env.Error.Details["field"])

	status, env = s.do(t, domain.RoleSupport, http.MethodGet, "/doubts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	status, _ = s.do(t, "", http.MethodGet, "/doubts", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(t, domain.RoleSupport, http.MethodPost, "/doubts", dto.CreateDoubtRequest{Title: "a", Description: "b"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestIdempotencyKeyRejectsRepeat(t *testing.T) {
	s := newTestServer(t)
	d := s.createDoubt(t)

	status, _ := s.do(t, domain.RoleSupport, http.MethodPost, "/doubts/"+d.ID+"/start", nil, IdempotencyHeader, "key-1")
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(t, domain.RoleSupport, http.MethodPost, "/doubts/"+d.ID+"/start", nil, IdempotencyHeader, "key-1")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DUPLICATE_SUBMISSION", env.Error.Code)

	// A failed request frees its key.
	status, _ = s.do(t, domain.RoleSupport, http.MethodPost, "/doubts/"+d.ID+"/start", nil, IdempotencyHeader, "key-2")
	assert.Equal(t, http.StatusConflict, status)
	status, env = s.do(t, domain.RoleSupport, http.MethodPost, "/doubts/"+d.ID+"/start", nil, IdempotencyHeader, "key-2")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "GUARD_VIOLATION", env.Error.Code)
}

func TestMemoryKeyStoreExpires(t *testing.T) {
	store := NewMemoryKeyStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = store.Reserve(ctx, "k", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = store.Reserve(ctx, "k", time.Minute)
	assert.True(t, ok)
}
