package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-lock/internal/application"
	"smart-lock/internal/domain"
)

type fakeLock struct {
	id     string
	locked bool
	known  bool
}

func (l *fakeLock) UniqueID() string               { return "tuya." + l.id }
func (l *fakeLock) DeviceID() string               { return l.id }
func (l *fakeLock) Name() string                   { return "Lock " + l.id }
func (l *fakeLock) Icon() string                   { return "mdi:lock" }
func (l *fakeLock) IsLocked() (bool, bool)         { return l.locked, l.known }
func (l *fakeLock) Lock(_ context.Context) error   { return nil }
func (l *fakeLock) Unlock(_ context.Context) error { return nil }

type fakeService struct {
	locks    []application.LockEntity
	commands []*domain.Command
	err      error
}

func (f *fakeService) LockEntities() []application.LockEntity { return f.locks }

func (f *fakeService) LockEntity(id string) (application.LockEntity, bool) {
	for _, l := range f.locks {
		if l.UniqueID() == id {
			return l, true
		}
	}
	return nil, false
}

func (f *fakeService) Execute(_ context.Context, cmd *domain.Command) (string, error) {
	f.commands = append(f.commands, cmd)
	if f.err != nil {
		return "", f.err
	}
	if _, ok := f.LockEntity(cmd.TargetID); !ok {
		return "", fmt.Errorf("executing: %w", application.ErrEntityNotFound)
	}
	return fmt.Sprintf("%s done", cmd.Action), nil
}

func newTestServer(token string, rate int) (*Server, *fakeService) {
	service := &fakeService{locks: []application.LockEntity{
		&fakeLock{id: "lock1", locked: true, known: true},
		&fakeLock{id: "lock2"},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(Options{
		Addr:                  ":0",
		AuthToken:             token,
		CommandsPerMinute:     rate,
		AuthFailuresPerMinute: 3,
	}, service, logger), service
}

func do(t *testing.T, h http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	server, _ := newTestServer("secret", 10)

	rec := do(t, server.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok","locks":2}`, rec.Body.String())
}

func TestServer_ListLocks(t *testing.T) {
	server, _ := newTestServer("", 10)

	rec := do(t, server.Handler(), http.MethodGet, "/api/v1/locks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Locks []lockView `json:"locks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Locks, 2)
	assert.Equal(t, "tuya.lock1", body.Locks[0].ID)
	assert.Equal(t, domain.LockStateLocked, body.Locks[0].State)
	assert.Equal(t, domain.LockStateUnknown, body.Locks[1].State)
}

func TestServer_GetLock(t *testing.T) {
	server, _ := newTestServer("", 10)

	rec := do(t, server.Handler(), http.MethodGet, "/api/v1/locks/tuya.lock1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view lockView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "lock1", view.DeviceID)
	assert.Equal(t, "mdi:lock", view.Icon)

	rec = do(t, server.Handler(), http.MethodGet, "/api/v1/locks/tuya.missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Commands(t *testing.T) {
	server, service := newTestServer("", 10)

	rec := do(t, server.Handler(), http.MethodPost, "/api/v1/locks/tuya.lock1/unlock", map[string]string{"X-Request-ID": "req-1"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, server.Handler(), http.MethodPost, "/api/v1/locks/tuya.lock1/lock", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, service.commands, 2)
	assert.Equal(t, domain.ActionUnlock, service.commands[0].Action)
	assert.Equal(t, "tuya.lock1", service.commands[0].TargetID)
	assert.Equal(t, "req-1", service.commands[0].RequestID)
	assert.Equal(t, domain.SourceHTTP, service.commands[0].Source)
	assert.Equal(t, domain.ActionLock, service.commands[1].Action)
	assert.NotEmpty(t, service.commands[1].RequestID)
}

func TestServer_CommandErrors(t *testing.T) {
	server, service := newTestServer("", 10)

	rec := do(t, server.Handler(), http.MethodPost, "/api/v1/locks/tuya.ghost/lock", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	service.err = errors.New("tuya error 1106: permission deny")
	rec = do(t, server.Handler(), http.MethodPost, "/api/v1/locks/tuya.lock1/lock", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "permission deny")
}

func TestServer_Auth(t *testing.T) {
	server, _ := newTestServer("secret", 10)
	h := server.Handler()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/v1/locks", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/v1/locks", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/locks", map[string]string{"Authorization": "Bearer secret"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/locks", map[string]string{"X-Auth-Token": "secret"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/locks?token=secret", nil).Code)
}

func TestServer_RateLimitsCommands(t *testing.T) {
	server, _ := newTestServer("", 2)
	h := server.Handler()

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/locks/tuya.lock1/lock", nil).Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/locks/tuya.lock1/lock", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/api/v1/locks/tuya.lock1/lock", nil).Code)

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/locks", nil).Code)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestServer_AuthFailuresAreLimited(t *testing.T) {
	server, _ := newTestServer("secret", 10)
	h := server.Handler()
	wrong := map[string]string{"Authorization": "Bearer guess"}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/v1/locks", wrong).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/v1/locks", wrong).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/v1/locks", map[string]string{"Authorization": "Bearer secret"}).Code)
}

func TestServer_RateLimitIgnoresForwardedHeaders(t *testing.T) {
	server, _ := newTestServer("", 1)
	h := server.Handler()

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/locks/tuya.lock1/lock",
		map[string]string{"X-Forwarded-For": "203.0.113.1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodPost, "/api/v1/locks/tuya.lock1/lock",
		map[string]string{"X-Forwarded-For": "203.0.113.2"}).Code)
}

func TestRateLimiter_Exhausted(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.False(t, rl.Exhausted("10.0.0.1"))
	rl.Allow("10.0.0.1")
	assert.True(t, rl.Exhausted("10.0.0.1"))

	now = now.Add(2 * time.Minute)
	assert.False(t, rl.Exhausted("10.0.0.1"))

	assert.False(t, NewRateLimiter(0, time.Minute).Exhausted("10.0.0.1"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.1", clientIP(req, false))
	assert.Equal(t, "203.0.113.9", clientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", clientIP(req, true))
	assert.Equal(t, "192.0.2.1", clientIP(req, false))
}
