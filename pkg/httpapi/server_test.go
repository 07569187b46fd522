package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-message-scheduler/pkg/core"
	"github.com/jdziat/simple-message-scheduler/pkg/dispatch"
	"github.com/jdziat/simple-message-scheduler/pkg/engine"
	"github.com/jdziat/simple-message-scheduler/pkg/events"
	"github.com/jdziat/simple-message-scheduler/pkg/service"
	"github.com/jdziat/simple-message-scheduler/pkg/storage"
	"github.com/jdziat/simple-message-scheduler/pkg/transport/bridge"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopSender struct{}

func (nopSender) SendText(context.Context, string, string) error          { return nil }
func (nopSender) SendVideo(context.Context, string, string, string) error { return nil }
func (nopSender) SendEmail(context.Context, string, string, string, []string) error {
	return nil
}

type stubBridge struct {
	ready bool
	err   error
}

func (b stubBridge) Status(context.Context) (*bridge.Status, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &bridge.Status{Status: "ok", Ready: b.ready}, nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *service.Service) {
	t.Helper()
	db, err := storage.Open(storage.Config{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	store := storage.NewGormStorage(db)
	require.NoError(t, store.Migrate(context.Background()))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.New()
	eng := engine.New(store, dispatch.NewRegistry(), core.Transports{Text: nopSender{}, Video: nopSender{}, Email: nopSender{}}, bus,
		engine.WithLogger(logger))
	svc := service.New(store, eng, bus, service.WithLogger(logger))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
		_ = sqlDB.Close()
	})

	all := append([]Option{WithLogger(logger), WithLocation(time.UTC)}, opts...)
	return New(svc, all...), svc
}

func do(t *testing.T, s *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func future() string {
	return time.Now().UTC().Add(2 * time.Hour).Format(TimeLayout)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w, body := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["armed"])
	assert.NotContains(t, body, "bridge_ready")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestHealth_BridgeReadiness(t *testing.T) {
	s, _ := newTestServer(t, WithBridgeStatus(stubBridge{ready: true}))
	_, body := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, true, body["bridge_ready"])

	s, _ = newTestServer(t, WithBridgeStatus(stubBridge{err: errors.New("down")}))
	_, body = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, false, body["bridge_ready"])
}

func TestScheduleText(t *testing.T) {
	s, svc := newTestServer(t)
	w, body := do(t, s, http.MethodPost, "/schedule/message", map[string]any{
		"recipient":      "123@g.us",
		"content":        "hello",
		"scheduled_time": future(),
	})
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, true, body["success"])
	assert.NotZero(t, body["id"])
	_, err := time.Parse(time.RFC3339, body["scheduled_time"].(string))
	assert.NoError(t, err)
	assert.Equal(t, 1, svc.Armed())
}

func TestScheduleText_BadInput(t *testing.T) {
	s, svc := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad time format", map[string]any{"recipient": "r", "content": "c", "scheduled_time": "tomorrow"}},
		{"missing time", map[string]any{"recipient": "r", "content": "c"}},
		{"past time", map[string]any{"recipient": "r", "content": "c",
			"scheduled_time": time.Now().UTC().Add(-time.Hour).Format(TimeLayout)}},
		{"missing recipient", map[string]any{"content": "c", "scheduled_time": future()}},
		{"empty content", map[string]any{"recipient": "r", "content": " ", "scheduled_time": future()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, s, http.MethodPost, "/schedule/message", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
	assert.Equal(t, 0, svc.Armed())
}

func TestSchedule_InvalidJSON(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/schedule/message", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleVideoAndEmail(t *testing.T) {
	s, _ := newTestServer(t)

	w, body := do(t, s, http.MethodPost, "/schedule/video", map[string]any{
		"recipient":      "123@g.us",
		"media_url":      "https://example.com/clip.mp4",
		"caption":        "look",
		"scheduled_time": future(),
	})
	require.Equal(t, http.StatusOK, w.Code, body)

	w, body = do(t, s, http.MethodPost, "/schedule/email", map[string]any{
		"recipient":      "someone@example.com",
		"subject":        "Report",
		"content":        "see attached",
		"attachments":    []string{"/tmp/report.pdf"},
		"scheduled_time": future(),
	})
	require.Equal(t, http.StatusOK, w.Code, body)

	id := strconv.FormatUint(uint64(body["id"].(float64)), 10)
	w, body = do(t, s, http.MethodGet, "/schedules/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sched := body["schedule"].(map[string]any)
	assert.Equal(t, string(core.KindEmail), sched["type"])
	assert.Equal(t, "Report", sched["subject"])
	assert.Equal(t, []any{"/tmp/report.pdf"}, sched["attachments"])
}

func TestListSchedules_TruncatesContent(t *testing.T) {
	s, _ := newTestServer(t)
	long := string(bytes.Repeat([]byte("x"), 150))
	w, _ := do(t, s, http.MethodPost, "/schedule/message", map[string]any{
		"recipient": "r", "content": long, "scheduled_time": future(),
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := do(t, s, http.MethodGet, "/schedules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["total"])
	list := body["schedules"].([]any)
	require.Len(t, list, 1)
	content := list[0].(map[string]any)["content"].(string)
	assert.Len(t, []rune(content), 103)
	assert.Equal(t, "...", content[len(content)-3:])
}

func TestCancelSchedule(t *testing.T) {
	s, svc := newTestServer(t)
	_, body := do(t, s, http.MethodPost, "/schedule/message", map[string]any{
		"recipient": "r", "content": "c", "scheduled_time": future(),
	})
	id := strconv.FormatUint(uint64(body["id"].(float64)), 10)

	w, body := do(t, s, http.MethodDelete, "/schedules/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 0, svc.Armed())

	w, _ = do(t, s, http.MethodDelete, "/schedules/"+id, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, s, http.MethodGet, "/schedules", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCancelSchedule_Unknown(t *testing.T) {
	s, _ := newTestServer(t)
	w, _ := do(t, s, http.MethodDelete, "/schedules/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, s, http.MethodDelete, "/schedules/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSchedule_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	w, body := do(t, s, http.MethodGet, "/schedules/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, body["error"])
}

func TestStats(t *testing.T) {
	s, _ := newTestServer(t)
	for i := 0; i < 2; i++ {
		w, _ := do(t, s, http.MethodPost, "/schedule/message", map[string]any{
			"recipient": "r", "content": "c", "scheduled_time": future(),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, body := do(t, s, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	counts := body["counts"].(map[string]any)
	assert.EqualValues(t, 2, counts[string(core.StatusPending)])
	assert.EqualValues(t, 2, body["armed"])
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/schedule/message", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagates(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
