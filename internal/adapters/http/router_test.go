package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/RoomStatus/internal/adapters/webhook"
	"github.com/dkeye/RoomStatus/internal/app"
	"github.com/dkeye/RoomStatus/internal/config"
	"github.com/dkeye/RoomStatus/internal/core"
	"github.com/dkeye/RoomStatus/internal/domain"
	"github.com/dkeye/RoomStatus/internal/view"
)

const testKey = "test_api_key"

type fakeNotifier struct {
	mu       sync.Mutex
	payloads []string
}

func (f *fakeNotifier) Notify(payload []byte, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, string(payload))
}

func (f *fakeNotifier) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.payloads...)
}

type fixture struct {
	router   *gin.Engine
	app      *app.App
	notifier *fakeNotifier
}

func newFixture(t *testing.T, enc domain.Encoding, templatePath string, failLimit int) *fixture {
	t.Helper()
	cfg := &config.Config{Mode: "test", StaticPath: t.TempDir(), TemplatePath: templatePath, PingPeriod: time.Second}
	renderer, err := view.NewRenderer(templatePath)
	require.NoError(t, err)

	n := &fakeNotifier{}
	a := &app.App{
		Status:   core.NewStatusService(testKey, enc),
		Notifier: n,
		Limiter:  app.NewFailureLimiter(failLimit, time.Minute),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &fixture{router: SetupRouter(ctx, cfg, a, renderer), app: a, notifier: n}
}

func (f *fixture) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) change(body string) *httptest.ResponseRecorder {
	return f.do(http.MethodPost, "/api/changeStatus", body, nil)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestStatusPageDefaultsToClosed(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 0)

	w := f.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "CLOSED")
	assert.Contains(t, w.Body.String(), "background-color: red")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusJSON(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 0)

	w := f.do(http.MethodGet, "/", "", map[string]string{"Accept": "application/json"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"open": false, "title": "Status: Closed", "color": "red", "message": "CLOSED"}, decode(t, w))
}

func TestChangeStatusOpensRoom(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 0)
	body := `{"newStatus": true, "apiKey": "test_api_key"}`

	w := f.change(body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `Room status successfully changed to "open".`, decode(t, w)["message"])

	w = f.do(http.MethodGet, "/", "", map[string]string{"Accept": "application/json"})
	assert.Equal(t, "OPEN", decode(t, w)["message"])
	assert.Equal(t, "green", decode(t, w)["color"])

	assert.Equal(t, []string{body}, f.notifier.calls())
}

func TestChangeStatusIdempotent(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 0)
	for i := 0; i < 2; i++ {
		w := f.change(`{"newStatus": true, "apiKey": "test_api_key"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, domain.Open, f.app.Status.Status())
}

func TestChangeStatusWrongKey(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 0)

	for _, body := range []string{
		`{"newStatus": true, "apiKey": "wrong"}`,
		`{"newStatus": "pending", "apiKey": "wrong"}`,
		`{"newStatus": true}`,
		`{"newStatus": true, "apiKey": 42}`,
		`not json`,
		`{"newStatus": true, "apiKey": "test_api_key"} }}garbage`,
		`{"newStatus": true, "apiKey": "test_api_key"}{"newStatus": false}`,
		``,
	} {
		w := f.change(body)
		require.Equal(t, http.StatusForbidden, w.Code, body)
		assert.Equal(t, "Unauthorized access - invalid API key.", decode(t, w)["error"])
	}
	assert.Equal(t, domain.Closed, f.app.Status.Status())
	assert.Empty(t, f.notifier.calls())
}

func TestChangeStatusInvalidBool(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 0)

	for _, status := range []string{`"open"`, `"pending"`, `123`, `null`} {
		w := f.change(`{"newStatus": ` + status + `, "apiKey": "test_api_key"}`)
		require.Equal(t, http.StatusBadRequest, w.Code, status)
		assert.Equal(t, "Invalid status. Allowed values are true (for open) or false (for close).", decode(t, w)["error"])
	}
	w := f.change(`{"apiKey": "test_api_key"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, domain.Closed, f.app.Status.Status())
	assert.Empty(t, f.notifier.calls())
}

func TestChangeStatusStringEncoding(t *testing.T) {
	f := newFixture(t, domain.EncodingString, "", 0)

	w := f.change(`{"newStatus": "open", "apiKey": "test_api_key"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `Room status successfully changed to "open".`, decode(t, w)["message"])
	assert.Equal(t, domain.Open, f.app.Status.Status())

	w = f.change(`{"newStatus": "close", "apiKey": "test_api_key"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `Room status successfully changed to "close".`, decode(t, w)["message"])

	w = f.do(http.MethodGet, "/", "", map[string]string{"Accept": "application/json"})
	assert.Equal(t, "CLOSED", decode(t, w)["message"])

	for _, status := range []string{`"pending"`, `true`, `123`} {
		w := f.change(`{"newStatus": ` + status + `, "apiKey": "test_api_key"}`)
		require.Equal(t, http.StatusBadRequest, w.Code, status)
		assert.Equal(t, `Invalid status. Allowed values are "open" or "close".`, decode(t, w)["error"])
	}
	assert.Equal(t, domain.Closed, f.app.Status.Status())
}

func TestPreflight(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 0)

	for _, path := range []string{"/", "/api/changeStatus", "/anything/else"} {
		w := f.do(http.MethodOptions, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{}`, w.Body.String())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin, X-Requested-With, Content-Type, Accept, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "PUT, POST, PATCH, DELETE, GET", w.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestMissingTemplateIs500(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, filepath.Join(t.TempDir(), "missing.html"), 0)

	w := f.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error loading the page.", w.Body.String())
}

func TestThrottledClient(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 1)

	w := f.change(`{"newStatus": true, "apiKey": "wrong"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.change(`{"newStatus": true, "apiKey": "test_api_key"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, domain.Closed, f.app.Status.Status())
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 0)

	w := f.do(http.MethodGet, "/", "", map[string]string{"X-Request-ID": "abc"})
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	w = f.do(http.MethodGet, "/", "", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestStatusFeed(t *testing.T) {
	f := newFixture(t, domain.EncodingBool, "", 0)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var p domain.Presentation
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&p))
	assert.Equal(t, domain.Closed.Presentation(), p)

	resp, err := http.Post(srv.URL+"/api/changeStatus", "application/json",
		strings.NewReader(`{"newStatus": true, "apiKey": "test_api_key"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.ReadJSON(&p))
	assert.Equal(t, domain.Open.Presentation(), p)
}

func TestFailingWebhookKeepsSuccess(t *testing.T) {
	var calls atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer hook.Close()

	f := newFixture(t, domain.EncodingBool, "", 0)
	notifier := webhook.New(hook.URL, time.Second)
	f.app.Notifier = notifier

	w := f.change(`{"newStatus": true, "apiKey": "test_api_key"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `Room status successfully changed to "open".`, decode(t, w)["message"])
	assert.Equal(t, domain.Open, f.app.Status.Status())

	require.NoError(t, notifier.Wait(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, domain.Open, f.app.Status.Status())
}

func TestHangingWebhookDoesNotDelayResponse(t *testing.T) {
	release := make(chan struct{})
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer hook.Close()
	defer close(release)

	f := newFixture(t, domain.EncodingBool, "", 0)
	notifier := webhook.New(hook.URL, 2*time.Second)
	f.app.Notifier = notifier

	start := time.Now()
	w := f.change(`{"newStatus": true, "apiKey": "test_api_key"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, domain.Open, f.app.Status.Status())
}
