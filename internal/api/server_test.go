package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"

	"sales-collector/internal/adapters/messaging"
	"sales-collector/internal/adapters/pairing"
	redisadapter "sales-collector/internal/adapters/redis"
	"sales-collector/internal/config"
	"sales-collector/internal/dispatch"
	"sales-collector/internal/domain"
	"sales-collector/internal/hub"
	"sales-collector/internal/ports"
	"sales-collector/internal/render"
	"sales-collector/internal/service"
	"sales-collector/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type testEnv struct {
	server  *Server
	session *session.Session
	cache   *pairing.FileCache
	redis   *miniredis.Miniredis
}

var testSessionPolicy = config.SessionPolicy{
	ConnectCooldown:  config.Duration(time.Minute),
	ReconnectDelay:   config.Duration(10 * time.Millisecond),
	MaxReconnects:    1,
	ForceConnectWait: config.Duration(500 * time.Millisecond),
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, messaging.NewNetwork(newTestLogger()), testSessionPolicy)
}

func newTestEnvWith(t *testing.T, network ports.ChatNetwork, sessionPolicy config.SessionPolicy) *testEnv {
	t.Helper()
	logger := newTestLogger()

	mr := miniredis.RunT(t)
	client, err := redisadapter.NewClient(config.RedisConfig{
		Addr:         mr.Addr(),
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     2,
	})
	if err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	store := redisadapter.NewRepository(client, logger)

	cache := pairing.NewFileCache(filepath.Join(t.TempDir(), "qrcode.txt"))
	sess := session.New(session.Options{
		Network: network,
		Cache:   cache,
		Policy:  sessionPolicy,
		Logger:  logger,
	})
	t.Cleanup(sess.Close)

	dispatcher := dispatch.New(sess, config.DispatchPolicy{
		MaxAttempts:     2,
		RetryDelay:      config.Duration(10 * time.Millisecond),
		ImageAttempts:   2,
		ImageRetryDelay: config.Duration(5 * time.Millisecond),
		ImageGap:        config.Duration(time.Millisecond),
		SettleDelay:     config.Duration(100 * time.Millisecond),
	}, "62", logger)

	catalog := service.NewCatalog(store, config.DefaultNotificationTemplate, logger)
	submissions := service.NewSubmissionService(store, catalog, render.New(time.UTC, nil), dispatcher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.New(logger)
	go h.Run(ctx)

	srv := New(Options{
		HTTP:        config.HTTPConfig{AllowedOrigins: []string{"*"}},
		Policy:      sessionPolicy,
		Session:     sess,
		Cache:       cache,
		Notifier:    dispatcher,
		Catalog:     catalog,
		Submissions: submissions,
		Store:       store,
		Hub:         h,
		Logger:      logger,
	})

	return &testEnv{server: srv, session: sess, cache: cache, redis: mr}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec, body := env.do(t, http.MethodGet, "/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: got %d, want 200", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("body mismatch: got %v", body)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestStatus_ReportsStoreReachability(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/status", nil)
	if body["redis"] != "online" {
		t.Errorf("redis mismatch: got %v, want online", body["redis"])
	}

	env.redis.Close()
	_, body = env.do(t, http.MethodGet, "/api/status", nil)
	if body["redis"] != "offline" {
		t.Errorf("redis mismatch: got %v, want offline", body["redis"])
	}
	wa, _ := body["whatsapp"].(map[string]any)
	if wa["state"] != string(session.StateIdle) {
		t.Errorf("state mismatch: got %v, want idle", wa["state"])
	}
}

func TestWhatsApp_StatusConnects(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/whatsapp?wait=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: got %d, want 200", rec.Code)
	}
	if body["success"] != true {
		t.Errorf("expected success, got %v", body)
	}

	waitFor(t, "session open", env.session.IsOpen)

	_, body = env.do(t, http.MethodGet, "/api/whatsapp", nil)
	if body["connected"] != true {
		t.Errorf("connected mismatch: got %v", body["connected"])
	}
	if body["message"] != "Connected" {
		t.Errorf("message mismatch: got %v", body["message"])
	}
	if body["qr"] != "" {
		t.Errorf("expected no qr once connected, got %v", body["qr"])
	}
}

func TestWhatsApp_CachedCodeServedDuringCooldown(t *testing.T) {
	env := newTestEnv(t)
	env.session.Connect(context.Background(), false)
	waitFor(t, "session open", func() bool {
		code, _ := env.cache.Load()
		return env.session.IsOpen() && code == ""
	})
	env.session.Close()

	if err := env.cache.Save("2@cached"); err != nil {
		t.Fatal(err)
	}

	_, body := env.do(t, http.MethodGet, "/api/whatsapp", nil)
	if body["qr"] != "2@cached" {
		t.Errorf("qr mismatch: got %v, want 2@cached", body["qr"])
	}
	if body["message"] != "QR code available" {
		t.Errorf("message mismatch: got %v", body["message"])
	}
	img, _ := body["qrImage"].(string)
	if !strings.HasPrefix(img, "data:image/png;base64,") {
		t.Errorf("expected a png data url, got %.40q", img)
	}
	if env.session.State() != session.StateIdle {
		t.Errorf("expected the cooldown to suppress a new attempt, got %s", env.session.State())
	}
}

// expiringNetwork issues a code on every attempt and then times the
// attempt out, like a QR that nobody scans.
type expiringNetwork struct {
	mu      sync.Mutex
	clients int
}

func (n *expiringNetwork) NewClient(ctx context.Context) (ports.ChatClient, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clients++
	return &expiringClient{
		code:   fmt.Sprintf("code-%d", n.clients),
		events: make(chan ports.ClientEvent, 4),
	}, nil
}

func (n *expiringNetwork) Reset(ctx context.Context) error { return nil }

func (n *expiringNetwork) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.clients
}

type expiringClient struct {
	code      string
	events    chan ports.ClientEvent
	closeOnce sync.Once
}

func (c *expiringClient) Connect(ctx context.Context) error {
	c.events <- ports.ClientEvent{Type: ports.EventPairingCode, Code: c.code}
	c.events <- ports.ClientEvent{Type: ports.EventClosed, Err: errors.New("pairing timed out")}
	return nil
}

func (c *expiringClient) Disconnect() {
	c.closeOnce.Do(func() { close(c.events) })
}

func (c *expiringClient) Logout(ctx context.Context) error { return nil }

func (c *expiringClient) SendText(ctx context.Context, to, text string) (string, error) {
	return "", domain.ErrNotConnected
}

func (c *expiringClient) SendImage(ctx context.Context, to string, img ports.Image) (string, error) {
	return "", domain.ErrNotConnected
}

func (c *expiringClient) Events() <-chan ports.ClientEvent { return c.events }

func TestWhatsApp_StatusRestartsAfterReconnectsSpent(t *testing.T) {
	network := &expiringNetwork{}
	policy := testSessionPolicy
	policy.ConnectCooldown = 0
	env := newTestEnvWith(t, network, policy)

	env.do(t, http.MethodGet, "/api/whatsapp", nil)
	waitFor(t, "reconnect budget spent", func() bool {
		code, _ := env.cache.Load()
		return network.count() == 2 && env.session.State() == session.StateClosed && code == ""
	})

	_, body := env.do(t, http.MethodGet, "/api/whatsapp", nil)
	if body["qr"] == "code-2" {
		t.Errorf("expired code served: %v", body)
	}
	waitFor(t, "new attempt", func() bool { return network.count() >= 3 })
}

func TestWhatsApp_Delete(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/whatsapp?wait=true", nil)
	waitFor(t, "session open", env.session.IsOpen)

	rec, body := env.do(t, http.MethodDelete, "/api/whatsapp", nil)
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("delete failed: %d %v", rec.Code, body)
	}
	if env.session.IsOpen() {
		t.Error("expected session closed after delete")
	}

	_, body = env.do(t, http.MethodDelete, "/api/whatsapp", nil)
	if body["success"] != true {
		t.Errorf("expected repeated delete to succeed, got %v", body)
	}
}

func TestWhatsApp_TestSend(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/whatsapp", map[string]string{"to": "08123", "message": "ping"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: got %d, want 200 (%v)", rec.Code, body)
	}
	data, _ := body["data"].(map[string]any)
	if data["destination"] != "628123@s.whatsapp.net" {
		t.Errorf("destination mismatch: got %v", data["destination"])
	}

	rec, body = env.do(t, http.MethodPost, "/api/whatsapp", map[string]string{"to": "08123"})
	if rec.Code != http.StatusBadRequest || body["success"] != false {
		t.Errorf("expected 400 for missing message, got %d %v", rec.Code, body)
	}
}

func TestSubmit(t *testing.T) {
	env := newTestEnv(t)
	sub := map[string]any{
		"sales":      "sales1",
		"namaOutlet": "outlet1",
		"selectedProducts": map[string]any{
			"kopi": map[string]any{"hargaJual": "10000", "jumlah": 2},
		},
	}

	rec, body := env.do(t, http.MethodPost, "/api/sales/submit", sub)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status mismatch without admin number: got %d, want 400", rec.Code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "not configured") {
		t.Errorf("error mismatch: got %q", msg)
	}

	rec, _ = env.do(t, http.MethodPut, "/api/admin/settings", map[string]string{"phoneNumber": "08123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("settings update failed: %d", rec.Code)
	}

	rec, body = env.do(t, http.MethodPost, "/api/sales/submit", sub)
	if rec.Code != http.StatusOK {
		t.Fatalf("status mismatch: got %d, want 200 (%v)", rec.Code, body)
	}
	receipt, _ := body["receipt"].(map[string]any)
	if receipt["destination"] != "628123@s.whatsapp.net" {
		t.Errorf("destination mismatch: got %v", receipt["destination"])
	}

	rec, _ = env.do(t, http.MethodPost, "/api/sales/submit", map[string]any{"sales": "sales1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status mismatch for missing outlet: got %d, want 400", rec.Code)
	}
}

func TestAdmin_ReferenceData(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/admin/sales", map[string]string{"name": "Budi", "password": "pw"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status mismatch: got %d, want 201 (%v)", rec.Code, body)
	}
	rec, _ = env.do(t, http.MethodPost, "/api/admin/sales", map[string]string{"name": "budi", "password": "x"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status mismatch: got %d, want 409", rec.Code)
	}

	_, body = env.do(t, http.MethodGet, "/api/sales", nil)
	names, _ := body["data"].(map[string]any)
	if names["sales1"] != "Budi" {
		t.Errorf("names mismatch: got %v", names)
	}

	_, body = env.do(t, http.MethodGet, "/api/admin/sales", nil)
	if strings.Contains(mustJSON(t, body), "pw") {
		t.Error("admin sales list leaked a password")
	}

	rec, _ = env.do(t, http.MethodPost, "/api/admin/outlets", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name status mismatch: got %d, want 400", rec.Code)
	}
	rec, _ = env.do(t, http.MethodPost, "/api/admin/outlets", map[string]string{"name": "Toko Maju"})
	if rec.Code != http.StatusCreated {
		t.Errorf("outlet status mismatch: got %d, want 201", rec.Code)
	}
	rec, _ = env.do(t, http.MethodPost, "/api/admin/products", map[string]string{"name": "Kopi Susu"})
	if rec.Code != http.StatusCreated {
		t.Errorf("product status mismatch: got %d, want 201", rec.Code)
	}

	_, body = env.do(t, http.MethodGet, "/api/products", nil)
	products, _ := body["data"].([]any)
	if len(products) != 1 {
		t.Fatalf("product count mismatch: got %d, want 1", len(products))
	}
	if p, _ := products[0].(map[string]any); p["id"] != "kopi_susu" {
		t.Errorf("product id mismatch: got %v", p["id"])
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/admin/outlets/outlet9", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing outlet status mismatch: got %d, want 404", rec.Code)
	}
	rec, _ = env.do(t, http.MethodDelete, "/api/admin/products", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("reset status mismatch: got %d, want 200", rec.Code)
	}
	_, body = env.do(t, http.MethodGet, "/api/products", nil)
	if products, _ := body["data"].([]any); len(products) != 0 {
		t.Errorf("expected no products after reset, got %d", len(products))
	}
}

func TestAdmin_Settings(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/admin/settings", nil)
	data, _ := body["data"].(map[string]any)
	if data["notificationTemplate"] != config.DefaultNotificationTemplate {
		t.Error("expected the default template before any update")
	}

	rec, _ := env.do(t, http.MethodPut, "/api/admin/settings", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty update status mismatch: got %d, want 400", rec.Code)
	}
}

func TestSalesLogin(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/admin/sales", map[string]string{"name": "Budi", "password": "pw"})

	rec, _ := env.do(t, http.MethodPost, "/api/sales/login", map[string]string{"salesId": "sales1", "password": "pw"})
	if rec.Code != http.StatusOK {
		t.Errorf("login status mismatch: got %d, want 200", rec.Code)
	}
	rec, body := env.do(t, http.MethodPost, "/api/sales/login", map[string]string{"salesId": "sales1", "password": "nope"})
	if rec.Code != http.StatusUnauthorized || body["success"] != false {
		t.Errorf("expected 401, got %d %v", rec.Code, body)
	}
}

func TestHandleLambda(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.server.HandleLambda(ctx, events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/admin/outlets",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"name":"Toko Lambda"}`,
	})
	if err != nil {
		t.Fatalf("HandleLambda failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status mismatch: got %d, want 201 (%s)", resp.StatusCode, resp.Body)
	}
	if !strings.Contains(resp.Body, "outlet1") {
		t.Errorf("body mismatch: got %s", resp.Body)
	}

	resp, _ = env.server.HandleLambda(ctx, events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodGet,
		Path:                  "/api/whatsapp",
		QueryStringParameters: map[string]string{"wait": "true"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status mismatch: got %d, want 200", resp.StatusCode)
	}

	resp, _ = env.server.HandleLambda(ctx, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/missing"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status mismatch: got %d, want 404", resp.StatusCode)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
