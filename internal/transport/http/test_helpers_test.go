package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/inaumanmajeed/epicrealm-support/internal/auth"
	"github.com/inaumanmajeed/epicrealm-support/internal/config"
	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/proto"
	"github.com/inaumanmajeed/epicrealm-support/internal/service/support"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
	"github.com/inaumanmajeed/epicrealm-support/internal/store/sqlite"
)

type testEnv struct {
	ts         *httptest.Server
	store      *sqlite.SQLiteStore
	hub        *core.Hub
	jwt        *auth.JWTConfig
	staff      *store.Account
	staffToken string
}

func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.RateLimitPerMinute = 0
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.Nop()
	jwtConfig := &auth.JWTConfig{Secret: []byte(cfg.JWTSecret), TTL: time.Hour}
	resolver := auth.NewResolver(st, jwtConfig, &disabledLogger)
	svc := support.New(st, support.Config{}, &disabledLogger)
	hub := core.NewHub(svc, nil, core.HubConfig{}, &disabledLogger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := NewServer(Deps{Hub: hub, Service: svc, Resolver: resolver}, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	env := &testEnv{ts: ts, store: st, hub: hub, jwt: jwtConfig}
	env.staff = env.createAccount(t, "agent", true)
	env.staffToken = env.token(t, env.staff)
	return env
}

func (e *testEnv) createAccount(t *testing.T, username string, isAdmin bool) *store.Account {
	t.Helper()
	account := &store.Account{Username: username, IsAdmin: isAdmin}
	if err := e.store.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func (e *testEnv) token(t *testing.T, account *store.Account) string {
	t.Helper()
	token, err := auth.GenerateToken(e.jwt, account.ID, account.Username)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (e *testEnv) dial(ctx context.Context, t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	var opts *websocket.DialOptions
	if token != "" {
		opts = &websocket.DialOptions{HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}}}
	}
	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal %s: %v", typ, err)
		}
		raw = payload
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

func readFrame(ctx context.Context, t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if match(f) {
			return f
		}
	}
}

// readEvent skips frames until the named event arrives and decodes its data into v.
func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, event string, v any) {
	t.Helper()
	f := readFrame(ctx, t, conn, func(f frame) bool {
		return f.Type == proto.OutboundTypeEvent && f.Event == event
	})
	if v == nil {
		return
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("unmarshal %s: %v", event, err)
	}
}

func readError(ctx context.Context, t *testing.T, conn *websocket.Conn) *proto.Error {
	t.Helper()
	f := readFrame(ctx, t, conn, func(f frame) bool { return f.Type == proto.OutboundTypeError })
	if f.Error == nil {
		t.Fatalf("error frame without error body")
	}
	return f.Error
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
