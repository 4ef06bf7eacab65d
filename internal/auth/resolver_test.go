package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inaumanmajeed/epicrealm-support/internal/core"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
	"github.com/inaumanmajeed/epicrealm-support/internal/store/sqlite"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret: []byte("test-secret-change-me"),
		Issuer: "test",
		TTL:    time.Hour,
	}
}

func newTestResolver(t *testing.T) (*Resolver, *store.Account) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	account := &store.Account{Username: "agent", Name: "Agent Smith", IsAdmin: true}
	if err := st.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return NewResolver(st, testJWTConfig(), nil), account
}

func TestResolveValidToken(t *testing.T) {
	r, account := newTestResolver(t)

	token, err := GenerateToken(testJWTConfig(), account.ID, account.Username)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	who, failure := r.Resolve(context.Background(), token, "conn-1")
	if failure != nil {
		t.Fatalf("unexpected failure: %+v", failure)
	}
	if !who.IsStaff() || who.UserName != "agent" || who.Name != "Agent Smith" {
		t.Fatalf("unexpected identity: %+v", who)
	}
	if who.Party != store.UserParty(account.ID) {
		t.Fatalf("unexpected party: %v", who.Party)
	}
}

func TestResolveWithoutToken(t *testing.T) {
	r, _ := newTestResolver(t)

	who, failure := r.Resolve(context.Background(), "", "abcdef123")
	if failure != nil {
		t.Fatalf("anonymous visitors get no auth error, got %+v", failure)
	}
	if !who.IsAnonymous() || who.Party.ID != "anon_abcdef123" {
		t.Fatalf("unexpected identity: %+v", who)
	}
	if who.UserName != "Anonymous_abcdef" || who.Name != core.AnonymousDisplayName {
		t.Fatalf("unexpected names: %q %q", who.UserName, who.Name)
	}
}

func TestResolveExpiredToken(t *testing.T) {
	r, account := newTestResolver(t)

	cfg := testJWTConfig()
	cfg.TTL = -time.Minute
	token, err := GenerateToken(cfg, account.ID, account.Username)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	who, failure := r.Resolve(context.Background(), token, "conn-1")
	if failure == nil || failure.Code != core.AuthCodeTokenExpired || failure.Type != "TokenExpiredError" {
		t.Fatalf("expected expired failure, got %+v", failure)
	}
	if !who.IsAnonymous() {
		t.Fatalf("expected anonymous fallback, got %+v", who)
	}
}

func TestResolveInvalidTokens(t *testing.T) {
	r, _ := newTestResolver(t)

	wrongSecret := testJWTConfig()
	wrongSecret.Secret = []byte("other")
	forged, err := GenerateToken(wrongSecret, 1, "agent")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	missing, err := GenerateToken(testJWTConfig(), 999, "ghost")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	for name, token := range map[string]string{
		"garbage":         "not-a-jwt",
		"wrong secret":    forged,
		"unknown account": missing,
	} {
		who, failure := r.Resolve(context.Background(), token, "conn-1")
		if failure == nil || failure.Code != core.AuthCodeTokenInvalid {
			t.Fatalf("%s: expected invalid failure, got %+v", name, failure)
		}
		if !who.IsAnonymous() {
			t.Fatalf("%s: expected anonymous fallback, got %+v", name, who)
		}
	}
}

type failingAccounts struct{ store.AccountStore }

func (failingAccounts) GetAccountByID(context.Context, int64) (*store.Account, error) {
	return nil, errors.New("database is locked")
}

func TestResolveStoreFailureDegrades(t *testing.T) {
	r := NewResolver(failingAccounts{}, testJWTConfig(), nil)

	token, err := GenerateToken(testJWTConfig(), 1, "agent")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	who, failure := r.Resolve(context.Background(), token, "conn-1")
	if failure != nil {
		t.Fatalf("store failures are not reported as auth errors, got %+v", failure)
	}
	if !who.IsAnonymous() {
		t.Fatalf("expected anonymous fallback, got %+v", who)
	}
}

func TestTokenFromRequestOrder(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie"})
	req.Header.Set("Authorization", "Bearer header")

	if got := TokenFromRequest(req); got != "header" {
		t.Fatalf("expected header token, got %q", got)
	}

	req.Header.Del("Authorization")
	if got := TokenFromRequest(req); got != "query" {
		t.Fatalf("expected query token, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie"})
	if got := TokenFromRequest(req); got != "cookie" {
		t.Fatalf("expected cookie token, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Basic abc")
	if got := TokenFromRequest(req); got != "" {
		t.Fatalf("expected no token, got %q", got)
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("12345"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "password123"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch")
	}
}
