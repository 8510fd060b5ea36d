package game

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"coinsweeper-farmer/internal/gameapi"
	"coinsweeper-farmer/internal/infra/config"
)

type stubCreds struct {
	refreshCalls int
}

func (s *stubCreds) UserID() string { return "123" }

func (s *stubCreds) RefreshNow(context.Context) error {
	s.refreshCalls++
	return nil
}

func newTestEngine(t *testing.T, handler http.Handler) (*Engine, *stubCreds) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api := gameapi.New(gameapi.Options{UserAgent: "test", BaseURL: srv.URL})
	creds := &stubCreds{}
	e := NewEngine(api, creds, config.Range{Min: 30, Max: 90}, zap.NewNop())
	e.sleep = func(context.Context, time.Duration) {}
	return e, creds
}

func TestStartRoundUnauthorizedTriggersRefresh(t *testing.T) {
	t.Parallel()

	e, creds := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	round, err := e.StartRound(context.Background())
	if err != nil {
		t.Fatalf("StartRound: %v", err)
	}
	if round != nil {
		t.Fatalf("401 must not produce a round, got %#v", round)
	}
	if creds.refreshCalls != 1 {
		t.Fatalf("refresh calls = %d, want 1", creds.refreshCalls)
	}
}

func TestResolveWinReportsSignedScore(t *testing.T) {
	t.Parallel()

	createdAt := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339Nano)

	e, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/games/win":
			w.WriteHeader(http.StatusCreated)
		case "/users/me":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":123,"score":400.5}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	won, err := e.ResolveWin(context.Background(), &gameapi.Round{
		ID:        "game-1",
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("ResolveWin: %v", err)
	}
	if !won {
		t.Fatal("201 must count as a win")
	}
}

func TestResolveWinUnauthorizedReturnsFalse(t *testing.T) {
	t.Parallel()

	createdAt := time.Now().UTC().Format(time.RFC3339Nano)

	e, creds := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	won, err := e.ResolveWin(context.Background(), &gameapi.Round{ID: "g", CreatedAt: createdAt})
	if err != nil {
		t.Fatalf("ResolveWin: %v", err)
	}
	if won {
		t.Fatal("401 must not count as a win")
	}
	if creds.refreshCalls != 1 {
		t.Fatalf("refresh calls = %d, want 1", creds.refreshCalls)
	}
}

func TestResolveWinRejectionIsNotAnError(t *testing.T) {
	t.Parallel()

	createdAt := time.Now().UTC().Format(time.RFC3339Nano)

	e, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	won, err := e.ResolveWin(context.Background(), &gameapi.Round{ID: "g", CreatedAt: createdAt})
	if err != nil || won {
		t.Fatalf("rejected win must be (false, nil), got (%v, %v)", won, err)
	}
}

func TestResolveLossReportsRewardsAsIs(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/games/lose":
			w.WriteHeader(http.StatusCreated)
		case "/users/me":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":123,"score":10}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	err := e.ResolveLoss(context.Background(), &gameapi.Round{ID: "g"})
	if err != nil {
		t.Fatalf("ResolveLoss: %v", err)
	}
}
