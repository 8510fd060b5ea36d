package runner

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"coinsweeper-farmer/internal/domain/credentials"
	"coinsweeper-farmer/internal/gameapi"
	"coinsweeper-farmer/internal/infra/config"
	"coinsweeper-farmer/internal/infra/telegram/gateway"
)

type credsStub struct {
	ensureTokenErr error
	webAppErr      error
	refreshNowErr  error
	loggedIn       bool

	loginCalls int
}

func (c *credsStub) EnsureAccessToken(context.Context) error { return c.ensureTokenErr }
func (c *credsStub) EnsureWebAppAuth(context.Context) error  { return c.webAppErr }
func (c *credsStub) Login(context.Context)                   { c.loginCalls++ }
func (c *credsStub) RefreshNow(context.Context) error        { return c.refreshNowErr }
func (c *credsStub) LoggedIn() bool                          { return c.loggedIn }

type engineStub struct {
	round    *gameapi.Round
	startErr error

	startCalls int
	winCalls   int
	lossCalls  int
}

func (e *engineStub) StartRound(context.Context) (*gameapi.Round, error) {
	e.startCalls++
	return e.round, e.startErr
}

func (e *engineStub) ResolveLoss(context.Context, *gameapi.Round) error {
	e.lossCalls++
	return nil
}

func (e *engineStub) ResolveWin(context.Context, *gameapi.Round) (bool, error) {
	e.winCalls++
	return true, nil
}

type profileStub struct {
	err   error
	calls int
}

func (p *profileStub) Me(context.Context) (*gameapi.Profile, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &gameapi.Profile{ID: "123", Score: 1}, nil
}

func newTestRunner(creds *credsStub, engine *engineStub, api *profileStub) *Runner {
	r := New("acc1", creds, engine, api, Options{
		ChanceToWin: 100,
		Rounds:      config.Range{Min: 3, Max: 3},
	}, zap.NewNop())
	r.sleep = func(context.Context, time.Duration) {}
	return r
}

func TestCycleStopsOnRefreshExhausted(t *testing.T) {
	t.Parallel()

	creds := &credsStub{ensureTokenErr: credentials.ErrRefreshExhausted}
	r := newTestRunner(creds, &engineStub{}, &profileStub{})

	if err := r.cycle(context.Background()); !errors.Is(err, credentials.ErrRefreshExhausted) {
		t.Fatalf("want ErrRefreshExhausted, got %v", err)
	}
}

func TestCycleStopsOnFatalGatewayError(t *testing.T) {
	t.Parallel()

	creds := &credsStub{webAppErr: &gateway.FatalError{Reason: "SESSION_REVOKED"}}
	r := newTestRunner(creds, &engineStub{}, &profileStub{})

	if err := r.cycle(context.Background()); !gateway.IsFatal(err) {
		t.Fatalf("want fatal gateway error, got %v", err)
	}
}

func TestCycleRetriesWhenNotLoggedIn(t *testing.T) {
	t.Parallel()

	creds := &credsStub{loggedIn: false}
	engine := &engineStub{}
	r := newTestRunner(creds, engine, &profileStub{})

	if err := r.cycle(context.Background()); err != nil {
		t.Fatalf("logged-out cycle must not be terminal: %v", err)
	}
	if creds.loginCalls != 1 {
		t.Fatalf("login calls = %d, want 1", creds.loginCalls)
	}
	if engine.startCalls != 0 {
		t.Fatal("rounds must not start before login")
	}
}

func TestCyclePlaysConfiguredNumberOfRounds(t *testing.T) {
	t.Parallel()

	creds := &credsStub{loggedIn: true}
	engine := &engineStub{round: &gameapi.Round{ID: "g"}}
	r := newTestRunner(creds, engine, &profileStub{})

	if err := r.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if engine.startCalls != 3 {
		t.Fatalf("start calls = %d, want 3", engine.startCalls)
	}
	if engine.winCalls != 3 {
		t.Fatalf("win calls = %d, want 3 at 100%% win chance", engine.winCalls)
	}
}

func TestPlayRoundsConsumesSlotOnFailedStart(t *testing.T) {
	t.Parallel()

	creds := &credsStub{loggedIn: true}
	engine := &engineStub{round: nil} // старт не удаётся, слот сгорает
	r := newTestRunner(creds, engine, &profileStub{})

	if err := r.playRounds(context.Background()); err != nil {
		t.Fatalf("playRounds: %v", err)
	}
	if engine.startCalls != 3 {
		t.Fatalf("start calls = %d, want exactly 3 (slots must not stretch)", engine.startCalls)
	}
	if engine.winCalls != 0 || engine.lossCalls != 0 {
		t.Fatal("unstarted rounds must not be resolved")
	}
}

func TestFetchProfileExhaustsRetries(t *testing.T) {
	t.Parallel()

	creds := &credsStub{loggedIn: true}
	api := &profileStub{err: errors.New("boom")}
	r := newTestRunner(creds, &engineStub{}, api)

	if err := r.fetchProfile(context.Background()); err == nil {
		t.Fatal("exhausted profile retries must be an error")
	}
	if api.calls != profileMaxRetries+1 {
		t.Fatalf("profile calls = %d, want %d", api.calls, profileMaxRetries+1)
	}
}

func TestCooldownAntifrostEveryThirdCycle(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	r := newTestRunner(&credsStub{}, &engineStub{}, &profileStub{})
	r.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }

	for i := 0; i < 6; i++ {
		r.cooldown(context.Background())
	}

	longMin := time.Duration(longCooldownMinSec) * time.Second
	for i, d := range slept {
		isAntifrost := (i+1)%antifrostEvery == 0
		if isAntifrost && d < longMin {
			t.Fatalf("cycle %d: want antifrost cooldown, got %v", i+1, d)
		}
		if !isAntifrost && d >= longMin {
			t.Fatalf("cycle %d: want short cooldown, got %v", i+1, d)
		}
	}
}

func TestPickWinBoundaries(t *testing.T) {
	t.Parallel()

	for i := 0; i < 1000; i++ {
		if pickWin(0) {
			t.Fatal("chance 0 must never win")
		}
		if !pickWin(100) {
			t.Fatal("chance 100 must always win")
		}
	}
}

func TestPickWinDistribution(t *testing.T) {
	t.Parallel()

	const trials = 20000
	wins := 0
	for i := 0; i < trials; i++ {
		if pickWin(80) {
			wins++
		}
	}
	ratio := float64(wins) / trials
	if ratio < 0.76 || ratio > 0.84 {
		t.Fatalf("win ratio = %.3f, want ~0.80", ratio)
	}
}
