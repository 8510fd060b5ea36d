// Package app — верхний уровень сборки фермы аккаунтов. Здесь связываются
// конфигурация, загрузка аккаунтов с диска и запуск независимых раннеров:
// по одной горутине на аккаунт, без общего изменяемого состояния. Единственная
// координация между аккаунтами — рассинхронизированный старт.
package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"coinsweeper-farmer/internal/domain/credentials"
	"coinsweeper-farmer/internal/domain/game"
	"coinsweeper-farmer/internal/domain/identity"
	"coinsweeper-farmer/internal/domain/runner"
	"coinsweeper-farmer/internal/gameapi"
	"coinsweeper-farmer/internal/infra/config"
	"coinsweeper-farmer/internal/infra/logger"
	"coinsweeper-farmer/internal/infra/telegram/gateway"
	"coinsweeper-farmer/internal/infra/timeutil"
	"coinsweeper-farmer/internal/shared"
)

// App агрегирует зависимости фермы и управляет жизненным циклом аккаунтов.
type App struct {
	cfg config.EnvConfig
}

// New создаёт приложение поверх уже загруженной конфигурации.
func New(cfg config.EnvConfig) *App {
	return &App{cfg: cfg}
}

// Run загружает аккаунты и блокируется до завершения всех раннеров.
// Раннеры останавливаются либо отменой ctx, либо терминальной ошибкой
// собственного аккаунта; ошибки одного аккаунта не трогают остальные.
func (a *App) Run(ctx context.Context) error {
	ids, err := identity.LoadAll(a.cfg.SessionsDir)
	if err != nil {
		return errors.Wrap(err, "load accounts")
	}
	if len(ids) == 0 {
		return errors.Errorf("no registered accounts in %s, run with -register first", a.cfg.SessionsDir)
	}
	logger.Infof("accounts loaded: %d", len(ids))

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.serveAccount(ctx, id)
		}()
	}
	wg.Wait()
	return nil
}

// serveAccount собирает стек одного аккаунта и крутит его раннер до конца.
func (a *App) serveAccount(ctx context.Context, id identity.Identity) {
	log := logger.Named(id.Name)

	delay := shared.RandomDuration(a.cfg.StartDelay.Min, a.cfg.StartDelay.Max)
	log.Info("account scheduled", zap.Duration("start_delay", delay))
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	var proxyURL string
	if id.Proxy != nil {
		proxyURL = id.Proxy.URL()
	}

	gw := gateway.New(a.cfg.APIID, a.cfg.APIHash, id, a.cfg.TestDC, log.Named("tg"))
	api := gameapi.New(gameapi.Options{
		UserAgent: id.UserAgent,
		ProxyURL:  proxyURL,
		Log:       log.Named("api"),
	})
	creds := credentials.NewManager(api, gw, strconv.FormatInt(a.cfg.RefID, 10), log.Named("creds"))
	engine := game.NewEngine(api, creds, a.cfg.PlayTime, log.Named("game"))

	run := runner.New(id.Name, creds, engine, api, runner.Options{
		ChanceToWin: a.cfg.ChanceToWin,
		Rounds:      a.cfg.RoundsPerGame,
		NightSleep:  a.cfg.NightSleep,
		Night:       timeutil.DefaultNightWindow,
		Location:    time.Local,
	}, log)

	if err := run.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("account finished", zap.Error(err))
	}
}
