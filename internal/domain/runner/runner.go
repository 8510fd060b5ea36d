// Package runner — конечный автомат одного аккаунта. Раннер бесконечно крутит
// игровой цикл: поддержание учётных данных → профиль → серия раундов →
// кулдаун → ночное окно. Внутренней конкуренции нет: все сетевые вызовы
// последовательны, состояние принадлежит одной горутине. Терминальное
// состояние — исчерпание рефрешей токена либо фатальная ошибка Telegram.
package runner

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"coinsweeper-farmer/internal/domain/credentials"
	"coinsweeper-farmer/internal/gameapi"
	"coinsweeper-farmer/internal/infra/concurrency"
	"coinsweeper-farmer/internal/infra/config"
	"coinsweeper-farmer/internal/infra/telegram/gateway"
	"coinsweeper-farmer/internal/infra/timeutil"
	"coinsweeper-farmer/internal/shared"
)

const (
	// betweenRoundsMinSec/MaxSec — пауза между раундами одной серии.
	betweenRoundsMinSec = 15
	betweenRoundsMaxSec = 25

	// shortCooldownMinSec/MaxSec — обычный кулдаун между циклами.
	shortCooldownMinSec = 200
	shortCooldownMaxSec = 1000

	// longCooldownMinSec/MaxSec — «антифрост»-кулдаун каждого третьего цикла.
	longCooldownMinSec = 3600
	longCooldownMaxSec = 10800

	// antifrostEvery — каждый который цикл уходит в длинный кулдаун.
	antifrostEvery = 3

	// nightJitterMaxSec — случайная добавка к пробуждению после ночного окна.
	nightJitterMaxSec = 3600

	// roundStartRetryDelay — пауза перед следующим слотом после несостоявшегося раунда.
	roundStartRetryDelay = time.Second

	// profileRetryInterval/profileMaxRetries — ретраи получения профиля;
	// между попытками выполняется рефреш токена.
	profileRetryInterval = time.Second
	profileMaxRetries    = 2
)

// CredentialKeeper — срез менеджера учётных данных, нужный раннеру.
type CredentialKeeper interface {
	EnsureAccessToken(ctx context.Context) error
	EnsureWebAppAuth(ctx context.Context) error
	Login(ctx context.Context)
	RefreshNow(ctx context.Context) error
	LoggedIn() bool
}

// RoundPlayer — срез движка раундов, нужный раннеру.
type RoundPlayer interface {
	StartRound(ctx context.Context) (*gameapi.Round, error)
	ResolveLoss(ctx context.Context, round *gameapi.Round) error
	ResolveWin(ctx context.Context, round *gameapi.Round) (bool, error)
}

// ProfileFetcher выдаёт снимок профиля пользователя.
type ProfileFetcher interface {
	Me(ctx context.Context) (*gameapi.Profile, error)
}

// Options — параметры поведения раннера.
type Options struct {
	ChanceToWin int
	Rounds      config.Range
	NightSleep  bool
	Night       timeutil.NightWindow
	Location    *time.Location
}

// Runner крутит игровой цикл одного аккаунта до терминального состояния.
type Runner struct {
	name   string
	creds  CredentialKeeper
	engine RoundPlayer
	api    ProfileFetcher
	opts   Options
	log    *zap.Logger

	cycles int

	// Точки подмены в тестах.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// New создаёт раннер аккаунта name.
func New(name string, creds CredentialKeeper, engine RoundPlayer, api ProfileFetcher, opts Options, log *zap.Logger) *Runner {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Runner{
		name:   name,
		creds:  creds,
		engine: engine,
		api:    api,
		opts:   opts,
		log:    log,
		now:    time.Now,
		sleep:  concurrency.Sleep,
	}
}

// Run выполняет игровые циклы до отмены контекста или терминальной ошибки
// аккаунта. Возвращённая ошибка означает, что аккаунт больше не обслуживается.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("runner started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.cycle(ctx); err != nil {
			r.log.Error("runner stopped", zap.Error(err))
			return err
		}
	}
}

// cycle — один проход конечного автомата: учётные данные, профиль, серия
// раундов, кулдаун, ночное окно. Ненулевая ошибка терминальна для аккаунта.
func (r *Runner) cycle(ctx context.Context) error {
	if err := r.creds.EnsureAccessToken(ctx); err != nil {
		if errors.Is(err, credentials.ErrRefreshExhausted) {
			return err
		}
		r.log.Warn("access token not refreshed yet", zap.Error(err))
	}

	if err := r.creds.EnsureWebAppAuth(ctx); err != nil {
		// Сюда доходят только фатальные ошибки шлюза.
		return err
	}
	r.creds.Login(ctx)

	if !r.creds.LoggedIn() {
		r.log.Warn("not logged in, retrying next cycle")
		r.cooldown(ctx)
		return nil
	}

	if err := r.fetchProfile(ctx); err != nil {
		return errors.Wrap(err, "profile unavailable")
	}

	if err := r.playRounds(ctx); err != nil {
		return err
	}

	r.cooldown(ctx)
	r.nightSleep(ctx)
	return nil
}

// fetchProfile запрашивает профиль с ретраями; между попытками выполняется
// рефреш access-токена. Исчерпание попыток терминально.
func (r *Runner) fetchProfile(ctx context.Context) error {
	attempt := func() error {
		profile, err := r.api.Me(ctx)
		if err != nil {
			r.log.Warn("profile fetch failed, refreshing token", zap.Error(err))
			if rerr := r.creds.RefreshNow(ctx); rerr != nil && errors.Is(rerr, credentials.ErrRefreshExhausted) {
				return backoff.Permanent(rerr)
			}
			return err
		}
		r.log.Info("profile",
			zap.String("user_id", profile.ID.String()),
			zap.Float64("score", profile.Score))
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(profileRetryInterval), profileMaxRetries),
		ctx,
	)
	return backoff.Retry(attempt, policy)
}

// playRounds играет серию из случайного числа раундов. Раунд, который не
// удалось стартовать, слот всё равно расходует: серия не растягивается.
func (r *Runner) playRounds(ctx context.Context) error {
	total := shared.Random(r.opts.Rounds.Min, r.opts.Rounds.Max)
	r.log.Info("starting game series", zap.Int("rounds", total))

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		round, err := r.engine.StartRound(ctx)
		if err != nil {
			if gateway.IsFatal(err) {
				return err
			}
			r.log.Warn("round start failed", zap.Error(err))
			r.sleep(ctx, roundStartRetryDelay)
			continue
		}
		if round == nil {
			r.sleep(ctx, roundStartRetryDelay)
			continue
		}

		if pickWin(r.opts.ChanceToWin) {
			if _, err := r.engine.ResolveWin(ctx, round); err != nil {
				r.log.Warn("win round failed", zap.Error(err))
			}
		} else {
			if err := r.engine.ResolveLoss(ctx, round); err != nil {
				r.log.Warn("loss round failed", zap.Error(err))
			}
		}

		if i < total-1 {
			r.sleep(ctx, shared.RandomDuration(betweenRoundsMinSec, betweenRoundsMaxSec))
		}
	}
	return nil
}

// cooldown выдерживает паузу между циклами: каждый antifrostEvery-й цикл —
// длинную, остальные — короткую.
func (r *Runner) cooldown(ctx context.Context) {
	r.cycles++
	if r.cycles >= antifrostEvery {
		r.cycles = 0
		d := shared.RandomDuration(longCooldownMinSec, longCooldownMaxSec)
		r.log.Info("antifrost cooldown", zap.Duration("sleep", d))
		r.sleep(ctx, d)
		return
	}
	d := shared.RandomDuration(shortCooldownMinSec, shortCooldownMaxSec)
	r.log.Info("cooldown", zap.Duration("sleep", d))
	r.sleep(ctx, d)
}

// nightSleep усыпляет аккаунт до конца ночного окна с случайной добавкой.
func (r *Runner) nightSleep(ctx context.Context) {
	if !r.opts.NightSleep {
		return
	}
	local := r.now().In(r.opts.Location)
	if !r.opts.Night.Contains(local) {
		return
	}
	d := r.opts.Night.UntilEnd(local) + shared.RandomDuration(0, nightJitterMaxSec)
	r.log.Info("night window, sleeping", zap.Duration("sleep", d))
	r.sleep(ctx, d)
}

// pickWin разыгрывает исход раунда: бросок [1,100] не выше порога — выигрыш.
func pickWin(chance int) bool {
	return shared.Roll() <= chance
}
