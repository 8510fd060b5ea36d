// Package game — движок одного раунда: старт, имитация игрового времени и
// отчёт о результате с подписью. Движок не хранит состояния между раундами;
// решение «выигрыш или проигрыш» принимает вызывающая сторона.
package game

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"coinsweeper-farmer/internal/gameapi"
	"coinsweeper-farmer/internal/infra/concurrency"
	"coinsweeper-farmer/internal/infra/config"
	"coinsweeper-farmer/internal/shared"
)

// Credentials — срез менеджера учётных данных, нужный движку: идентификатор
// пользователя для подписи и немедленный рефреш токена после HTTP 401.
type Credentials interface {
	UserID() string
	RefreshNow(ctx context.Context) error
}

// Engine играет раунды от имени одного аккаунта.
type Engine struct {
	api      *gameapi.Client
	creds    Credentials
	playTime config.Range
	log      *zap.Logger

	// Точки подмены в тестах.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewEngine создаёт движок раундов. playTime — диапазон имитируемой
// длительности игры в секундах.
func NewEngine(api *gameapi.Client, creds Credentials, playTime config.Range, log *zap.Logger) *Engine {
	return &Engine{
		api:      api,
		creds:    creds,
		playTime: playTime,
		log:      log,
		now:      time.Now,
		sleep:    concurrency.Sleep,
	}
}

// StartRound открывает раунд. HTTP 401 — не ошибка: токен обновляется, раунд
// не стартует (вернётся nil, вызывающая сторона повторит попытку).
func (e *Engine) StartRound(ctx context.Context) (*gameapi.Round, error) {
	round, err := e.api.StartGame(ctx)
	if errors.Is(err, gameapi.ErrUnauthorized) {
		e.log.Debug("start round unauthorized, refreshing token")
		if rerr := e.creds.RefreshNow(ctx); rerr != nil {
			return nil, rerr
		}
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "start round")
	}
	return round, nil
}

// ResolveLoss доигрывает раунд проигрышем: выдерживает случайное игровое время
// и отправляет отчёт. Успешный отчёт сопровождается обновлением профиля.
func (e *Engine) ResolveLoss(ctx context.Context, round *gameapi.Round) error {
	secs := shared.Random(e.playTime.Min, e.playTime.Max)
	e.sleep(ctx, time.Duration(secs)*time.Second)

	err := e.api.ReportLoss(ctx, gameapi.LossPayload{
		BagCoins: round.Rewards.BagCoins,
		Bits:     round.Rewards.Bits,
		GameID:   round.ID,
		Gifts:    round.Rewards.Gifts,
	})
	switch {
	case err == nil:
		e.log.Info("round lost", zap.String("game_id", round.ID), zap.Int("seconds", secs))
		e.refreshProfile(ctx)
		return nil
	case errors.Is(err, gameapi.ErrUnauthorized):
		return e.creds.RefreshNow(ctx)
	default:
		return errors.Wrap(err, "report loss")
	}
}

// ResolveWin доигрывает раунд выигрышем: выдерживает случайное игровое время,
// считает счёт и подпись от фактически истёкшего времени раунда и отправляет
// отчёт. Возвращает true только на HTTP 201; HTTP 401 обновляет токен и
// возвращает false без ошибки.
func (e *Engine) ResolveWin(ctx context.Context, round *gameapi.Round) (bool, error) {
	secs := shared.Random(e.playTime.Min, e.playTime.Max)
	e.sleep(ctx, time.Duration(secs)*time.Second)

	createdAt, err := time.Parse(time.RFC3339, round.CreatedAt)
	if err != nil {
		return false, errors.Wrap(err, "parse round createdAt")
	}
	elapsedMs := e.now().UTC().Sub(createdAt.UTC()).Milliseconds()

	score := Score(secs, round.ID)
	sig := Signature(e.creds.UserID(), round.ID, elapsedMs, secs)

	err = e.api.ReportWin(ctx, gameapi.WinPayload{
		BagCoins: round.Rewards.BagCoins,
		Bits:     round.Rewards.Bits,
		GameID:   round.ID,
		GameTime: secs,
		Gifts:    round.Rewards.Gifts,
		H:        sig,
		Score:    score,
	})
	switch {
	case err == nil:
		e.log.Info("round won",
			zap.String("game_id", round.ID),
			zap.Int("seconds", secs),
			zap.Float64("score", score))
		e.refreshProfile(ctx)
		return true, nil
	case errors.Is(err, gameapi.ErrUnauthorized):
		if rerr := e.creds.RefreshNow(ctx); rerr != nil {
			return false, rerr
		}
		return false, nil
	default:
		e.log.Warn("win report rejected", zap.String("game_id", round.ID), zap.Error(err))
		return false, nil
	}
}

// refreshProfile подтягивает актуальный баланс после отчёта. Сбой не критичен.
func (e *Engine) refreshProfile(ctx context.Context) {
	profile, err := e.api.Me(ctx)
	if err != nil {
		e.log.Warn("profile refresh failed", zap.Error(err))
		return
	}
	e.log.Info("balance", zap.String("user_id", profile.ID.String()), zap.Float64("score", profile.Score))
}
