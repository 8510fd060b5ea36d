// Package credentials ведёт двойной жизненный цикл учётных данных аккаунта:
// пару токенов игрового API (access/refresh) и блоб веб-авторизации Telegram.
// Оба типа живут по независимым часам со случайным TTL; менеджер никогда не
// отдаёт запросу заведомо протухший токен. Весь стейт принадлежит одному
// аккаунту и мутируется строго последовательно его обработчиком.
package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"coinsweeper-farmer/internal/gameapi"
	"coinsweeper-farmer/internal/infra/concurrency"
	"coinsweeper-farmer/internal/infra/telegram/gateway"
	"coinsweeper-farmer/internal/shared"
)

const (
	// accessTTLMinSec/accessTTLMaxSec — диапазон случайного TTL access-токена.
	accessTTLMinSec = 3500
	accessTTLMaxSec = 3600

	// blobTTLMinSec/blobTTLMaxSec — диапазон случайного TTL блоба веб-авторизации.
	blobTTLMinSec = 850
	blobTTLMaxSec = 900

	// webAppRetryDelay — пауза после нефатального сбоя получения веб-авторизации.
	webAppRetryDelay = 3 * time.Second

	// maxRefreshFailures — сколько подряд неудачных рефрешей терпит аккаунт.
	maxRefreshFailures = 3
)

// ErrRefreshExhausted означает исчерпание попыток рефреша access-токена.
// Аккаунт после этой ошибки считается неработоспособным.
var ErrRefreshExhausted = errors.New("access token refresh failed too many times")

// TelegramAuthorizer выдаёт URL web-view с данными веб-авторизации.
// Реализуется Telegram-шлюзом аккаунта.
type TelegramAuthorizer interface {
	WebAppAuthURL(ctx context.Context, refParam string) (string, error)
}

// State — текущее состояние учётных данных аккаунта. Существует в одном
// экземпляре на аккаунт, наружу отдаётся только копия.
type State struct {
	AccessToken  string
	RefreshToken string
	AccessIssued time.Time
	AccessTTL    time.Duration

	InitData   string
	UserID     string
	FirstName  string
	LastName   string
	BlobIssued time.Time
	BlobTTL    time.Duration

	LoggedIn        bool
	RefreshFailures int
}

// Manager поддерживает валидность обоих типов учётных данных одного аккаунта.
type Manager struct {
	api   *gameapi.Client
	tg    TelegramAuthorizer
	refID string
	log   *zap.Logger

	state State

	// Точки подмены в тестах: источник времени и ожидание.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewManager создаёт менеджер учётных данных аккаунта. refID — реферальный
// идентификатор, передаётся и в стартовый параметр бота, и в тело логина.
func NewManager(api *gameapi.Client, tg TelegramAuthorizer, refID string, log *zap.Logger) *Manager {
	return &Manager{
		api:   api,
		tg:    tg,
		refID: refID,
		log:   log,
		now:   time.Now,
		sleep: concurrency.Sleep,
	}
}

// Snapshot возвращает копию текущего состояния учётных данных.
func (m *Manager) Snapshot() State { return m.state }

// LoggedIn сообщает, выполнен ли вход в игровое API.
func (m *Manager) LoggedIn() bool { return m.state.LoggedIn }

// UserID возвращает идентификатор пользователя из блоба веб-авторизации.
func (m *Manager) UserID() string { return m.state.UserID }

// EnsureAccessToken обновляет access-токен, если его TTL истёк. Свежий токен —
// no-op. До логина обновлять нечего. После maxRefreshFailures неудач подряд
// возвращает ErrRefreshExhausted.
func (m *Manager) EnsureAccessToken(ctx context.Context) error {
	if !m.state.LoggedIn {
		return nil
	}
	if m.accessFresh() {
		return nil
	}

	pair, err := m.api.RefreshToken(ctx, m.state.RefreshToken)
	if err != nil {
		m.state.RefreshFailures++
		m.log.Warn("access token refresh failed",
			zap.Int("consecutive_failures", m.state.RefreshFailures),
			zap.Error(err))
		if m.state.RefreshFailures >= maxRefreshFailures {
			// Оба звена остаются в цепочке: и сентинел, и транспортная причина.
			return fmt.Errorf("%w: %w", ErrRefreshExhausted, err)
		}
		return errors.Wrap(err, "refresh access token")
	}

	m.adoptTokens(pair)
	m.state.RefreshFailures = 0
	m.log.Debug("access token refreshed", zap.Duration("ttl", m.state.AccessTTL))
	return nil
}

// InvalidateAccessToken помечает access-токен протухшим: следующий
// EnsureAccessToken выполнит рефреш немедленно. Используется после HTTP 401.
func (m *Manager) InvalidateAccessToken() {
	m.state.AccessIssued = time.Time{}
}

// RefreshNow — немедленный рефреш access-токена (реакция на HTTP 401).
func (m *Manager) RefreshNow(ctx context.Context) error {
	m.InvalidateAccessToken()
	return m.EnsureAccessToken(ctx)
}

// EnsureWebAppAuth обновляет блоб веб-авторизации, если его TTL истёк.
// Фатальная ошибка Telegram-шлюза пробрасывается как есть. Любой другой сбой
// логируется, выдерживается пауза и сохраняется прежнее состояние: часы блоба
// не сдвигаются, попытка повторится на следующем цикле.
func (m *Manager) EnsureWebAppAuth(ctx context.Context) error {
	if m.blobFresh() {
		return nil
	}

	viewURL, err := m.tg.WebAppAuthURL(ctx, "referredBy="+m.refID)
	if err != nil {
		if gateway.IsFatal(err) {
			return err
		}
		return m.webAppFailure(ctx, "request web view", err)
	}

	blob, err := ExtractInitData(viewURL)
	if err != nil {
		return m.webAppFailure(ctx, "extract web app data", err)
	}
	user, err := ParseWebAppUser(blob)
	if err != nil {
		return m.webAppFailure(ctx, "parse web app user", err)
	}

	m.state.InitData = blob
	m.state.UserID = user.ID
	m.state.FirstName = user.FirstName
	m.state.LastName = user.LastName
	m.state.BlobIssued = m.now()
	m.state.BlobTTL = shared.RandomDuration(blobTTLMinSec, blobTTLMaxSec)
	m.api.SetInitData(blob)

	m.log.Debug("web app auth refreshed",
		zap.String("user_id", user.ID),
		zap.Duration("ttl", m.state.BlobTTL))
	return nil
}

// Login выполняет вход в игровое API по текущему блобу веб-авторизации.
// Сбой логина глотается: аккаунт остаётся не залогиненным и повторит попытку
// на следующем цикле.
func (m *Manager) Login(ctx context.Context) {
	if m.state.LoggedIn || m.state.InitData == "" {
		return
	}

	pair, err := m.api.Login(ctx, m.state.InitData, m.refID)
	if err != nil {
		m.log.Warn("login failed", zap.Error(err))
		return
	}

	m.adoptTokens(pair)
	m.state.LoggedIn = true
	m.log.Info("logged in to game api", zap.String("user_id", m.state.UserID))
}

func (m *Manager) accessFresh() bool {
	return !m.state.AccessIssued.IsZero() &&
		m.now().Sub(m.state.AccessIssued) < m.state.AccessTTL
}

func (m *Manager) blobFresh() bool {
	return m.state.InitData != "" &&
		m.now().Sub(m.state.BlobIssued) < m.state.BlobTTL
}

// adoptTokens сохраняет свежую пару токенов и перезапускает часы access-токена
// с новым случайным TTL.
func (m *Manager) adoptTokens(pair *gameapi.TokenPair) {
	m.state.AccessToken = pair.AccessToken
	m.state.RefreshToken = pair.RefreshToken
	m.state.AccessIssued = m.now()
	m.state.AccessTTL = shared.RandomDuration(accessTTLMinSec, accessTTLMaxSec)
	m.api.SetBearer(pair.AccessToken)
}

// webAppFailure — единая обработка нефатальных сбоев веб-авторизации.
func (m *Manager) webAppFailure(ctx context.Context, stage string, err error) error {
	m.log.Warn("web app auth not refreshed, keeping stale state",
		zap.String("stage", stage),
		zap.Error(err))
	m.sleep(ctx, webAppRetryDelay)
	return nil
}
