// Package gameapi — HTTP-клиент игрового API мини-приложения. Клиент несёт
// браузероподобный набор заголовков, персональный User-Agent аккаунта и прокси;
// интерпретация статусов остаётся на вызывающей стороне через типизированные
// ошибки (ErrUnauthorized, StatusError). Один клиент обслуживает ровно один
// аккаунт и используется строго последовательно.
package gameapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// BaseURL — корень игрового API.
const BaseURL = "https://api.bybitcoinsweeper.com/api"

// requestTimeout ограничивает каждый HTTP-запрос; остальное — на транспорте.
const requestTimeout = 30 * time.Second

// ErrUnauthorized возвращается на HTTP 401: токен протух, нужен рефреш.
var ErrUnauthorized = errors.New("game api: unauthorized")

// StatusError описывает неожиданный HTTP-статус с телом ответа для логов.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("game api: unexpected status %d: %s", e.Code, e.Body)
}

// TokenPair — пара токенов из ответов логина и рефреша.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Rewards — компоненты награды раунда. Значения непрозрачны для фермы и
// возвращаются серверу в исходном виде, поэтому json.RawMessage.
type Rewards struct {
	BagCoins json.RawMessage `json:"bagCoins"`
	Bits     json.RawMessage `json:"bits"`
	Gifts    json.RawMessage `json:"gifts"`
}

// Round — стартованный раунд игры.
type Round struct {
	ID        string  `json:"id"`
	CreatedAt string  `json:"createdAt"`
	Rewards   Rewards `json:"rewards"`
}

// Profile — снимок профиля пользователя: идентификатор и баланс.
type Profile struct {
	ID    json.Number `json:"id"`
	Score float64     `json:"score"`
}

// LossPayload — тело отчёта о проигранном раунде.
type LossPayload struct {
	BagCoins json.RawMessage `json:"bagCoins"`
	Bits     json.RawMessage `json:"bits"`
	GameID   string          `json:"gameId"`
	Gifts    json.RawMessage `json:"gifts"`
}

// WinPayload — тело отчёта о выигранном раунде, включая подпись h и счёт.
type WinPayload struct {
	BagCoins json.RawMessage `json:"bagCoins"`
	Bits     json.RawMessage `json:"bits"`
	GameID   string          `json:"gameId"`
	GameTime int             `json:"gameTime"`
	Gifts    json.RawMessage `json:"gifts"`
	H        string          `json:"h"`
	Score    float64         `json:"score"`
}

// Options — параметры создания клиента. BaseURL переопределяется в тестах.
type Options struct {
	UserAgent string
	ProxyURL  string
	BaseURL   string
	Log       *zap.Logger
}

// Client — типизированная обёртка над resty для эндпоинтов игрового API.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

// New собирает клиент с браузероподобными заголовками и персональным UA.
func New(opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = BaseURL
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	hc := resty.New().
		SetBaseURL(base).
		SetTimeout(requestTimeout).
		SetHeaders(map[string]string{
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "en-US,en;q=0.9",
			"Content-Type":    "application/json",
			"Origin":          "https://bybitcoinsweeper.com",
			"Referer":         "https://bybitcoinsweeper.com/",
			"Sec-Fetch-Dest":  "empty",
			"Sec-Fetch-Mode":  "cors",
			"Sec-Fetch-Site":  "same-site",
			"Priority":        "u=1, i",
		}).
		SetHeader("User-Agent", opts.UserAgent)

	if opts.ProxyURL != "" {
		hc.SetProxy(opts.ProxyURL)
	}

	return &Client{http: hc, log: opts.Log}
}

// SetBearer устанавливает заголовок Authorization для последующих запросов.
func (c *Client) SetBearer(accessToken string) {
	c.http.SetHeader("Authorization", "Bearer "+accessToken)
}

// SetInitData устанавливает заголовок Tl-Init-Data (данные веб-авторизации).
func (c *Client) SetInitData(blob string) {
	c.http.SetHeader("Tl-Init-Data", blob)
}

// RefreshToken обменивает refresh-токен на свежую пару. Успех — строго 201.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair TokenPair
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"refreshToken": refreshToken}).
		SetResult(&pair).
		Post("/auth/refresh-token")
	if err != nil {
		return nil, errors.Wrap(err, "refresh token request")
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return &pair, nil
}

// Login обменивает данные веб-авторизации на пару токенов.
func (c *Client) Login(ctx context.Context, initData, referredBy string) (*TokenPair, error) {
	var pair TokenPair
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"initData": initData, "referredBy": referredBy}).
		SetResult(&pair).
		Post("/auth/login")
	if err != nil {
		return nil, errors.Wrap(err, "login request")
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return &pair, nil
}

// StartGame открывает новый раунд. 401 транслируется в ErrUnauthorized.
func (c *Client) StartGame(ctx context.Context) (*Round, error) {
	var round Round
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{}).
		SetResult(&round).
		Post("/games/start")
	if err != nil {
		return nil, errors.Wrap(err, "start game request")
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return &round, nil
}

// Me возвращает снимок профиля: идентификатор и баланс.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var profile Profile
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&profile).
		Get("/users/me")
	if err != nil {
		return nil, errors.Wrap(err, "me request")
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
	return &profile, nil
}

// ReportLoss отправляет отчёт о проигрыше. Успех — 201.
func (c *Client) ReportLoss(ctx context.Context, payload LossPayload) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/games/lose")
	if err != nil {
		return errors.Wrap(err, "report loss request")
	}
	return interpretReport(resp)
}

// ReportWin отправляет отчёт о выигрыше с подписью. Успех — 201.
func (c *Client) ReportWin(ctx context.Context, payload WinPayload) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post("/games/win")
	if err != nil {
		return errors.Wrap(err, "report win request")
	}
	return interpretReport(resp)
}

// interpretReport — общая интерпретация статусов для отчётов раундов.
func interpretReport(resp *resty.Response) error {
	switch {
	case resp.StatusCode() == http.StatusCreated:
		return nil
	case resp.StatusCode() == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}
}
