// Package gateway — шлюз аккаунта к Telegram поверх gotd. Инкапсулирует весь
// MTProto-цикл получения веб-авторизации мини-приложения:
// подключение → проверка авторизации → гарантия отправленного /start →
// резолв бота с обработкой FLOOD_WAIT → запрос web-view → URL с данными входа.
// Соединение живёт только на время одного запроса: по выходу из Run клиент
// отключается на всех путях, включая ошибочные.
package gateway

import (
	"context"
	"strings"
	"time"

	"coinsweeper-farmer/internal/domain/identity"
	"coinsweeper-farmer/internal/infra/telegram/session"
	"coinsweeper-farmer/internal/shared"

	"github.com/go-faster/errors"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	"github.com/gotd/td/telegram"
	tdauth "github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"
)

const (
	// botUsername — бот мини-игры, у которого запрашивается web-view.
	botUsername = "BybitCoinsweeper_Bot"
	// webAppURL — адрес мини-приложения, передаётся в запрос web-view.
	webAppURL = "https://bybitcoinsweeper.com"

	// historyScanLimit — сколько последних сообщений диалога с ботом
	// просматривается в поисках уже отправленного /start.
	historyScanLimit = 50

	// floodWaitPadding добавляется к длительности FLOOD_WAIT перед повтором.
	floodWaitPadding = 3 * time.Second

	// rpsLimit ограничивает частоту RPC-вызовов одного аккаунта.
	rpsLimit = rate.Limit(1)
)

// Gateway выполняет Telegram-операции от имени одного аккаунта.
// Экземпляр привязан к Identity и не разделяется между аккаунтами.
type Gateway struct {
	apiID   int
	apiHash string
	id      identity.Identity
	testDC  bool
	log     *zap.Logger
}

// New создаёт шлюз для аккаунта. Логгер должен быть именован по аккаунту.
func New(apiID int, apiHash string, id identity.Identity, testDC bool, log *zap.Logger) *Gateway {
	return &Gateway{
		apiID:   apiID,
		apiHash: apiHash,
		id:      id,
		testDC:  testDC,
		log:     log,
	}
}

// options собирает настройки MTProto-клиента: файловая сессия аккаунта,
// обработка FLOOD_WAIT и rate-limit в middleware, socks5-прокси при наличии.
func (g *Gateway) options() (telegram.Options, error) {
	opts := telegram.Options{
		SessionStorage: &session.FileStorage{Path: g.id.SessionFile},
		Middlewares: []telegram.Middleware{
			floodwait.NewSimpleWaiter(),
			ratelimit.New(rpsLimit, 2), //nolint:mnd // burst = 2*rate
		},
		Device: telegram.DeviceConfig{
			DeviceModel:   "Pixel 7",
			SystemVersion: "SDK 34",
			AppVersion:    "10.9.2",
		},
	}

	if g.testDC {
		opts.DCList = dcs.Test()
	}

	if g.id.Proxy.IsSOCKS5() {
		var auth *proxy.Auth
		if g.id.Proxy.Username != "" {
			auth = &proxy.Auth{User: g.id.Proxy.Username, Password: g.id.Proxy.Password}
		}
		dialer, err := proxy.SOCKS5("tcp", g.id.Proxy.Addr(), auth, proxy.Direct)
		if err != nil {
			return telegram.Options{}, errors.Wrap(err, "create socks5 dialer")
		}
		ctxDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return telegram.Options{}, errors.New("socks5 dialer does not support context")
		}
		opts.Resolver = dcs.Plain(dcs.PlainOptions{Dial: ctxDialer.DialContext})
	}

	return opts, nil
}

// run подключает клиент, выполняет fn и отключается. Ошибки прогоняются через
// классификацию: фатальные для аккаунта заворачиваются в FatalError.
func (g *Gateway) run(ctx context.Context, fn func(ctx context.Context, client *telegram.Client) error) error {
	opts, err := g.options()
	if err != nil {
		return err
	}
	client := telegram.NewClient(g.apiID, g.apiHash, opts)
	return classify(client.Run(ctx, func(ctx context.Context) error {
		return fn(ctx, client)
	}))
}

// WebAppAuthURL возвращает URL web-view мини-приложения, содержащий данные
// авторизации (tgWebAppData). refParam — стартовый параметр вида "referredBy=N".
// Неавторизованная сессия — фатальная ошибка аккаунта.
func (g *Gateway) WebAppAuthURL(ctx context.Context, refParam string) (string, error) {
	var authURL string

	err := g.run(ctx, func(ctx context.Context, client *telegram.Client) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return errors.Wrap(err, "auth status")
		}
		if !status.Authorized {
			return &FatalError{Reason: "session is not authorized"}
		}

		api := client.API()

		bot, err := g.resolveBot(ctx, api)
		if err != nil {
			return err
		}

		if err = g.ensureStarted(ctx, api, bot, refParam); err != nil {
			return err
		}

		authURL, err = g.requestWebView(ctx, api, bot, refParam)
		return err
	})
	if err != nil {
		return "", err
	}
	return authURL, nil
}

// Authorize выполняет интерактивный вход (режим регистрации сессии) и
// возвращает данные пользователя. Сессия сохраняется файловым хранилищем.
func (g *Gateway) Authorize(ctx context.Context, authenticator tdauth.UserAuthenticator) (*tg.User, error) {
	var self *tg.User

	err := g.run(ctx, func(ctx context.Context, client *telegram.Client) error {
		flow := tdauth.NewFlow(authenticator, tdauth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return errors.Wrap(err, "auth flow")
		}
		user, err := client.Self(ctx)
		if err != nil {
			return errors.Wrap(err, "self")
		}
		self = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return self, nil
}

// resolveBot резолвит бота по username. На FLOOD_WAIT спит предписанное время
// плюс небольшой запас и повторяет без ограничения попыток: лимитирование —
// не сбой, а указание подождать.
func (g *Gateway) resolveBot(ctx context.Context, api *tg.Client) (*tg.InputUser, error) {
	for {
		resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
			Username: botUsername,
		})
		if err != nil {
			if wait, ok := tgerr.AsFloodWait(err); ok {
				delay := wait + floodWaitPadding
				g.log.Warn("flood wait on resolve, sleeping", zap.Duration("delay", delay))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, errors.Wrap(err, "resolve bot peer")
		}

		for _, u := range resolved.Users {
			if user, ok := u.(*tg.User); ok && strings.EqualFold(user.Username, botUsername) {
				return &tg.InputUser{UserID: user.ID, AccessHash: user.AccessHash}, nil
			}
		}
		return nil, errors.New("bot user not found in resolved peer")
	}
}

// ensureStarted гарантирует, что боту хотя бы раз отправлялась команда /start:
// сканирует недавнюю историю диалога и при отсутствии команды отправляет
// StartBot со стартовым параметром и свежим случайным идентификатором.
func (g *Gateway) ensureStarted(ctx context.Context, api *tg.Client, bot *tg.InputUser, refParam string) error {
	peer := &tg.InputPeerUser{UserID: bot.UserID, AccessHash: bot.AccessHash}

	history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:  peer,
		Limit: historyScanLimit,
	})
	if err != nil {
		return errors.Wrap(err, "get bot chat history")
	}

	if hasStartCommand(history) {
		return nil
	}

	g.log.Info("no /start in bot chat history, starting bot")
	_, err = api.MessagesStartBot(ctx, &tg.MessagesStartBotRequest{
		Bot:        bot,
		Peer:       peer,
		RandomID:   int64(shared.Random(1, 9999999)),
		StartParam: refParam,
	})
	if err != nil {
		return errors.Wrap(err, "start bot")
	}
	return nil
}

// hasStartCommand ищет сообщение, начинающееся с "/start", среди сообщений
// истории. Подписи к медиа в MTProto лежат в том же поле Message.
func hasStartCommand(history tg.MessagesMessagesClass) bool {
	var msgs []tg.MessageClass
	switch h := history.(type) {
	case *tg.MessagesMessages:
		msgs = h.Messages
	case *tg.MessagesMessagesSlice:
		msgs = h.Messages
	case *tg.MessagesChannelMessages:
		msgs = h.Messages
	default:
		return false
	}

	for _, m := range msgs {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		if strings.HasPrefix(msg.Message, "/start") {
			return true
		}
	}
	return false
}

// requestWebView запрашивает web-view мини-приложения и возвращает его URL.
func (g *Gateway) requestWebView(ctx context.Context, api *tg.Client, bot *tg.InputUser, refParam string) (string, error) {
	req := &tg.MessagesRequestWebViewRequest{
		Peer:     &tg.InputPeerUser{UserID: bot.UserID, AccessHash: bot.AccessHash},
		Bot:      bot,
		Platform: "android",
	}
	req.SetURL(webAppURL)
	req.SetStartParam(refParam)

	view, err := api.MessagesRequestWebView(ctx, req)
	if err != nil {
		return "", errors.Wrap(err, "request web view")
	}
	return view.URL, nil
}
