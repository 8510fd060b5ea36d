package gateway

import (
	"github.com/go-faster/errors"
	"github.com/gotd/td/tgerr"
)

// FatalError означает, что аккаунт непригоден для дальнейшей работы:
// сессия отозвана, ключ не зарегистрирован или пользователь деактивирован.
// Такая ошибка не ретраится — обработчик аккаунта завершает работу немедленно.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return "telegram identity invalid (" + e.Reason + "): " + e.Err.Error()
	}
	return "telegram identity invalid (" + e.Reason + ")"
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal сообщает, относится ли ошибка к классу «аккаунт мёртв».
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// fatalRPCTypes — RPC-ошибки Telegram, после которых сессия аккаунта невосстановима.
var fatalRPCTypes = []string{
	"AUTH_KEY_UNREGISTERED",
	"AUTH_KEY_INVALID",
	"USER_DEACTIVATED",
	"USER_DEACTIVATED_BAN",
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
}

// classify оборачивает фатальные RPC-ошибки в FatalError; остальные ошибки
// возвращаются как есть (транзиентные, решаются ретраем на следующем цикле).
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, t := range fatalRPCTypes {
		if tgerr.Is(err, t) {
			return &FatalError{Reason: t, Err: err}
		}
	}
	return err
}
