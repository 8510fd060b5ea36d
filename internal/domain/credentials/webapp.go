package credentials

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
)

// WebAppUser — данные пользователя, вытащенные из блоба веб-авторизации.
// ID хранится строкой: сервер присылает его и числом, и строкой.
type WebAppUser struct {
	ID        string
	FirstName string
	LastName  string
}

// ExtractInitData извлекает значение tgWebAppData из URL web-view двойным
// URL-декодированием: первое раскрывает значение параметра, второе — вложенную
// кодировку самого блоба.
func ExtractInitData(viewURL string) (string, error) {
	const marker = "tgWebAppData="

	idx := strings.Index(viewURL, marker)
	if idx < 0 {
		return "", errors.New("tgWebAppData not found in web view url")
	}
	raw := viewURL[idx+len(marker):]
	if end := strings.IndexAny(raw, "&#"); end >= 0 {
		raw = raw[:end]
	}

	once, err := url.QueryUnescape(raw)
	if err != nil {
		return "", errors.Wrap(err, "decode tgWebAppData")
	}
	// Уже декодированное значение может содержать одиночный '%' и не пройти
	// повторное декодирование — тогда достаточно первого прохода.
	twice, err := url.QueryUnescape(once)
	if err != nil {
		return once, nil
	}
	return twice, nil
}

// webAppUserJSON — JSON-представление пользователя внутри блоба. ID читается
// сырым значением: сервер присылает его и числом, и строкой в кавычках.
type webAppUserJSON struct {
	ID        json.RawMessage `json:"id"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
}

// ParseWebAppUser разбирает блоб веб-авторизации в данные пользователя.
// Блоб — либо строка query-пар, где пользователь лежит JSON'ом в поле user,
// либо сам JSON пользователя. Набор и порядок остальных ключей значения не
// имеют; отсутствие id — ошибка.
func ParseWebAppUser(blob string) (WebAppUser, error) {
	payload := blob
	if userField, ok := queryField(blob, "user"); ok {
		payload = userField
	}

	var user webAppUserJSON
	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		return WebAppUser{}, errors.Wrap(err, "decode web app user payload")
	}

	id := strings.Trim(string(user.ID), `"`)
	if id == "" || id == "null" {
		return WebAppUser{}, errors.New("web app user payload has no id")
	}

	return WebAppUser{
		ID:        id,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, nil
}

// queryField возвращает значение ключа key из строки query-пар k=v,
// разделённых '&'. Значение не декодируется: блоб уже декодирован целиком.
func queryField(blob, key string) (string, bool) {
	for _, pair := range strings.Split(blob, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}
