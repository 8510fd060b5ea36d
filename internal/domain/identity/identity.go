// Package identity — модель аккаунта фермы и загрузка уже зарегистрированных
// аккаунтов с диска. Каждый аккаунт занимает свой каталог внутри sessions/:
//
//	sessions/<имя>/session.bin     MTProto-сессия (tdsession.Storage)
//	sessions/<имя>/user_agent.txt  User-Agent браузера для игрового API
//	sessions/<имя>/proxy.txt       опциональный прокси (может отсутствовать)
//
// Identity неизменяем на протяжении запуска процесса.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"coinsweeper-farmer/internal/infra/storage"

	browser "github.com/itzngga/fake-useragent"
)

// Файлы внутри каталога аккаунта.
const (
	SessionFileName   = "session.bin"
	UserAgentFileName = "user_agent.txt"
	ProxyFileName     = "proxy.txt"
)

// Identity описывает один аккаунт: отображаемое имя, путь к файлу сессии,
// User-Agent и опциональный прокси. RefID общий для всех аккаунтов и живёт в
// конфигурации, поэтому здесь не хранится.
type Identity struct {
	Name        string
	Dir         string
	SessionFile string
	UserAgent   string
	Proxy       *Proxy
}

// LoadAll сканирует каталог sessions/ и собирает все аккаунты. Каталоги без
// файла сессии пропускаются: такой аккаунт ещё не зарегистрирован. Отсутствие
// user_agent.txt не фатально — генерируется свежий Chrome User-Agent и
// сохраняется, чтобы аккаунт не «менял браузер» при каждом запуске.
func LoadAll(sessionsDir string) ([]Identity, error) {
	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("read sessions dir %s: %w", sessionsDir, err)
	}

	var ids []Identity
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, loadErr := load(filepath.Join(sessionsDir, entry.Name()), entry.Name())
		if loadErr != nil {
			return nil, loadErr
		}
		if id == nil {
			continue
		}
		ids = append(ids, *id)
	}

	// Стабильный порядок запуска: удобнее читать логи и сопоставлять паузы.
	sort.Slice(ids, func(i, j int) bool { return ids[i].Name < ids[j].Name })
	return ids, nil
}

// load собирает Identity из одного каталога аккаунта. Возвращает (nil, nil),
// если каталог не содержит сессии.
func load(dir, name string) (*Identity, error) {
	sessionFile := filepath.Join(dir, SessionFileName)
	if _, err := os.Stat(sessionFile); os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", sessionFile, err)
	}

	userAgent, err := loadOrCreateUserAgent(dir)
	if err != nil {
		return nil, err
	}

	proxy, err := loadProxy(dir)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", name, err)
	}

	return &Identity{
		Name:        name,
		Dir:         dir,
		SessionFile: sessionFile,
		UserAgent:   userAgent,
		Proxy:       proxy,
	}, nil
}

// loadOrCreateUserAgent читает user_agent.txt либо генерирует и сохраняет новый.
func loadOrCreateUserAgent(dir string) (string, error) {
	path := filepath.Join(dir, UserAgentFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if ua := strings.TrimSpace(string(data)); ua != "" {
			return ua, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	ua := browser.Chrome()
	if writeErr := storage.AtomicWriteFile(path, []byte(ua)); writeErr != nil {
		return "", fmt.Errorf("store generated user agent: %w", writeErr)
	}
	return ua, nil
}

// loadProxy читает proxy.txt; отсутствие файла означает прямое соединение.
func loadProxy(dir string) (*Proxy, error) {
	data, err := os.ReadFile(filepath.Join(dir, ProxyFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read proxy file: %w", err)
	}
	return ParseProxy(strings.TrimSpace(string(data)))
}
