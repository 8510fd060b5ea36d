package identity

import (
	"fmt"
	"regexp"
	"strconv"
)

// Proxy — разобранный адрес прокси аккаунта. Поддерживаются socks5/socks4/http.
// socks5 используется и для MTProto-соединения, и для HTTP-запросов к игровому
// API; http-прокси применим только к HTTP-слою.
type Proxy struct {
	Scheme   string
	Hostname string
	Port     int
	Username string
	Password string
}

// proxyRe — формат строки прокси: scheme://[user[:pass]@]host:port.
var proxyRe = regexp.MustCompile(
	`^(?P<scheme>socks5|socks4|http)://(?:(?P<username>[^:@]+)(?::(?P<password>[^@]+))?@)?(?P<hostname>[^:/]+):(?P<port>[0-9]{1,5})$`)

// ParseProxy разбирает строку прокси. Пустая строка и литерал "None"
// (артефакт ранних версий файлов аккаунтов) дают nil без ошибки.
func ParseProxy(raw string) (*Proxy, error) {
	if raw == "" || raw == "None" {
		return nil, nil
	}
	m := proxyRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("invalid proxy format %q", raw)
	}
	port, err := strconv.Atoi(m[proxyRe.SubexpIndex("port")])
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid proxy port in %q", raw)
	}
	return &Proxy{
		Scheme:   m[proxyRe.SubexpIndex("scheme")],
		Hostname: m[proxyRe.SubexpIndex("hostname")],
		Port:     port,
		Username: m[proxyRe.SubexpIndex("username")],
		Password: m[proxyRe.SubexpIndex("password")],
	}, nil
}

// Addr возвращает пару host:port.
func (p *Proxy) Addr() string {
	return fmt.Sprintf("%s:%d", p.Hostname, p.Port)
}

// URL восстанавливает каноническую строку прокси, пригодную для HTTP-клиента
// и для сохранения в proxy.txt.
func (p *Proxy) URL() string {
	if p.Username != "" && p.Password != "" {
		return fmt.Sprintf("%s://%s:%s@%s:%d", p.Scheme, p.Username, p.Password, p.Hostname, p.Port)
	}
	if p.Username != "" {
		return fmt.Sprintf("%s://%s@%s:%d", p.Scheme, p.Username, p.Hostname, p.Port)
	}
	return fmt.Sprintf("%s://%s:%d", p.Scheme, p.Hostname, p.Port)
}

// IsSOCKS5 сообщает, можно ли вести через прокси MTProto-трафик.
func (p *Proxy) IsSOCKS5() bool {
	return p != nil && p.Scheme == "socks5"
}
