// Пакет config отвечает за сбор и предоставление конфигурации всего приложения
// (фермы аккаунтов мини-игры). Он:
//  1. читает переменные окружения из .env (через godotenv),
//  2. нормализует и валидирует входные значения,
//  3. накапливает предупреждения о подставленных значениях по умолчанию,
//  4. фиксирует результат в singleton c потокобезопасным доступом.
//
// Бизнес-контекст: конфиг задаёт учётные данные MTProto-приложения, реферальный
// идентификатор, вероятность выигрыша раунда, границы пауз и количества раундов,
// ночное окно тишины и параметры логирования.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Range — включительный числовой диапазон [Min, Max], из которого в рантайме
// выбираются случайные значения (число раундов, время «игры», задержка старта).
type Range struct {
	Min int
	Max int
}

// EnvConfig описывает параметры, приходящие из окружения (.env). Значения уже
// прошли минимальную валидацию и нормализацию в loadConfig; в рантайме по месту
// использования предполагается, что EnvConfig последователен.
type EnvConfig struct {
	APIID   int
	APIHash string

	RefID       int64
	ChanceToWin int
	NightSleep  bool

	RoundsPerGame Range // раундов за один игровой цикл
	PlayTime      Range // секунд «игры» в одном раунде
	StartDelay    Range // секунд задержки старта каждого аккаунта

	SessionsDir string
	AppTimezone string
	TestDC      bool

	LogLevel string
	// Файловое логирование (LOG_FILE не имеет дефолта — задаётся явно для активации)
	LogFile           string
	LogFileLevel      string
	LogFileMaxSize    int
	LogFileMaxBackups int
	LogFileMaxAge     int
	LogFileCompress   bool
}

// Config хранит конфигурацию среды.
//
// Потокобезопасность: публичные геттеры берут RLock; перезагрузка в рантайме
// не предусмотрена, повторный Load возвращает ошибку.
type Config struct {
	Env      EnvConfig
	warnings []string
	mu       sync.RWMutex
}

// Значения по умолчанию для параметров окружения.
const (
	defaultRefID             = 0
	defaultChanceToWin       = 80
	defaultSessionsDir       = "sessions"
	defaultLogLevel          = "info"
	defaultAppTimezone       = "Europe/Moscow"
	defaultLogFileLevel      = "debug"
	defaultLogFileMaxSize    = 50
	defaultLogFileMaxBackups = 3
	defaultLogFileMaxAge     = 7
	defaultLogFileCompress   = true

	maxChance = 100
)

var (
	defaultRoundsPerGame = Range{Min: 2, Max: 5}
	defaultPlayTime      = Range{Min: 30, Max: 90}
	defaultStartDelay    = Range{Min: 1, Max: 5}
)

var (
	cfgInstance *Config
	cfgDone     bool
)

// Load — точка входа для инициализации глобальной конфигурации.
// Повторный вызов запрещён, чтобы избежать гонок конфигурации на старте.
func Load(envPath string) error {
	if cfgDone {
		return errors.New("config already loaded")
	}
	newCfg, err := loadConfig(envPath)
	if err != nil {
		return err
	}
	cfgInstance = newCfg
	cfgDone = true
	return nil
}

// loadConfig выполняет фактическую загрузку/валидацию без установки глобального
// состояния. Удобно для тестов.
func loadConfig(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	apiID, err := parseRequiredInt("API_ID")
	if err != nil {
		return nil, err
	}

	apiHash := strings.TrimSpace(os.Getenv("API_HASH"))
	if apiHash == "" {
		return nil, errors.New("env API_HASH must be set")
	}

	var warnings []string

	refID := int64(parseIntDefault("REF_ID", defaultRefID, nonNegative, &warnings))
	chance := parseIntDefault("CHANCE_TO_WIN", defaultChanceToWin, percent, &warnings)
	nightSleep := parseBoolDefault("NIGHT_SLEEP", true, &warnings)
	rounds := parseRangeDefault("ROUND_COUNT_EACH_GAME", defaultRoundsPerGame, &warnings)
	playTime := parseRangeDefault("TIME_TO_PLAY_EACH_GAME", defaultPlayTime, &warnings)
	startDelay := parseRangeDefault("DELAY_EACH_ACCOUNT", defaultStartDelay, &warnings)
	sessionsDir := sanitizeValue("SESSIONS_DIR", os.Getenv("SESSIONS_DIR"), defaultSessionsDir, &warnings)
	appTimezone := sanitizeValue("APP_TIMEZONE", os.Getenv("APP_TIMEZONE"), defaultAppTimezone, &warnings)
	testDC := strings.EqualFold(strings.TrimSpace(os.Getenv("TEST_DC")), "true")
	logLevel := sanitizeLogLevel(os.Getenv("LOG_LEVEL"), defaultLogLevel, &warnings)
	logFile := strings.TrimSpace(os.Getenv("LOG_FILE"))
	logFileLevel := sanitizeLogLevel(os.Getenv("LOG_FILE_LEVEL"), defaultLogFileLevel, &warnings)
	logFileMaxSize := parseIntDefault("LOG_FILE_MAX_SIZE_MB", defaultLogFileMaxSize, greaterThanZero, &warnings)
	logFileMaxBackups := parseIntDefault("LOG_FILE_MAX_BACKUPS", defaultLogFileMaxBackups, nonNegative, &warnings)
	logFileMaxAge := parseIntDefault("LOG_FILE_MAX_AGE_DAYS", defaultLogFileMaxAge, nonNegative, &warnings)
	logFileCompress := parseBoolDefault("LOG_FILE_COMPRESS", defaultLogFileCompress, &warnings)

	env := EnvConfig{
		APIID:             apiID,
		APIHash:           apiHash,
		RefID:             refID,
		ChanceToWin:       chance,
		NightSleep:        nightSleep,
		RoundsPerGame:     rounds,
		PlayTime:          playTime,
		StartDelay:        startDelay,
		SessionsDir:       sessionsDir,
		AppTimezone:       appTimezone,
		TestDC:            testDC,
		LogLevel:          logLevel,
		LogFile:           logFile,
		LogFileLevel:      logFileLevel,
		LogFileMaxSize:    logFileMaxSize,
		LogFileMaxBackups: logFileMaxBackups,
		LogFileMaxAge:     logFileMaxAge,
		LogFileCompress:   logFileCompress,
	}

	return &Config{Env: env, warnings: warnings}, nil
}

// Warnings возвращает накопленные предупреждения, возникшие при загрузке .env
// (например, когда подставлено значение по умолчанию). Возвращается копия.
func Warnings() []string {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	result := make([]string, len(cfgInstance.warnings))
	copy(result, cfgInstance.warnings)
	return result
}

// Env возвращает EnvConfig из глобального singleton. Это неизменяемый снимок
// на момент загрузки.
func Env() EnvConfig {
	return cfgInstance.Env
}

// parseRequiredInt читает обязательную целочисленную переменную окружения name.
func parseRequiredInt(name string) (int, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return 0, fmt.Errorf("env %s must be set", name)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("env %s must be a valid integer: %w", name, err)
	}
	return v, nil
}

// parseIntDefault читает name как int. Если пусто/некорректно/не проходит
// validator — возвращает defaultVal и пишет предупреждение.
func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %d", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

// parseBoolDefault читает name как bool. Если пусто/некорректно — defaultVal и предупреждение.
func parseBoolDefault(name string, defaultVal bool, warnings *[]string) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %v", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid boolean; using default %v", name, value, defaultVal)
		return defaultVal
	}
	return v
}

// parseRangeDefault читает name в формате "min,max". Границы должны быть
// неотрицательными и min <= max, иначе подставляется defaultVal.
func parseRangeDefault(name string, defaultVal Range, warnings *[]string) Range {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %d,%d", name, defaultVal.Min, defaultVal.Max)
		return defaultVal
	}
	r, err := ParseRange(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is invalid (%v); using default %d,%d",
			name, value, err, defaultVal.Min, defaultVal.Max)
		return defaultVal
	}
	return r
}

// ParseRange разбирает строку "min,max" во включительный диапазон.
func ParseRange(value string) (Range, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return Range{}, errors.New("expected two comma-separated integers")
	}
	minV, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Range{}, fmt.Errorf("min: %w", err)
	}
	maxV, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Range{}, fmt.Errorf("max: %w", err)
	}
	if minV < 0 || maxV < minV {
		return Range{}, errors.New("require 0 <= min <= max")
	}
	return Range{Min: minV, Max: maxV}, nil
}

// appendWarningf — накопление предупреждений о некорректных переменных окружения.
func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

// Простые валидаторы чисел для parseIntDefault.
func greaterThanZero(v int) bool { return v > 0 }
func nonNegative(v int) bool     { return v >= 0 }
func percent(v int) bool         { return v >= 0 && v <= maxChance }

// sanitizeLogLevel нормализует уровень и ограничивает значения набором
// {debug, info, warn, error}. Всё остальное превращается в defaultVal.
func sanitizeLogLevel(level string, defaultVal string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		appendWarningf(warnings, "env LOG_LEVEL is not set; using default %q", defaultVal)
		return defaultVal
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env LOG_LEVEL value %q is invalid; using default %q", level, defaultVal)
		return defaultVal
	}
}

// sanitizeValue возвращает значение переменной либо fallback с предупреждением.
func sanitizeValue(name, value, fallback string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		appendWarningf(warnings, "env %s is not set; using default %q", name, fallback)
		return fallback
	}
	return v
}
