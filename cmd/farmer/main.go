package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"coinsweeper-farmer/internal/app"
	"coinsweeper-farmer/internal/infra/config"
	"coinsweeper-farmer/internal/infra/logger"
	"coinsweeper-farmer/internal/infra/pr"
	"coinsweeper-farmer/internal/infra/timeutil"
)

func main() {
	if err := pr.Init(); err != nil {
		logger.Fatal("failed to assigning stdout and stderr", zap.Error(err))
	}

	// envPath определяет расположение .env с секретами и общими настройками.
	envPath := flag.String("env", ".env", "path to .env file")
	// register включает интерактивную регистрацию нового аккаунта вместо фермы.
	register := flag.Bool("register", false, "register a new account session and exit")
	flag.Parse()

	if err := config.Load(*envPath); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	// Часовая зона приложения задаётся глобально: от неё зависит ночное окно.
	if locApp, err := timeutil.ParseLocation(config.Env().AppTimezone); err != nil {
		logger.Fatal("failed to parse APP_TIMEZONE", zap.Error(err))
	} else {
		time.Local = locApp //nolint:reassign // намеренно задаём часовую зону процесса
	}

	// logger.Init задаёт уровень, SetWriters направляет вывод в подсистему pr.
	logger.Init(config.Env().LogLevel)
	logger.SetWriters(pr.Stdout(), pr.Stderr())
	if config.Env().LogFile != "" {
		logger.InitFileSink(logger.FileSinkOptions{
			Path:       config.Env().LogFile,
			Level:      config.Env().LogFileLevel,
			MaxSizeMB:  config.Env().LogFileMaxSize,
			MaxBackups: config.Env().LogFileMaxBackups,
			MaxAgeDays: config.Env().LogFileMaxAge,
			Compress:   config.Env().LogFileCompress,
		})
	}
	for _, msg := range config.Warnings() {
		logger.Warn(msg)
	}

	// Контекст с обработкой системных сигналов (Ctrl+C/SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Закрываем readline при отмене контекста, чтобы не зависнуть на вводе.
	go func() {
		<-ctx.Done()
		pr.InterruptReadline()
	}()

	a := app.New(config.Env())

	if *register {
		if err := a.Register(ctx); err != nil {
			logger.Fatal("registration failed", zap.Error(err))
		}
		logger.Info("registration complete")
		return
	}

	if err := a.Run(ctx); err != nil {
		logger.Fatal("farm run failed", zap.Error(err))
	}
	logger.Info("Graceful shutdown complete")
}
