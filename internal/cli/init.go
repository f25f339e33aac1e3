// Package cli provides common initialization for the binaries under cmd/.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financas/internal/backend"
	"financas/internal/config"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/services"
)

// SetupLogger initializes structured logging at the given LOG_LEVEL and sets
// it as the slog default.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{Level: log.ParseLevel(level), Component: log.ComponentApp})
	slog.SetDefault(logger.Logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App is the wired set of collaborators shared by the binaries.
type App struct {
	Config       *config.Config
	Logger       *log.Logger
	Cards        core.CardBook
	Backend      *backend.Result
	Ledger       *services.LedgerService
	Materializer *services.RecurringMaterializer
}

// Bootstrap loads .env and configuration, then opens the store, the optional
// event client and the card book.
func Bootstrap(ctx context.Context) (*App, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := SetupLogger(cfg.LogLevel)

	cards, err := config.LoadCardBook(cfg.CardsFile, cfg.DefaultClosingDay)
	if err != nil {
		return nil, err
	}
	logger.Info("Card book loaded", log.FieldCount, len(cards.Cards()), "default_closing_day", cards.DefaultClosingDay)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	ledger := services.NewLedgerService(res.Store, cards, res.Events, logger)
	return &App{
		Config:       cfg,
		Logger:       logger,
		Cards:        cards,
		Backend:      res,
		Ledger:       ledger,
		Materializer: services.NewRecurringMaterializer(ledger, res.Store),
	}, nil
}

func (a *App) Close() {
	if err := a.Backend.Close(); err != nil {
		a.Logger.Error("Failed to close backend", log.FieldError, err)
	}
}

// ShutdownTimeout bounds the cleanup after a shutdown signal.
const ShutdownTimeout = 30 * time.Second

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
