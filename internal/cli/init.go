// Package cli provides the initialization shared by every invoicemix command:
// environment, configuration, logging, and the wiring of one session.
package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoicemix/internal/backend"
	"invoicemix/internal/client"
	"invoicemix/internal/config"
	"invoicemix/internal/log"
	"invoicemix/internal/scenario"
	"invoicemix/internal/services"
	"invoicemix/internal/session"
)

// EnvFiles are the optional dotenv files read before configuration loads.
var EnvFiles = []string{".env", ".env.local"}

// SetupLogger builds the process logger from the configuration and sets it
// as the default logger.
func SetupLogger(cfg *config.Config) *log.Logger {
	logCfg := log.DefaultConfig()
	logCfg.Output = os.Stderr
	if cfg != nil {
		logCfg.Level = log.ParseLevel(cfg.LogLevel)
		logCfg.Format = cfg.LogFormat
	}
	logger := log.New(logCfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads the dotenv files and the environment, then
// validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(EnvFiles...); err != nil {
		return nil, err
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewHTTPClient returns the client used to reach the Combination Service.
func NewHTTPClient(cfg *config.Config, logger *log.Logger) *http.Client {
	return &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: log.Transport(logger.WithComponent(log.ComponentClient), http.DefaultTransport),
	}
}

// App is one wired session: the orchestrator plus the resources it owns.
type App struct {
	Config       *config.Config
	Logger       *log.Logger
	Orchestrator *services.Orchestrator
	Scenarios    *scenario.Store
	Formatter    session.Formatter
	Backend      *backend.BackendResult
}

// NewApp wires the Combination Service client, the scenario store and the
// session behind one orchestrator.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	scenarios := scenario.NewStore(res.Store, res.ScenarioOptions(logger)...)
	svc := client.New(cfg.CombinationsAPIURL, NewHTTPClient(cfg, logger))
	orch := services.NewOrchestrator(svc, session.New(), scenarios, services.NewFileSink(cfg.ExportDir), logger)

	logger.Info("Initialized invoicemix",
		log.NewFields().WithComponent(log.ComponentApp).WithOperation(log.OpStartup).ToSlice()...,
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Orchestrator: orch,
		Scenarios:    scenarios,
		Formatter:    session.NewFormatter(cfg.Language()),
		Backend:      res,
	}, nil
}

// Close releases the storage and broker connections.
func (a *App) Close() error {
	return a.Backend.Close()
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM, and a
// channel closed once cleanup has run or the timeout has passed.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-parent.Done():
		}
		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, done
}
