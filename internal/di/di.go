package di

import (
	"log/slog"

	"github.com/samber/do/v2"
	"github.com/samber/oops"

	feedservice "promowatch/internal/modules/feed/service"
	"promowatch/internal/modules/message/repository"
	"promowatch/internal/modules/monitor"
	"promowatch/internal/modules/security"
	"promowatch/internal/modules/session"
	"promowatch/internal/shared/config"
	transporthttp "promowatch/internal/transport/http"
	"promowatch/internal/transport/telegram"
)

// SetupDI initializes the dependency injection container
func SetupDI() (do.Injector, error) {
	injector := do.New()

	// Register Config
	do.Provide(injector, func(i do.Injector) (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, oops.With("context", "failed to load config").Wrap(err)
		}
		return cfg, nil
	})

	// Register Vault
	do.Provide(injector, func(i do.Injector) (*security.Vault, error) {
		cfg := do.MustInvoke[*config.Config](i)
		vault, err := security.NewVault(cfg.SecureDir, cfg.MasterSecret)
		if err != nil {
			return nil, oops.With("secure_dir", cfg.SecureDir, "context", "failed to initialize vault").Wrap(err)
		}
		return vault, nil
	})

	// Register RateLimiter
	do.Provide(injector, func(i do.Injector) (*security.RateLimiter, error) {
		return security.NewRateLimiter(), nil
	})

	// Register IPLedger
	do.Provide(injector, func(i do.Injector) (*security.IPLedger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return security.NewIPLedger(cfg.SecureDir), nil
	})

	// Register Auditor
	do.Provide(injector, func(i do.Injector) (*security.Auditor, error) {
		return security.NewAuditor(), nil
	})

	// Register session Storage
	do.Provide(injector, func(i do.Injector) (*session.Storage, error) {
		cfg := do.MustInvoke[*config.Config](i)
		vault := do.MustInvoke[*security.Vault](i)
		storage, err := session.NewStorage(cfg.SecureDir, vault)
		if err != nil {
			return nil, oops.With("secure_dir", cfg.SecureDir, "context", "failed to initialize session storage").Wrap(err)
		}
		return storage, nil
	})

	// Register session Manager
	do.Provide(injector, func(i do.Injector) (*session.Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		storage := do.MustInvoke[*session.Storage](i)
		limiter := do.MustInvoke[*security.RateLimiter](i)
		ledger := do.MustInvoke[*security.IPLedger](i)
		auditor := do.MustInvoke[*security.Auditor](i)
		dialer := telegram.NewDialer(cfg.TelegramBotToken)
		prompter := telegram.NewStdinPrompter()
		return session.NewManager(cfg.Identity, storage, limiter, ledger, auditor, dialer, prompter), nil
	})

	// Register message Repository
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo, err := repository.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, oops.With("storage_path", cfg.StoragePath, "context", "failed to initialize storage").Wrap(err)
		}
		return repo, nil
	})

	// Register DedupStore
	do.Provide(injector, func(i do.Injector) (*monitor.DedupStore, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return monitor.NewDedupStore(cfg.ProcessedFile), nil
	})

	// Register Monitor
	do.Provide(injector, func(i do.Injector) (*monitor.Monitor, error) {
		cfg := do.MustInvoke[*config.Config](i)
		dedup := do.MustInvoke[*monitor.DedupStore](i)
		repo := do.MustInvoke[repository.Repository](i)
		return monitor.NewMonitor(cfg, dedup, repo), nil
	})

	// Register Sender (only when an output channel is configured)
	do.Provide(injector, func(i do.Injector) (*monitor.Sender, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.OutputChannel == "" {
			return nil, nil
		}
		sink, err := telegram.NewSink(cfg.TelegramBotToken)
		if err != nil {
			return nil, oops.With("context", "failed to initialize sender").Wrap(err)
		}
		return monitor.NewSender(sink, cfg.OutputChannel), nil
	})

	// Register FeedService
	do.Provide(injector, func(i do.Injector) (*feedservice.Service, error) {
		repo := do.MustInvoke[repository.Repository](i)
		return feedservice.New(repo), nil
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*transporthttp.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		feedService := do.MustInvoke[*feedservice.Service](i)
		auditor := do.MustInvoke[*security.Auditor](i)
		manager := do.MustInvoke[*session.Manager](i)
		server := transporthttp.NewServer(cfg, feedService, auditor, manager)
		server.SetLogger(slog.Default())
		return server, nil
	})

	return injector, nil
}

// ShutdownDI gracefully shuts down all services
func ShutdownDI(injector do.Injector) error {
	if dedup, err := do.Invoke[*monitor.DedupStore](injector); err == nil && dedup != nil {
		if err := dedup.Flush(); err != nil {
			slog.Error("Failed to flush processed IDs on shutdown", "error", err)
		}
	}
	return nil
}
