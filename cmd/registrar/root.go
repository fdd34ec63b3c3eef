package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/alem-hub/course-registry/config"
	"github.com/alem-hub/course-registry/internal/application/eventhandler"
	"github.com/alem-hub/course-registry/internal/application/registry"
	"github.com/alem-hub/course-registry/internal/domain/teacher"
	"github.com/alem-hub/course-registry/internal/infrastructure/messaging"
	"github.com/alem-hub/course-registry/internal/interface/console"
	"github.com/alem-hub/course-registry/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROOT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "registrar",
		Short:         "Консольный реестр записи студентов на курсы",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.LoadOptions{Viper: v, ConfigFile: configFile})
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.String("catalog", "", "YAML catalog of teachers and courses")
	flags.String("policy", "", "repeated subscription policy: deduplicate or accumulate")
	flags.String("prompts", "", "input prompts: auto, always or never")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: json or pretty")
	flags.String("redis-url", "", "Redis URL for event fan-out, e.g. redis://localhost:6379/0")

	_ = v.BindPFlag("registry.catalog", flags.Lookup("catalog"))
	_ = v.BindPFlag("registry.policy", flags.Lookup("policy"))
	_ = v.BindPFlag("registry.prompts", flags.Lookup("prompts"))
	_ = v.BindPFlag("observability.log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", flags.Lookup("log-format"))
	_ = v.BindPFlag("redis.url", flags.Lookup("redis-url"))

	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN
// ══════════════════════════════════════════════════════════════════════════════

func run(ctx context.Context, cfg *config.Config, in io.Reader, out, errOut io.Writer) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    errOut,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.Format(cfg.Observability.LogFormat),
		AddCaller: cfg.IsDevelopment(),
	}).With(logger.String("app", cfg.App.Name))
	ctx = logger.WithContext(ctx, log)

	log.Info("starting course registry",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("policy", string(cfg.Registry.SubscriptionPolicy())),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЗАГРУЗКА КАТАЛОГА
	// ─────────────────────────────────────────────────────────────────────────
	catalog, err := config.LoadCatalog(cfg.Registry.Catalog)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	teachers := make([]*teacher.Teacher, 0, len(catalog.Teachers))
	for _, entry := range catalog.Teachers {
		t, err := teacher.NewTeacher(uuid.NewString(), entry.Name)
		if err != nil {
			return fmt.Errorf("failed to create teacher %q: %w", entry.Name, err)
		}
		teachers = append(teachers, t)
	}

	seeds := make([]registry.CourseSeed, 0, len(catalog.Courses))
	for _, entry := range catalog.Courses {
		seeds = append(seeds, registry.CourseSeed{Title: entry.Title, Capacity: entry.Capacity})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS (Redis опционально)
	// ─────────────────────────────────────────────────────────────────────────
	bus := setupEventBus(ctx, cfg, log)
	defer shutdown(bus, cfg.App.ShutdownTimeout, log)

	audit := eventhandler.NewAuditHandler(log)
	if err := audit.Register(bus); err != nil {
		return fmt.Errorf("failed to register audit handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕЕСТР
	// ─────────────────────────────────────────────────────────────────────────
	sinks := console.NewSinks(out)

	reg, err := registry.New(registry.Options{
		Teachers: teachers,
		Courses:  seeds,
		Policy:   cfg.Registry.SubscriptionPolicy(),
		Bus:      bus,
		Sinks:    sinks,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. МЕНЮ
	// ─────────────────────────────────────────────────────────────────────────
	menu := console.NewMenu(reg, console.MenuOptions{
		In:          in,
		Sinks:       sinks,
		ShowPrompts: showPrompts(cfg.Registry.Prompts, in),
		Logger:      log,
	})

	if err := menu.Run(ctx); err != nil {
		return fmt.Errorf("menu: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАВЕРШЕНИЕ (шина закрывается в defer из этапа 3)
	// ─────────────────────────────────────────────────────────────────────────
	audit.LogSummary()

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupEventBus возвращает Redis-шину, если Redis настроен и доступен,
// иначе шину в памяти. Недоступный Redis не мешает работе меню.
func setupEventBus(ctx context.Context, cfg *config.Config, log *logger.Logger) messaging.Bus {
	localCfg := messaging.DefaultInMemoryEventBusConfig()
	localCfg.AsyncMode = cfg.EventBus.Async
	localCfg.WorkerPoolSize = cfg.EventBus.Workers
	localCfg.Logger = log

	if !cfg.Redis.Enabled() {
		return messaging.NewInMemoryEventBus(localCfg)
	}

	log.Info("connecting to Redis...")
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout+time.Second)
	defer cancel()

	client, err := messaging.NewGoRedisClient(connectCtx, messaging.RedisOptions{
		URL:          cfg.Redis.URL,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		Logger:       log,
	})
	if err != nil {
		log.Warn("Redis unavailable, events stay in-process", logger.Err(err))
		return messaging.NewInMemoryEventBus(localCfg)
	}

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         client,
		ChannelName:    cfg.Redis.Channel,
		LocalBusConfig: localCfg,
		Logger:         log,
	})
	if err != nil {
		_ = client.Close()
		log.Warn("Redis subscription failed, events stay in-process", logger.Err(err))
		return messaging.NewInMemoryEventBus(localCfg)
	}

	log.Info("Redis event fan-out enabled",
		logger.String("channel", cfg.Redis.Channel),
		logger.String("instance_id", bus.InstanceID()),
	)
	return bus
}

// shutdown закрывает шину, ожидая не дольше timeout, и пишет её счётчики.
func shutdown(bus messaging.Bus, timeout time.Duration, log *logger.Logger) {
	done := make(chan error, 1)
	go func() { done <- bus.Close() }()

	select {
	case err := <-done:
		if err != nil {
			log.Error("failed to close event bus", logger.Err(err))
		}
	case <-time.After(timeout):
		log.Warn("event bus did not close in time", logger.Duration("timeout", timeout))
	}

	log.Info("event bus stats", bus.Metrics().Snapshot().Fields()...)
	log.Info("course registry stopped")
}

// showPrompts решает, печатать ли приглашения ко вводу.
func showPrompts(mode string, in io.Reader) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if f, ok := in.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
