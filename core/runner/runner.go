package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/hashicorp/go-multierror"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	coretelegram "github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// HTTPApp is implemented by applications that also expose a REST surface.
// The handler is served on the configured HTTP listener alongside the bot.
type HTTPApp interface {
	HTTPHandler() http.Handler
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run loads configuration, bootstraps the app, and starts the bot runtime
// together with the optional HTTP server. Shutdown errors from both surfaces
// are aggregated.
func Run(opts Options) error {
	if opts.LoadConfig == nil {
		return fmt.Errorf("runner: LoadConfig is required")
	}
	if opts.Bootstrap == nil {
		return fmt.Errorf("runner: Bootstrap is required")
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("runner: config path not provided via %s or DefaultConfigPath", env)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("runner: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return fmt.Errorf("runner: loaded config is missing core configuration")
	}

	application, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("runner: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("runner: telegram options build failed: %w", err)
	}

	startedAt := time.Now()
	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.L.With("component", "app").Info("app ready",
			slog.String("event", "ready"),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.L.With("component", "app").Info("shutting down...",
			slog.String("event", "shutdown"),
		)
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var errs *multierror.Error

	httpErrs := runHTTP(ctx, cfg.CoreConfig(), application)

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}

	if err := run(ctx, runOpts); err != nil {
		errs = multierror.Append(errs, err)
	}

	cancel()
	if httpErrs != nil {
		for err := range httpErrs {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

// runHTTP serves the application's REST surface when one is configured.
// Returns nil when the app exposes no HTTP handler or no port is set; the
// channel closes once the server has fully stopped.
func runHTTP(ctx context.Context, cfg *coreconfig.Config, app TelegramApp) <-chan error {
	httpApp, ok := app.(HTTPApp)
	if !ok || cfg.HTTP.Port <= 0 {
		return nil
	}
	handler := httpApp.HTTPHandler()
	if handler == nil {
		return nil
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Listen, cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	out := make(chan error, 2)

	go func() {
		defer close(out)
		logger.HTTP.Info("http listening",
			slog.String("event", "listen"),
			slog.String("addr", srv.Addr),
		)
		serveErr := make(chan error, 1)
		go func() {
			serveErr <- srv.ListenAndServe()
		}()
		select {
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				out <- fmt.Errorf("http server: %w", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				out <- fmt.Errorf("http shutdown: %w", err)
			}
			<-serveErr
		}
	}()

	return out
}
