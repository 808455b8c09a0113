package bot

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
	tg "github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram/router"
	tgsender "github.com/macmilm-mfc/csv-contact-manager-agent/core/telegram/sender"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/review"

	tele "gopkg.in/telebot.v4"
)

// App is the CSV contact manager bot: it accepts CSV uploads, walks the
// reviewer through each row and pushes approved rows to the configured CRMs.
type App struct {
	cfg  *coreconfig.Config
	orch *review.Orchestrator
	api  http.Handler

	startedAt time.Time
	uploads   atomic.Uint64
	reviews   atomic.Uint64
}

// New builds the application around its collaborators. api may be nil when
// the REST surface is disabled.
func New(cfg *coreconfig.Config, orch *review.Orchestrator, api http.Handler) *App {
	return &App{
		cfg:       cfg,
		orch:      orch,
		api:       api,
		startedAt: time.Now(),
	}
}

// HTTPHandler exposes the REST surface to the runner.
func (a *App) HTTPHandler() http.Handler { return a.api }

// TelegramRunOptions wires commands, callbacks and routes for the bot runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	a.registerCommands(reg)
	a.registerCallbacks(reg)
	reg.SetDocumentHandler(a.handleDocument)
	reg.SetTextFallback(a.handleUnknownText)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
		OnAdminReject: func(c tele.Context) error {
			return c.Send("This command is restricted.")
		},
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{})...)

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		DispatcherOptions: tgsender.Options{
			QueueSize: 256,
			Workers:   4,
		},
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.orch.Store().StartJanitor(ctx)
			return nil
		},
	}, nil
}
