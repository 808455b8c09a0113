package main

import (
	"log"

	"github.com/joho/godotenv"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/logger"
	"github.com/macmilm-mfc/csv-contact-manager-agent/core/runner"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/bot"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/connector"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/contact"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/httpapi"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/review"
	"github.com/macmilm-mfc/csv-contact-manager-agent/internal/session"
)

type appConfig struct {
	core *coreconfig.Config
}

func (c *appConfig) CoreConfig() *coreconfig.Config { return c.core }

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	err := runner.Run(runner.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        loadConfig,
		Bootstrap:         bootstrap,
	})
	if err != nil {
		log.Fatalf("agent: %v", err)
	}
}

func loadConfig(path string) (runner.ConfigCarrier, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return nil, err
	}
	return &appConfig{core: cfg}, nil
}

func bootstrap(carrier runner.ConfigCarrier) (runner.TelegramApp, error) {
	cfg := carrier.CoreConfig()

	parser := contact.NewParser(cfg.CSV)
	store := session.NewStore(cfg.Session.IdleTimeout())
	conns := connector.NewSet(
		connector.NewMailchimp(cfg.Mailchimp),
		connector.NewPipedrive(cfg.Pipedrive),
	)
	orch := review.New(parser, store, conns)

	api := httpapi.NewServer(orch, cfg.HTTP, cfg.Session.PreviewRows)
	return bot.New(cfg, orch, api.Handler()), nil
}
