package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	missionx "github.com/tanpawarit/chative-procurement/agent/agents/mission"
	negotiatorx "github.com/tanpawarit/chative-procurement/agent/agents/negotiator"
	contractx "github.com/tanpawarit/chative-procurement/agent/contract"
	idempotencyx "github.com/tanpawarit/chative-procurement/agent/idempotency"
	intentx "github.com/tanpawarit/chative-procurement/agent/intent"
	llmx "github.com/tanpawarit/chative-procurement/agent/llm"
	storex "github.com/tanpawarit/chative-procurement/agent/store"
	toolx "github.com/tanpawarit/chative-procurement/agent/tool"
	configx "github.com/tanpawarit/chative-procurement/pkg/config"
	httpapix "github.com/tanpawarit/chative-procurement/pkg/httpapi"
	_ "github.com/tanpawarit/chative-procurement/pkg/logger/autoload"
	postgresx "github.com/tanpawarit/chative-procurement/pkg/postgres"
)

type AppConfig struct {
	Currency string `envconfig:"PROCUREMENT_CURRENCY" default:"USD"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("LLM")
	dbCfg := configx.MustNew[postgresx.Config]("DATABASE")
	idemCfg := configx.MustNew[idempotencyx.Config]("IDEMPOTENCY")
	negotiatorCfg := configx.MustNew[negotiatorx.Config]("NEGOTIATOR")
	missionCfg := configx.MustNew[missionx.Config]("MISSION")
	httpCfg := configx.MustNew[httpapix.Config]("HTTP")

	store := mustStore(ctx, *dbCfg)

	cache, err := idempotencyx.NewCache(*idemCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize idempotency cache")
	}
	guardOpts := []idempotencyx.Option{idempotencyx.WithWindow(idemCfg.Window)}
	if cache != nil {
		guardOpts = append(guardOpts, idempotencyx.WithCache(cache))
	}
	guard, err := idempotencyx.NewGuard(store, guardOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize idempotency guard")
	}

	caps, err := toolx.NewCapabilities(store, store, guard, toolx.WithCurrency(appCfg.Currency))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tool capabilities")
	}

	var models llmx.Provider
	factory, err := llmx.NewFactory(*llmCfg)
	if err != nil {
		log.Warn().Err(err).Msg("language model unavailable, turns will fail with a configuration error")
		models = llmx.Unavailable{Err: err}
	} else {
		models = factory
	}

	service, err := negotiatorx.NewService(store, caps, models, *negotiatorCfg,
		negotiatorx.WithClassifier(intentx.NewKeywordClassifier()),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize negotiator service")
	}

	coordinator, err := missionx.NewCoordinator(ctx, store, service, *missionCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize mission coordinator")
	}

	server, err := httpapix.NewServer(service, coordinator, *httpCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize http server")
	}
	if err := server.ListenAndServe(ctx); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
	log.Info().Msg("shutdown complete")
}

func mustStore(ctx context.Context, cfg postgresx.Config) contractx.Store {
	if !cfg.Enabled() {
		log.Warn().Msg("DATABASE_DSN not set, using in-memory store")
		return storex.NewMemory()
	}

	db, err := postgresx.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	pg, err := storex.NewPostgres(db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize postgres store")
	}
	if err := pg.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate postgres schema")
	}
	return pg
}
