package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sportsync/internal/client/breaker"
	"sportsync/internal/client/oddsfeed"
	"sportsync/internal/client/sportsdata"
	"sportsync/internal/config"
	cronrunner "sportsync/internal/cron"
	"sportsync/internal/db"
	"sportsync/internal/eventbus"
	"sportsync/internal/gateway"
	"sportsync/internal/handler"
	"sportsync/internal/ingest"
	"sportsync/internal/logger"
	"sportsync/internal/metrics"
	"sportsync/internal/ratelimit"
	gormrepository "sportsync/internal/repository/gorm"
)

func main() {
	cfgPath := os.Getenv("SS_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Provider stack: one governor and one breaker per upstream.
	sportGovernor := ratelimit.NewGovernor(sportsdata.Source, cfg.SportData.DailyLimit,
		ratelimit.WithPerMinuteLimit(cfg.SportData.PerMinuteLimit))
	sportBreaker := breaker.New(sportsdata.Source,
		cfg.SportData.BreakerFailureThreshold,
		cfg.SportData.BreakerSuccessThreshold,
		cfg.SportData.BreakerCooldown)
	sportClient := sportsdata.NewClient(sportsdata.Options{
		APIKey:         cfg.SportData.APIKey,
		Timeout:        cfg.SportData.Timeout,
		MaxRetries:     cfg.SportData.MaxRetries,
		RetryBaseDelay: cfg.SportData.RetryBaseDelay,
	}, sportGovernor, sportBreaker, logger)

	oddsGovernor := ratelimit.NewGovernor(oddsfeed.Source, cfg.OddsFeed.DailyLimit,
		ratelimit.WithPerMinuteLimit(cfg.OddsFeed.PerMinuteLimit))
	oddsBreaker := breaker.New(oddsfeed.Source,
		cfg.OddsFeed.BreakerFailureThreshold,
		cfg.OddsFeed.BreakerSuccessThreshold,
		cfg.OddsFeed.BreakerCooldown)
	oddsClient := oddsfeed.NewClient(oddsfeed.Options{
		BaseURL: cfg.OddsFeed.BaseURL,
		APIKey:  cfg.OddsFeed.APIKey,
		Timeout: cfg.OddsFeed.Timeout,
	}, oddsGovernor, oddsBreaker, logger)

	store := gormrepository.New(dbConn.Gorm)
	instruments := metrics.New(prometheus.DefaultRegisterer)

	var bus eventbus.Bus
	var amqpBus *eventbus.AMQPBus
	if strings.EqualFold(cfg.EventBus.Mode, "amqp") {
		amqpBus, err = eventbus.NewAMQP(logger, eventbus.AMQPOptions{
			URL:             cfg.EventBus.AMQPURL,
			MaxRetries:      cfg.EventBus.MaxRetries,
			RetryBackoff:    cfg.EventBus.RetryBackoff,
			DeadLetterTopic: cfg.EventBus.DeadLetterTopic,
		})
		if err != nil {
			logger.Fatal("amqp bus setup failed", zap.Error(err))
		}
		bus = amqpBus
	} else {
		bus = eventbus.NewInProc(logger, cfg.EventBus.MaxRetries, cfg.EventBus.RetryBackoff)
	}

	eventStore := eventbus.NewStore(store)
	uow := eventbus.NewUnitOfWork(store, eventStore, bus, logger)
	upserter := ingest.NewBatchUpserter(store, logger, cfg.Ingest.BatchSize)
	merger := ingest.NewMerger(cfg.Sources.Priority)
	orchestrator := ingest.NewOrchestrator(sportClient, oddsClient, upserter, merger, uow, store, logger, cfg.Ingest)

	var hub *gateway.Hub
	if cfg.Gateway.Enabled {
		hub = gateway.NewHub(logger, cfg.Gateway.SendBufferSize)
		if err := hub.AttachBus(bus); err != nil {
			logger.Fatal("gateway bus attach failed", zap.Error(err))
		}
	}
	if err := bus.Subscribe(eventbus.TypeSportsUpdate, "metrics-sports", func(ctx context.Context, ev eventbus.Event) error {
		instruments.BusEventsTotal.WithLabelValues(ev.Type).Inc()
		return nil
	}); err != nil {
		logger.Warn("metrics subscription failed", zap.Error(err))
	}
	if err := bus.Subscribe(eventbus.TypeMarketUpdate, "metrics-markets", func(ctx context.Context, ev eventbus.Event) error {
		instruments.BusEventsTotal.WithLabelValues(ev.Type).Inc()
		return nil
	}); err != nil {
		logger.Warn("metrics subscription failed", zap.Error(err))
	}

	if amqpBus != nil {
		go func() {
			if err := amqpBus.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("amqp bus stopped", zap.Error(err))
			}
		}()
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	pprof.Register(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Bus: bus}
	healthHandler.Register(engine)
	ingestHandler := &handler.IngestHandler{
		Orchestrator: orchestrator,
		Repo:         store,
		Governors: map[string]*ratelimit.Governor{
			sportsdata.Source: sportGovernor,
			oddsfeed.Source:   oddsGovernor,
		},
		Breakers: map[string]func() breaker.State{
			sportsdata.Source: sportBreaker.State,
			oddsfeed.Source:   oddsBreaker.State,
		},
		Hub:    hub,
		Logger: logger,
	}
	ingestHandler.Register(engine)
	if hub != nil {
		engine.GET("/ws", func(c *gin.Context) {
			hub.ServeWS(c.Writer, c.Request)
		})
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		registerCron(cronRunner, cfg, orchestrator, instruments, logger)
	}

	// Budget and breaker gauges refresh on a fixed tick.
	_, err = cronRunner.Add("@every 15s", func(ctx context.Context) {
		instruments.BudgetRemaining.WithLabelValues(sportsdata.Source).Set(float64(sportGovernor.Remaining()))
		instruments.BudgetRemaining.WithLabelValues(oddsfeed.Source).Set(float64(oddsGovernor.Remaining()))
		instruments.BreakerOpen.WithLabelValues(sportsdata.Source).Set(breakerGauge(sportBreaker.State()))
		instruments.BreakerOpen.WithLabelValues(oddsfeed.Source).Set(breakerGauge(oddsBreaker.State()))
		if hub != nil {
			instruments.WSConnections.Set(float64(hub.ClientCount()))
		}
	})
	if err != nil {
		logger.Warn("cron register gauge refresh failed", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if hub != nil {
		hub.Shutdown()
	}
	if err := bus.Shutdown(shutdownCtx); err != nil {
		logger.Warn("bus shutdown failed", zap.Error(err))
	}
}

func registerCron(runner *cronrunner.Runner, cfg config.Config, orchestrator *ingest.Orchestrator, instruments *metrics.Metrics, logger *zap.Logger) {
	addCycle := func(spec, kind string, run func(context.Context) (*ingest.CycleSummary, error)) {
		if spec == "" {
			return
		}
		_, err := runner.Add(spec, func(ctx context.Context) {
			summary, err := run(ctx)
			outcome := "ok"
			if err != nil {
				outcome = "error"
				logger.Warn("cron sync failed", zap.String("kind", kind), zap.Error(err))
			}
			instruments.CyclesTotal.WithLabelValues(kind, outcome).Inc()
			if summary == nil {
				return
			}
			if kind == "full" {
				instruments.CycleDuration.Observe(summary.Duration.Seconds())
			}
			for sport, s := range summary.Sports {
				instruments.ObserveUpsert("event", s.Events.Created, s.Events.Updated, s.Events.Errors)
				instruments.ObserveUpsert("league", s.Leagues.Created, s.Leagues.Updated, s.Leagues.Errors)
				instruments.ObserveUpsert("team", s.Teams.Created, s.Teams.Updated, s.Teams.Errors)
				if s.Skipped > 0 {
					instruments.SkippedTotal.WithLabelValues(string(sport)).Add(float64(s.Skipped))
				}
			}
		})
		if err != nil {
			logger.Warn("cron register failed", zap.String("kind", kind), zap.Error(err))
		}
	}

	addCycle(cfg.Cron.FullSync, "full", orchestrator.RunCycle)
	addCycle(cfg.Cron.LiveSync, "live", orchestrator.SyncLive)
	addCycle(cfg.Cron.OddsSync, "odds", orchestrator.SyncOdds)
}

func breakerGauge(state breaker.State) float64 {
	if state == breaker.StateOpen {
		return 1
	}
	return 0
}
