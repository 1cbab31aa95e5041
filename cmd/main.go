package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bilgisen/nnews/internal/api"
	"github.com/bilgisen/nnews/internal/cache"
	"github.com/bilgisen/nnews/internal/config"
	"github.com/bilgisen/nnews/internal/fallback"
	"github.com/bilgisen/nnews/internal/feed"
	"github.com/bilgisen/nnews/internal/images"
	"github.com/bilgisen/nnews/internal/logger"
	"github.com/bilgisen/nnews/internal/middleware"
	"github.com/bilgisen/nnews/internal/news"
	"github.com/bilgisen/nnews/internal/scheduler"
	"github.com/bilgisen/nnews/internal/sources"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	output := "stdout"
	if cfg.LogFile != "" {
		output = cfg.LogFile
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: output,
		Pretty: cfg.LogPretty,
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Str("env", cfg.Env).Msg("Starting application...")

	registry, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load source registry")
	}
	log.Info().
		Strs("families", registry.Families()).
		Int("sources", len(registry.All())).
		Msg("Source registry loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	imageCache := newImageCache(ctx, cfg, log)
	defer func() {
		log.Info().Msg("Closing image cache...")
		if err := imageCache.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing image cache")
		}
	}()

	fetcher := feed.NewFetcher(feed.FetcherConfig{
		Timeout:    cfg.RequestTimeout,
		RetryCount: cfg.RetryCount,
		UserAgent:  cfg.UserAgent,
	})
	resolver := images.NewResolver(fetcher, imageCache, images.Config{
		MemoTTL:     cfg.ImageCacheTTL,
		PageTimeout: cfg.PageTimeout,
	}, logger.Component("images"))

	rssAdapter := sources.NewRSSAdapter(fetcher, resolver,
		sources.NewRegionChecker(fetcher, cfg.PageTimeout),
		cfg.RequestTimeout, logger.Component("rss"))

	chain := newTelegramChain(cfg, fetcher)
	chain.Reinitialize(ctx)

	store := cache.NewStore()
	pipelines := []*news.Pipeline{
		news.NewPipeline(news.PipelineConfig{
			Family:  config.FamilyRSS,
			Sources: registry.Family(config.FamilyRSS),
			Adapter: rssAdapter,
			Spec:    news.Families[config.FamilyRSS],
			Delay:   cfg.RSSSourceDelay,
		}, store, logger.Component("pipeline")),
		news.NewPipeline(news.PipelineConfig{
			Family:  config.FamilyNational,
			Sources: registry.Family(config.FamilyNational),
			Adapter: rssAdapter,
			Spec:    news.Families[config.FamilyNational],
			Delay:   cfg.RSSSourceDelay,
		}, store, logger.Component("pipeline")),
		news.NewPipeline(news.PipelineConfig{
			Family:  config.FamilyTelegram,
			Sources: registry.Family(config.FamilyTelegram),
			Adapter: chain,
			Spec:    news.Families[config.FamilyTelegram],
			Delay:   cfg.TelegramSourceDelay,
		}, store, logger.Component("pipeline")),
	}

	jobs := make([]scheduler.Job, 0, len(pipelines))
	for _, p := range pipelines {
		job := scheduler.Job{Name: p.Family(), Interval: cfg.RSSInterval, Run: p.RunCycle}
		if p.Family() == config.FamilyTelegram {
			job.Warmup = cfg.TelegramWarmup
			job.Interval = cfg.TelegramInterval
		}
		jobs = append(jobs, job)
	}
	sched := scheduler.New(cfg.CycleBudget, logger.Component("scheduler"), jobs...)

	svc := news.NewService(store, pipelines, chain, cfg.CombinedLimit)
	svc.SetRefresher(sched)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})
	api.SetupRoutes(app, svc, cfg)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("Server error")
			stop()
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("Refresh still running at shutdown deadline")
	}

	log.Info().Msg("Server exited properly")
}

// newImageCache uses Redis when REDIS_URL is set and reachable, memory otherwise.
func newImageCache(ctx context.Context, cfg *config.Config, log *zerolog.Logger) cache.ImageCache {
	if cfg.RedisURL == "" {
		return cache.NewMemoryClient()
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory image cache")
		return cache.NewMemoryClient()
	}
	log.Info().Msg("Using Redis image cache")
	return client
}

// newTelegramChain wires Bot API as primary, the RSS proxy as the per-call
// secondary and the configured degraded strategy.
func newTelegramChain(cfg *config.Config, fetcher feed.PageFetcher) *fallback.Chain {
	tgLog := logger.Component("telegram")

	bot := sources.NewBotClient(cfg.TelegramBotToken, cfg.TelegramAPIEndpoint, cfg.RequestTimeout)
	proxy := sources.NewTelegramRSSAdapter(fetcher, cfg.TelegramRSSProxyURL, cfg.RequestTimeout, tgLog)

	var degraded fallback.Strategy = sources.NewTelegramScrapeAdapter(fetcher, cfg.TelegramScrapeURL, cfg.UserAgent, cfg.RequestTimeout, tgLog)
	degradedName := sources.ModeScrape
	if cfg.TelegramFallback == config.FallbackRSS {
		degraded = proxy
		degradedName = sources.ModeRSSProxy
	}

	return fallback.New(fallback.Options{
		Primary:      sources.NewTelegramBotAdapter(bot, tgLog),
		Secondary:    proxy,
		Fallback:     degraded,
		PrimaryName:  sources.ModeBotAPI,
		FallbackName: degradedName,
		Activate:     bot.Connect,
	}, logger.Component("fallback"))
}
