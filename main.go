package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/varsilias/whait/internal/analysis"
	"github.com/varsilias/whait/internal/api"
	"github.com/varsilias/whait/internal/buildinfo"
	"github.com/varsilias/whait/internal/cache"
	"github.com/varsilias/whait/internal/chat"
	"github.com/varsilias/whait/internal/completion"
	"github.com/varsilias/whait/internal/config"
	"github.com/varsilias/whait/internal/giphy"
	"github.com/varsilias/whait/internal/llm"
	"github.com/varsilias/whait/internal/logging"
	"github.com/varsilias/whait/internal/middleware"
	"github.com/varsilias/whait/internal/models"
	"github.com/varsilias/whait/internal/personality"
	"github.com/varsilias/whait/internal/queue"
	"github.com/varsilias/whait/internal/realtime"
	"github.com/varsilias/whait/internal/store"
	"github.com/varsilias/whait/internal/ui"
)

func main() {
	bootLog := logging.New("info", false)
	cfg, err := config.Load(bootLog)
	if err != nil {
		bootLog.Error("config", "err", err)
		os.Exit(1)
	}

	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	level := flag.String("log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	json := flag.Bool("log-json", cfg.LogJSON, "log as JSON")
	flag.Parse()

	logger := logging.New(*level, *json)
	logger.Info("build", "version", buildinfo.Version, "commit", buildinfo.Commit, "built_at", buildinfo.BuiltAt)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store init", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	// Prefer the provider when a key is configured; else fall back to echo
	var (
		engine    completion.Engine
		modelsMgr models.Manager
	)
	if cfg.OpenAIAPIKey != "" {
		lc := llm.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAITimeout, logger)
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := lc.Ping(pingCtx); err != nil {
			logger.Warn("provider not reachable yet; replies will use the fallback until it is", "err", err)
		}
		cancel()
		engine = completion.NewOpenAIEngine(lc, cfg.OpenAIModel, cfg.MaxTokens, cfg.Temperature)
		modelsMgr = models.NewProviderManager(lc)
	} else {
		logger.Warn("OPENAI_API_KEY not set; falling back to echo engine")
		engine = completion.NewEchoEngine(30 * time.Millisecond)
		modelsMgr = models.NewStaticManager([]string{cfg.OpenAIModel})
	}

	personalities, err := personality.Load(cfg.PersonalitiesFile)
	if err != nil {
		logger.Error("personalities", "err", err)
		os.Exit(1)
	}

	sched, err := newScheduler(cfg, logger)
	if err != nil {
		logger.Error("scheduler init", "err", err)
		os.Exit(1)
	}

	hub := realtime.NewHub(logger, 32)
	proxy := completion.NewService(logger, engine, cfg.CurrentUserID)
	chatCtrl := chat.NewController(logger, st, hub, sched, proxy, personalities, chat.Options{
		HumanID:    cfg.CurrentUserID,
		ReplyDelay: cfg.ReplyDelay,
	})
	list := chat.NewList(logger, st)

	uih, err := ui.New(logger, chatCtrl, list, personalities)
	if err != nil {
		logger.Error("ui init", "err", err)
		os.Exit(1)
	}

	h := api.NewHandlers(logger, proxy, chatCtrl, list, modelsMgr, hub)
	h.Model = cfg.OpenAIModel
	h.Gifs = giphy.NewAnswerer(logger, engine, giphy.NewClient(giphy.DefaultBaseURL, cfg.GiphyAPIKey, 15*time.Second, logger), cfg.GiphyModel)
	h.Admin = api.NewAdmin(h, analysis.NewAnalyzer(logger, engine, st, cfg.AnalysisModel, cfg.ChunkGap))

	mux := chi.NewRouter()
	ui.RegisterRoutes(mux, uih)
	api.RegisterRoutes(mux, h)

	var handler http.Handler = mux
	handler = middleware.CORS()(handler)
	handler = middleware.Recoverer(logger)(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.AccessLog(logger)(handler)
	handler = middleware.VersionHeader()(handler)

	server := http.Server{
		Addr:              fmt.Sprintf(":%s", *addr),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// completions and analysis can take a while
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler stopped", "err", err)
			stop()
		}
	}()

	errChan := make(chan error, 1)
	go func() { errChan <- server.ListenAndServe() }()
	logger.Info("server is listening", "port", *addr, "store", cfg.Store, "model", cfg.OpenAIModel)

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
	if err := sched.Close(); err != nil {
		logger.Error("scheduler close", "err", err)
	}
	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store {
	case config.StorePostgres:
		pool, cerr := store.Connect(ctx, cfg.DatabaseURL)
		if cerr != nil {
			return nil, cerr
		}
		pg := store.NewPostgresStore(pool)
		if err = pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		s = pg
	case config.StoreBadger:
		if s, err = store.OpenBadger(cfg.BadgerPath, log); err != nil {
			return nil, err
		}
	default:
		s = store.NewMemoryStore()
	}

	if cfg.RedisURL == "" {
		return s, nil
	}
	rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable; list cache disabled", "err", err)
		return s, nil
	}
	log.Info("conversation list cache enabled", "ttl", cfg.CacheTTL.String())
	return store.NewCachedStore(s, rc, cfg.CacheTTL, log), nil
}

func newScheduler(cfg *config.Config, log *slog.Logger) (queue.Scheduler, error) {
	if cfg.RedisURL == "" {
		return queue.NewTimerScheduler(log, time.Minute), nil
	}
	log.Info("reply jobs go through asynq")
	return queue.NewAsynqScheduler(cfg.RedisURL, 10, cfg.ReplyDelay, log)
}
