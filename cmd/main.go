package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vexl-backend/internal/assistant"
	"vexl-backend/internal/config"
	"vexl-backend/internal/content"
	"vexl-backend/internal/handler"
	"vexl-backend/internal/mailer"
	"vexl-backend/internal/middleware"
	"vexl-backend/internal/model"
	"vexl-backend/internal/monitoring"
	"vexl-backend/internal/navigation"
	"vexl-backend/internal/service"
	"vexl-backend/internal/storage"
	"vexl-backend/internal/web"
	"vexl-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	dict, err := loadContent(cfg.Site.ContentDir)
	if err != nil {
		logger.Fatalf("Failed to load site content: %v", err)
	}

	nav, err := navigation.NewRouter(cfg.ActionOverrides())
	if err != nil {
		logger.Fatalf("Invalid assistant actions: %v", err)
	}

	store := newStorage(cfg.Storage)
	metrics := monitoring.NewMetrics()
	hub := service.NewEventHub(0)

	assistantService := service.NewAssistantService(dict, nav, store, hub, service.AssistantConfig{
		Timings: assistant.Timings{
			Typing:    cfg.Assistant.TypingDelay,
			Reveal:    cfg.Assistant.RevealDelay,
			Read:      cfg.Assistant.ReadDelay,
			Reset:     cfg.Assistant.ResetDelay,
			AutoClose: cfg.Assistant.AutoCloseDelay,
		},
		StayOpen:        cfg.Assistant.StayOpen,
		TTL:             cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
		Retention:       cfg.Session.Retention,
		MaxSessions:     cfg.Session.MaxSessions,
	}, service.WithMetrics(metrics))

	relay := mailer.New(mailer.Config{
		Endpoint:         cfg.Mail.Endpoint,
		ServiceID:        cfg.Mail.ServiceID,
		PublicKey:        cfg.Mail.PublicKey,
		PrivateKey:       cfg.Mail.PrivateKey,
		Timeout:          cfg.Mail.Timeout,
		DialRetries:      cfg.Mail.DialRetries,
		RatePerSecond:    cfg.Mail.RatePerSecond,
		Burst:            cfg.Mail.Burst,
		FailureThreshold: cfg.Mail.FailureThreshold,
		Cooldown:         cfg.Mail.Cooldown,
	})
	if !relay.Configured() {
		logger.Warn("Mail relay is not configured, lead forms will report an error")
	}
	leadService := service.NewLeadService(relay, dict, service.LeadConfig{
		ContactTemplateID: cfg.Mail.ContactTemplateID,
		VettingTemplateID: cfg.Mail.VettingTemplateID,
		SendTimeout:       cfg.Mail.Timeout,
	}, metrics)

	lang, _ := model.ParseLanguage(cfg.Site.DefaultLang)
	theme, _ := model.ParseTheme(cfg.Site.DefaultTheme)
	preferenceService := service.NewPreferenceService(store, lang, theme)

	renderer, err := web.NewRenderer()
	if err != nil {
		logger.Fatalf("Failed to parse templates: %v", err)
	}

	handlers := handler.Handlers{
		Pages: handler.NewPageHandler(dict, cfg.Site.BaseURL),
		Assistant: handler.NewAssistantHandler(assistantService, metrics, handler.AssistantHandlerConfig{
			Heartbeat:      cfg.Assistant.Heartbeat,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		}),
		Leads:       handler.NewLeadHandler(leadService),
		Preferences: handler.NewPreferenceHandler(preferenceService),
	}
	if cfg.RateLimit.Enabled {
		handlers.LeadLimit = middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.Lead.RequestsPerMinute,
			Burst:             cfg.RateLimit.Lead.Burst,
			IdleTTL:           cfg.RateLimit.IdleTTL,
		})
	}

	router := setupRouter(cfg, renderer, metrics, preferenceService, handlers)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go assistantService.Run(ctx)
	if cfg.Storage.BackupInterval > 0 {
		go runBackups(ctx, store, cfg.Storage.BackupInterval)
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        newHandler(router, cfg.Server.Gzip),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("Server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}

	stop()
	assistantService.Shutdown()
	if err := store.Close(); err != nil {
		logger.Errorf("Failed to close storage: %v", err)
	}
	logger.Info("Server stopped")
}

func loadContent(dir string) (*content.Dictionary, error) {
	if dir == "" {
		return content.Load()
	}
	logger.Infof("Loading site content from %s", dir)
	return content.LoadDir(dir)
}

// newStorage builds the configured backend and falls back to memory when
// it cannot be initialized.
func newStorage(cfg config.StorageConfig) storage.Storage {
	var store storage.Storage
	switch cfg.Type {
	case "disk":
		store = storage.NewDiskStorage(cfg.DataDir, cfg.CacheSize)
	case "redis":
		rs, err := storage.NewRedisStorage(storage.RedisOptions{
			URL:           cfg.Redis.URL,
			KeyPrefix:     cfg.Redis.KeyPrefix,
			PreferenceTTL: cfg.Redis.PreferenceTTL,
			TranscriptTTL: cfg.Redis.TranscriptTTL,
			Timeout:       cfg.Redis.Timeout,
		})
		if err != nil {
			logger.Errorf("Invalid redis settings, using memory storage: %v", err)
			return initMemory()
		}
		store = rs
	default:
		return initMemory()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to init %s storage, using memory storage: %v", cfg.Type, err)
		return initMemory()
	}
	logger.Infof("Using %s storage", cfg.Type)
	return store
}

func initMemory() storage.Storage {
	store := storage.NewMemoryStorage()
	_ = store.Init()
	return store
}

func runBackups(ctx context.Context, store storage.Storage, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Backup(); err != nil {
				logger.Errorf("Storage backup failed: %v", err)
			}
		}
	}
}

func setupRouter(cfg *config.Config, renderer *web.Renderer, metrics *monitoring.Metrics, prefs middleware.Preferences, h handler.Handlers) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	router.HTMLRender = renderer

	router.Use(logger.GinLogger())
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})
	if cfg.Server.Metrics {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	router.StaticFS("/static", http.FS(web.Static()))

	if cfg.RateLimit.Enabled {
		limit := middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			IdleTTL:           cfg.RateLimit.IdleTTL,
		})
		router.Use(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				limit(c)
				return
			}
			c.Next()
		})
	}

	router.Use(middleware.Visitor(prefs, middleware.VisitorConfig{
		CookieName: cfg.Site.CookieName,
		Secure:     cfg.Site.CookieSecure,
		Domain:     cfg.Site.CookieDomain,
	}))
	handler.Register(router, h)

	return router
}

// newHandler gzips everything outside /api, where responses are small JSON
// or long-lived streams.
func newHandler(router http.Handler, gzip bool) http.Handler {
	if !gzip {
		return router
	}
	compressed := gzhttp.GzipHandler(router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			router.ServeHTTP(w, r)
			return
		}
		compressed.ServeHTTP(w, r)
	})
}
