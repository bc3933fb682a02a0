package main

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

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/magicwardrobe/ai"
	"github.com/kasuganosora/magicwardrobe/ai/gemini"
	apirest "github.com/kasuganosora/magicwardrobe/api/rest"
	"github.com/kasuganosora/magicwardrobe/audit"
	"github.com/kasuganosora/magicwardrobe/cache"
	"github.com/kasuganosora/magicwardrobe/cache/local"
	cacheredis "github.com/kasuganosora/magicwardrobe/cache/redis"
	"github.com/kasuganosora/magicwardrobe/config"
	dbadapter "github.com/kasuganosora/magicwardrobe/db"
	"github.com/kasuganosora/magicwardrobe/history"
	"github.com/kasuganosora/magicwardrobe/inventory"
	mw "github.com/kasuganosora/magicwardrobe/middleware"
	"github.com/kasuganosora/magicwardrobe/model"
	"github.com/kasuganosora/magicwardrobe/outfit"
	"github.com/kasuganosora/magicwardrobe/scheduler"
	"github.com/kasuganosora/magicwardrobe/wardrobe"
	"github.com/kasuganosora/magicwardrobe/weather"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Fatal("security.jwt_secret must be set")
	}
	if cfg.AI.APIKey == "" {
		logger.Fatal("ai.api_key must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, audit.Options{}, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	switch cc := c.(type) {
	case *local.LocalCache:
		defer cc.Close()
	case *cacheredis.RedisCache:
		defer cc.Close()
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	// ---- AI ----
	gem, err := gemini.New(ctx, gemini.Config{
		APIKey:         cfg.AI.APIKey,
		VisionModel:    cfg.AI.VisionModel,
		StylistModel:   cfg.AI.StylistModel,
		EmbeddingModel: cfg.AI.EmbeddingModel,
		EmbeddingDims:  cfg.AI.EmbeddingDims,
		RPS:            cfg.AI.RPS,
		Burst:          cfg.AI.Burst,
		MaxAttempts:    cfg.AI.MaxAttempts,
		Timeout:        cfg.AI.Timeout,
	}, logger)
	if err != nil {
		logger.Fatal("gemini", zap.Error(err))
	}
	embedder, err := ai.NewCachedEmbedder(gem, cfg.AI.EmbedCacheSize)
	if err != nil {
		logger.Fatal("embed cache", zap.Error(err))
	}

	// ---- Weather ----
	weatherClient := weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.Timeout, c, cfg.Weather.CacheTTL, logger)
	locator := weather.NewSessionLocator(c, cfg.Security.JWTTTLH)
	var fallback weather.Locator
	if cfg.Weather.HasDefault {
		fallback = weather.Static{Lat: cfg.Weather.DefaultLat, Lon: cfg.Weather.DefaultLon}
	}
	weatherFor := func(accountID int64) outfit.WeatherSource {
		return weather.NewLookup(weatherClient, weather.Chain{locator.For(accountID), fallback})
	}

	// ---- Services ----
	invSvc := inventory.NewService(db, embedder, logger)
	histSvc := history.NewService(db, logger)
	outfits := outfit.NewManager(wardrobe.NewFactory(wardrobe.Deps{
		Inventory: invSvc,
		History:   histSvc,
		Cache:     c,
		Stylist:   gem,
		Embedder:  embedder,
		Weather:   weatherFor,
		Options: outfit.Options{
			TopK:           cfg.Outfit.TopK,
			DefaultWeather: cfg.Outfit.DefaultWeather,
			LabelLayout:    cfg.Outfit.LabelLayout,
		},
		LockTTL: cfg.Outfit.ConfirmLockTTL,
		Logger:  logger,
	}), logger)

	// ---- Periodic Scheduler Tasks ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.AddTicker("outfit.sweep", cfg.Outfit.SweepInterval, func(context.Context) {
		outfits.Sweep(cfg.Outfit.SessionIdleTTL)
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst, mw.ByIP))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": outfits.Count()})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security, outfits, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		private := api.Group("",
			mw.Auth(cfg.Security, c),
			mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst, mw.ByAccount))
		apirest.Routes{
			Garments: apirest.NewGarmentHandler(invSvc, gem, auditSvc, cfg.Server.MaxUploadSize, logger),
			Outfit:   apirest.NewOutfitHandler(outfits, invSvc, locator, auditSvc, logger),
			History:  apirest.NewHistoryHandler(histSvc, logger),
		}.Register(private)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
