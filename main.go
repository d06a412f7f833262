package main

import (
	"context"
	"fmt"
	"log"
	"os"

	apirest "github.com/pulsewire/server/api/rest"
	"github.com/pulsewire/server/api/sse"
	"github.com/pulsewire/server/audit"
	"github.com/pulsewire/server/cache"
	"github.com/pulsewire/server/config"
	dbadapter "github.com/pulsewire/server/db"
	mw "github.com/pulsewire/server/middleware"
	"github.com/pulsewire/server/model"
	"github.com/pulsewire/server/notify"
	"github.com/pulsewire/server/scheduler"
	"github.com/pulsewire/server/social/circle"
	"github.com/pulsewire/server/social/friendship"
	"github.com/pulsewire/server/social/pulse"
	"github.com/pulsewire/server/social/reaction"
	"github.com/gin-gonic/gin"
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

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Notification fabric ----
	hooks := notify.NewHookCenter()
	for _, ev := range []string{
		notify.EventFriendRequest,
		notify.EventFriendAccepted,
		notify.EventPulse,
		notify.EventReaction,
	} {
		hooks.Register(ev, 0, "audit", auditSvc.NotifyHook())
	}
	emitter := notify.NewService(pubsub, hooks, logger)

	// ---- Core services ----
	friendSvc := friendship.NewService(db, emitter, cfg.Pulse, logger)
	circleSvc := circle.NewService(db, friendSvc, cfg.Pulse, logger)
	pulseSvc := pulse.NewService(db, friendSvc, circleSvc, emitter, cfg.Pulse, logger)
	reactionSvc := reaction.NewService(db, emitter, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	friendsH := apirest.NewFriendsHandler(friendSvc, c)
	circlesH := apirest.NewCirclesHandler(circleSvc)
	pulsesH := apirest.NewPulsesHandler(pulseSvc)
	reactionsH := apirest.NewReactionsHandler(reactionSvc)
	statsH := apirest.NewStatsHandler(db, pulseSvc, c, cfg.Pulse.LeaderboardSize, logger)
	adminH := apirest.NewAdminHandler(db, sched, logger)
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)

	sched.AddTicker("engagement_leaderboard", cfg.Pulse.LeaderboardRefresh, func() {
		if err := statsH.RefreshLeaderboard(context.Background()); err != nil {
			logger.Error("leaderboard refresh failed", zap.Error(err))
		}
	})
	sched.AddTicker("presence_sweep", cfg.Security.PresenceSweep, func() {
		if err := authH.SweepPresence(context.Background()); err != nil {
			logger.Error("presence sweep failed", zap.Error(err))
		}
	})

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		friendsG := api.Group("/friends")
		friendsG.Use(mw.Auth(cfg.Security, c))
		friendsG.GET("", friendsH.List)
		friendsG.POST("/requests", friendsH.SendRequest)
		friendsG.GET("/requests", friendsH.ListRequests)
		friendsG.POST("/requests/:id/accept", friendsH.Accept)
		friendsG.POST("/requests/:id/reject", friendsH.Reject)
		friendsG.POST("/requests/:id/cancel", friendsH.Cancel)
		friendsG.POST("/:id/block", friendsH.ToggleBlock)
		friendsG.DELETE("/:id", friendsH.Unfriend)
		friendsG.PUT("/:id/favorite", friendsH.SetFavorite)
		friendsG.PUT("/:id/nickname", friendsH.SetNickname)

		circlesG := api.Group("/circles")
		circlesG.Use(mw.Auth(cfg.Security, c))
		circlesG.POST("", circlesH.Create)
		circlesG.GET("", circlesH.List)
		circlesG.GET("/:id", circlesH.Detail)
		circlesG.DELETE("/:id", circlesH.Delete)
		circlesG.POST("/:id/members", circlesH.AddMember)
		circlesG.DELETE("/:id/members/:uid", circlesH.RemoveMember)

		pulsesG := api.Group("/pulses")
		pulsesG.Use(mw.Auth(cfg.Security, c))
		pulsesG.POST("/direct", pulsesH.SendDirect)
		pulsesG.POST("/circle", pulsesH.SendToCircle)
		pulsesG.GET("/inbox", pulsesH.Inbox)
		pulsesG.GET("/outbox", pulsesH.Outbox)
		pulsesG.POST("/:id/seen", pulsesH.MarkSeen)
		pulsesG.GET("/:id/recipients", pulsesH.Recipients)
		pulsesG.PUT("/:id/reaction", reactionsH.Set)
		pulsesG.GET("/:id/reactions", reactionsH.Summary)
		pulsesG.GET("/:id/reactions/:type", reactionsH.Reactors)

		statsG := api.Group("/stats")
		statsG.Use(mw.Auth(cfg.Security, c))
		statsG.GET("/engagement", statsH.Engagement)
		statsG.GET("/leaderboard", statsH.Leaderboard)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
		adminG.POST("/announce", sseH.HandleAnnounce)
	}

	// ---- SSE notification feed ----
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
