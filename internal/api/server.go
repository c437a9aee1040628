// Package api assembles the gin router and runs the HTTP server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Regdarim/arni-worker/internal/api/handlers"
	"github.com/Regdarim/arni-worker/internal/api/middleware"
	"github.com/Regdarim/arni-worker/internal/buildinfo"
	"github.com/Regdarim/arni-worker/internal/config"
	"github.com/Regdarim/arni-worker/internal/kv"
	log "github.com/Regdarim/arni-worker/internal/logging"
	"github.com/Regdarim/arni-worker/internal/maintenance"
	"github.com/Regdarim/arni-worker/internal/proxy"
	"github.com/Regdarim/arni-worker/internal/quota"
	"github.com/Regdarim/arni-worker/internal/telemetry"
	"github.com/Regdarim/arni-worker/internal/usage"
	"github.com/Regdarim/arni-worker/internal/watcher"
)

// Server owns the HTTP listener and the background loops.
type Server struct {
	cfg        *config.Config
	live       *config.Live
	store      kv.Store
	maint      *maintenance.Runner
	engine     *gin.Engine
	configPath string
}

// New wires every component against the given store (which may be nil)
// and builds the route table.
func New(cfg *config.Config, store kv.Store, configPath string) *Server {
	live := config.NewLive(cfg)

	quotaSvc := quota.NewService(store, func() quota.Limits {
		q := live.Get().Quota
		return quota.Limits{
			MaxTokens:      q.MaxTokensLimit,
			WeeklyMax:      q.WeeklyTokensLimit,
			WindowDuration: q.WindowDuration,
		}
	})
	tracker := usage.NewTracker(store, quotaSvc,
		func() usage.Rates {
			u := live.Get().Usage
			return usage.Rates{CostIn: u.OpusCostIn, CostOut: u.OpusCostOut}
		},
		func() time.Duration {
			return time.Duration(live.Get().Usage.UsageTTLDays) * 24 * time.Hour
		},
	)
	maint := maintenance.NewRunner(store)
	h := handlers.New(store, tracker, quotaSvc, proxy.NewClient(0), maint, live, buildinfo.Version)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLog())
	engine.Use(middleware.RequestSizeLimit(config.DefaultRequestBodyMax))
	engine.Use(middleware.APIKeyReader())
	engine.Use(telemetry.Middleware())

	registerRoutes(engine, h)

	return &Server{
		cfg:        cfg,
		live:       live,
		store:      store,
		maint:      maint,
		engine:     engine,
		configPath: configPath,
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

func registerRoutes(r *gin.Engine, h *handlers.Handler) {
	r.GET("/", h.GetDashboard)
	r.GET("/health", h.GetHealth)

	r.POST("/usage", h.PostUsage)
	r.GET("/usage", h.GetUsage)
	r.GET("/usage/stats", h.GetUsageStats)
	r.GET("/usage/live", h.GetUsageLive)
	r.GET("/usage/quota", h.GetUsageQuota)

	r.POST("/webhooks", h.CreateWebhook)
	r.GET("/webhooks", h.ListWebhooks)
	r.GET("/webhooks/:id", h.GetWebhook)
	r.DELETE("/webhooks/:id", h.DeleteWebhook)
	r.POST("/hook/:id", h.ReceiveHook)

	r.POST("/tasks", h.CreateTask)
	r.GET("/tasks", h.ListTasks)
	r.GET("/tasks/:id", h.GetTask)
	r.PATCH("/tasks/:id", h.UpdateTask)
	r.DELETE("/tasks/:id", h.DeleteTask)

	r.POST("/notes", h.CreateNote)
	r.GET("/notes", h.ListNotes)
	r.GET("/notes/:id", h.GetNote)
	r.DELETE("/notes/:id", h.DeleteNote)

	r.GET("/memory", h.ListMemory)
	r.GET("/memory/:key", h.GetMemory)
	r.PUT("/memory/:key", h.PutMemory)
	r.PATCH("/memory/:key", h.PatchMemory)
	r.DELETE("/memory/:key", h.DeleteMemory)

	r.POST("/logs", h.AppendLog)
	r.GET("/logs", h.GetLogs)
	r.DELETE("/logs", h.ClearLogs)

	r.POST("/proxy", h.PostProxy)
	r.POST("/cron", h.PostCron)
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
// The maintenance ticker and config watcher run alongside the listener.
func (s *Server) Run(ctx context.Context) error {
	shutdownTelemetry, err := telemetry.Setup(ctx, s.cfg.OTLPEndpoint, "arni-worker")
	if err != nil {
		log.Warnf("server: telemetry disabled: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Infof("server: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("server: shutdown: %v", err)
		}
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Debugf("server: telemetry shutdown: %v", err)
		}
		return nil
	})

	if s.cfg.CronInterval > 0 && s.store != nil {
		group.Go(func() error {
			return s.maint.Loop(groupCtx, s.cfg.CronInterval)
		})
	}

	if s.configPath != "" {
		group.Go(func() error {
			if err := watcher.Watch(groupCtx, s.configPath, s.live); err != nil {
				log.Warnf("server: config watcher stopped: %v", err)
			}
			return nil
		})
	}

	return group.Wait()
}
