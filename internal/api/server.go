package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/soumetsu-project/soumetsu/internal/bancho"
	"github.com/soumetsu-project/soumetsu/internal/config"
	"github.com/soumetsu-project/soumetsu/internal/network"
	"github.com/soumetsu-project/soumetsu/internal/util"
)

// Server is the HTTP front of the bancho service.
type Server struct {
	cfg      *config.Config
	svc      *bancho.Service
	gatherer prometheus.Gatherer

	httpServer *http.Server
	router     *gin.Engine
	logger     zerolog.Logger
}

// NewServer creates the HTTP server. A nil gatherer disables /metrics.
func NewServer(cfg *config.Config, svc *bancho.Service, gatherer prometheus.Gatherer) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:      cfg,
		svc:      svc,
		gatherer: gatherer,
		logger:   util.ComponentLogger("api"),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	srv := s.cfg.GetServer()
	sec := s.cfg.GetSecurity()
	addr := net.JoinHostPort(srv.HTTPHost, strconv.Itoa(srv.HTTPPort))

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var (
		ln  net.Listener
		err error
	)
	if sec.TLSEnabled {
		if _, statErr := os.Stat(sec.TLSCertFile); os.IsNotExist(statErr) {
			if err := util.GenerateSelfSignedCert(sec.TLSCertFile, sec.TLSKeyFile); err != nil {
				return fmt.Errorf("HTTP server error: %w", err)
			}
		}
		ln, err = network.ListenTLS(ctx, addr, sec.TLSCertFile, sec.TLSKeyFile)
	} else {
		ln, err = network.Listen(ctx, addr)
	}
	if err != nil {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	s.logger.Info().Str("addr", addr).Bool("tls", sec.TLSEnabled).Msg("HTTP server starting")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// buildRouter wires middleware and routes.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	sec := s.cfg.GetSecurity()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	// ---- Bancho (osu! client) ----
	router.GET("/", s.handleBanner)
	router.POST("/", s.handleBancho)

	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")

	allowedOrigins := sec.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	api.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // must stay false while AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))
	api.Use(NewRateLimiter(sec.RateLimitRPS).Middleware())

	// ---- Public endpoints ----
	public := api.Group("/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/server_info", s.handleServerInfo)
		public.GET("/version", s.handleVersion)
	}

	// ---- Admin endpoints ----
	admin := api.Group("/admin")
	admin.Use(IPWhitelist(sec.IPWhitelist), RequireAdminToken(sec.AdminToken))
	{
		admin.GET("/sessions", s.handleListSessions)
		admin.GET("/streams", s.handleListStreams)
		admin.GET("/system", s.handleSystemUsage)
		admin.POST("/sessions/:token/kick", s.handleKick)
		admin.POST("/announce", s.handleAnnounce)
		admin.GET("/config", s.handleGetConfig)
		admin.PUT("/config/welcome_message", s.handleSetWelcome)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
