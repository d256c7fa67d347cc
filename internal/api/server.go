package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexconsult/pan-api/internal/api/handlers"
	"github.com/nexconsult/pan-api/internal/api/middleware"
	"github.com/nexconsult/pan-api/internal/config"
	"github.com/nexconsult/pan-api/internal/services"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Server represents the HTTP server
type Server struct {
	Router      *gin.Engine
	config      *config.Config
	logger      *logrus.Logger
	services    *services.Container
	rateLimiter *middleware.RateLimiter
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, logger *logrus.Logger, services *services.Container) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   cfg,
		logger:   logger,
		services: services,
	}

	server.setupRouter()
	return server
}

// Close stops background work owned by the server
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// setupRouter configures the router with all routes and middleware
func (s *Server) setupRouter() {
	s.Router = gin.New()

	// Global middleware; request ID first so every later entry carries it
	s.Router.Use(middleware.RequestID())
	s.Router.Use(middleware.Logger(s.logger))
	s.Router.Use(middleware.Recovery(s.logger))
	s.Router.Use(middleware.CORS(s.config.Security.CORS))
	s.Router.Use(middleware.Security())

	healthHandler := handlers.NewHealthHandler(s.services, s.logger)
	s.Router.GET("/health", healthHandler.GetHealth)
	s.Router.GET("/health/ready", healthHandler.GetReadiness)
	s.Router.GET("/health/live", healthHandler.GetLiveness)

	s.Router.GET("/metrics", handlers.NewMetricsHandler(s.services.PANService, s.services.BrowserService, s.logger).GetMetrics)

	if s.config.Server.Environment != "production" {
		s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		s.Router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})
	}

	// Rate limiting applies to the API only
	s.rateLimiter = middleware.NewRateLimiter(s.config.Security.RateLimit)

	v1 := s.Router.Group("/api/v1")
	v1.Use(s.rateLimiter.Middleware())
	{
		panHandler := handlers.NewPANHandler(s.services.PANService, s.logger)
		pan := v1.Group("/pan")
		{
			pan.GET("/:pan", panHandler.GetPAN)
			pan.POST("/batch", panHandler.GetBatchPAN)
		}

		captchaHandler := handlers.NewCaptchaHandler(s.services.Solver, s.logger)
		solve := v1.Group("/captcha")
		{
			solve.POST("/image", captchaHandler.SolveImage)
			solve.POST("/text", captchaHandler.SolveText)
		}

		admin := middleware.AdminAuth(s.config.Security.AdminToken)

		cache := v1.Group("/cache")
		cache.Use(admin)
		{
			cacheHandler := handlers.NewCacheHandler(s.services.CacheService, s.logger)
			cache.GET("/stats", cacheHandler.GetStats)
			cache.DELETE("/clear", cacheHandler.Clear)
			cache.DELETE("/:pan", cacheHandler.Delete)
		}

		browser := v1.Group("/browser")
		browser.Use(admin)
		{
			browserHandler := handlers.NewBrowserHandler(s.services.BrowserService, s.logger)
			browser.GET("/stats", browserHandler.GetStats)
			browser.GET("/sessions", browserHandler.GetSessions)
			browser.POST("/restart", browserHandler.Restart)
			browser.GET("/health", browserHandler.GetHealth)
		}
	}

	s.Router.HandleMethodNotAllowed = true

	s.Router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not Found",
			"message":   "The requested resource was not found",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
		})
	})

	s.Router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":     "Method Not Allowed",
			"message":   "The requested method is not allowed for this resource",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		})
	})
}
