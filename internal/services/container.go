package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexconsult/pan-api/internal/captcha"
	"github.com/nexconsult/pan-api/internal/captcha/imageproc"
	"github.com/nexconsult/pan-api/internal/captcha/ocr"
	"github.com/nexconsult/pan-api/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Container holds all service dependencies
type Container struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	recognizer  ocr.Recognizer
	stop        context.CancelFunc

	PANService     PANServiceInterface
	CacheService   CacheServiceInterface
	BrowserService BrowserServiceInterface
	Solver         *captcha.Dispatcher
}

// NewContainer creates a new service container
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config: cfg,
		logger: logger,
	}

	if cfg.Lookup.CacheEnabled {
		container.initRedis()
	}

	if err := container.initServices(); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return container, nil
}

// initRedis connects to Redis; on failure the cache runs in memory only
func (c *Container) initRedis() {
	c.redisClient = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Redis.DialTimeout)
	defer cancel()

	if err := c.redisClient.Ping(ctx).Err(); err != nil {
		c.logger.WithError(err).Warn("Redis connection failed, using in-memory cache")
		c.redisClient.Close()
		c.redisClient = nil
	} else {
		c.logger.Info("Redis connection established")
	}
}

// initServices initializes all services
func (c *Container) initServices() error {
	cache := NewCacheService(c.redisClient, c.config.Lookup.CacheTTL, c.logger)
	ctx, stop := context.WithCancel(context.Background())
	c.stop = stop
	cache.StartCleanupRoutine(ctx, 5*time.Minute)
	c.CacheService = cache

	solver, recognizer, err := NewSolver(c.config.Captcha, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize captcha solver: %w", err)
	}
	c.Solver = solver
	c.recognizer = recognizer

	browserService, err := NewBrowserService(c.config.Browser, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser service: %w", err)
	}
	c.BrowserService = browserService

	c.PANService = NewPANService(c.config.Lookup, c.config.Captcha, c.CacheService, c.BrowserService, c.Solver, c.logger)

	return nil
}

// NewSolver builds the captcha dispatcher. The image modality is only
// registered when enabled; its recognizer must be closed by the caller.
func NewSolver(cfg config.CaptchaConfig, logger *logrus.Logger) (*captcha.Dispatcher, ocr.Recognizer, error) {
	dispatcher := captcha.NewDispatcher().Register(captcha.KindText, captcha.ArithmeticSolver{})

	if !cfg.ImageEnabled {
		return dispatcher, nil, nil
	}

	recognizer, err := ocr.NewTesseract(cfg.OCRLanguage)
	if err != nil {
		return nil, nil, err
	}
	if !ocr.Enabled {
		logger.Warn("Image captcha enabled but OCR support is not compiled in (build with -tags ocr)")
	}

	opts := imageproc.DefaultOptions()
	opts.DebugDir = cfg.DebugDir
	preprocessor := imageproc.New(opts, logger)

	dispatcher.Register(captcha.KindImage, captcha.NewImageSolver(preprocessor, recognizer, logger))
	return dispatcher, recognizer, nil
}

// Close closes all service connections
func (c *Container) Close() error {
	var errs []error

	if c.stop != nil {
		c.stop()
	}

	if c.PANService != nil {
		if err := c.PANService.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close PAN service: %w", err))
		}
	}

	if c.BrowserService != nil {
		if err := c.BrowserService.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser service: %w", err))
		}
	}

	if c.recognizer != nil {
		if err := c.recognizer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close OCR engine: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}
	return nil
}

// Health checks the health of all services
func (c *Container) Health() map[string]interface{} {
	health := make(map[string]interface{})

	if c.CacheService != nil {
		health["cache"] = c.CacheService.Health()
	}

	if c.BrowserService != nil {
		health["browser"] = c.BrowserService.Health()
	}

	if c.PANService != nil {
		health["pan"] = c.PANService.Health()
	}

	if c.config != nil {
		health["ocr"] = map[string]interface{}{
			"enabled":  c.config.Captcha.ImageEnabled,
			"compiled": ocr.Enabled,
		}
	}

	return health
}
