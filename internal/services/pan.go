package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nexconsult/pan-api/internal/captcha"
	"github.com/nexconsult/pan-api/internal/config"
	"github.com/nexconsult/pan-api/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Portal page elements
const (
	selectorBody         = "body"
	selectorPANInput     = `input[name="pan"]`
	selectorCaptchaInput = `input[name="captcha"]`
	selectorCaptchaLabel = `//label[contains(text(),'What is')]`
	selectorSearchButton = `//button[contains(text(),'Search')]`
	selectorResultMarker = `//td[contains(text(),'Office')]`

	normalPageClass    = "frontpage"
	captchaInputMarker = `name="captcha"`
)

// PageState is the classification of a freshly loaded query page
type PageState int

const (
	PageCaptchaWall PageState = iota
	PageNormalForm
)

func (p PageState) String() string {
	if p == PageNormalForm {
		return "normal"
	}
	return "captcha_wall"
}

var (
	ErrWallExhausted   = errors.New("captcha wall retries exhausted")
	ErrNoChallenge     = errors.New("no captcha challenge found on page")
	ErrCaptchaRejected = errors.New("captcha answer rejected")
	ErrNoResult        = errors.New("result page not shown")
)

type sleepFunc func(ctx context.Context, d time.Duration) error

// PANService looks PAN records up on the portal
type PANService struct {
	config    config.LookupConfig
	captcha   config.CaptchaConfig
	cache     CacheServiceInterface
	browser   BrowserServiceInterface
	solver    captcha.Solver
	extractor ExtractorServiceInterface
	logger    *logrus.Logger
	sleep     sleepFunc

	total     atomic.Int64
	success   atomic.Int64
	failures  atomic.Int64
	wallWaits atomic.Int64
	cacheHits atomic.Int64
}

// NewPANService creates a new PAN service. cache may be nil.
func NewPANService(cfg config.LookupConfig, captchaCfg config.CaptchaConfig, cache CacheServiceInterface, browser BrowserServiceInterface, solver captcha.Solver, logger *logrus.Logger) *PANService {
	return &PANService{
		config:    cfg,
		captcha:   captchaCfg,
		cache:     cache,
		browser:   browser,
		solver:    solver,
		extractor: NewExtractorService(PANSchema, logger),
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Lookup retrieves one record, serving it from cache when possible
func (s *PANService) Lookup(ctx context.Context, pan string) (*models.Record, error) {
	if record, ok := s.fromCache(ctx, pan); ok {
		return record, nil
	}

	session, err := s.browser.GetBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire browser: %w", err)
	}
	defer s.browser.ReleaseBrowser(session)

	record, err := s.Fetch(ctx, session, pan)
	if err != nil {
		return nil, err
	}
	s.store(ctx, record)
	return record, nil
}

// LookupBatch looks every PAN up and returns the records in input order.
// Config.Workers sessions run in parallel, each owning one browser until
// the run ends or the browser dies. Only cancellation aborts the batch; every other failure
// becomes an error record.
func (s *PANService) LookupBatch(ctx context.Context, pans []string) (models.ResultSet, error) {
	results := make(models.ResultSet, len(pans))
	if len(pans) == 0 {
		return results, nil
	}

	workers := s.config.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(pans) {
		workers = len(pans)
	}

	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range pans {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return s.worker(gctx, w, pans, jobs, results)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *PANService) worker(ctx context.Context, id int, pans []string, jobs <-chan int, results models.ResultSet) error {
	logger := s.logger.WithField("worker", id)

	var session BrowserContext
	defer func() {
		if session != nil {
			s.browser.ReleaseBrowser(session)
		}
	}()

	for i := range jobs {
		pan := pans[i]

		if record, ok := s.fromCache(ctx, pan); ok {
			results[i] = record
			continue
		}

		if session == nil {
			var err error
			session, err = s.browser.GetBrowser(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.WithError(err).WithField("pan", pan).Error("Failed to acquire browser")
				s.total.Add(1)
				s.failures.Add(1)
				results[i] = models.NewErrorRecord(pan, models.ErrorFetchFailed)
				continue
			}
		}

		record, err := s.Fetch(ctx, session, pan)
		if err != nil {
			return err
		}
		s.store(ctx, record)
		results[i] = record

		if !session.IsHealthy() {
			logger.WithField("browser_id", session.GetID()).Warn("Browser session died, acquiring a new one")
			s.browser.ReleaseBrowser(session)
			session = nil
		}

		if err := s.sleep(ctx, s.config.PacingDelay); err != nil {
			return err
		}
	}
	return nil
}

// Fetch runs the full page cycle for one PAN on an exclusively owned
// session. It returns an error only when ctx is cancelled; every portal
// failure is reported through the record's Error field.
func (s *PANService) Fetch(ctx context.Context, session BrowserContext, pan string) (*models.Record, error) {
	start := time.Now()
	s.total.Add(1)

	logger := s.logger.WithFields(logrus.Fields{
		"pan":        pan,
		"browser_id": session.GetID(),
	})

	record, err := s.fetch(ctx, session, pan, logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		message := models.ErrorFetchFailed
		if errors.Is(err, ErrWallExhausted) {
			message = models.ErrorWallExhausted
		}
		logger.WithError(err).Warn("PAN lookup failed")
		s.saveFailureScreenshot(ctx, session, pan, logger)
		record = models.NewErrorRecord(pan, message)
	}

	record.FetchedAt = time.Now()
	record.DurationMs = time.Since(start).Milliseconds()

	if record.Failed() {
		s.failures.Add(1)
	} else {
		s.success.Add(1)
	}

	logger.WithFields(logrus.Fields{
		"duration": time.Since(start),
		"failed":   record.Failed(),
	}).Info("PAN processed")

	return record, nil
}

func (s *PANService) fetch(ctx context.Context, session BrowserContext, pan string, logger *logrus.Entry) (*models.Record, error) {
	if err := s.awaitNormalForm(ctx, session, logger); err != nil {
		return nil, err
	}
	if err := s.submit(ctx, session, pan, logger); err != nil {
		return nil, err
	}
	return s.collect(ctx, session, pan)
}

// awaitNormalForm loads the query page until it renders the form, backing
// off exponentially while the captcha wall is shown
func (s *PANService) awaitNormalForm(ctx context.Context, session BrowserContext, logger *logrus.Entry) error {
	wall := s.config.Wall
	delay := wall.InitialDelay

	for waits := 0; ; waits++ {
		if err := session.Navigate(ctx, s.config.BaseURL); err != nil {
			return fmt.Errorf("failed to load query page: %w", err)
		}

		if s.classify(ctx, session) == PageNormalForm {
			return nil
		}

		if wall.MaxAttempts > 0 && waits >= wall.MaxAttempts {
			return fmt.Errorf("%w after %d waits", ErrWallExhausted, waits)
		}

		s.wallWaits.Add(1)
		logger.WithFields(logrus.Fields{
			"attempt": waits + 1,
			"delay":   delay,
		}).Warn("Captcha page detected, retrying")

		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
		delay = NextBackoff(delay, wall)
	}
}

// classify reads the body class. Any read failure counts as the wall.
func (s *PANService) classify(ctx context.Context, session BrowserContext) PageState {
	stepCtx, cancel := context.WithTimeout(ctx, s.config.ElementTimeout)
	defer cancel()

	class, err := session.GetAttribute(stepCtx, selectorBody, "class")
	if err != nil {
		return PageCaptchaWall
	}
	if strings.Contains(class, normalPageClass) {
		return PageNormalForm
	}
	return PageCaptchaWall
}

// submit fills the PAN, answers the captcha and presses Search
func (s *PANService) submit(ctx context.Context, session BrowserContext, pan string, logger *logrus.Entry) error {
	timeout := s.config.ElementTimeout

	if err := session.WaitForSelector(ctx, selectorPANInput, timeout); err != nil {
		return fmt.Errorf("PAN input not found: %w", err)
	}
	if err := s.step(ctx, func(c context.Context) error { return session.Type(c, selectorPANInput, pan) }); err != nil {
		return fmt.Errorf("failed to fill PAN: %w", err)
	}

	if err := session.WaitForSelector(ctx, selectorCaptchaInput, timeout); err != nil {
		return fmt.Errorf("captcha input not found: %w", err)
	}

	challenge, err := s.detectChallenge(ctx, session)
	if err != nil {
		return err
	}

	answer, err := s.solver.Solve(ctx, challenge)
	if err != nil {
		return fmt.Errorf("failed to solve %s captcha: %w", challenge.Kind, err)
	}
	logger.WithFields(logrus.Fields{
		"kind":   challenge.Kind.String(),
		"answer": answer,
	}).Debug("Captcha solved")

	if err := s.step(ctx, func(c context.Context) error { return session.Type(c, selectorCaptchaInput, answer) }); err != nil {
		return fmt.Errorf("failed to fill captcha: %w", err)
	}
	if err := s.step(ctx, func(c context.Context) error { return session.Click(c, selectorSearchButton) }); err != nil {
		return fmt.Errorf("failed to submit form: %w", err)
	}
	return nil
}

// detectChallenge looks for the arithmetic label first, then for an
// embedded captcha image
func (s *PANService) detectChallenge(ctx context.Context, session BrowserContext) (captcha.Challenge, error) {
	timeout := s.config.ElementTimeout

	if err := session.WaitForSelector(ctx, selectorCaptchaLabel, timeout); err == nil {
		var prompt string
		err := s.step(ctx, func(c context.Context) error {
			var err error
			prompt, err = session.GetText(c, selectorCaptchaLabel)
			return err
		})
		if err != nil {
			return captcha.Challenge{}, fmt.Errorf("failed to read captcha prompt: %w", err)
		}
		return captcha.TextChallenge(prompt), nil
	}
	if err := ctx.Err(); err != nil {
		return captcha.Challenge{}, err
	}

	if s.captcha.ImageEnabled && s.captcha.ImageSelector != "" {
		var src string
		err := s.step(ctx, func(c context.Context) error {
			var err error
			src, err = session.GetAttribute(c, s.captcha.ImageSelector, "src")
			return err
		})
		if err == nil && src != "" {
			return captcha.ImageChallenge([]byte(src)), nil
		}
	}

	return captcha.Challenge{}, ErrNoChallenge
}

// collect waits for the result table and extracts the record. When the
// table never shows up, the page is read once more to tell a rejected
// captcha apart from a PAN with no record.
func (s *PANService) collect(ctx context.Context, session BrowserContext, pan string) (*models.Record, error) {
	waitErr := session.WaitForSelector(ctx, selectorResultMarker, s.config.ElementTimeout)
	if waitErr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var html string
	err := s.step(ctx, func(c context.Context) error {
		var err error
		html, err = session.GetHTML(c)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read result page: %w", err)
	}

	if !s.extractor.IsResultPage(html) {
		if strings.Contains(html, captchaInputMarker) {
			return nil, ErrCaptchaRejected
		}
		if waitErr == nil {
			waitErr = errors.New("result table missing")
		}
		return nil, fmt.Errorf("%w: %v", ErrNoResult, waitErr)
	}

	return s.extractor.Extract(html, pan)
}

// step bounds a single page action by the element timeout
func (s *PANService) step(ctx context.Context, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.config.ElementTimeout)
	defer cancel()
	return fn(stepCtx)
}

func (s *PANService) saveFailureScreenshot(ctx context.Context, session BrowserContext, pan string, logger *logrus.Entry) {
	if s.captcha.DebugDir == "" {
		return
	}

	var shot []byte
	err := s.step(ctx, func(c context.Context) error {
		var err error
		shot, err = session.Screenshot(c)
		return err
	})
	if err != nil {
		logger.WithError(err).Debug("Failed to capture failure screenshot")
		return
	}

	name := strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, pan)
	path := filepath.Join(s.captcha.DebugDir, "debug_failure_"+name+".png")
	if err := os.WriteFile(path, shot, 0o644); err != nil {
		logger.WithError(err).Debug("Failed to write failure screenshot")
	}
}

func (s *PANService) fromCache(ctx context.Context, pan string) (*models.Record, bool) {
	if !s.config.CacheEnabled || s.cache == nil {
		return nil, false
	}

	cached, err := s.cache.Get(ctx, CacheKey(pan))
	if err != nil {
		return nil, false
	}

	var record models.Record
	if err := json.Unmarshal([]byte(cached), &record); err != nil {
		s.logger.WithError(err).WithField("pan", pan).Warn("Failed to unmarshal cached PAN record")
		return nil, false
	}

	record.Cache = true
	s.cacheHits.Add(1)
	s.logger.WithField("pan", pan).Debug("PAN found in cache")
	return &record, true
}

// store caches successful records only
func (s *PANService) store(ctx context.Context, record *models.Record) {
	if !s.config.CacheEnabled || s.cache == nil || record.Failed() {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, CacheKey(record.PAN), string(data)); err != nil {
		s.logger.WithError(err).WithField("pan", record.PAN).Warn("Failed to cache PAN record")
	}
}

// NextBackoff returns the wait after current, multiplied by the factor and
// capped at MaxDelay
func NextBackoff(current time.Duration, wall config.BackoffConfig) time.Duration {
	next := time.Duration(float64(current) * wall.Factor)
	if next < current {
		next = current
	}
	if wall.MaxDelay > 0 && next > wall.MaxDelay {
		next = wall.MaxDelay
	}
	return next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Metrics returns lookup counters
func (s *PANService) Metrics() models.LookupMetrics {
	m := models.LookupMetrics{
		Total:     s.total.Load(),
		Success:   s.success.Load(),
		Errors:    s.failures.Load(),
		WallWaits: s.wallWaits.Load(),
		CacheHits: s.cacheHits.Load(),
	}
	if m.Total > 0 {
		m.SuccessRate = float64(m.Success) / float64(m.Total) * 100
	}
	return m
}

// Health returns service health status
func (s *PANService) Health() map[string]interface{} {
	return map[string]interface{}{
		"status":        "healthy",
		"request_count": s.total.Load(),
		"cache_enabled": s.config.CacheEnabled && s.cache != nil,
		"workers":       s.config.Workers,
		"base_url":      s.config.BaseURL,
	}
}

// Close closes the service and releases resources
func (s *PANService) Close() error {
	s.logger.Info("PAN service closed")
	return nil
}
