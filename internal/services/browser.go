package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/nexconsult/pan-api/internal/config"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported OS")
	ErrBrowserClosed       = errors.New("browser service is closed")
	ErrBrowserUnhealthy    = errors.New("browser context is not healthy")
	ErrNoBrowserAvailable  = errors.New("no browser available and pool is at maximum capacity")
)

// ResolveExecPath picks the browser binary for goos. An explicit path always
// wins; on Linux and Windows an empty result lets chromedp locate Chrome.
func ResolveExecPath(explicit, goos string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	switch goos {
	case "linux", "windows":
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s (set BROWSER_EXEC_PATH)", ErrUnsupportedPlatform, goos)
	}
}

// BrowserService manages a pool of browser contexts
type BrowserService struct {
	config   config.BrowserConfig
	execPath string
	logger   *logrus.Logger
	pool     chan *ChromeBrowserContext
	contexts []*ChromeBrowserContext
	held     map[*ChromeBrowserContext]time.Time
	mu       sync.RWMutex
	closed   bool
}

// SessionInfo describes one tracked browser and whether a caller holds it
type SessionInfo struct {
	ID        string     `json:"id"`
	Healthy   bool       `json:"healthy"`
	InUse     bool       `json:"in_use"`
	HeldSince *time.Time `json:"held_since,omitempty"`
	PageLoads int64      `json:"page_loads"`
}

// ChromeBrowserContext implements BrowserContext interface
type ChromeBrowserContext struct {
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	healthy bool
	mu      sync.RWMutex

	pageLoads atomic.Int64
}

// NewBrowserService starts PoolSize browsers. It fails when the platform
// has no default browser path or no browser could be started.
func NewBrowserService(cfg config.BrowserConfig, logger *logrus.Logger) (*BrowserService, error) {
	execPath, err := ResolveExecPath(cfg.ExecPath, runtime.GOOS)
	if err != nil {
		return nil, err
	}

	service := &BrowserService{
		config:   cfg,
		execPath: execPath,
		logger:   logger,
		pool:     make(chan *ChromeBrowserContext, cfg.PoolSize),
		contexts: make([]*ChromeBrowserContext, 0, cfg.PoolSize),
		held:     make(map[*ChromeBrowserContext]time.Time),
	}

	var lastErr error
	for i := 0; i < cfg.PoolSize; i++ {
		browserCtx, err := service.createBrowser()
		if err != nil {
			logger.WithError(err).Error("Failed to create initial browser")
			lastErr = err
			continue
		}
		service.contexts = append(service.contexts, browserCtx)
		service.pool <- browserCtx
	}

	if len(service.contexts) == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to start any browser: %w", lastErr)
	}

	logger.WithField("browsers", len(service.contexts)).Info("Browser service initialized")
	return service, nil
}

// GetBrowser gets an available browser context
func (s *BrowserService) GetBrowser(ctx context.Context) (BrowserContext, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrBrowserClosed
	}
	s.mu.RUnlock()

	select {
	case browserCtx := <-s.pool:
		if !browserCtx.IsHealthy() {
			s.logger.WithField("browser_id", browserCtx.GetID()).Warn("Unhealthy browser detected, creating new one")
			fresh, err := s.replace(browserCtx)
			if err != nil {
				return nil, err
			}
			browserCtx = fresh
		}
		s.mu.Lock()
		s.hold(browserCtx)
		s.mu.Unlock()
		return browserCtx, nil

	case <-time.After(s.config.AcquireWait):
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.contexts) < s.config.PoolSize {
			browserCtx, err := s.createBrowser()
			if err != nil {
				return nil, fmt.Errorf("failed to create browser: %w", err)
			}
			s.contexts = append(s.contexts, browserCtx)
			s.hold(browserCtx)
			return browserCtx, nil
		}
		return nil, ErrNoBrowserAvailable

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// hold marks c as handed out. Callers hold s.mu.
func (s *BrowserService) hold(c *ChromeBrowserContext) {
	if s.held == nil {
		s.held = make(map[*ChromeBrowserContext]time.Time)
	}
	s.held[c] = time.Now()
}

// replace swaps a dead browser for a fresh one in the tracked set
func (s *BrowserService) replace(old *ChromeBrowserContext) (*ChromeBrowserContext, error) {
	old.Close()

	fresh, err := s.createBrowser()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, old)
	for i, c := range s.contexts {
		if c == old {
			s.contexts = append(s.contexts[:i], s.contexts[i+1:]...)
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create new browser: %w", err)
	}
	s.contexts = append(s.contexts, fresh)
	return fresh, nil
}

// ReleaseBrowser releases a browser context back to the pool
func (s *BrowserService) ReleaseBrowser(browserCtx BrowserContext) error {
	chromeBrowser, ok := browserCtx.(*ChromeBrowserContext)
	if !ok {
		return fmt.Errorf("invalid browser context type %T", browserCtx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.held[chromeBrowser]; !ok {
		return fmt.Errorf("browser %s is not held", chromeBrowser.GetID())
	}
	delete(s.held, chromeBrowser)

	if s.closed {
		chromeBrowser.Close()
		return nil
	}

	select {
	case s.pool <- chromeBrowser:
		return nil
	default:
		// Pool is full, close the browser
		chromeBrowser.Close()
		return nil
	}
}

// allocatorOptions builds the Chrome flags for a new browser
func (s *BrowserService) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(s.config.WindowWidth, s.config.WindowHeight),
	}

	if s.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.config.UserAgent))
	}
	if s.execPath != "" {
		opts = append(opts, chromedp.ExecPath(s.execPath))
	}
	if s.config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	return opts
}

// createBrowser creates a new browser context
func (s *BrowserService) createBrowser() (*ChromeBrowserContext, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), s.allocatorOptions()...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	browserCtx := &ChromeBrowserContext{
		id:      "browser-" + uuid.NewString(),
		ctx:     ctx,
		cancel:  func() { ctxCancel(); allocCancel() },
		healthy: true,
	}

	testCtx, testCancel := context.WithTimeout(ctx, s.config.StartTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("browser health check failed: %w", err)
	}

	s.logger.WithField("browser_id", browserCtx.id).Debug("Browser created successfully")
	return browserCtx, nil
}

// GetStats returns browser pool statistics
func (s *BrowserService) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	healthy := 0
	for _, ctx := range s.contexts {
		if ctx.IsHealthy() {
			healthy++
		}
	}

	return map[string]interface{}{
		"total_browsers":   len(s.contexts),
		"healthy_browsers": healthy,
		"available":        len(s.pool),
		"in_use":           len(s.held),
		"pool_size":        s.config.PoolSize,
	}
}

// Sessions lists every tracked browser, oldest first, with its holder state
func (s *BrowserService) Sessions() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]SessionInfo, 0, len(s.contexts))
	for _, c := range s.contexts {
		info := SessionInfo{
			ID:        c.GetID(),
			Healthy:   c.IsHealthy(),
			PageLoads: c.pageLoads.Load(),
		}
		if since, ok := s.held[c]; ok {
			info.InUse = true
			info.HeldSince = &since
		}
		sessions = append(sessions, info)
	}
	return sessions
}

// Health returns browser service health status
func (s *BrowserService) Health() map[string]interface{} {
	stats := s.GetStats()
	healthy := stats["healthy_browsers"].(int)

	status := "healthy"
	if healthy == 0 {
		status = "unhealthy"
	} else if healthy < s.config.PoolSize {
		status = "degraded"
	}

	return map[string]interface{}{
		"status": status,
		"stats":  stats,
	}
}

// Restart closes every browser and starts a fresh pool
func (s *BrowserService) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrBrowserClosed
	}

	for _, ctx := range s.contexts {
		ctx.Close()
	}
	for len(s.pool) > 0 {
		<-s.pool
	}
	s.contexts = s.contexts[:0]
	clear(s.held)

	for i := 0; i < s.config.PoolSize; i++ {
		browserCtx, err := s.createBrowser()
		if err != nil {
			s.logger.WithError(err).Error("Failed to create browser during restart")
			continue
		}
		s.contexts = append(s.contexts, browserCtx)
		s.pool <- browserCtx
	}

	s.logger.WithField("browsers", len(s.contexts)).Info("Browser pool restarted")
	return nil
}

// Close closes all browsers and releases resources
func (s *BrowserService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ctx := range s.contexts {
		ctx.Close()
	}
	for len(s.pool) > 0 {
		<-s.pool
	}

	clear(s.held)

	s.logger.Info("Browser service closed")
	return nil
}

// IsXPath reports whether selector is an XPath expression rather than CSS
func IsXPath(selector string) bool {
	selector = strings.TrimSpace(selector)
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(/") || strings.HasPrefix(selector, "./")
}

// queryBy picks the lookup strategy for selector. BySearch also matches
// plain text nodes, so CSS selectors must go through ByQuery.
func queryBy(selector string) chromedp.QueryOption {
	if IsXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// ChromeBrowserContext methods

// run executes actions on the browser tab, bounded by the caller's context
// and, when positive, by timeout
func (c *ChromeBrowserContext) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.healthy {
		return ErrBrowserUnhealthy
	}

	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if c.ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrBrowserUnhealthy, err)
		}
		return err
	}
	return nil
}

// Navigate navigates to a URL
func (c *ChromeBrowserContext) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, 0, chromedp.Navigate(url)); err != nil {
		return err
	}
	c.pageLoads.Add(1)
	return nil
}

// WaitForSelector waits for an element to be present in the DOM
func (c *ChromeBrowserContext) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return c.run(ctx, timeout, chromedp.WaitReady(selector, queryBy(selector)))
}

// GetAttribute reads an attribute of the first matching element
func (c *ChromeBrowserContext) GetAttribute(ctx context.Context, selector, name string) (string, error) {
	var value string
	var ok bool
	if err := c.run(ctx, 0, chromedp.AttributeValue(selector, name, &value, &ok, queryBy(selector))); err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("attribute %q not set on %s", name, selector)
	}
	return value, nil
}

// GetText gets text content from an element
func (c *ChromeBrowserContext) GetText(ctx context.Context, selector string) (string, error) {
	var text string
	err := c.run(ctx, 0, chromedp.Text(selector, &text, queryBy(selector)))
	return text, err
}

// Type types text into an element
func (c *ChromeBrowserContext) Type(ctx context.Context, selector, text string) error {
	return c.run(ctx, 0, chromedp.SendKeys(selector, text, queryBy(selector)))
}

// Click clicks on an element
func (c *ChromeBrowserContext) Click(ctx context.Context, selector string) error {
	return c.run(ctx, 0, chromedp.Click(selector, queryBy(selector)))
}

// GetHTML gets HTML content from the page
func (c *ChromeBrowserContext) GetHTML(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Screenshot takes a full page screenshot
func (c *ChromeBrowserContext) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, 0, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

// Close closes the browser context
func (c *ChromeBrowserContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return nil
}

// IsHealthy reports false once the context was closed or the browser
// behind it went away
func (c *ChromeBrowserContext) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy && c.ctx.Err() == nil
}

// GetID returns the browser context ID
func (c *ChromeBrowserContext) GetID() string {
	return c.id
}
