package services

import (
	"context"
	"time"

	"github.com/nexconsult/pan-api/internal/models"
)

// PANServiceInterface defines the interface for the PAN lookup service
type PANServiceInterface interface {
	// Lookup retrieves one PAN record, borrowing a browser from the pool
	Lookup(ctx context.Context, pan string) (*models.Record, error)

	// LookupBatch retrieves one record per PAN, in input order
	LookupBatch(ctx context.Context, pans []string) (models.ResultSet, error)

	// Metrics returns lookup counters
	Metrics() models.LookupMetrics

	// Health returns service health status
	Health() map[string]interface{}

	// Close closes the service and releases resources
	Close() error
}

// CacheServiceInterface defines the interface for cache service
type CacheServiceInterface interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value string) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes every PAN entry
	Clear(ctx context.Context) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// GetStats returns cache statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Health returns cache service health status
	Health() map[string]interface{}
}

// BrowserServiceInterface defines the interface for browser service
type BrowserServiceInterface interface {
	// GetBrowser gets an available browser context
	GetBrowser(ctx context.Context) (BrowserContext, error)

	// ReleaseBrowser releases a browser context back to the pool
	ReleaseBrowser(browserCtx BrowserContext) error

	// GetStats returns browser pool statistics
	GetStats() map[string]interface{}

	// Sessions lists the tracked browsers and which of them are held
	Sessions() []SessionInfo

	// Health returns browser service health status
	Health() map[string]interface{}

	// Restart restarts the browser pool
	Restart() error

	// Close closes all browsers and releases resources
	Close() error
}

// BrowserContext is one exclusively owned browser session. Selectors may be
// CSS or XPath.
type BrowserContext interface {
	// Navigate loads url and waits for the load event
	Navigate(ctx context.Context, url string) error

	// WaitForSelector waits up to timeout for an element to be present
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// GetAttribute reads an attribute of the first matching element
	GetAttribute(ctx context.Context, selector, name string) (string, error)

	// GetText gets visible text from the first matching element
	GetText(ctx context.Context, selector string) (string, error)

	// Type types text into an element
	Type(ctx context.Context, selector, text string) error

	// Click clicks on an element
	Click(ctx context.Context, selector string) error

	// GetHTML gets HTML content from the page
	GetHTML(ctx context.Context) (string, error)

	// Screenshot takes a full page screenshot
	Screenshot(ctx context.Context) ([]byte, error)

	// Close closes the browser context
	Close() error

	// IsHealthy checks if the browser context is healthy
	IsHealthy() bool

	// GetID returns the browser context ID
	GetID() string
}

// ExtractorServiceInterface defines the interface for data extraction service
type ExtractorServiceInterface interface {
	// Extract reads every schema field for pan out of a result page
	Extract(html, pan string) (*models.Record, error)

	// IsResultPage reports whether html is a lookup result page
	IsResultPage(html string) bool
}
