package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/nexconsult/pan-api/internal/config"
	"github.com/nexconsult/pan-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveExecPath(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		goos     string
		want     string
		wantErr  bool
	}{
		{"explicit wins", "/opt/chrome", "darwin", "/opt/chrome", false},
		{"linux default", "", "linux", "", false},
		{"windows default", "", "windows", "", false},
		{"darwin unsupported", "", "darwin", "", true},
		{"freebsd unsupported", "", "freebsd", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveExecPath(tt.explicit, tt.goos)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
				assert.Contains(t, err.Error(), tt.goos)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocatorOptions(t *testing.T) {
	base := &BrowserService{config: config.BrowserConfig{WindowWidth: 1920, WindowHeight: 1080}}
	full := &BrowserService{
		config:   config.BrowserConfig{WindowWidth: 1920, WindowHeight: 1080, Headless: true, UserAgent: "ua"},
		execPath: "/usr/bin/chromium",
	}

	assert.Len(t, full.allocatorOptions(), len(base.allocatorOptions())+3)
}

func TestClosedServiceRejectsAcquire(t *testing.T) {
	s := &BrowserService{
		config: config.BrowserConfig{PoolSize: 1},
		logger: logger.Discard(),
		pool:   make(chan *ChromeBrowserContext, 1),
	}
	assert.NoError(t, s.Close())

	_, err := s.GetBrowser(context.Background())
	assert.True(t, errors.Is(err, ErrBrowserClosed))
	assert.True(t, errors.Is(s.Restart(), ErrBrowserClosed))
}

func TestChromeContextClosedIsUnhealthy(t *testing.T) {
	c := &ChromeBrowserContext{id: "browser-test", ctx: context.Background(), healthy: true}
	assert.True(t, c.IsHealthy())
	assert.NoError(t, c.Close())
	assert.False(t, c.IsHealthy())

	err := c.Navigate(context.Background(), "about:blank")
	assert.True(t, errors.Is(err, ErrBrowserUnhealthy))
	assert.Equal(t, "browser-test", c.GetID())
}

func TestQueryStrategyBySelectorKind(t *testing.T) {
	byQuery := reflect.ValueOf(chromedp.ByQuery).Pointer()
	bySearch := reflect.ValueOf(chromedp.BySearch).Pointer()

	tests := []struct {
		selector string
		xpath    bool
	}{
		{selectorBody, false},
		{selectorPANInput, false},
		{selectorCaptchaInput, false},
		{`img[src^="data:image"]`, false},
		{"html", false},
		{selectorCaptchaLabel, true},
		{selectorSearchButton, true},
		{selectorResultMarker, true},
		{"(//td)[1]", true},
		{"./td", true},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			assert.Equal(t, tt.xpath, IsXPath(tt.selector))

			want := byQuery
			if tt.xpath {
				want = bySearch
			}
			assert.Equal(t, want, reflect.ValueOf(queryBy(tt.selector)).Pointer())
		})
	}
}

func TestChromeContextCancelledIsUnhealthy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &ChromeBrowserContext{id: "browser-dead", ctx: ctx, healthy: true}
	assert.True(t, c.IsHealthy())

	cancel()
	assert.False(t, c.IsHealthy())
}

func TestPoolTracksHeldSessions(t *testing.T) {
	a := &ChromeBrowserContext{id: "browser-a", ctx: context.Background(), healthy: true}
	b := &ChromeBrowserContext{id: "browser-b", ctx: context.Background(), healthy: true}
	s := &BrowserService{
		config:   config.BrowserConfig{PoolSize: 2, AcquireWait: time.Minute},
		logger:   logger.Discard(),
		pool:     make(chan *ChromeBrowserContext, 2),
		contexts: []*ChromeBrowserContext{a, b},
		held:     make(map[*ChromeBrowserContext]time.Time),
	}
	s.pool <- a
	s.pool <- b

	got, err := s.GetBrowser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "browser-a", got.GetID())

	sessions := s.Sessions()
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].InUse)
	assert.NotNil(t, sessions[0].HeldSince)
	assert.False(t, sessions[1].InUse)
	assert.Nil(t, sessions[1].HeldSince)

	stats := s.GetStats()
	assert.Equal(t, 1, stats["in_use"])
	assert.Equal(t, 1, stats["available"])

	require.NoError(t, s.ReleaseBrowser(got))
	assert.False(t, s.Sessions()[0].InUse)
	assert.Equal(t, 0, s.GetStats()["in_use"])

	assert.Error(t, s.ReleaseBrowser(got))
	assert.Equal(t, 2, s.GetStats()["available"])
}
