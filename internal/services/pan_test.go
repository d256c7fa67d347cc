package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexconsult/pan-api/internal/captcha"
	"github.com/nexconsult/pan-api/internal/config"
	"github.com/nexconsult/pan-api/internal/logger"
	"github.com/nexconsult/pan-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLookupConfig() config.LookupConfig {
	return config.LookupConfig{
		BaseURL:        "https://ird.gov.np/pan-search",
		ElementTimeout: time.Second,
		PacingDelay:    time.Second,
		Workers:        1,
		Wall: config.BackoffConfig{
			InitialDelay: 10 * time.Second,
			MaxDelay:     2 * time.Minute,
			Factor:       2,
			MaxAttempts:  8,
		},
	}
}

type stubImageSolver struct {
	answer string
	got    []byte
}

func (s *stubImageSolver) Solve(_ context.Context, c captcha.Challenge) (string, error) {
	s.got = c.Data
	return s.answer, nil
}

func newTestService(cfg config.LookupConfig, captchaCfg config.CaptchaConfig, cache CacheServiceInterface, browser BrowserServiceInterface, solver captcha.Solver) (*PANService, *sleepRecorder) {
	if solver == nil {
		solver = captcha.NewDispatcher().Register(captcha.KindText, captcha.ArithmeticSolver{})
	}
	svc := NewPANService(cfg, captchaCfg, cache, browser, solver, logger.Discard())
	rec := &sleepRecorder{}
	svc.sleep = rec.sleep
	return svc, rec
}

func TestFetchSolvesArithmeticCaptcha(t *testing.T) {
	svc, rec := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, nil, nil)
	session := newFakeSession("s1")

	record, err := svc.Fetch(context.Background(), session, "301234567")
	require.NoError(t, err)

	assert.False(t, record.Failed())
	assert.True(t, record.Complete())
	assert.Equal(t, "7", session.typedValue(selectorCaptchaInput))
	assert.Equal(t, "301234567", session.typedValue(selectorPANInput))
	assert.Equal(t, []string{selectorSearchButton}, session.clicked)
	assert.Empty(t, rec.recorded())

	assert.Equal(t, "IRO Kathmandu", record.Get(models.FieldOffice))
	assert.Equal(t, "Taxpayer 301234567", record.Get(models.FieldName))
	assert.Equal(t, "New Road", record.Get(models.FieldStreetName))
	assert.Equal(t, "Yes", record.Get(models.FieldIncomeTax))
	assert.Equal(t, "No", record.Get(models.FieldNonFiler))
	assert.Equal(t, "2079-01-01", record.Get(models.FieldNonFilerSince))
	assert.Equal(t, "Monthly", record.Get(models.FieldVATFilingPeriod))
}

func TestFetchWaitsThroughCaptchaWall(t *testing.T) {
	svc, rec := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, nil, nil)
	session := newFakeSession("s1")
	session.bodyClasses = []string{"", "blocked", "captcha-page", "frontpage"}

	record, err := svc.Fetch(context.Background(), session, "301234567")
	require.NoError(t, err)

	assert.False(t, record.Failed())
	assert.Equal(t, 4, session.navigations)
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}, rec.recorded())
	assert.Equal(t, int64(3), svc.Metrics().WallWaits)
}

func TestFetchWallExhausted(t *testing.T) {
	cfg := testLookupConfig()
	cfg.Wall.MaxAttempts = 2
	svc, rec := newTestService(cfg, config.CaptchaConfig{}, nil, nil, nil)
	session := newFakeSession("s1")
	session.bodyClasses = []string{"blocked"}

	record, err := svc.Fetch(context.Background(), session, "301234567")
	require.NoError(t, err)

	assert.Equal(t, models.ErrorWallExhausted, record.Error)
	assert.True(t, record.Complete())
	assert.Len(t, rec.recorded(), 2)
	assert.Equal(t, 3, session.navigations)
	assert.Empty(t, session.clicked)
}

func TestFetchFixedDelayUnbounded(t *testing.T) {
	cfg := testLookupConfig()
	cfg.Wall.Factor = 1
	cfg.Wall.MaxAttempts = 0
	svc, rec := newTestService(cfg, config.CaptchaConfig{}, nil, nil, nil)
	session := newFakeSession("s1")
	session.bodyClasses = []string{"x", "x", "x", "x", "x", "x", "x", "x", "x", "x", "x", "x", "frontpage"}

	record, err := svc.Fetch(context.Background(), session, "1")
	require.NoError(t, err)

	assert.False(t, record.Failed())
	assert.Equal(t, 12, rec.count(10*time.Second))
}

func TestFetchCancelledDuringWall(t *testing.T) {
	svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	session := newFakeSession("s1")
	session.bodyClasses = []string{"blocked"}

	_, err := svc.Fetch(ctx, session, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchSolveFailureBecomesErrorRecord(t *testing.T) {
	svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, nil, nil)
	session := newFakeSession("s1")
	session.labelText = "What is seven plus four"

	record, err := svc.Fetch(context.Background(), session, "301234567")
	require.NoError(t, err)

	assert.Equal(t, models.ErrorFetchFailed, record.Error)
	assert.True(t, record.Complete())
	assert.Equal(t, models.NotAvailable, record.Get(models.FieldOffice))
	assert.Empty(t, session.clicked)
	assert.NotContains(t, session.waited, selectorResultMarker)
	assert.Equal(t, int64(1), svc.Metrics().Errors)
}

func TestFetchImageChallenge(t *testing.T) {
	img := &stubImageSolver{answer: "AB12CD"}
	solver := captcha.NewDispatcher().
		Register(captcha.KindText, captcha.ArithmeticSolver{}).
		Register(captcha.KindImage, img)
	captchaCfg := config.CaptchaConfig{ImageEnabled: true, ImageSelector: `img[src^="data:image"]`}

	svc, _ := newTestService(testLookupConfig(), captchaCfg, nil, nil, solver)
	session := newFakeSession("s1")
	session.labelText = ""
	session.imageSrc = "data:image/png;base64,AAAA"

	record, err := svc.Fetch(context.Background(), session, "301234567")
	require.NoError(t, err)

	assert.False(t, record.Failed())
	assert.Equal(t, "AB12CD", session.typedValue(selectorCaptchaInput))
	assert.Equal(t, []byte("data:image/png;base64,AAAA"), img.got)
}

func TestFetchNoChallenge(t *testing.T) {
	svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{ImageEnabled: false}, nil, nil, nil)
	session := newFakeSession("s1")
	session.labelText = ""
	session.imageSrc = "data:image/png;base64,AAAA"

	record, err := svc.Fetch(context.Background(), session, "1")
	require.NoError(t, err)
	assert.Equal(t, models.ErrorFetchFailed, record.Error)
}

func TestFetchMissingResultPage(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{DebugDir: dir}, nil, nil, nil)
	session := newFakeSession("s1")
	session.noResult = true
	session.pageHTML = noRecordPage

	record, err := svc.Fetch(context.Background(), session, "30/12")
	require.NoError(t, err)
	assert.Equal(t, models.ErrorFetchFailed, record.Error)

	_, err = os.Stat(filepath.Join(dir, "debug_failure_30_12.png"))
	assert.NoError(t, err)
}

const (
	noRecordPage    = `<html><body class="frontpage"><p>No record found</p></body></html>`
	rejectedCaptcha = `<html><body class="frontpage"><form><input name="pan"><input name="captcha"></form></body></html>`
)

func TestCollectClassifiesMissingResult(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		wantErr error
	}{
		{"captcha rejected", rejectedCaptcha, ErrCaptchaRejected},
		{"no record", noRecordPage, ErrNoResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, nil, nil)
			session := newFakeSession("s1")
			session.noResult = true
			session.pageHTML = tt.page

			record, err := svc.collect(context.Background(), session, "301234567")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, record)
		})
	}
}

func TestCollectReadsResultAfterSlowMarker(t *testing.T) {
	svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, nil, nil)
	session := newFakeSession("s1")
	session.noResult = true

	record, err := svc.collect(context.Background(), session, "301234567")
	require.NoError(t, err)
	assert.Equal(t, "IRO Kathmandu", record.Get(models.FieldOffice))
}

func TestCollectResultMarkerWithoutTable(t *testing.T) {
	svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, nil, nil)
	session := newFakeSession("s1")
	session.Click(context.Background(), selectorSearchButton)
	session.pageHTML = noRecordPage

	_, err := svc.collect(context.Background(), session, "301234567")
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestLookupBatchReplacesDeadSession(t *testing.T) {
	browser := newFakeBrowserService(nil)
	browser.newSession = func(n int) *fakeSession {
		s := newFakeSession(fmt.Sprintf("fake-%d", n))
		s.crashed = n == 1
		return s
	}
	svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, browser, nil)

	results, err := svc.LookupBatch(context.Background(), []string{"301", "302", "303"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, models.ErrorFetchFailed, results[0].Error)
	assert.Equal(t, "Taxpayer 302", results[1].Get(models.FieldName))
	assert.Equal(t, "Taxpayer 303", results[2].Get(models.FieldName))

	assert.Equal(t, int32(2), browser.acquired.Load())
	assert.Equal(t, int32(2), browser.released.Load())
	assert.Equal(t, 1, browser.session(0).navigations)
	assert.Equal(t, 2, browser.session(1).navigations)
}

func TestLookupBatchPreservesOrder(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			cfg := testLookupConfig()
			cfg.Workers = workers
			browser := newFakeBrowserService(nil)
			svc, rec := newTestService(cfg, config.CaptchaConfig{}, nil, browser, nil)

			pans := []string{"301", "302", "303", "304", "305", "306", "307"}
			results, err := svc.LookupBatch(context.Background(), pans)
			require.NoError(t, err)

			require.Len(t, results, len(pans))
			for i, pan := range pans {
				assert.Equal(t, pan, results[i].PAN)
				assert.Equal(t, "Taxpayer "+pan, results[i].Get(models.FieldName))
				assert.True(t, results[i].Complete())
			}
			assert.LessOrEqual(t, browser.acquired.Load(), int32(workers))
			assert.GreaterOrEqual(t, browser.acquired.Load(), int32(1))
			assert.Equal(t, browser.acquired.Load(), browser.released.Load())
			assert.Equal(t, len(pans), rec.count(cfg.PacingDelay))
		})
	}
}

func TestLookupBatchAcquireFailure(t *testing.T) {
	browser := newFakeBrowserService(nil)
	browser.acquireErr = ErrNoBrowserAvailable
	svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, browser, nil)

	results, err := svc.LookupBatch(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, models.ErrorFetchFailed, r.Error)
	}
}

func TestLookupBatchCancelled(t *testing.T) {
	browser := newFakeBrowserService(func(s *fakeSession) { s.bodyClasses = []string{"blocked"} })
	svc, _ := newTestService(testLookupConfig(), config.CaptchaConfig{}, nil, browser, nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	results, err := svc.LookupBatch(ctx, []string{"1", "2"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestLookupUsesCache(t *testing.T) {
	cfg := testLookupConfig()
	cfg.CacheEnabled = true
	cache := NewCacheService(nil, time.Hour, logger.Discard())
	browser := newFakeBrowserService(nil)
	svc, rec := newTestService(cfg, config.CaptchaConfig{}, cache, browser, nil)

	first, err := svc.Lookup(context.Background(), "301234567")
	require.NoError(t, err)
	assert.False(t, first.Cache)

	second, err := svc.Lookup(context.Background(), "301234567")
	require.NoError(t, err)
	assert.True(t, second.Cache)
	assert.Equal(t, first.Fields, second.Fields)
	assert.Equal(t, int32(1), browser.acquired.Load())

	results, err := svc.LookupBatch(context.Background(), []string{"301234567"})
	require.NoError(t, err)
	assert.True(t, results[0].Cache)
	assert.Empty(t, rec.recorded())

	m := svc.Metrics()
	assert.Equal(t, int64(2), m.CacheHits)
	assert.Equal(t, int64(1), m.Total)
	assert.Equal(t, float64(100), m.SuccessRate)
}

func TestFailedRecordsAreNotCached(t *testing.T) {
	cfg := testLookupConfig()
	cfg.CacheEnabled = true
	cache := NewCacheService(nil, time.Hour, logger.Discard())
	browser := newFakeBrowserService(func(s *fakeSession) { s.noResult = true })
	svc, _ := newTestService(cfg, config.CaptchaConfig{}, cache, browser, nil)

	record, err := svc.Lookup(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, record.Failed())

	ok, err := cache.Exists(context.Background(), CacheKey("1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedRecordRoundTrip(t *testing.T) {
	cfg := testLookupConfig()
	cfg.CacheEnabled = true
	cache := NewCacheService(nil, time.Hour, logger.Discard())
	stored := models.NewRecord("9")
	stored.Set(models.FieldName, "CACHED")
	data, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, cache.Set(context.Background(), CacheKey("9"), string(data)))

	svc, _ := newTestService(cfg, config.CaptchaConfig{}, cache, newFakeBrowserService(nil), nil)
	record, err := svc.Lookup(context.Background(), "9")
	require.NoError(t, err)
	assert.True(t, record.Cache)
	assert.Equal(t, "CACHED", record.Get(models.FieldName))
}

func TestNextBackoff(t *testing.T) {
	wall := config.BackoffConfig{InitialDelay: 10 * time.Second, MaxDelay: time.Minute, Factor: 2}

	tests := []struct {
		current time.Duration
		want    time.Duration
	}{
		{10 * time.Second, 20 * time.Second},
		{20 * time.Second, 40 * time.Second},
		{40 * time.Second, time.Minute},
		{time.Minute, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextBackoff(tt.current, wall), tt.current.String())
	}

	fixed := config.BackoffConfig{Factor: 1}
	assert.Equal(t, 10*time.Second, NextBackoff(10*time.Second, fixed))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), 0))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
