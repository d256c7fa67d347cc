package handlers

import (
	"context"
	"sync"

	"github.com/nexconsult/pan-api/internal/models"
	"github.com/nexconsult/pan-api/internal/services"
)

type fakePANService struct {
	mu      sync.Mutex
	records map[string]*models.Record
	err     error
	batch   []string
	metrics models.LookupMetrics
}

func (f *fakePANService) Lookup(_ context.Context, pan string) (*models.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.records[pan]; ok {
		return r, nil
	}
	return models.NewErrorRecord(pan, models.ErrorFetchFailed), nil
}

func (f *fakePANService) LookupBatch(ctx context.Context, pans []string) (models.ResultSet, error) {
	f.mu.Lock()
	f.batch = append([]string(nil), pans...)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	results := make(models.ResultSet, len(pans))
	for i, pan := range pans {
		results[i], _ = f.Lookup(ctx, pan)
	}
	return results, nil
}

func (f *fakePANService) Metrics() models.LookupMetrics { return f.metrics }

func (f *fakePANService) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

func (f *fakePANService) Close() error { return nil }

type fakeCache struct {
	data map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string]string)} }

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", services.ErrCacheMiss
}

func (f *fakeCache) Set(_ context.Context, key, value string) error {
	f.data[key] = value
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

func (f *fakeCache) Clear(context.Context) error {
	f.data = make(map[string]string)
	return nil
}

func (f *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.data[key]
	return ok, nil
}

func (f *fakeCache) GetStats(context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"entries": len(f.data)}, nil
}

func (f *fakeCache) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

type fakeBrowserPool struct {
	status     string
	restarts   int
	restartErr error
	sessions   []services.SessionInfo
}

func (f *fakeBrowserPool) GetBrowser(context.Context) (services.BrowserContext, error) {
	return nil, services.ErrNoBrowserAvailable
}

func (f *fakeBrowserPool) ReleaseBrowser(services.BrowserContext) error { return nil }

func (f *fakeBrowserPool) GetStats() map[string]interface{} {
	return map[string]interface{}{"total_browsers": 2, "healthy_browsers": 2, "available": 1}
}

func (f *fakeBrowserPool) Sessions() []services.SessionInfo { return f.sessions }

func (f *fakeBrowserPool) Health() map[string]interface{} {
	return map[string]interface{}{"status": f.status}
}

func (f *fakeBrowserPool) Restart() error {
	f.restarts++
	return f.restartErr
}

func (f *fakeBrowserPool) Close() error { return nil }

type fakeHealth map[string]interface{}

func (f fakeHealth) Health() map[string]interface{} { return f }
