package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	errNotFound       = errors.New("element not found")
	errBrowserCrashed = errors.New("browser crashed")
)

// fakeSession plays the portal: each Navigate consumes the next body class
type fakeSession struct {
	mu sync.Mutex

	id          string
	bodyClasses []string
	labelText   string
	imageSrc    string
	noResult    bool
	crashed     bool
	pageHTML    string
	renderHTML  func(pan string) string

	navigations int
	current     string
	typed       map[string]string
	clicked     []string
	waited      []string
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{
		id:          id,
		bodyClasses: []string{"frontpage"},
		labelText:   "What is 3 plus 4",
		renderHTML:  resultPage,
		typed:       make(map[string]string),
	}
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.navigations
	if i >= len(f.bodyClasses) {
		i = len(f.bodyClasses) - 1
	}
	f.current = f.bodyClasses[i]
	f.navigations++
	f.typed = make(map[string]string)
	if f.crashed {
		return errBrowserCrashed
	}
	return ctx.Err()
}

func (f *fakeSession) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waited = append(f.waited, selector)
	switch {
	case selector == selectorCaptchaLabel && f.labelText == "":
		return errNotFound
	case selector == selectorResultMarker && (f.noResult || len(f.clicked) == 0):
		return errNotFound
	}
	return ctx.Err()
}

func (f *fakeSession) GetAttribute(ctx context.Context, selector, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case selector == selectorBody && name == "class":
		if f.current == "" {
			return "", errNotFound
		}
		return f.current, nil
	case name == "src" && f.imageSrc != "":
		return f.imageSrc, nil
	}
	return "", errNotFound
}

func (f *fakeSession) GetText(ctx context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if selector == selectorCaptchaLabel && f.labelText != "" {
		return f.labelText, nil
	}
	return "", errNotFound
}

func (f *fakeSession) Type(ctx context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed[selector] += text
	return nil
}

func (f *fakeSession) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicked = append(f.clicked, selector)
	return nil
}

func (f *fakeSession) GetHTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pageHTML != "" {
		return f.pageHTML, nil
	}
	return f.renderHTML(f.typed[selectorPANInput]), nil
}

func (f *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (f *fakeSession) Close() error  { return nil }
func (f *fakeSession) GetID() string { return f.id }

func (f *fakeSession) IsHealthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.crashed
}

func (f *fakeSession) typedValue(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.typed[selector]
}

// fakeBrowserService hands out sessions built by newSession
type fakeBrowserService struct {
	newSession func(n int) *fakeSession
	acquireErr error

	acquired atomic.Int32
	released atomic.Int32

	mu       sync.Mutex
	sessions []*fakeSession
}

func newFakeBrowserService(configure func(*fakeSession)) *fakeBrowserService {
	return &fakeBrowserService{
		newSession: func(n int) *fakeSession {
			s := newFakeSession(fmt.Sprintf("fake-%d", n))
			if configure != nil {
				configure(s)
			}
			return s
		},
	}
}

func (b *fakeBrowserService) GetBrowser(ctx context.Context) (BrowserContext, error) {
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}
	n := int(b.acquired.Add(1))
	s := b.newSession(n)
	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

func (b *fakeBrowserService) ReleaseBrowser(BrowserContext) error {
	b.released.Add(1)
	return nil
}

func (b *fakeBrowserService) session(i int) *fakeSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[i]
}

func (b *fakeBrowserService) GetStats() map[string]interface{} {
	return map[string]interface{}{"total_browsers": int(b.acquired.Load())}
}

func (b *fakeBrowserService) Sessions() []SessionInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	sessions := make([]SessionInfo, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, SessionInfo{ID: s.id, Healthy: s.IsHealthy()})
	}
	return sessions
}

func (b *fakeBrowserService) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

func (b *fakeBrowserService) Restart() error { return nil }
func (b *fakeBrowserService) Close() error   { return nil }

// sleepRecorder replaces real waits and records every requested delay
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func (r *sleepRecorder) count(d time.Duration) int {
	n := 0
	for _, got := range r.recorded() {
		if got == d {
			n++
		}
	}
	return n
}

func resultPage(pan string) string {
	name := "ACME TRADERS"
	if pan != "" {
		name = "Taxpayer " + pan
	}
	rows := [][]string{
		{"Office", "IRO Kathmandu"},
		{"Name", name},
		{"Telephone", "01-4412345"},
		{"Ward", "10"},
		{"Street Name", "New Road"},
		{"City Name", "Kathmandu"},
		{"Income Tax", "Yes", "No"},
		{"VAT", "Yes", "2079-01-01"},
		{"VAT Filing Period", "Monthly"},
		{"Fiscal Year / Return Verified Date", "2079/80 - 2080-10-01"},
	}

	var b strings.Builder
	b.WriteString(`<html><body class="frontpage"><table>`)
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td> " + cell + " </td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}
