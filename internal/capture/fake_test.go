package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"time"
)

// fakeBrowser is an in-memory Browser for tests.
type fakeBrowser struct {
	mu       sync.Mutex
	openErr  error
	sessions []*fakeSession
	opts     []SessionOptions
	newFunc  func() *fakeSession
}

func (b *fakeBrowser) Open(_ context.Context, opts SessionOptions) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opts = append(b.opts, opts)
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := &fakeSession{png: pngBytes(), html: loginHTML, hasPassword: true}
	if b.newFunc != nil {
		s = b.newFunc()
	}
	b.sessions = append(b.sessions, s)
	return s, nil
}

// fakeSession records calls and returns preset results.
type fakeSession struct {
	navigateErr   error
	waitErr       error
	screenshotErr error
	htmlErr       error
	hasPassword   bool
	png           []byte
	html          string

	navigated   []string
	waitedFor   []string
	closeCalls  int
	navDeadline bool
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	_, s.navDeadline = ctx.Deadline()
	s.navigated = append(s.navigated, url)
	return s.navigateErr
}

func (s *fakeSession) WaitFor(_ context.Context, selector string, _ time.Duration) (bool, error) {
	s.waitedFor = append(s.waitedFor, selector)
	if s.waitErr != nil {
		return false, s.waitErr
	}
	return s.hasPassword, nil
}

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) {
	return s.png, s.screenshotErr
}

func (s *fakeSession) HTML(context.Context) (string, error) {
	return s.html, s.htmlErr
}

func (s *fakeSession) Close() error {
	s.closeCalls++
	return nil
}

func pngBytes() []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	return buf.Bytes()
}

var errBoom = errors.New("boom")

const loginHTML = `<html><head><title> Admin  Login </title></head><body><form><input type="password" name="p"></form></body></html>`

func noSleep(context.Context, time.Duration) error { return nil }
