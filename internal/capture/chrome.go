package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeBrowser launches a fresh headless Chrome process per session.
type ChromeBrowser struct {
	execPath string
	logger   *slog.Logger
}

// ChromeOption configures a ChromeBrowser.
type ChromeOption func(*ChromeBrowser)

// WithExecPath sets the Chrome or Chromium executable.
// By default chromedp searches the usual install locations and $PATH.
func WithExecPath(path string) ChromeOption {
	return func(b *ChromeBrowser) {
		b.execPath = path
	}
}

// WithChromeLogger sets the logger receiving chromedp's debug output.
func WithChromeLogger(logger *slog.Logger) ChromeOption {
	return func(b *ChromeBrowser) {
		b.logger = logger
	}
}

// NewChromeBrowser creates a ChromeBrowser.
func NewChromeBrowser(opts ...ChromeOption) *ChromeBrowser {
	b := &ChromeBrowser{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// allocatorOptions returns the exec allocator flags for a session.
func (b *ChromeBrowser) allocatorOptions(opts SessionOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(opts.Viewport.Width, opts.Viewport.Height),
	)
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}
	if b.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.execPath))
	}
	return allocOpts
}

// Open starts a browser and prepares its first tab.
func (b *ChromeBrowser) Open(ctx context.Context, opts SessionOptions) (Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), b.allocatorOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithDebugf(func(format string, args ...any) {
		b.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}))

	s := &chromeSession{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}

	setup := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(int64(opts.Viewport.Width), int64(opts.Viewport.Height), 1, false),
	}
	if len(opts.Headers) > 0 {
		headers := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			headers[k] = v
		}
		setup = append(setup, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}

	// The first Run on the tab context starts the browser and binds its
	// lifetime to that context, so it must not run on a derived one.
	if err := chromedp.Run(tabCtx, setup...); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return s, nil
}

// chromeSession is a Session backed by one chromedp tab.
type chromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

// run executes actions on the tab, bounded by ctx and an optional timeout.
func (s *chromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, 0, chromedp.Navigate(url))
}

func (s *chromeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	err := s.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return false, nil
	default:
		return false, err
	}
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, 0, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the browser down and releases the allocator.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}
