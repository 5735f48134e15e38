package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/portalshot/internal/capture"
	"github.com/nao1215/portalshot/internal/model"
	"github.com/nao1215/portalshot/internal/report"
)

var errNavigation = errors.New("navigation failed: net::ERR_NAME_NOT_RESOLVED")

// leftDark and topDark render as two clearly different pages.
func leftDark() image.Image { return halfDark(true) }
func topDark() image.Image { return halfDark(false) }

func halfDark(vertical bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.Gray{Y: 0xf0}
			if (vertical && x < 32) || (!vertical && y < 32) {
				c = color.Gray{Y: 0x10}
			}
			img.SetGray(x, y, c)
		}
	}
	return img
}

// writeTargets writes a CSV with the URLs in the fourth column.
func writeTargets(t *testing.T, urls ...string) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("Name,Owner,Environment,URL\n")
	for _, u := range urls {
		sb.WriteString("portal,team,prod," + u + "\n")
	}
	path := filepath.Join(t.TempDir(), "targets.csv")
	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		t.Fatalf("failed to write targets: %v", err)
	}
	return path
}

// fakeCapturer renders a configured image per URL.
type fakeCapturer struct {
	mu        sync.Mutex
	pages     map[string]image.Image
	raw       map[string][]byte
	fail      map[string]error
	calls     []string
	onCapture func(url string)
}

func newFakeCapturer() *fakeCapturer {
	return &fakeCapturer{
		pages: make(map[string]image.Image),
		raw:   make(map[string][]byte),
		fail:  make(map[string]error),
	}
}

func (f *fakeCapturer) Capture(_ context.Context, rawURL, dest string) (capture.Shot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	hook := f.onCapture
	failure := f.fail[rawURL]
	img := f.pages[rawURL]
	raw, hasRaw := f.raw[rawURL]
	f.mu.Unlock()

	if hook != nil {
		hook(rawURL)
	}
	if failure != nil {
		return capture.Shot{}, failure
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return capture.Shot{}, err
	}
	if hasRaw {
		return capture.Shot{Path: dest}, os.WriteFile(dest, raw, 0o600)
	}
	if img == nil {
		img = leftDark()
	}
	out, err := os.Create(dest)
	if err != nil {
		return capture.Shot{}, err
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		return capture.Shot{}, err
	}
	return capture.Shot{Path: dest, Title: "Login"}, nil
}

func (f *fakeCapturer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// recordingBuilder keeps the input of the last Build call.
type recordingBuilder struct {
	mu     sync.Mutex
	called bool
	input  report.Input
	err    error
}

func (b *recordingBuilder) Build(_ context.Context, in report.Input, outputPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.called = true
	b.input = in
	if b.err != nil {
		return b.err
	}
	return os.WriteFile(outputPath, []byte("report"), 0o600)
}

// fakeChecker fails the hosts listed in unreachable.
type fakeChecker struct {
	unreachable map[string]bool
}

func (c fakeChecker) Check(_ context.Context, target model.Target) error {
	if c.unreachable[target.Host] {
		return errors.New("unreachable")
	}
	return nil
}

// fakeHistory records saved runs.
type fakeHistory struct {
	mu    sync.Mutex
	saved []*model.RunResult
	err   error
}

func (h *fakeHistory) SaveRun(_ context.Context, result *model.RunResult) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return 0, h.err
	}
	h.saved = append(h.saved, result)
	return int64(len(h.saved)), nil
}

// collect drains the run's events and returns them with the completion.
func collect(r *Run) ([]int, []string, Completion) {
	var (
		progress []int
		logs     []string
		wg       sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for p := range r.Progress() {
			progress = append(progress, p)
		}
	}()
	go func() {
		defer wg.Done()
		for l := range r.Log() {
			logs = append(logs, l)
		}
	}()
	c := <-r.Done()
	wg.Wait()
	return progress, logs, c
}
