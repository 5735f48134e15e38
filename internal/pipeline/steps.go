package pipeline

import (
	"context"
	"path/filepath"

	"github.com/nao1215/portalshot/internal/capture"
	"github.com/nao1215/portalshot/internal/model"
)

// Checker is the pre-flight capability used by PreflightStep.
// *preflight.Checker implements it.
type Checker interface {
	Check(ctx context.Context, target model.Target) error
}

// Capturer is the capture capability used by CaptureStep.
// *capture.Unit implements it.
type Capturer interface {
	Capture(ctx context.Context, rawURL, dest string) (capture.Shot, error)
}

// Recorder is the fingerprint capability used by FingerprintStep.
// *fingerprint.Store implements it.
type Recorder interface {
	RecordFile(url, path string) (model.Fingerprint, error)
}

// PreflightStep fails fast on hosts that do not resolve or accept
// connections, before a browser is launched.
type PreflightStep struct {
	checker Checker
}

// NewPreflightStep creates a pre-flight step.
func NewPreflightStep(checker Checker) *PreflightStep {
	return &PreflightStep{checker: checker}
}

// Name returns the step name.
func (s *PreflightStep) Name() string {
	return "preflight"
}

// Do executes the pre-flight check.
func (s *PreflightStep) Do(ctx context.Context, c *model.Capture) error {
	return s.checker.Check(ctx, c.Target)
}

// CaptureStep screenshots the target into the run's work directory.
type CaptureStep struct {
	capturer Capturer
	dir      string
}

// NewCaptureStep creates a capture step writing screenshots into dir.
func NewCaptureStep(capturer Capturer, dir string) *CaptureStep {
	return &CaptureStep{capturer: capturer, dir: dir}
}

// Name returns the step name.
func (s *CaptureStep) Name() string {
	return "capture"
}

// Do executes the capture.
func (s *CaptureStep) Do(ctx context.Context, c *model.Capture) error {
	dest := filepath.Join(s.dir, capture.ScreenshotName(c.Index, c.Target.Raw))
	shot, err := s.capturer.Capture(ctx, c.Target.Raw, dest)
	if err != nil {
		return err
	}
	c.ImagePath = shot.Path
	c.Title = shot.Title
	return nil
}

// FingerprintStep hashes the screenshot and records it in the store.
// The store records a failure itself when the image cannot be used.
type FingerprintStep struct {
	recorder Recorder
}

// NewFingerprintStep creates a fingerprint step.
func NewFingerprintStep(recorder Recorder) *FingerprintStep {
	return &FingerprintStep{recorder: recorder}
}

// Name returns the step name.
func (s *FingerprintStep) Name() string {
	return "fingerprint"
}

// Do executes the fingerprint step.
func (s *FingerprintStep) Do(_ context.Context, c *model.Capture) error {
	fp, err := s.recorder.RecordFile(c.Target.Raw, c.ImagePath)
	c.Recorded = true
	if err != nil {
		return err
	}
	c.Fingerprint = fp
	return nil
}
