package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/portalshot/internal/config"
	"github.com/nao1215/portalshot/internal/fingerprint"
	plog "github.com/nao1215/portalshot/internal/log"
	"github.com/nao1215/portalshot/internal/model"
	"github.com/nao1215/portalshot/internal/report"
	"github.com/nao1215/portalshot/internal/targets"
	"golang.org/x/sync/errgroup"
)

// ErrCancelled is the completion error of a run cancelled between targets.
var ErrCancelled = errors.New("run cancelled")

// State is the lifecycle state of a run.
type State int32

// Run states. A run moves forward only; Done and Failed are terminal.
const (
	StateIdle State = iota
	StateReading
	StatePerTargetLoop
	StateFinalizing
	StateDone
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StatePerTargetLoop:
		return "per-target loop"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Completion is the terminal event of a run.
type Completion struct {
	// State is StateDone or StateFailed.
	State State

	// OutputPath is the report written by the run, empty when none was.
	OutputPath string

	// ChangeLogPath is the change log written by the run, empty when none was.
	ChangeLogPath string

	// RunID is the history ID of the saved run, zero when not saved.
	RunID int64

	// Result holds what the run produced. Nil when reading the input failed.
	Result *model.RunResult

	// Err is the failure cause, nil on success.
	Err error
}

// Succeeded reports whether the run completed.
func (c Completion) Succeeded() bool {
	return c.State == StateDone
}

// HistoryRecorder persists finished runs. *database.HistoryDB implements it.
type HistoryRecorder interface {
	SaveRun(ctx context.Context, result *model.RunResult) (int64, error)
}

// Orchestrator runs capture batches.
type Orchestrator struct {
	capturer      Capturer
	builder       report.Builder
	checker       Checker
	history       HistoryRecorder
	targetOpts    []targets.Option
	storeOpts     []fingerprint.Option
	changeLogPath string
	workDir       string
	logger        *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPreflight adds a pre-flight check before each capture.
func WithPreflight(checker Checker) OrchestratorOption {
	return func(o *Orchestrator) {
		o.checker = checker
	}
}

// WithHistory saves each finished run.
func WithHistory(history HistoryRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.history = history
	}
}

// WithTargetOptions sets how the target list is read.
func WithTargetOptions(opts ...targets.Option) OrchestratorOption {
	return func(o *Orchestrator) {
		o.targetOpts = append(o.targetOpts, opts...)
	}
}

// WithStoreOptions configures the fingerprint store of each run.
func WithStoreOptions(opts ...fingerprint.Option) OrchestratorOption {
	return func(o *Orchestrator) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

// WithChangeLogPath sets the change log destination.
func WithChangeLogPath(path string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.changeLogPath = path
	}
}

// WithWorkDir keeps screenshots in dir. By default they go to a temporary
// directory that is removed when the run ends.
func WithWorkDir(dir string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.workDir = dir
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an Orchestrator capturing with capturer and
// rendering with builder.
func NewOrchestrator(capturer Capturer, builder report.Builder, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		capturer:      capturer,
		builder:       builder,
		changeLogPath: config.DefaultChangeLogPath,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run is the handle of a started batch.
type Run struct {
	state    atomic.Int32
	progress *queue[int]
	logs     *queue[string]
	done     chan Completion
	finished chan struct{}
	once     sync.Once
	result   Completion
}

func newRun() *Run {
	return &Run{
		progress: newQueue[int](),
		logs:     newQueue[string](),
		done:     make(chan Completion, 1),
		finished: make(chan struct{}),
	}
}

// Progress delivers the completed percentage (0-100), never decreasing.
// It is closed after the run ends. A caller that subscribes must read it
// until it is closed.
func (r *Run) Progress() <-chan int {
	return r.progress.channel()
}

// Log delivers human-readable log lines. It is closed after the run ends.
// A caller that subscribes must read it until it is closed.
func (r *Run) Log() <-chan string {
	return r.logs.channel()
}

// Done delivers the single terminal event.
func (r *Run) Done() <-chan Completion {
	return r.done
}

// Wait blocks until the run ends and returns its completion.
func (r *Run) Wait() Completion {
	<-r.finished
	return r.result
}

// State returns the current state.
func (r *Run) State() State {
	return State(r.state.Load())
}

func (r *Run) setState(s State) {
	r.state.Store(int32(s))
}

func (r *Run) logf(format string, args ...any) {
	r.logs.push(fmt.Sprintf(format, args...))
}

func (r *Run) finish(c Completion) {
	r.once.Do(func() {
		r.setState(c.State)
		r.result = c
		r.progress.close()
		r.logs.close()
		r.done <- c
		close(r.finished)
	})
}

// Start launches a run on its own goroutine and returns immediately.
// Cancelling ctx stops the run before the next target; the target being
// captured is finished first.
func (o *Orchestrator) Start(ctx context.Context, inputPath, outputPath string) *Run {
	r := newRun()
	go o.run(ctx, r, inputPath, outputPath)
	return r
}

// Execute runs a batch and waits for it, discarding progress and log events.
func (o *Orchestrator) Execute(ctx context.Context, inputPath, outputPath string) Completion {
	r := o.Start(ctx, inputPath, outputPath)
	go drain(r.Progress())
	go drain(r.Log())
	return r.Wait()
}

func drain[T any](ch <-chan T) {
	for range ch {
	}
}

func (o *Orchestrator) run(ctx context.Context, r *Run, inputPath, outputPath string) {
	started := time.Now()

	r.setState(StateReading)
	r.logf("Reading targets from %s", inputPath)
	list, err := targets.Load(inputPath, o.targetOpts...)
	if err != nil {
		r.logf("Failed to read targets: %v", err)
		r.finish(Completion{State: StateFailed, Err: err})
		return
	}
	r.logf("Found %d unique URLs", len(list))

	workDir, cleanup, err := o.prepareWorkDir()
	if err != nil {
		r.finish(Completion{State: StateFailed, Err: err})
		return
	}
	defer cleanup()

	store := fingerprint.NewStore(o.storeOpts...)
	result := &model.RunResult{
		InputPath: inputPath,
		Targets:   list,
		Images:    make(map[string]string),
		Titles:    make(map[string]string),
		StartedAt: started,
	}

	r.setState(StatePerTargetLoop)
	r.progress.push(0)
	cancelled := o.loop(ctx, r, o.newPipeline(store, workDir), store, result)

	result.Groups = store.Groups()
	result.Changes = store.Changes()
	result.FinishedAt = time.Now()

	r.setState(StateFinalizing)
	r.finish(o.finalize(context.WithoutCancel(ctx), r, result, outputPath, cancelled))
}

// loop captures every target in order. It returns true when ctx was
// cancelled before all targets were processed.
func (o *Orchestrator) loop(ctx context.Context, r *Run, p *Pipeline, store *fingerprint.Store, result *model.RunResult) bool {
	total := len(result.Targets)
	for i, target := range result.Targets {
		if ctx.Err() != nil {
			r.logf("Cancelled after %d of %d URLs", i, total)
			return true
		}

		url := plog.RedactURL(target.Raw)
		c := model.NewCapture(target, i)
		// A capture in flight is never interrupted.
		if err := p.Execute(context.WithoutCancel(ctx), c); err != nil {
			if !c.Recorded {
				store.RecordFailure(target.Raw)
			}
			r.logf("[%d/%d] Failed %s: %s", i+1, total, url, plog.RedactText(err.Error()))
		} else {
			result.Captured = append(result.Captured, target)
			result.Images[target.Raw] = c.ImagePath
			if c.Title != "" {
				result.Titles[target.Raw] = c.Title
			}
			r.logf("[%d/%d] Captured %s (%s)", i+1, total, url, c.Fingerprint)
		}
		r.progress.push((i + 1) * 100 / total)
	}
	if total == 0 {
		r.progress.push(100)
	}
	return false
}

func (o *Orchestrator) newPipeline(store *fingerprint.Store, workDir string) *Pipeline {
	p := New(WithLogger(o.logger))
	if o.checker != nil {
		p.AddStep(NewPreflightStep(o.checker))
	}
	p.AddSteps(
		NewCaptureStep(o.capturer, workDir),
		NewFingerprintStep(store),
	)
	return p
}

func (o *Orchestrator) prepareWorkDir() (string, func(), error) {
	if o.workDir != "" {
		if err := os.MkdirAll(o.workDir, 0o750); err != nil {
			return "", nil, fmt.Errorf("failed to create screenshot directory: %w", err)
		}
		return o.workDir, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "portalshot-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			o.logger.Warn("failed to remove work directory", "dir", dir, "error", err)
		}
	}, nil
}

// finalize builds the report, writes the change log and saves the history
// concurrently. A cancelled run only writes the change log.
func (o *Orchestrator) finalize(ctx context.Context, r *Run, result *model.RunResult, outputPath string, cancelled bool) Completion {
	var (
		g                       errgroup.Group
		reportErr, changeLogErr error
		runID                   int64
	)

	if !cancelled {
		g.Go(func() error {
			reportErr = o.builder.Build(ctx, report.Input{
				Order:  result.Captured,
				Groups: result.Groups,
				Images: result.Images,
				Titles: result.Titles,
			}, outputPath)
			return reportErr
		})
	}

	g.Go(func() error {
		changeLogErr = report.WriteChangeLog(o.changeLogPath, result.Changes)
		return changeLogErr
	})

	if o.history != nil && !cancelled {
		g.Go(func() error {
			id, err := o.history.SaveRun(ctx, result)
			if err != nil {
				o.logger.Warn("failed to save run history", "error", err)
				return nil
			}
			runID = id
			return nil
		})
	}

	_ = g.Wait()

	c := Completion{State: StateDone, Result: result, RunID: runID}
	if changeLogErr == nil {
		c.ChangeLogPath = o.changeLogPath
		r.logf("Change log written to %s", o.changeLogPath)
	} else {
		r.logf("Failed to write change log: %v", changeLogErr)
	}

	switch {
	case cancelled:
		c.State = StateFailed
		c.Err = ErrCancelled
	case reportErr != nil:
		c.State = StateFailed
		c.Err = fmt.Errorf("failed to build report: %w", reportErr)
		r.logf("Failed to build report: %v", reportErr)
	case changeLogErr != nil:
		c.State = StateFailed
		c.Err = fmt.Errorf("failed to write change log: %w", changeLogErr)
		c.OutputPath = outputPath
	default:
		c.OutputPath = outputPath
		r.logf("Report written to %s (%d captured, %d failed)", outputPath, len(result.Captured), result.FailedCount())
	}
	return c
}
