package pipeline

import (
	"context"
	"log/slog"

	plog "github.com/nao1215/portalshot/internal/log"
	"github.com/nao1215/portalshot/internal/model"
)

// Step is one stage of the per-target pipeline.
type Step interface {
	// Do executes the step. It reads what earlier steps stored in c and
	// adds its own results. A non-nil error ends the pipeline for c.
	Do(ctx context.Context, c *model.Capture) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes its steps in order for one target.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order and stops at the first failure, which is
// stored in c and returned. Cancellation is checked before each step.
func (p *Pipeline) Execute(ctx context.Context, c *model.Capture) error {
	url := plog.RedactURL(c.Target.Raw)
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "url", url, "reason", err)
			c.Error = err
			c.ErrorMessage = err.Error()
			return err
		}

		p.logger.Debug("executing step", "step", step.Name(), "url", url)

		c.PerformedSteps = append(c.PerformedSteps, step.Name())
		if err := step.Do(ctx, c); err != nil {
			p.logger.Info("step failed", "step", step.Name(), "url", url, "error", err)
			c.Error = err
			c.ErrorMessage = err.Error()
			return err
		}
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
