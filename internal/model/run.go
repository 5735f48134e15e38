package model

import "time"

// Capture carries the state of one target through the per-target pipeline.
// Each step reads what earlier steps filled in and adds its own fields.
type Capture struct {
	// Target is the endpoint being captured.
	Target Target `json:"target"`

	// Index is the zero-based position of the target in the unique list.
	Index int `json:"index"`

	// ImagePath is where the screenshot was written. Empty until captured.
	ImagePath string `json:"image_path,omitempty"`

	// Title is the <title> of the rendered page, if any.
	Title string `json:"title,omitempty"`

	// Fingerprint is set once the image has been hashed.
	Fingerprint Fingerprint `json:"fingerprint,omitempty"`

	// Recorded is true once the fingerprint store holds a change record
	// for this attempt, whether success or failure.
	Recorded bool `json:"-"`

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the failure that ended the pipeline, nil on success.
	Error error `json:"-"`

	// ErrorMessage mirrors Error for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewCapture creates the pipeline state for the target at index.
func NewCapture(target Target, index int) *Capture {
	return &Capture{
		Target: target,
		Index:  index,
	}
}

// Succeeded reports whether the capture produced a fingerprinted image.
func (c *Capture) Succeeded() bool {
	return c.Error == nil && c.Fingerprint != ""
}

// RunResult is everything a finished (or failed) run produced.
type RunResult struct {
	// InputPath is the target list the run read.
	InputPath string `json:"input_path"`

	// Targets are the unique targets in first-seen order.
	Targets []Target `json:"targets"`

	// Captured lists the URLs that were captured, in first-seen order.
	Captured []Target `json:"captured"`

	// Groups are the fingerprint groups in formation order.
	Groups []Group `json:"groups"`

	// Images maps a captured URL to its screenshot path.
	Images map[string]string `json:"images"`

	// Titles maps a captured URL to its page title.
	Titles map[string]string `json:"titles,omitempty"`

	// Changes is the change log of the run.
	Changes []ChangeRecord `json:"changes"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// FailedCount returns the number of error records in the change log.
func (r *RunResult) FailedCount() int {
	n := 0
	for _, c := range r.Changes {
		if c.Status == StatusError {
			n++
		}
	}
	return n
}
