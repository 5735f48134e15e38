// Package model defines the core data structures shared by portalshot.
//
// This package contains the following main types:
//   - Target: one web endpoint from the input list and its color class
//   - Fingerprint and Group: perceptual hashes and the URLs sharing them
//   - ChangeRecord: one row of the per-run change log
//   - Capture: per-target state passed through the capture pipeline
//   - RunResult: everything a run produced, consumed by report builders
//
// Models live in their own package so that capture, fingerprint, report and
// pipeline can all depend on them without import cycles. They are JSON
// serializable for history storage.
package model
