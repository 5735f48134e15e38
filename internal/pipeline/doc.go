// Package pipeline drives a capture run.
//
// A Pipeline executes Steps in order against one model.Capture: an
// optional pre-flight check, the browser capture, then fingerprinting.
// The first failing step ends the pipeline for that target.
//
// The Orchestrator runs the whole batch on a single worker goroutine:
// it reads the target list, runs the pipeline for each unique URL in
// order, then builds the report, writes the change log and saves the run
// history. Callers observe the run through the Run handle, whose progress
// and log channels are backed by unbounded queues so the worker never
// waits on a slow consumer.
package pipeline
