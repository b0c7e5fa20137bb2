// Package sequencer runs an ordered list of named, idempotent steps and
// records a completion marker for each one that succeeds.
//
// A step whose marker already exists is skipped without invoking its action,
// so re-running the same list after a partial failure resumes right after the
// last completed step. The first failing step aborts the run; later steps are
// never invoked and no marker is written for the failed one. An optional
// cleanup action runs only after a fully successful pass.
package sequencer
