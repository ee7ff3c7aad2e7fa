// Package pipeline runs an ordered list of stages with fail-fast semantics.
//
// Stages execute strictly one after another. The first stage that returns an
// error stops the run; the error is wrapped in a StageError carrying the stage
// name and its failure kind so callers can branch with errors.Is. Finally
// hooks run after every run regardless of outcome.
package pipeline
