// Package async runs independent operations concurrently.
//
// [Map] applies a function to every input in parallel and returns the
// results in input order. It backs the prerequisite probes, which each
// spawn a subprocess.
package async
