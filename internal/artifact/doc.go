// Package artifact turns the staging directory into the deployable archive.
//
// All filesystem access goes through go-billy so the same code runs against
// the workspace on disk and against memfs in tests. Archives are
// reproducible: entries are sorted, timestamps fixed and modes normalized,
// so identical staging contents always produce byte-identical output.
package artifact
