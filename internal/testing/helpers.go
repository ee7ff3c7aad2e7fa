package testing

import (
	"archive/zip"
	"context"
	"sort"
	"time"
)

// TB is the subset of testing.TB the helpers use. Both *testing.T and
// ginkgo's GinkgoT() satisfy it.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
	TempDir() string
	Cleanup(func())
}

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ZipEntries returns the sorted entry names of the archive at path.
func ZipEntries(t TB, path string) []string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open archive %s: %v", path, err)
	}
	defer func() { _ = r.Close() }()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
