package artifact

import (
	"context"
	_ "crypto/sha256" // registers digest.Canonical
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
)

// DefaultModTime is stamped on every entry. It is the earliest time the zip
// format can represent.
var DefaultModTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

type stagedFile struct {
	name string // slash separated, relative to the staging root
	path string
	mode os.FileMode
}

// collect lists the regular files under root that survive the excluder,
// sorted by archive name. Excluded directories are not descended into.
func collect(ctx context.Context, fs billy.Filesystem, root string, ex *Excluder) ([]stagedFile, int, error) {
	var (
		files    []stagedFile
		excluded int
	)

	err := util.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if ex.Match(rel) {
			excluded++
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if fi.Mode()&os.ModeSymlink != 0 {
			if fi, err = fs.Stat(path); err != nil {
				return err
			}
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		files = append(files, stagedFile{name: filepath.ToSlash(rel), path: path, mode: fi.Mode()})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
	return files, excluded, nil
}

// writeArchive compresses files into a temporary file next to dst, then
// renames it into place. The digest covers the exact bytes written.
func writeArchive(ctx context.Context, fs billy.Filesystem, files []stagedFile, dst string, modTime time.Time) (*Manifest, error) {
	dir := filepath.Dir(dst)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := util.TempFile(fs, dir, "."+filepath.Base(dst)+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary archive: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = fs.Remove(tmpName)
		}
	}()

	digester := digest.Canonical.Digester()
	counter := &countingWriter{}
	zw := zip.NewWriter(io.MultiWriter(tmp, digester.Hash(), counter))
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	headers := make([]*zip.FileHeader, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fh := &zip.FileHeader{
			Name:     f.name,
			Method:   zip.Deflate,
			Modified: modTime,
		}
		fh.SetMode(normalizeMode(f.mode))

		w, err := zw.CreateHeader(fh)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.name, err)
		}
		if err := copyInto(fs, f.path, w); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.name, err)
		}
		headers = append(headers, fh)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}

	if err := replace(fs, tmpName, dst); err != nil {
		return nil, err
	}
	committed = true

	m := &Manifest{
		Entries: make([]Entry, len(headers)),
		Digest:  digester.Digest(),
		Size:    counter.n,
	}
	for i, fh := range headers {
		m.Entries[i] = Entry{Name: fh.Name, Size: fh.UncompressedSize64, CRC32: fh.CRC32}
	}
	return m, nil
}

func copyInto(fs billy.Filesystem, path string, w io.Writer) error {
	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = io.Copy(w, f)
	return err
}

// replace renames src over dst.
func replace(fs billy.Filesystem, src, dst string) error {
	if err := fs.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", dst, err)
	}
	if err := fs.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

// normalizeMode keeps only whether the file is executable.
func normalizeMode(m os.FileMode) os.FileMode {
	if m.Perm()&0o111 != 0 {
		return 0o755
	}
	return 0o644
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
