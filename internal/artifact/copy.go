package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// copyItem copies src (a file or a directory tree) to dst on the same
// filesystem and returns the number of files written.
func copyItem(ctx context.Context, fs billy.Filesystem, item Item, dst string) (int, error) {
	info, err := fs.Stat(item.Path)
	if err != nil {
		return 0, fmt.Errorf("source item %s: %w", item, err)
	}
	if item.Dir != info.IsDir() {
		kind := "file"
		if item.Dir {
			kind = "directory"
		}
		return 0, fmt.Errorf("source item %s: expected a %s", item, kind)
	}

	if !info.IsDir() {
		if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return 0, err
		}
		return 1, copyFile(fs, item.Path, dst, info.Mode())
	}

	files := 0
	err = util.Walk(fs, item.Path, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(item.Path, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case fi.IsDir():
			return fs.MkdirAll(target, dirMode(fi.Mode()))
		case fi.Mode()&os.ModeSymlink != 0:
			resolved, err := fs.Stat(path)
			if err != nil {
				return err
			}
			if resolved.IsDir() {
				return nil
			}
			fi = resolved
		case !fi.Mode().IsRegular():
			return nil
		}

		files++
		return copyFile(fs, path, target, fi.Mode())
	})
	if err != nil {
		return files, fmt.Errorf("failed to copy %s: %w", item, err)
	}

	return files, nil
}

func copyFile(fs billy.Filesystem, src, dst string, mode os.FileMode) (err error) {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

func dirMode(m os.FileMode) os.FileMode {
	return m.Perm() | 0o700
}
