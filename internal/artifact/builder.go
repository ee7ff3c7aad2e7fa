package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/lynkia/deployer/internal/logging"
)

// Options configures a Builder. Paths are relative to the builder's
// filesystem root, which is the source root.
type Options struct {
	StagingDir string
	Archive    string
	Exclude    []string

	// ModTime is stamped on archive entries. Defaults to DefaultModTime.
	ModTime time.Time

	Logger *log.Logger
}

// Result describes an assembled archive.
type Result struct {
	// Path is the archive path on the builder's filesystem.
	Path     string
	Manifest *Manifest

	// Copied is the number of source files copied into staging.
	Copied int

	// Excluded is the number of staged paths left out of the archive.
	Excluded int
}

// Builder stages source items and produces the archive.
type Builder struct {
	fs       billy.Filesystem
	opts     Options
	excluder *Excluder
	logger   *log.Logger
}

// NewBuilder creates a builder over fs.
func NewBuilder(fs billy.Filesystem, opts Options) (*Builder, error) {
	if opts.StagingDir == "" || opts.Archive == "" {
		return nil, fmt.Errorf("staging directory and archive name are required")
	}
	ex, err := NewExcluder(opts.Exclude)
	if err != nil {
		return nil, err
	}
	if opts.ModTime.IsZero() {
		opts.ModTime = DefaultModTime
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Builder{fs: fs, opts: opts, excluder: ex, logger: logger}, nil
}

// StagingDir returns the staging directory path.
func (b *Builder) StagingDir() string { return b.opts.StagingDir }

// ArchivePath returns the archive path.
func (b *Builder) ArchivePath() string { return b.opts.Archive }

// Clean removes the staging directory and the archive.
func (b *Builder) Clean() error {
	b.logger.Debug("cleaning", "staging", b.opts.StagingDir, "archive", b.opts.Archive)
	return Clean(b.fs, b.opts.StagingDir, b.opts.Archive)
}

// RemoveStaging deletes the staging directory only.
func (b *Builder) RemoveStaging() error {
	return Clean(b.fs, b.opts.StagingDir)
}

// Assemble copies items into staging, on top of whatever the dependency
// installer put there, and writes the archive from the staging snapshot.
func (b *Builder) Assemble(ctx context.Context, items []Item) (*Result, error) {
	if err := b.fs.MkdirAll(b.opts.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	result := &Result{Path: b.opts.Archive}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := copyItem(ctx, b.fs, item, filepath.Join(b.opts.StagingDir, item.Path))
		if err != nil {
			return nil, err
		}
		b.logger.Debug("staged", "item", item.String(), "files", n)
		result.Copied += n
	}

	files, excluded, err := collect(ctx, b.fs, b.opts.StagingDir, b.excluder)
	if err != nil {
		return nil, fmt.Errorf("failed to scan staging directory: %w", err)
	}
	result.Excluded = excluded

	manifest, err := writeArchive(ctx, b.fs, files, b.opts.Archive, b.opts.ModTime)
	if err != nil {
		return nil, err
	}
	result.Manifest = manifest

	b.logger.Debug("archive written", "path", b.opts.Archive, "entries", len(manifest.Entries),
		"excluded", excluded, "exclude", b.excluder.Patterns(), "digest", manifest.Digest)
	return result, nil
}

// Export copies the archive to name on dst. Both copies remain.
func (b *Builder) Export(dst billy.Filesystem, name string) error {
	in, err := b.fs.Open(b.opts.Archive)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = in.Close() }()

	dir := filepath.Dir(name)
	if err := dst.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := util.TempFile(dst, dir, "."+filepath.Base(name)+"-")
	if err != nil {
		return fmt.Errorf("failed to create temporary copy: %w", err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = dst.Remove(tmp.Name())
		return fmt.Errorf("failed to copy archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = dst.Remove(tmp.Name())
		return fmt.Errorf("failed to copy archive: %w", err)
	}

	if err := replace(dst, tmp.Name(), name); err != nil {
		_ = dst.Remove(tmp.Name())
		return err
	}

	b.logger.Debug("archive exported", "to", dst.Join(dst.Root(), name))
	return nil
}

// Exists reports whether the archive is present.
func (b *Builder) Exists() bool {
	_, err := b.fs.Stat(b.opts.Archive)
	return err == nil
}
