package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opencontainers/go-digest"

	"github.com/lynkia/deployer/internal/util/retry"
)

const zipMIME = "application/zip"

// ObjectStore is the subset of the client used for publishing.
type ObjectStore interface {
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
	PutObject(ctx context.Context, bucket, key string, body io.ReadSeeker, size int64, contentType string, metadata map[string]string) error
}

// Published describes an uploaded archive.
type Published struct {
	Bucket string
	Key    string

	// Skipped is set when an object with the same digest was already there.
	Skipped bool
}

// URI returns the s3:// location.
func (p *Published) URI() string {
	return "s3://" + p.Bucket + "/" + p.Key
}

// Publisher uploads archives under a key prefix.
type Publisher struct {
	store  ObjectStore
	bucket string
	prefix string
	retry  []retry.Option
}

// NewPublisher creates a publisher for bucket. Storage calls are retried
// with the given options.
func NewPublisher(store ObjectStore, bucket, prefix string, opts ...retry.Option) *Publisher {
	return &Publisher{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/"), retry: opts}
}

// Key returns the object key for an archive: <prefix>/<name>-<digest12>.zip.
func (p *Publisher) Key(archivePath string, dgst digest.Digest) string {
	name := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	enc := dgst.Encoded()
	if len(enc) > 12 {
		enc = enc[:12]
	}
	return path.Join(p.prefix, fmt.Sprintf("%s-%s.zip", name, enc))
}

// Publish uploads the archive at archivePath unless an object with the same
// key exists. The file must sniff as a zip.
func (p *Publisher) Publish(ctx context.Context, archivePath string, dgst digest.Digest) (*Published, error) {
	if err := dgst.Validate(); err != nil {
		return nil, fmt.Errorf("invalid archive digest: %w", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", archivePath, err)
	}
	if !isZip(mt) {
		return nil, fmt.Errorf("%s is %s, not a zip archive", archivePath, mt.String())
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	out := &Published{Bucket: p.bucket, Key: p.Key(archivePath, dgst)}

	var exists bool
	err = retry.Do(ctx, func(ctx context.Context) error {
		var err error
		exists, err = p.store.ObjectExists(ctx, p.bucket, out.Key)
		return err
	}, p.retry...)
	if err != nil {
		return nil, err
	}
	if exists {
		out.Skipped = true
		return out, nil
	}

	metadata := map[string]string{"digest": dgst.String()}
	err = retry.Do(ctx, func(ctx context.Context) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return retry.Permanent(fmt.Errorf("failed to rewind archive: %w", err))
		}
		return p.store.PutObject(ctx, p.bucket, out.Key, f, info.Size(), zipMIME, metadata)
	}, p.retry...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// isZip accepts zip and zip-based formats.
func isZip(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(zipMIME) {
			return true
		}
	}
	return false
}
