package s3

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lynkia/deployer/internal/util/retry"
)

type fakeStore struct {
	existing map[string]bool
	puts     map[string][]byte
	types    map[string]string
	headErr  error
	putErr   error

	// putFailures makes the first n puts fail.
	putFailures int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing: map[string]bool{},
		puts:     map[string][]byte{},
		types:    map[string]string{},
	}
}

func (f *fakeStore) ObjectExists(_ context.Context, bucket, key string) (bool, error) {
	if f.headErr != nil {
		return false, f.headErr
	}
	return f.existing[bucket+"/"+key], nil
}

func (f *fakeStore) PutObject(_ context.Context, bucket, key string, body io.ReadSeeker, size int64, contentType string, _ map[string]string) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.putFailures > 0 {
		f.putFailures--
		_, _ = io.CopyN(io.Discard, body, 3)
		return errors.New("connection reset")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	f.puts[bucket+"/"+key] = data
	f.types[bucket+"/"+key] = contentType
	return nil
}

func writeZip(t *testing.T) (string, digest.Digest) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lambda_function.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("main.py")
	require.NoError(t, err)
	_, err = w.Write([]byte("print('hello')\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return path, digest.FromBytes(data)
}

func TestPublisherKey(t *testing.T) {
	t.Parallel()

	dgst := digest.FromString("payload")
	p := NewPublisher(newFakeStore(), "artifacts", "/lambda/")

	key := p.Key("/work/lambda_function.zip", dgst)
	assert.Equal(t, "lambda/lambda_function-"+dgst.Encoded()[:12]+".zip", key)

	bare := NewPublisher(newFakeStore(), "artifacts", "")
	assert.Equal(t, "lambda_function-"+dgst.Encoded()[:12]+".zip", bare.Key("lambda_function.zip", dgst))
}

func TestPublish_Uploads(t *testing.T) {
	t.Parallel()

	path, dgst := writeZip(t)
	store := newFakeStore()
	p := NewPublisher(store, "artifacts", "lambda")

	out, err := p.Publish(context.Background(), path, dgst)
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.True(t, strings.HasPrefix(out.Key, "lambda/lambda_function-"))
	assert.Equal(t, "s3://artifacts/"+out.Key, out.URI())

	want, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, store.puts["artifacts/"+out.Key])
	assert.Equal(t, "application/zip", store.types["artifacts/"+out.Key])
}

func TestPublish_RetriesUpload(t *testing.T) {
	t.Parallel()

	path, dgst := writeZip(t)
	store := newFakeStore()
	store.putFailures = 2
	p := NewPublisher(store, "artifacts", "lambda", retry.WithAttempts(3), retry.WithInitialDelay(time.Millisecond))

	out, err := p.Publish(context.Background(), path, dgst)
	require.NoError(t, err)

	want, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, store.puts["artifacts/"+out.Key], "each attempt must send the whole file")
}

func TestPublish_SkipsExisting(t *testing.T) {
	t.Parallel()

	path, dgst := writeZip(t)
	store := newFakeStore()
	p := NewPublisher(store, "artifacts", "lambda")
	store.existing["artifacts/"+p.Key(path, dgst)] = true

	out, err := p.Publish(context.Background(), path, dgst)
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Empty(t, store.puts)
}

func TestPublish_RejectsNonZip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lambda_function.zip")
	require.NoError(t, os.WriteFile(path, []byte("just some text\n"), 0o644))

	store := newFakeStore()
	_, err := NewPublisher(store, "artifacts", "").Publish(context.Background(), path, digest.FromString("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a zip archive")
	assert.Empty(t, store.puts)
}

func TestPublish_Errors(t *testing.T) {
	t.Parallel()

	path, dgst := writeZip(t)

	t.Run("invalid digest", func(t *testing.T) {
		t.Parallel()
		_, err := NewPublisher(newFakeStore(), "b", "").Publish(context.Background(), path, digest.Digest("nope"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid archive digest")
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := NewPublisher(newFakeStore(), "b", "").Publish(context.Background(), filepath.Join(t.TempDir(), "none.zip"), dgst)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open archive")
	})

	t.Run("head failure", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		store.headErr = errors.New("denied")
		_, err := NewPublisher(store, "b", "", retry.WithAttempts(1)).Publish(context.Background(), path, dgst)
		require.ErrorIs(t, err, store.headErr)
	})

	t.Run("put failure", func(t *testing.T) {
		t.Parallel()
		store := newFakeStore()
		store.putErr = errors.New("quota")
		_, err := NewPublisher(store, "b", "", retry.WithAttempts(1)).Publish(context.Background(), path, dgst)
		require.ErrorIs(t, err, store.putErr)
	})
}

func TestPublish_AgainstServer(t *testing.T) {
	t.Parallel()

	path, dgst := writeZip(t)
	var puts atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			puts.Add(1)
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))

	out, err := NewPublisher(client, "artifacts", "lambda").Publish(context.Background(), path, dgst)
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, int32(1), puts.Load())
}
