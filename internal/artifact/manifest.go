package artifact

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
)

// Entry is one file stored in the archive.
type Entry struct {
	Name  string
	Size  uint64
	CRC32 uint32
}

// Manifest describes an archive's contents and identity.
type Manifest struct {
	Entries []Entry
	Digest  digest.Digest
	Size    int64
}

// Names returns the entry names in archive order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		names[i] = e.Name
	}
	return names
}

// ShortDigest returns the first n hex characters of the digest.
func (m *Manifest) ShortDigest(n int) string {
	enc := m.Digest.Encoded()
	if n > len(enc) {
		n = len(enc)
	}
	return enc[:n]
}

// ReadManifest builds the manifest of an existing archive.
func ReadManifest(fs billy.Filesystem, name string) (*Manifest, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	r, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read archive %s: %w", name, err)
	}

	m := &Manifest{Size: info.Size()}
	for _, zf := range r.File {
		m.Entries = append(m.Entries, Entry{
			Name:  zf.Name,
			Size:  zf.UncompressedSize64,
			CRC32: zf.CRC32,
		})
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Name < m.Entries[j].Name })

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind archive: %w", err)
	}
	if m.Digest, err = digest.FromReader(f); err != nil {
		return nil, fmt.Errorf("failed to digest archive: %w", err)
	}

	return m, nil
}
