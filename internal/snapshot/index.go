package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"slices"
	"strings"
	"time"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
)

// currentIndexVersion is the current index schema version.
const currentIndexVersion = "1"

// Index lists every snapshot in a directory.
type Index struct {
	Version   string  `json:"version"`
	Snapshots []Entry `json:"snapshots"`
}

// Entry describes one saved payload.
type Entry struct {
	Name      string    `json:"name"`
	SourceURL string    `json:"source_url"`
	Fetched   time.Time `json:"fetched"`
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Version:   currentIndexVersion,
		Snapshots: []Entry{},
	}
}

// upsert replaces the entry with the same name or adds it, keeping the list
// sorted by name.
func (ix *Index) upsert(e Entry) {
	i, found := slices.BinarySearchFunc(ix.Snapshots, e.Name, func(a Entry, name string) int {
		return strings.Compare(a.Name, name)
	})
	if found {
		ix.Snapshots[i] = e
		return
	}
	ix.Snapshots = slices.Insert(ix.Snapshots, i, e)
}

// readIndex reads index.json. A missing file yields an empty index.
func (s *Store) readIndex() (*Index, error) {
	data, err := s.fs.ReadFile(s.indexPath())
	if errors.Is(err, fs.ErrNotExist) {
		return NewIndex(), nil
	}
	if err != nil {
		return nil, &poeerrors.OpError{Op: "read index", Path: s.indexPath(), Err: err}
	}

	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, &poeerrors.OpError{Op: "parse index", Path: s.indexPath(), Err: err}
	}
	if ix.Snapshots == nil {
		ix.Snapshots = []Entry{}
	}
	slices.SortFunc(ix.Snapshots, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	ix.Version = currentIndexVersion
	return &ix, nil
}

// writeIndex writes index.json using atomic rename.
func (s *Store) writeIndex(ix *Index) error {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return &poeerrors.OpError{Op: "marshal index", Err: err}
	}
	return s.writeAtomic("write index", s.indexPath(), data)
}

// ComputeSHA256 computes the SHA256 hash of data and returns it as a hex string.
func ComputeSHA256(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
