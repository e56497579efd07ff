package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/user"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	poeerrors "github.com/princespaghetti/poe2arb/internal/errors"
)

const (
	indexFileName = "index.json"
	lockFileName  = ".lock"
	payloadExt    = ".json"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Store writes snapshots under a base directory.
type Store struct {
	basePath  string
	fs        FileSystem
	newLocker func(path string) Locker
	now       func() time.Time
}

// NewStore creates a new Store rooted at basePath.
// If basePath is empty, it defaults to ~/.poe2arb/snapshots
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		usr, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("get user home directory: %w", err)
		}
		basePath = filepath.Join(usr.HomeDir, ".poe2arb", "snapshots")
	}

	return &Store{
		basePath:  basePath,
		fs:        OSFileSystem{},
		newLocker: newDirLock,
		now:       time.Now,
	}, nil
}

// BasePath returns the directory the store writes to.
func (s *Store) BasePath() string {
	return s.basePath
}

// PayloadPath returns where the snapshot called name is stored.
func (s *Store) PayloadPath(name string) string {
	return filepath.Join(s.basePath, name+payloadExt)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.basePath, indexFileName)
}

// ValidateName checks that name is usable as a snapshot file name: 1-64
// characters of letters, digits, '.', '_' or '-', not starting with a
// separator. "index" is reserved for the index file.
func ValidateName(name string) error {
	if !validName.MatchString(name) || name+payloadExt == indexFileName {
		return fmt.Errorf("%w: %q", poeerrors.ErrInvalidSnapshotID, name)
	}
	return nil
}

// Save writes value as indented JSON under name and records it in the index,
// replacing any earlier snapshot with the same name.
func (s *Store) Save(ctx context.Context, name, sourceURL string, value any) (*Entry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, &poeerrors.OpError{Op: "marshal snapshot", Err: err}
	}
	data = append(data, '\n')

	if err := s.fs.MkdirAll(s.basePath, 0755); err != nil {
		return nil, &poeerrors.OpError{Op: "create directory", Path: s.basePath, Err: err}
	}

	lock := s.newLocker(filepath.Join(s.basePath, lockFileName))
	if err := lock.Lock(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = lock.Unlock() }()

	ix, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	if err := s.writeAtomic("write snapshot", s.PayloadPath(name), data); err != nil {
		return nil, err
	}

	entry := Entry{
		Name:      name,
		SourceURL: sourceURL,
		Fetched:   s.now().UTC(),
		SHA256:    ComputeSHA256(data),
		SizeBytes: int64(len(data)),
	}
	ix.upsert(entry)

	if err := s.writeIndex(ix); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns the recorded snapshots sorted by name. A directory with no
// index yields an empty list.
func (s *Store) List() ([]Entry, error) {
	ix, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	return ix.Snapshots, nil
}

// Get returns the index entry for name.
func (s *Store) Get(name string) (*Entry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	ix, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	i, found := slices.BinarySearchFunc(ix.Snapshots, name, func(e Entry, n string) int {
		return strings.Compare(e.Name, n)
	})
	if !found {
		return nil, fmt.Errorf("%w: %s", poeerrors.ErrSnapshotNotFound, name)
	}
	return &ix.Snapshots[i], nil
}

// Read returns the stored payload for name after checking it against the
// digest recorded in the index.
func (s *Store) Read(name string) ([]byte, *Entry, error) {
	entry, err := s.Get(name)
	if err != nil {
		return nil, nil, err
	}

	path := s.PayloadPath(name)
	data, err := s.fs.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s (payload missing)", poeerrors.ErrSnapshotNotFound, name)
	}
	if err != nil {
		return nil, nil, &poeerrors.OpError{Op: "read snapshot", Path: path, Err: err}
	}

	if got := ComputeSHA256(data); got != entry.SHA256 {
		return nil, nil, &poeerrors.OpError{
			Op:   "verify snapshot",
			Path: path,
			Err:  fmt.Errorf("sha256 mismatch: index has %s, file has %s", entry.SHA256, got),
		}
	}
	return data, entry, nil
}

// writeAtomic writes data to a temp file next to path and renames it into place.
func (s *Store) writeAtomic(op, path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := s.fs.WriteFile(tempPath, data, 0644); err != nil {
		return &poeerrors.OpError{Op: op, Path: tempPath, Err: err}
	}

	// Atomic rename (os.Rename is atomic on POSIX systems)
	if err := s.fs.Rename(tempPath, path); err != nil {
		_ = s.fs.Remove(tempPath)
		return &poeerrors.OpError{Op: op, Path: path, Err: err}
	}
	return nil
}
