package transport

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// FileEntry describes a single filesystem entry as seen by an endpoint.
type FileEntry struct {
	ModTime   time.Time
	RelPath   string
	Size      int64
	Mode      os.FileMode
	IsSymlink bool
	IsDir     bool
}

// IsRegular reports whether the entry is a plain file.
func (e FileEntry) IsRegular() bool {
	return e.Mode.IsRegular()
}

// Capabilities describes what an endpoint supports.
type Capabilities struct {
	// TimeResolution is the granularity of stored modification times.
	// Zero means exact (nanosecond) times are preserved.
	TimeResolution time.Duration
	// Concurrent is true when calls may be issued from several goroutines
	// at once. Endpoints without it are wrapped by Serialize.
	Concurrent bool
}

// WriteFile is a writable temp file on the endpoint.
type WriteFile interface {
	io.WriteCloser
	// Name returns the temp file's path relative to the endpoint root.
	Name() string
}

// ReadEndpoint is the read side of a tree. Both the source and the
// destination are enumerated through it.
type ReadEndpoint interface {
	// ReadDir lists immediate children of a relative directory path,
	// sorted by name. Symlinks are reported, not followed.
	ReadDir(relPath string) ([]FileEntry, error)

	// Stat returns metadata for a single relative path without following
	// symlinks.
	Stat(relPath string) (FileEntry, error)

	// OpenRead opens a file for streamed reading by relative path.
	OpenRead(relPath string) (io.ReadCloser, error)

	// ReadTail returns up to the last n bytes of a file.
	ReadTail(relPath string, n int64) ([]byte, error)

	// Root returns the absolute root path of this endpoint.
	Root() string

	// Caps returns the capabilities of this endpoint.
	Caps() Capabilities

	// Close releases resources held by this endpoint.
	Close() error
}

// WriteEndpoint is a tree that can also be modified. Relative paths may
// step outside the root with ".." (a recycle directory next to the
// destination, for example).
type WriteEndpoint interface {
	ReadEndpoint

	// MkdirAll creates a directory and all parents.
	MkdirAll(relPath string) error

	// CreateTemp creates a temporary file in the same directory as relPath.
	// The caller must close the returned WriteFile.
	CreateTemp(relPath string) (WriteFile, error)

	// Rename moves oldRel to newRel, replacing an existing file at newRel.
	Rename(oldRel, newRel string) error

	// Remove deletes a single file or an empty directory.
	Remove(relPath string) error

	// Chtimes sets the modification time of a path.
	Chtimes(relPath string, mtime time.Time) error
}

// Error reports that an endpoint could not be reached or opened at all,
// as opposed to a failure of a single operation on it.
type Error struct {
	Err      error
	Op       string
	Location string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Location, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const tempSuffix = ".treesync-tmp"

// tempName is the name of the temp file CreateTemp makes for base.
func tempName(base, id string) string {
	return fmt.Sprintf(".%s.%s%s", base, id[:8], tempSuffix)
}

// IsTempName reports whether a base name looks like one of our temp files.
func IsTempName(base string) bool {
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, tempSuffix)
}
