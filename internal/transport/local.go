package transport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// Compile-time interface check.
var _ WriteEndpoint = (*LocalEndpoint)(nil)

// LocalEndpoint is a tree on an afero filesystem: the real disk for
// NewLocalEndpoint, or any afero.Fs (an in-memory one in tests).
type LocalEndpoint struct {
	fs   afero.Fs
	root string
}

// NewLocalEndpoint creates an endpoint rooted at root on the local disk.
func NewLocalEndpoint(root string) *LocalEndpoint {
	return NewFsEndpoint(afero.NewOsFs(), root)
}

// NewFsEndpoint creates an endpoint rooted at root on fs.
func NewFsEndpoint(fs afero.Fs, root string) *LocalEndpoint {
	return &LocalEndpoint{fs: fs, root: filepath.Clean(root)}
}

// AbsPath returns the filesystem path for a relative path.
func (e *LocalEndpoint) AbsPath(relPath string) string {
	return filepath.Join(e.root, filepath.FromSlash(relPath))
}

func (e *LocalEndpoint) ReadDir(relPath string) ([]FileEntry, error) {
	absPath := e.AbsPath(relPath)
	infos, err := afero.ReadDir(e.fs, absPath)
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", absPath, err)
	}

	result := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		result = append(result, infoToEntry(info, path.Join(relPath, info.Name())))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RelPath < result[j].RelPath })
	return result, nil
}

func (e *LocalEndpoint) Stat(relPath string) (FileEntry, error) {
	info, err := e.lstat(e.AbsPath(relPath))
	if err != nil {
		return FileEntry{}, err
	}
	return infoToEntry(info, relPath), nil
}

func (e *LocalEndpoint) lstat(absPath string) (os.FileInfo, error) {
	if ls, ok := e.fs.(afero.Lstater); ok {
		info, _, err := ls.LstatIfPossible(absPath)
		return info, err
	}
	return e.fs.Stat(absPath)
}

func (e *LocalEndpoint) OpenRead(relPath string) (io.ReadCloser, error) {
	return e.fs.Open(e.AbsPath(relPath))
}

func (e *LocalEndpoint) ReadTail(relPath string, n int64) ([]byte, error) {
	f, err := e.fs.Open(e.AbsPath(relPath))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTail(f, n)
}

func (e *LocalEndpoint) MkdirAll(relPath string) error {
	return e.fs.MkdirAll(e.AbsPath(relPath), 0o755)
}

//nolint:ireturn // implements WriteEndpoint interface
func (e *LocalEndpoint) CreateTemp(relPath string) (WriteFile, error) {
	absPath := e.AbsPath(relPath)
	tmpPath := filepath.Join(filepath.Dir(absPath), tempName(filepath.Base(absPath), uuid.New().String()))

	f, err := e.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create temp %s: %w", tmpPath, err)
	}
	return &localWriteFile{File: f, relPath: path.Join(path.Dir(relPath), filepath.Base(tmpPath))}, nil
}

func (e *LocalEndpoint) Rename(oldRel, newRel string) error {
	return e.fs.Rename(e.AbsPath(oldRel), e.AbsPath(newRel))
}

func (e *LocalEndpoint) Remove(relPath string) error {
	return e.fs.Remove(e.AbsPath(relPath))
}

func (e *LocalEndpoint) Chtimes(relPath string, mtime time.Time) error {
	absPath := e.AbsPath(relPath)
	if err := e.fs.Chtimes(absPath, mtime, mtime); err != nil {
		return fmt.Errorf("chtimes %s: %w", relPath, err)
	}
	return nil
}

func (e *LocalEndpoint) Root() string { return e.root }
func (*LocalEndpoint) Close() error   { return nil }

func (*LocalEndpoint) Caps() Capabilities {
	return Capabilities{
		Concurrent: true,
	}
}

// localWriteFile wraps afero.File to implement WriteFile.
type localWriteFile struct {
	afero.File
	relPath string
}

// Name returns the relative path of the temp file within the endpoint root.
// This overrides afero.File.Name() so that callers using the WriteFile
// interface get a path usable with endpoint methods.
func (f *localWriteFile) Name() string {
	return f.relPath
}

func infoToEntry(info os.FileInfo, relPath string) FileEntry {
	return FileEntry{
		RelPath:   relPath,
		Size:      info.Size(),
		Mode:      info.Mode(),
		ModTime:   info.ModTime(),
		IsDir:     info.IsDir(),
		IsSymlink: info.Mode()&os.ModeSymlink != 0,
	}
}

// readTail reads the last n bytes of a seekable file.
func readTail(f interface {
	io.ReadSeeker
	Stat() (os.FileInfo, error)
}, n int64,
) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	off := info.Size() - n
	if off < 0 {
		off = 0
	}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(f, n))
}

// SameDevice reports whether two local paths live on the same filesystem,
// so a rename between them is possible. b need not exist yet: its nearest
// existing ancestor is checked instead.
func SameDevice(a, b string) (bool, error) {
	var sa, sb unix.Stat_t
	if err := unix.Stat(a, &sa); err != nil {
		return false, fmt.Errorf("stat %s: %w", a, err)
	}
	b = filepath.Clean(b)
	for {
		err := unix.Stat(b, &sb)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.ENOENT) {
			return false, fmt.Errorf("stat %s: %w", b, err)
		}
		parent := filepath.Dir(b)
		if parent == b {
			return false, fmt.Errorf("stat %s: %w", b, err)
		}
		b = parent
	}
	return sa.Dev == sb.Dev, nil
}
