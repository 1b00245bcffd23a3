package transport

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Compile-time interface check.
var _ WriteEndpoint = (*SFTPEndpoint)(nil)

// SFTPEndpoint is a tree on a remote host reached over SFTP.
type SFTPEndpoint struct {
	client *sftp.Client
	ssh    *ssh.Client
	root   string
}

// NewSFTPEndpoint creates an endpoint backed by an SFTP session on
// sshClient. A root of "~" or starting with "~/" is resolved against the
// remote login directory, and a relative root is made absolute the same
// way. The endpoint owns sshClient; Close closes both.
func NewSFTPEndpoint(sshClient *ssh.Client, root string) (*SFTPEndpoint, error) {
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, fmt.Errorf("sftp client: %w", err)
	}

	resolved, err := resolveRemoteRoot(sftpClient, root)
	if err != nil {
		sftpClient.Close()
		return nil, err
	}

	return &SFTPEndpoint{
		client: sftpClient,
		ssh:    sshClient,
		root:   resolved,
	}, nil
}

func resolveRemoteRoot(client *sftp.Client, root string) (string, error) {
	switch {
	case root == "~" || strings.HasPrefix(root, "~/"):
		root = strings.TrimLeft(root[1:], "/")
	case path.IsAbs(root):
		return path.Clean(root), nil
	}

	wd, err := client.Getwd()
	if err != nil {
		return "", fmt.Errorf("sftp getwd: %w", err)
	}
	return path.Join(wd, root), nil
}

func (e *SFTPEndpoint) abs(relPath string) string {
	return path.Join(e.root, relPath)
}

func (e *SFTPEndpoint) ReadDir(relPath string) ([]FileEntry, error) {
	absPath := e.abs(relPath)
	infos, err := e.client.ReadDir(absPath)
	if err != nil {
		return nil, fmt.Errorf("sftp readdir %s: %w", absPath, err)
	}
	entries := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, infoToEntry(info, path.Join(relPath, info.Name())))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, nil
}

func (e *SFTPEndpoint) Stat(relPath string) (FileEntry, error) {
	info, err := e.client.Lstat(e.abs(relPath))
	if err != nil {
		return FileEntry{}, err
	}
	return infoToEntry(info, relPath), nil
}

func (e *SFTPEndpoint) OpenRead(relPath string) (io.ReadCloser, error) {
	return e.client.Open(e.abs(relPath))
}

func (e *SFTPEndpoint) ReadTail(relPath string, n int64) ([]byte, error) {
	f, err := e.client.Open(e.abs(relPath))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readTail(f, n)
}

func (e *SFTPEndpoint) MkdirAll(relPath string) error {
	return e.client.MkdirAll(e.abs(relPath))
}

//nolint:ireturn // implements WriteEndpoint interface
func (e *SFTPEndpoint) CreateTemp(relPath string) (WriteFile, error) {
	absPath := e.abs(relPath)
	tmpPath := path.Join(path.Dir(absPath), tempName(path.Base(absPath), uuid.New().String()))

	f, err := e.client.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return nil, fmt.Errorf("sftp create temp %s: %w", tmpPath, err)
	}
	return &sftpWriteFile{File: f, relPath: path.Join(path.Dir(relPath), path.Base(tmpPath))}, nil
}

func (e *SFTPEndpoint) Rename(oldRel, newRel string) error {
	oldAbs, newAbs := e.abs(oldRel), e.abs(newRel)
	// Plain SFTP rename fails if the target exists. Prefer the OpenSSH
	// extension, which replaces atomically.
	if err := e.client.PosixRename(oldAbs, newAbs); err == nil {
		return nil
	}
	if info, err := e.client.Lstat(newAbs); err == nil && !info.IsDir() {
		_ = e.client.Remove(newAbs)
	}
	return e.client.Rename(oldAbs, newAbs)
}

func (e *SFTPEndpoint) Remove(relPath string) error {
	return e.client.Remove(e.abs(relPath))
}

func (e *SFTPEndpoint) Chtimes(relPath string, mtime time.Time) error {
	if err := e.client.Chtimes(e.abs(relPath), mtime, mtime); err != nil {
		return fmt.Errorf("sftp chtimes %s: %w", relPath, err)
	}
	return nil
}

func (e *SFTPEndpoint) Root() string { return e.root }

func (*SFTPEndpoint) Caps() Capabilities {
	return Capabilities{
		// SFTP v3 carries mtimes as whole seconds.
		TimeResolution: time.Second,
		Concurrent:     true,
	}
}

func (e *SFTPEndpoint) Close() error {
	err := e.client.Close()
	if sshErr := e.ssh.Close(); sshErr != nil && err == nil {
		err = sshErr
	}
	return err
}

// sftpWriteFile wraps *sftp.File to implement WriteFile.
type sftpWriteFile struct {
	*sftp.File
	relPath string
}

func (f *sftpWriteFile) Name() string {
	return f.relPath
}
