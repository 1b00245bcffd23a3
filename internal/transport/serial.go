package transport

import (
	"io"
	"sync"
	"time"
)

// Serialize returns ep unchanged if it supports concurrent calls, and
// otherwise wraps it so that every call, including reads and writes on
// the streams it returns, holds a single lock.
//
//nolint:ireturn // decorator over the interface
func Serialize(ep WriteEndpoint) WriteEndpoint {
	if ep.Caps().Concurrent {
		return ep
	}
	return &serialEndpoint{ep: ep}
}

type serialEndpoint struct {
	ep WriteEndpoint
	mu sync.Mutex
}

func (s *serialEndpoint) ReadDir(relPath string) ([]FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ep.ReadDir(relPath)
}

func (s *serialEndpoint) Stat(relPath string) (FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ep.Stat(relPath)
}

func (s *serialEndpoint) OpenRead(relPath string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, err := s.ep.OpenRead(relPath)
	if err != nil {
		return nil, err
	}
	return &serialReader{rc: rc, mu: &s.mu}, nil
}

func (s *serialEndpoint) ReadTail(relPath string, n int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ep.ReadTail(relPath, n)
}

func (s *serialEndpoint) MkdirAll(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ep.MkdirAll(relPath)
}

//nolint:ireturn // implements WriteEndpoint interface
func (s *serialEndpoint) CreateTemp(relPath string) (WriteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, err := s.ep.CreateTemp(relPath)
	if err != nil {
		return nil, err
	}
	return &serialWriter{wf: wf, mu: &s.mu}, nil
}

func (s *serialEndpoint) Rename(oldRel, newRel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ep.Rename(oldRel, newRel)
}

func (s *serialEndpoint) Remove(relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ep.Remove(relPath)
}

func (s *serialEndpoint) Chtimes(relPath string, mtime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ep.Chtimes(relPath, mtime)
}

func (s *serialEndpoint) Root() string { return s.ep.Root() }

func (s *serialEndpoint) Caps() Capabilities {
	c := s.ep.Caps()
	c.Concurrent = true
	return c
}

func (s *serialEndpoint) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ep.Close()
}

type serialReader struct {
	rc io.ReadCloser
	mu *sync.Mutex
}

func (r *serialReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rc.Read(p)
}

func (r *serialReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rc.Close()
}

type serialWriter struct {
	wf WriteFile
	mu *sync.Mutex
}

func (w *serialWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wf.Write(p)
}

func (w *serialWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wf.Close()
}

func (w *serialWriter) Name() string { return w.wf.Name() }
