package subprocess

import (
	"os"
	"sync"
)

// StreamHandle owns one parent-side endpoint of a pipe or file. It is
// closed at most once. The Job hands the same handle out through
// Stdin/Stdout/Stderr and still closes it itself on Join (stdin) and
// Close (all three).
type StreamHandle struct {
	f    *os.File
	once sync.Once
	err  error
}

func newStreamHandle(f *os.File) *StreamHandle {
	if f == nil {
		return nil
	}
	return &StreamHandle{f: f}
}

// Read reads from the stream. Valid only for stdout/stderr handles.
func (s *StreamHandle) Read(p []byte) (int, error) { return s.f.Read(p) }

// Write writes to the stream. Valid only for a stdin handle.
func (s *StreamHandle) Write(p []byte) (int, error) { return s.f.Write(p) }

// Close closes the underlying descriptor exactly once.
func (s *StreamHandle) Close() error {
	s.once.Do(func() { s.err = s.f.Close() })
	return s.err
}

// File exposes the underlying *os.File for callers that need direct
// access (e.g. to pass it to a Communicator's platform loop).
func (s *StreamHandle) File() *os.File { return s.f }
