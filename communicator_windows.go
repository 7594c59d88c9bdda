//go:build windows

package subprocess

import (
	"bytes"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// runLoop is the Windows half of Communicator.Run. Anonymous pipes
// aren't selectable, so instead of a readiness loop this spawns one
// helper goroutine per active stream (a stdin writer, a stdout reader,
// a stderr reader) coordinated by an errgroup, and multiplexes their
// completion against a deadline. On deadline expiry the remaining
// handles are closed to unblock whatever goroutine is in a blocking
// Read/Write, per spec's "cancelable via handle closure" guidance.
func (c *Communicator) runLoop() (CommResult, error) {
	var g errgroup.Group
	var stdoutBuf, stderrBuf bytes.Buffer
	var stdoutCapped, stderrCapped bool
	var mu sync.Mutex // guards the capped flags only; each buffer is written by exactly one goroutine

	stdinFile := fileOf(c.job.stdin)
	stdoutFile := fileOf(c.job.stdout)
	stderrFile := fileOf(c.job.stderr)

	if stdinFile != nil {
		cursor := newInputCursor(c.input)
		g.Go(func() error {
			defer stdinFile.Close()
			if cursor == nil {
				return nil
			}
			for {
				chunk, eof, err := cursor.next()
				if err != nil {
					return &Error{Kind: Other, Op: "communicate", Err: err}
				}
				if len(chunk) > 0 {
					if _, werr := stdinFile.Write(chunk); werr != nil {
						return nil // pipe closed (child exited or deadline fired); not an error
					}
				}
				if eof {
					return nil
				}
			}
		})
	}
	if stdoutFile != nil {
		g.Go(func() error {
			capped := readAllCapped(stdoutFile, &stdoutBuf, c.maxBytes)
			mu.Lock()
			stdoutCapped = capped
			mu.Unlock()
			return nil
		})
	}
	if stderrFile != nil {
		g.Go(func() error {
			capped := readAllCapped(stderrFile, &stderrBuf, c.maxBytes)
			mu.Lock()
			stderrCapped = capped
			mu.Unlock()
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	if c.hasDeadline {
		timer := time.NewTimer(time.Until(c.deadline))
		defer timer.Stop()
		select {
		case err := <-done:
			if err != nil {
				mu.Lock()
				defer mu.Unlock()
				return CommResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes(), StdoutCapped: stdoutCapped, StderrCapped: stderrCapped}, err
			}
		case <-timer.C:
			if stdinFile != nil {
				stdinFile.Close()
			}
			if stdoutFile != nil {
				stdoutFile.Close()
			}
			if stderrFile != nil {
				stderrFile.Close()
			}
			<-done
			mu.Lock()
			defer mu.Unlock()
			return CommResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes(), StdoutCapped: stdoutCapped, StderrCapped: stderrCapped},
				&Error{Kind: TimedOut, Op: "communicate", Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}
		}
	} else if err := <-done; err != nil {
		mu.Lock()
		defer mu.Unlock()
		return CommResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes(), StdoutCapped: stdoutCapped, StderrCapped: stderrCapped}, err
	}

	mu.Lock()
	defer mu.Unlock()
	return CommResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes(), StdoutCapped: stdoutCapped, StderrCapped: stderrCapped}, nil
}

func fileOf(h *StreamHandle) *os.File {
	if h == nil {
		return nil
	}
	return h.File()
}

// readAllCapped reads f into buf in bounded chunks until EOF, the
// read errors (e.g. the handle was closed out from under it), or buf
// would exceed maxBytes (<=0 means unlimited).
func readAllCapped(f *os.File, buf *bytes.Buffer, maxBytes int64) (capped bool) {
	chunk := make([]byte, commReadChunk)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			if maxBytes > 0 {
				remaining := maxBytes - int64(buf.Len())
				if remaining <= 0 {
					return true
				}
				if int64(n) > remaining {
					n = int(remaining)
					capped = true
				}
			}
			buf.Write(chunk[:n])
			if capped {
				return true
			}
		}
		if err != nil {
			return capped
		}
	}
}

const commReadChunk = 32 * 1024
