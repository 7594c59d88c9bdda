//go:build unix

package subprocess

import (
	"bytes"
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const commReadChunk = 32 * 1024

// streamReader tracks one readable stream (stdout or stderr) through
// the poll loop: its file, raw fd, accumulator, cap state, and whether
// it's still open.
type streamReader struct {
	f      *os.File
	fd     int
	buf    bytes.Buffer
	capped bool
	open   bool
}

func newStreamReader(f *os.File) *streamReader {
	if f == nil {
		return &streamReader{fd: -1}
	}
	fd := int(f.Fd())
	unix.SetNonblock(fd, true)
	return &streamReader{f: f, fd: fd, open: true}
}

// runLoop is the POSIX half of Communicator.Run: a poll(2)-driven
// multiplex of stdin writes against stdout/stderr reads, per spec's
// "build a readiness set, wait, act" algorithm.
func (c *Communicator) runLoop() (CommResult, error) {
	var stdinFile *os.File
	if c.job.stdin != nil {
		stdinFile = c.job.stdin.File()
	}
	stdinFd := -1
	if stdinFile != nil {
		stdinFd = int(stdinFile.Fd())
		unix.SetNonblock(stdinFd, true)
	}
	defer func() {
		if stdinFile != nil {
			unix.SetNonblock(stdinFd, false)
		}
	}()

	out := newStreamReader(firstFile(c.job.stdout))
	errR := newStreamReader(firstFile(c.job.stderr))
	defer func() {
		if out.open {
			unix.SetNonblock(out.fd, false)
		}
		if errR.open {
			unix.SetNonblock(errR.fd, false)
		}
	}()

	cursor := newInputCursor(c.input)
	var pending []byte
	inputEOF := cursor == nil

	closeStdin := func() {
		if stdinFile != nil {
			stdinFile.Close()
			stdinFile = nil
			stdinFd = -1
		}
	}

	for stdinFile != nil || out.open || errR.open {
		var fds []unix.PollFd
		stdinIdx, outIdx, errIdx := -1, -1, -1

		wantWrite := stdinFile != nil
		if wantWrite {
			stdinIdx = len(fds)
			fds = append(fds, unix.PollFd{Fd: int32(stdinFd), Events: unix.POLLOUT})
		}
		if out.open {
			outIdx = len(fds)
			fds = append(fds, unix.PollFd{Fd: int32(out.fd), Events: unix.POLLIN})
		}
		if errR.open {
			errIdx = len(fds)
			fds = append(fds, unix.PollFd{Fd: int32(errR.fd), Events: unix.POLLIN})
		}
		if len(fds) == 0 {
			break
		}

		timeoutMS := -1
		if c.hasDeadline {
			remaining := time.Until(c.deadline)
			if remaining <= 0 {
				return c.timeoutResult(out, errR), c.timeoutErr(out, errR)
			}
			timeoutMS = msClamp(remaining)
		}

		n, err := unix.Poll(fds, timeoutMS)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return CommResult{}, &Error{Kind: Other, Op: "communicate", Err: err}
		}
		if n == 0 {
			if c.hasDeadline {
				return c.timeoutResult(out, errR), c.timeoutErr(out, errR)
			}
			continue
		}

		if stdinIdx >= 0 && fds[stdinIdx].Revents != 0 {
			if len(pending) == 0 && !inputEOF {
				chunk, eof, cerr := cursor.next()
				if cerr != nil {
					closeStdin()
					return c.timeoutResult(out, errR), &Error{Kind: Other, Op: "communicate", Err: cerr}
				}
				inputEOF = eof
				pending = chunk
			}
			if len(pending) > 0 {
				wn, werr := unix.Write(stdinFd, pending)
				if werr != nil {
					if !errors.Is(werr, unix.EAGAIN) && !errors.Is(werr, unix.EINTR) {
						closeStdin()
					}
				} else if wn > 0 {
					pending = pending[wn:]
				}
			}
			if len(pending) == 0 && inputEOF {
				closeStdin()
			}
		}

		if outIdx >= 0 && fds[outIdx].Revents != 0 {
			readStream(out, c.maxBytes)
		}
		if errIdx >= 0 && fds[errIdx].Revents != 0 {
			readStream(errR, c.maxBytes)
		}
	}

	return CommResult{
		Stdout:       out.buf.Bytes(),
		Stderr:       errR.buf.Bytes(),
		StdoutCapped: out.capped,
		StderrCapped: errR.capped,
	}, nil
}

func firstFile(h *StreamHandle) *os.File {
	if h == nil {
		return nil
	}
	return h.File()
}

func msClamp(d time.Duration) int {
	ms := d.Milliseconds()
	if ms < 1 {
		return 1
	}
	if ms > 1<<30 {
		return 1 << 30
	}
	return int(ms)
}

// readStream reads one bounded chunk into s's accumulator, respecting
// maxBytes (<=0 means unlimited), and closes s on EOF or on hitting
// the cap.
func readStream(s *streamReader, maxBytes int64) {
	chunkBuf := make([]byte, commReadChunk)
	n, err := unix.Read(s.fd, chunkBuf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return
		}
		s.f.Close()
		s.open = false
		return
	}
	if n == 0 {
		s.f.Close()
		s.open = false
		return
	}
	if maxBytes > 0 {
		remaining := maxBytes - int64(s.buf.Len())
		if remaining <= 0 {
			s.capped = true
			s.f.Close()
			s.open = false
			return
		}
		if int64(n) > remaining {
			n = int(remaining)
			s.capped = true
		}
	}
	s.buf.Write(chunkBuf[:n])
	if s.capped {
		s.f.Close()
		s.open = false
	}
}

func (c *Communicator) timeoutResult(out, errR *streamReader) CommResult {
	return CommResult{Stdout: out.buf.Bytes(), Stderr: errR.buf.Bytes(), StdoutCapped: out.capped, StderrCapped: errR.capped}
}

func (c *Communicator) timeoutErr(out, errR *streamReader) error {
	r := c.timeoutResult(out, errR)
	return &Error{Kind: TimedOut, Op: "communicate", Stdout: r.Stdout, Stderr: r.Stderr}
}
