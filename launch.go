package subprocess

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config describes one command in a launch or one stage of a pipeline.
// It is the plain-struct equivalent of spec's out-of-scope builder
// façade: callers fill it directly, the way they would an exec.Cmd.
type Config struct {
	Path string
	Args []string
	Dir  string
	// Env, when non-nil, replaces the child's environment entirely.
	// A nil Env means inherit this process's environment.
	Env []string

	SetProcessGroup bool
	Detached        bool

	// Stdin is only consulted for the first command of a pipeline (or
	// the sole command passed to Launch); internal pipeline stages
	// receive stdin synthesized from the previous stage's stdout.
	Stdin Redirection
	// Stdout is only consulted for the last command of a pipeline;
	// internal stages' stdout is synthesized and feeds the next
	// stage's stdin.
	Stdout Redirection
	Stderr Redirection

	Checked bool
}

// PipelineConfig describes an ordered chain of commands whose adjacent
// stdout/stdin are connected automatically. A single Config passed to
// Launch is equivalent to a one-command PipelineConfig.
type PipelineConfig struct {
	Commands []Config

	// StderrAll, if set, overrides every stage's own Stderr with one
	// shared redirection (per spec's open question (b): this
	// implementation merges stderr into a single pipe/file/null rather
	// than fanning out N separate ones).
	StderrAll Redirection

	Checked bool
}

// Launch spawns a single command and returns the owning Job.
func Launch(cfg Config, opts ...Option) (*Job, error) {
	return LaunchPipeline(PipelineConfig{Commands: []Config{cfg}, Checked: cfg.Checked}, opts...)
}

// resolvedStream is the product of resolving one logical Redirection
// into concrete plumbing for one stream position of one stage.
type resolvedStream struct {
	child      *os.File      // descriptor installed into the child
	retain     *StreamHandle // non-nil: the Job keeps this as its outward stdin/stdout/stderr
	closeAfter *os.File      // non-nil: our copy to close once every stage has started
	afterStart func(j *Job)  // optional: spawn a copy goroutine once the Job exists
}

func orNone(r Redirection) Redirection {
	if r == nil {
		return None{}
	}
	return r
}

func stdFileFor(pos StreamID) *os.File {
	switch pos {
	case Stdin:
		return os.Stdin
	case Stdout:
		return os.Stdout
	default:
		return os.Stderr
	}
}

func nullFlagsFor(pos StreamID) int {
	if pos == Stdin {
		return os.O_RDONLY
	}
	return os.O_WRONLY
}

// resolveOutward turns a non-Merge Redirection into concrete plumbing.
// Merge is resolved by the caller, which already knows its sibling.
func resolveOutward(pos StreamID, r Redirection) (*resolvedStream, error) {
	switch v := r.(type) {
	case None:
		return &resolvedStream{child: stdFileFor(pos)}, nil
	case Null:
		f, err := os.OpenFile(os.DevNull, nullFlagsFor(pos), 0)
		if err != nil {
			return nil, &Error{Kind: Other, Op: "launch", Err: err}
		}
		return &resolvedStream{child: f, closeAfter: f}, nil
	case Pipe:
		r, w, err := os.Pipe()
		if err != nil {
			return nil, &Error{Kind: Other, Op: "launch", Err: err}
		}
		if pos == Stdin {
			return &resolvedStream{child: r, retain: newStreamHandle(w), closeAfter: r}, nil
		}
		return &resolvedStream{child: w, retain: newStreamHandle(r), closeAfter: w}, nil
	case File:
		return &resolvedStream{child: v.F, closeAfter: v.F}, nil
	case StreamIn:
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, &Error{Kind: Other, Op: "launch", Err: err}
		}
		return &resolvedStream{
			child:      pr,
			closeAfter: pr,
			afterStart: func(j *Job) {
				j.copyWG.Add(1)
				go func() {
					defer j.copyWG.Done()
					defer pw.Close()
					if _, err := io.Copy(pw, v.R); err != nil {
						j.log.Debug("stdin stream source copy failed", zap.Error(err))
					}
				}()
			},
		}, nil
	case StreamOut:
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, &Error{Kind: Other, Op: "launch", Err: err}
		}
		return &resolvedStream{
			child:      pw,
			closeAfter: pw,
			afterStart: func(j *Job) {
				j.copyWG.Add(1)
				go func() {
					defer j.copyWG.Done()
					defer pr.Close()
					if _, err := io.Copy(v.W, pr); err != nil {
						j.log.Debug("stream destination copy failed", zap.Error(err))
					}
				}()
			},
		}, nil
	case Merge:
		return nil, &Error{Kind: InvalidInput, Op: "launch", Err: errors.New("merge must be resolved against its sibling")}
	default:
		return nil, &Error{Kind: InvalidInput, Op: "launch", Err: fmt.Errorf("unsupported redirection %T", r)}
	}
}

// resolveOutputPair resolves a stage's stdout and stderr together,
// since either may be a Merge pointing at the other: whichever side
// isn't the Merge is resolved first, and the Merge side simply shares
// that file, matching spec's "duplicated from its sibling after the
// sibling has been installed" rule (installation here is "hands the
// same *os.File to exec.Cmd", the Go-idiomatic equivalent of dup2).
func resolveOutputPair(stdoutR, stderrR Redirection) (stdoutChild, stderrChild *os.File, stdoutRS, stderrRS *resolvedStream, err error) {
	_, soMerge := stdoutR.(Merge)
	_, seMerge := stderrR.(Merge)
	if soMerge && seMerge {
		return nil, nil, nil, nil, &Error{Kind: InvalidInput, Op: "launch",
			Err: errors.New("stdout and stderr cannot both merge into each other")}
	}

	switch {
	case soMerge:
		rs, err := resolveOutward(Stderr, stderrR)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return rs.child, rs.child, nil, rs, nil
	case seMerge:
		rs, err := resolveOutward(Stdout, stdoutR)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return rs.child, rs.child, rs, nil, nil
	default:
		rsOut, err := resolveOutward(Stdout, stdoutR)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		rsErr, err := resolveOutward(Stderr, stderrR)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return rsOut.child, rsErr.child, rsOut, rsErr, nil
	}
}

func validatePipeline(pl PipelineConfig) error {
	n := len(pl.Commands)
	if n == 0 {
		return nil
	}
	for i, c := range pl.Commands {
		if c.Path == "" {
			return &Error{Kind: InvalidInput, Op: "launch", Err: fmt.Errorf("command %d: empty path", i)}
		}
		_, stdinIsNone := c.Stdin.(None)
		if i > 0 {
			if c.Stdin != nil && !stdinIsNone {
				return &Error{Kind: InvalidInput, Op: "launch",
					Err: fmt.Errorf("command %d: stdin is synthesized from the previous stage and may not be overridden", i)}
			}
		} else if c.Stdin != nil {
			if err := validateRedirection(Stdin, c.Stdin); err != nil {
				return err
			}
		}
		_, stdoutIsNone := c.Stdout.(None)
		if i < n-1 {
			if c.Stdout != nil && !stdoutIsNone {
				return &Error{Kind: InvalidInput, Op: "launch",
					Err: fmt.Errorf("command %d: stdout feeds the next stage and may not be overridden", i)}
			}
		} else if c.Stdout != nil {
			if err := validateRedirection(Stdout, c.Stdout); err != nil {
				return err
			}
		}
		if c.Stderr != nil {
			if err := validateRedirection(Stderr, c.Stderr); err != nil {
				return err
			}
		}
	}
	if pl.StderrAll != nil {
		if _, ok := pl.StderrAll.(Merge); ok {
			return &Error{Kind: InvalidInput, Op: "launch", Err: errors.New("stderr_all cannot itself be a merge")}
		}
		if err := validateRedirection(Stderr, pl.StderrAll); err != nil {
			return err
		}
	}
	return nil
}

// LaunchPipeline spawns an ordered chain of commands, connecting each
// command's stdout to the next command's stdin, and returns a Job
// owning the outward-facing ends plus every spawned Process, ordered
// first-to-last.
func LaunchPipeline(pl PipelineConfig, opts ...Option) (*Job, error) {
	jo := newJobOptions(opts)
	log := jo.log.Named("subprocess")

	n := len(pl.Commands)
	if n == 0 {
		return newJob(uuid.New(), nil, nil, nil, nil, pl.Checked, jo, log), nil
	}
	if err := validatePipeline(pl); err != nil {
		return nil, err
	}

	var toClose []*os.File
	var afterStartFns []func(*Job)
	cleanup := func() {
		for _, f := range toClose {
			f.Close()
		}
	}

	// internal connecting pipes between adjacent stages
	internalReaders := make([]*os.File, n)
	internalWriters := make([]*os.File, n)
	for i := 0; i < n-1; i++ {
		r, w, err := os.Pipe()
		if err != nil {
			cleanup()
			return nil, &Error{Kind: Other, Op: "launch", Err: err}
		}
		internalReaders[i+1] = r
		internalWriters[i] = w
		toClose = append(toClose, r, w)
	}

	var stderrAllChild *os.File
	var stderrAllRS *resolvedStream
	if pl.StderrAll != nil {
		rs, err := resolveOutward(Stderr, pl.StderrAll)
		if err != nil {
			cleanup()
			return nil, err
		}
		stderrAllChild = rs.child
		stderrAllRS = rs
		if rs.closeAfter != nil {
			toClose = append(toClose, rs.closeAfter)
		}
		if rs.afterStart != nil {
			afterStartFns = append(afterStartFns, rs.afterStart)
		}
	}

	var outwardStdin, outwardStdout, outwardStderr *StreamHandle
	cmds := make([]*exec.Cmd, n)
	procs := make([]*Process, 0, n)

	for i, cfg := range pl.Commands {
		cmd := exec.Command(cfg.Path, cfg.Args...)
		cmd.Dir = cfg.Dir
		if cfg.Env != nil {
			cmd.Env = cfg.Env
		}
		cmd.SysProcAttr = sysProcAttrFor(cfg.SetProcessGroup)

		// stdin
		if i == 0 {
			rs, err := resolveOutward(Stdin, orNone(cfg.Stdin))
			if err != nil {
				cleanup()
				return nil, err
			}
			cmd.Stdin = rs.child
			outwardStdin = rs.retain
			if rs.closeAfter != nil {
				toClose = append(toClose, rs.closeAfter)
			}
			if rs.afterStart != nil {
				afterStartFns = append(afterStartFns, rs.afterStart)
			}
		} else {
			cmd.Stdin = internalReaders[i]
		}

		// stdout + stderr together, so Merge can see its sibling
		var stderrR Redirection = cfg.Stderr
		if stderrAllChild != nil {
			stderrR = nil // shared file wins below
		}

		if i < n-1 {
			cmd.Stdout = internalWriters[i]
			if stderrAllChild != nil {
				cmd.Stderr = stderrAllChild
			} else if _, ok := stderrR.(Merge); ok {
				cmd.Stderr = internalWriters[i]
			} else {
				rs, err := resolveOutward(Stderr, orNone(stderrR))
				if err != nil {
					cleanup()
					return nil, err
				}
				cmd.Stderr = rs.child
				if rs.closeAfter != nil {
					toClose = append(toClose, rs.closeAfter)
				}
				if rs.afterStart != nil {
					afterStartFns = append(afterStartFns, rs.afterStart)
				}
			}
		} else {
			if stderrAllChild != nil {
				rsOut, err := resolveOutward(Stdout, orNone(cfg.Stdout))
				if err != nil {
					cleanup()
					return nil, err
				}
				cmd.Stdout = rsOut.child
				cmd.Stderr = stderrAllChild
				outwardStdout = rsOut.retain
				if rsOut.closeAfter != nil {
					toClose = append(toClose, rsOut.closeAfter)
				}
				if rsOut.afterStart != nil {
					afterStartFns = append(afterStartFns, rsOut.afterStart)
				}
			} else {
				stdoutChild, stderrChild, rsOut, rsErr, err := resolveOutputPair(orNone(cfg.Stdout), orNone(cfg.Stderr))
				if err != nil {
					cleanup()
					return nil, err
				}
				cmd.Stdout = stdoutChild
				cmd.Stderr = stderrChild
				if rsOut != nil {
					outwardStdout = rsOut.retain
					if rsOut.closeAfter != nil {
						toClose = append(toClose, rsOut.closeAfter)
					}
					if rsOut.afterStart != nil {
						afterStartFns = append(afterStartFns, rsOut.afterStart)
					}
				}
				if rsErr != nil {
					outwardStderr = rsErr.retain
					if rsErr.closeAfter != nil {
						toClose = append(toClose, rsErr.closeAfter)
					}
					if rsErr.afterStart != nil {
						afterStartFns = append(afterStartFns, rsErr.afterStart)
					}
				}
			}
		}

		cmds[i] = cmd
	}
	if stderrAllRS != nil {
		outwardStderr = stderrAllRS.retain
	}

	for i, cmd := range cmds {
		if err := cmd.Start(); err != nil {
			cleanup()
			terminateSpawned(procs, log)
			if errors.Is(err, exec.ErrNotFound) || os.IsNotExist(err) {
				return nil, &Error{Kind: NotFound, Op: "launch", Err: err}
			}
			return nil, &Error{Kind: Other, Op: "launch", Err: fmt.Errorf("stage %d: %w", i, err)}
		}
		procs = append(procs, newProcess(cmd.Process, pl.Commands[i].SetProcessGroup, jo.log, jo.now))
	}

	cleanup()

	job := newJob(uuid.New(), outwardStdin, outwardStdout, outwardStderr, procs, pl.Checked, jo, log)
	for _, fn := range afterStartFns {
		fn(job)
	}
	return job, nil
}

// terminateSpawned is the mid-pipeline failure cleanup path: already
// spawned stages are terminated and waited on concurrently, since a
// stage blocked writing into a downstream pipe needs simultaneous
// draining by another stage's termination to ever unblock.
func terminateSpawned(procs []*Process, log *zap.Logger) {
	if len(procs) == 0 {
		return
	}
	var g errgroup.Group
	for _, p := range procs {
		p := p
		g.Go(func() error {
			if err := p.Terminate(); err != nil {
				log.Debug("terminate during spawn failure cleanup failed", zap.Int("pid", p.Pid()), zap.Error(err))
			}
			p.Wait()
			return nil
		})
	}
	g.Wait()
}
