package subprocess

import (
	"time"

	"go.uber.org/zap"
)

// defaultGrace is how long Job.Close waits for a non-detached Job's
// processes to exit on their own before escalating to terminate, and
// again before escalating to kill. Documented per spec's requirement
// that drop-time reaping "must not block unboundedly": this is the
// bound.
const defaultGrace = 5 * time.Second

type jobOptions struct {
	log   *zap.Logger
	now   func() time.Time
	grace time.Duration
}

func newJobOptions(opts []Option) jobOptions {
	jo := jobOptions{log: zap.NewNop(), now: time.Now, grace: defaultGrace}
	for _, o := range opts {
		o(&jo)
	}
	return jo
}

// Option configures cross-cutting concerns of Launch/LaunchPipeline
// that aren't part of the process configuration itself.
type Option func(*jobOptions)

// WithLogger injects a structured logger. Every subsystem names and
// tags it the way the rest of this package's ambient logging does; a
// nil logger (the default) means zap.NewNop().
func WithLogger(log *zap.Logger) Option {
	return func(jo *jobOptions) {
		if log != nil {
			jo.log = log
		}
	}
}

// WithClock overrides the time source from which WaitTimeout (on a Job
// or a Process) computes its deadline at entry. The remaining time is
// then measured against the system clock; Job.Close's grace period and
// Communicator deadlines always use the system clock.
func WithClock(now func() time.Time) Option {
	return func(jo *jobOptions) {
		if now != nil {
			jo.now = now
		}
	}
}

// WithGrace overrides the default grace period Job.Close waits before
// escalating terminate -> kill while reaping a non-detached Job.
func WithGrace(d time.Duration) Option {
	return func(jo *jobOptions) {
		if d > 0 {
			jo.grace = d
		}
	}
}
