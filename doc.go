// Package subprocess spawns, controls, and interacts with external
// operating-system processes and pipelines of them.
//
// It provides three things a raw os/exec does not give you in one
// place: composable redirection (pipes, null device, merged streams,
// caller-supplied files or byte streams), a deadlock-free multiplexer
// for simultaneously feeding a child's stdin while draining its
// stdout and stderr under a deadline and a size cap (Communicator),
// and a process lifecycle manager with poll/wait/wait-with-timeout,
// signaling, process-group signaling, and reliable reaping.
//
// A Job owns the parent-side pipe ends and the ordered Process
// handles produced by one Launch or LaunchPipeline call. Process
// handles may be cloned and outlive the Job; processes are reaped by an
// explicit Wait, or by the Job's Close (or garbage collection, as a
// safety net).
package subprocess
