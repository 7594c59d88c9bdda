package subprocess

// Output runs cfg to completion and returns its stdout, the way
// (*exec.Cmd).Output does. Stderr is discarded.
func (cfg Config) Output(opts ...Option) ([]byte, error) {
	cfg.Stdout = Pipe{}
	job, err := Launch(cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer job.Close()
	stdout, _, _, err := job.Capture(nil, 0)
	return stdout, err
}

// CombinedOutput runs cfg to completion, merging stderr into stdout,
// the way (*exec.Cmd).CombinedOutput does.
func (cfg Config) CombinedOutput(opts ...Option) ([]byte, error) {
	cfg.Stdout = Pipe{}
	cfg.Stderr = Merge{Into: Stdout}
	job, err := Launch(cfg, opts...)
	if err != nil {
		return nil, err
	}
	defer job.Close()
	stdout, _, _, err := job.Capture(nil, 0)
	return stdout, err
}
