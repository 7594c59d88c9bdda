package subprocess

import "fmt"

// checkStatus implements spec's checked() conversion: a non-success
// status becomes an *Error of kind Other naming the status. It is only
// ever consulted by Join/Capture/CaptureTimeout, never by Wait.
func (j *Job) checkStatus(status ExitStatus) error {
	if !j.checked || status.Success() {
		return nil
	}
	return &Error{Kind: Other, Op: "checked", Err: fmt.Errorf("process exited with status: %s", status)}
}
