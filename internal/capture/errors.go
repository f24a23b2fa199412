package capture

import "fmt"

// LoginError aborts the whole batch: credentials were rejected, a security
// challenge blocked the flow, or the login page itself failed to load.
// No date is attempted after it.
type LoginError struct {
	URL string
	Err error
}

func (e *LoginError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("login failed (still at %s): %v", e.URL, e.Err)
	}
	return fmt.Sprintf("login failed: %v", e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }

// StepError scopes an operational failure to one state of one date's capture.
// It is converted to an error outcome at the per-date boundary; the batch
// continues.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
