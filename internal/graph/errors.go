package graph

import "fmt"

// StageFailure wraps the error that aborted a run with the stage it
// happened in. Debate sub-phase failures keep their *debate.Failure cause,
// so round and role stay inspectable through errors.As.
type StageFailure struct {
	Stage StageName
	Cause error
}

func (e *StageFailure) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageFailure) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
