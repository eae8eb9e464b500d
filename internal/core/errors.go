package core

import (
	"errors"
	"fmt"
)

var (
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrValidation              = errors.New("validation failed")
	ErrRetrieval               = errors.New("example retrieval failed")
	ErrGeneration              = errors.New("entry generation failed")
	ErrPersistence             = errors.New("persistence failed")
)

// WorkflowError reports where a corpus update stopped. Steps before LastCompleted
// are durable and are not rolled back.
type WorkflowError struct {
	Word          string
	LastCompleted WorkflowState
	Failed        WorkflowState
	Err           error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("corpus update for %q stopped after %s (failed entering %s): %v",
		e.Word, e.LastCompleted, e.Failed, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
