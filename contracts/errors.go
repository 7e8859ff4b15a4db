package contracts

import (
	"errors"
	"fmt"
)

var (
	ErrNoFile             = errors.New("no file uploaded")
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrFileTooLarge       = errors.New("file too large")
	ErrQuotaExceeded      = errors.New("weekly analysis quota exceeded")
	ErrChatInput          = errors.New("session id and message are required")
	ErrSessionNotFound    = errors.New("session not found")
	ErrGenerateInput      = errors.New("template id and contract info are required")
	ErrEmptyContract      = errors.New("generate function returned no contract html")
	ErrSessionIDRequired  = errors.New("session id required")
	ErrPromptRequired     = errors.New("prompt required")
	ErrInferenceNotConfig = errors.New("inference function not configured")
	ErrNoAnalysis         = errors.New("review result has no analysis")
)

// InferenceError reports a missing or non-success result from a remote function.
type InferenceError struct {
	Function   string
	StatusCode int
	Details    any
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("function %s returned status %d", e.Function, e.StatusCode)
}
