package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/maestrohq/maestro/pkg/llm"
)

// ErrorCode identifies one failure class in the executor's taxonomy.
type ErrorCode string

// The full taxonomy. Transient upstream codes are retried inside the LLM
// client; by the time they surface here, retries are exhausted.
const (
	CodeSkillNotFound        ErrorCode = "SKILL_NOT_FOUND"
	CodeInputNotFound        ErrorCode = "INPUT_NOT_FOUND"
	CodeAPIError             ErrorCode = "API_ERROR"
	CodeRateLimited          ErrorCode = "RATE_LIMITED"
	CodeTimeout              ErrorCode = "TIMEOUT"
	CodeAPIOverloaded        ErrorCode = "API_OVERLOADED"
	CodeResponseEmpty        ErrorCode = "RESPONSE_EMPTY"
	CodeTruncated            ErrorCode = "TRUNCATED"
	CodeMalformedOutput      ErrorCode = "MALFORMED_OUTPUT"
	CodeBudgetExhausted      ErrorCode = "BUDGET_EXHAUSTED"
	CodeTaskNotExecutable    ErrorCode = "TASK_NOT_EXECUTABLE"
	CodeWorkspaceWriteFailed ErrorCode = "WORKSPACE_WRITE_FAILED"
	CodeAborted              ErrorCode = "ABORTED"
	CodeToolError            ErrorCode = "TOOL_ERROR"
	CodeToolLoopLimit        ErrorCode = "TOOL_LOOP_LIMIT"
	CodeUnknown              ErrorCode = "UNKNOWN"
)

// ExecError is a typed execution failure. The executor returns these as
// values inside results; it never throws.
type ExecError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is chains.
func (e *ExecError) Unwrap() error {
	return e.Cause
}

// retryableCodes may succeed on a later attempt without operator action.
var retryableCodes = map[ErrorCode]bool{
	CodeAPIError:      true,
	CodeRateLimited:   true,
	CodeTimeout:       true,
	CodeAPIOverloaded: true,
	CodeResponseEmpty: true,
	CodeTruncated:     true,
}

func newExecError(code ErrorCode, message string, cause error) *ExecError {
	return &ExecError{
		Code:      code,
		Message:   message,
		Retryable: retryableCodes[code],
		Cause:     cause,
	}
}

// classifyLLMError maps an LLM client failure onto the taxonomy. Unmatched
// errors default to UNKNOWN.
func classifyLLMError(err error) *ExecError {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return newExecError(CodeRateLimited, "rate limit retries exhausted", err)
	case errors.Is(err, llm.ErrOverloaded):
		return newExecError(CodeAPIOverloaded, "server error retries exhausted", err)
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return newExecError(CodeTimeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return newExecError(CodeAborted, "execution aborted", err)
	case errors.Is(err, llm.ErrAPI):
		return newExecError(CodeAPIError, "api call failed", err)
	default:
		return newExecError(CodeUnknown, "unexpected llm failure", err)
	}
}
