package contract

import (
	"errors"
	"fmt"
)

var (
	ErrModelInvoke        = errors.New("model invoke failed")
	ErrEmptyResponse      = errors.New("model returned no usable response")
	ErrValidation         = errors.New("validation failed")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

type Stage string

const (
	StageFirstCall  Stage = "first_call"
	StageSecondCall Stage = "second_call"
)

// ProviderError is a transport or provider failure on a model call. It aborts the turn.
type ProviderError struct {
	Stage Stage
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrModelInvoke, e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() []error {
	return []error{ErrModelInvoke, e.Err}
}

type EmptyReason string

const (
	EmptyNoChoices  EmptyReason = "no_choices"
	EmptyNilMessage EmptyReason = "nil_message"
	EmptyNoContent  EmptyReason = "empty_content"
)

// EmptyResponseError means the provider answered but without usable text.
type EmptyResponseError struct {
	Stage    Stage
	Reason   EmptyReason
	Attempts int
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s: %s: %s after %d attempt(s)", ErrEmptyResponse, e.Stage, e.Reason, e.Attempts)
}

func (e *EmptyResponseError) Unwrap() error {
	return ErrEmptyResponse
}

type ToolErrorKind string

const (
	ToolErrArguments   ToolErrorKind = "arguments"
	ToolErrExecution   ToolErrorKind = "execution"
	ToolErrUnknownTool ToolErrorKind = "unknown_tool"
)

// ToolError is recovered locally: it becomes a failed ToolResult instead of aborting the turn.
type ToolError struct {
	Kind ToolErrorKind
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tool %s: %s", e.Tool, e.Kind)
	}
	return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// RenderError turns a failed turn into the fixed-format text shown to the user.
func RenderError(err error) string {
	if err == nil {
		return ""
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		reason := "unknown error"
		if providerErr.Err != nil {
			reason = providerErr.Err.Error()
		}
		return "[Provider API Error] " + reason
	}

	var emptyErr *EmptyResponseError
	if errors.As(err, &emptyErr) {
		switch {
		case emptyErr.Stage == StageFirstCall && emptyErr.Reason == EmptyNilMessage:
			return "[Error] response_message is None"
		case emptyErr.Stage == StageFirstCall:
			return "[Error] No response from the model"
		case emptyErr.Reason == EmptyNoContent || emptyErr.Reason == EmptyNilMessage:
			return "[Error] Final message is None (retry also failed)"
		default:
			return "[Error] No second response from the model (retry)"
		}
	}

	return "[Error] " + err.Error()
}
