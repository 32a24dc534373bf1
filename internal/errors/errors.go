package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// TooManyNodes indicates a graph exceeds the share node limit
	TooManyNodes ErrorCode = "TOO_MANY_NODES"
	// TooManyEdges indicates a graph exceeds the share edge limit
	TooManyEdges ErrorCode = "TOO_MANY_EDGES"
	// PayloadTooLarge indicates the encoded share string exceeds its length limit
	PayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// DecompressFailed indicates a share string is corrupt or truncated
	DecompressFailed ErrorCode = "DECOMPRESS_FAILED"
	// InvalidPayload indicates a decoded payload has the wrong structure
	InvalidPayload ErrorCode = "INVALID_PAYLOAD"
	// UnsupportedVersion indicates a payload or saved state version is not understood
	UnsupportedVersion ErrorCode = "UNSUPPORTED_VERSION"
	// UnknownTool indicates a tool id is not present in the registry
	UnknownTool ErrorCode = "UNKNOWN_TOOL"
	// NodeNotFound indicates a node id does not exist in the graph
	NodeNotFound ErrorCode = "NODE_NOT_FOUND"
	// EdgeNotFound indicates an edge id does not exist in the graph
	EdgeNotFound ErrorCode = "EDGE_NOT_FOUND"
	// InvalidEdge indicates a self-loop, duplicate pair or dangling endpoint
	InvalidEdge ErrorCode = "INVALID_EDGE"
	// DuplicateID indicates a node or edge id is already in use
	DuplicateID ErrorCode = "DUPLICATE_ID"
	// PackInvalid indicates an evidence pack could not be accepted into the index
	PackInvalid ErrorCode = "PACK_INVALID"
	// StackNotFound indicates a saved stack name does not exist
	StackNotFound ErrorCode = "STACK_NOT_FOUND"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// ReduceGraph suggests shrinking the graph
	ReduceGraph FixActionType = "reduce-graph"
	// RequestNewLink suggests asking for a fresh share link
	RequestNewLink FixActionType = "request-new-link"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Error is the coded error returned by every stackaudit component.
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates an Error with the suggested fixes registered for its code.
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:           code,
		Message:        message,
		SuggestedFixes: GetSuggestedFixes(code),
		cause:          cause,
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if stderrors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	TooManyNodes: {
		{
			Type:        ReduceGraph,
			Description: "Remove nodes until the graph has at most 100",
		},
	},
	TooManyEdges: {
		{
			Type:        ReduceGraph,
			Description: "Remove connections until the graph has at most 300",
		},
	},
	PayloadTooLarge: {
		{
			Type:        ReduceGraph,
			Description: "Shorten node notes or remove nodes before sharing",
		},
	},
	DecompressFailed: {
		{
			Type:        RequestNewLink,
			Description: "The link is corrupted or truncated; ask for it to be shared again",
		},
	},
	UnknownTool: {
		{
			Type:        RunCommand,
			Command:     "stackaudit tools",
			Description: "List the tools known to the registry",
		},
	},
	PackInvalid: {
		{
			Type:        RunCommand,
			Command:     "stackaudit evidence lint",
			Description: "Check every evidence pack and show what failed",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
