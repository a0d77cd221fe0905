package model

import "fmt"

type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrRejected       ErrorCode = "REJECTED"
	ErrUnconfirmed    ErrorCode = "UNCONFIRMED"
	ErrTooLarge       ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrInternal       ErrorCode = "INTERNAL"
)

// CodedError is a stable error with a machine-readable code and a human message.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	RuleID  string    `json:"ruleId,omitempty"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
