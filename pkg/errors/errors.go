package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeAuthRequired      Code = "AUTH_REQUIRED"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNetwork           Code = "NETWORK_ERROR"
	CodeTimeout           Code = "TIMEOUT"
	CodeServerRejected    Code = "SERVER_REJECTED"
	CodeMalformedResponse Code = "MALFORMED_RESPONSE"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInternal          Code = "INTERNAL_ERROR"
)

type Metadata struct {
	Retryable     bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeAuthRequired: {
		Retryable:     false,
		PublicMessage: "Please login to manage your cart",
	},
	CodeValidation: {
		Retryable:     false,
		PublicMessage: "validation failed",
	},
	CodeNetwork: {
		Retryable:     true,
		PublicMessage: "Network error, please try again",
	},
	CodeTimeout: {
		Retryable:     true,
		PublicMessage: "Request timed out, please try again",
	},
	CodeServerRejected: {
		Retryable:     false,
		PublicMessage: "The request was rejected",
	},
	CodeMalformedResponse: {
		Retryable:     false,
		PublicMessage: "Unexpected response from server",
	},
	CodeNotFound: {
		Retryable:     false,
		PublicMessage: "resource not found",
	},
	CodeInternal: {
		Retryable:     false,
		PublicMessage: "internal error",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// IsRetryable reports whether the error carries a transient code. Retry
// decisions key off this, never off message text.
func IsRetryable(err error) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return MetadataFor(typed.Code()).Retryable
}

// PublicMessage resolves the user-facing string for an error: the typed
// message when the code allows detail, otherwise the code's generic text.
func PublicMessage(err error) string {
	typed := As(err)
	if typed == nil {
		return MetadataFor(CodeInternal).PublicMessage
	}
	meta := MetadataFor(typed.Code())
	switch typed.Code() {
	case CodeValidation, CodeServerRejected, CodeNotFound:
		if m := typed.Message(); m != "" {
			return m
		}
	}
	return meta.PublicMessage
}

type Error struct {
	code    Code
	message string
	status  int
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// WithStatus records the HTTP status observed on the wire.
func (e *Error) WithStatus(status int) *Error {
	if e == nil {
		return nil
	}
	e.status = status
	return e
}

func (e *Error) Status() int {
	if e == nil {
		return 0
	}
	return e.status
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
