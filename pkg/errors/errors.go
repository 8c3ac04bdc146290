package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeSessionExpired  Code = "SESSION_EXPIRED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodePrecondition    Code = "PRECONDITION_FAILED"
	CodeBackend         Code = "BACKEND_ERROR"
	CodeTransport       Code = "TRANSPORT_ERROR"
	CodeInternal        Code = "INTERNAL_ERROR"
)

type Metadata struct {
	Retryable     bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Retryable:     false,
		PublicMessage: "validation failed",
	},
	CodeUnauthenticated: {
		Retryable:     false,
		PublicMessage: "sign in required",
	},
	CodeSessionExpired: {
		Retryable:     false,
		PublicMessage: "session expired, please sign in again",
	},
	CodeForbidden: {
		Retryable:     false,
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		Retryable:     false,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		Retryable:     false,
		PublicMessage: "conflict detected",
	},
	CodePrecondition: {
		Retryable:     false,
		PublicMessage: "action not allowed yet",
	},
	CodeBackend: {
		Retryable:     false,
		PublicMessage: "request failed",
	},
	CodeTransport: {
		Retryable:     true,
		PublicMessage: "network error",
	},
	CodeInternal: {
		Retryable:     true,
		PublicMessage: "something went wrong",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
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

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
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

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
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

// UserMessage picks the best available message for display: the typed
// message when present, the public message for the code otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if typed := As(err); typed != nil {
		if typed.Message() != "" {
			return typed.Message()
		}
		return MetadataFor(typed.Code()).PublicMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MetadataFor(CodeInternal).PublicMessage
}
