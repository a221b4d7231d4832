package errors

import (
	stdErrors "errors"
	"net/http"
)

// Code classifies a failure independently of transport.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is how a Code surfaces over HTTP. DetailsAllowed lets field
// errors reach the client; everything else stays in the logs.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// Duplicate names are reported as 400 with the offending field, not 409.
var codeTable = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required",
	},
	CodeForbidden: {
		HTTPStatus: http.StatusForbidden, PublicMessage: "access denied",
	},
	CodeNotFound: {
		HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus: http.StatusBadRequest, PublicMessage: "resource already exists", DetailsAllowed: true,
	},
	CodeStateConflict: {
		HTTPStatus: http.StatusConflict, PublicMessage: "state transition disallowed", DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded",
	},
	CodeInternal: {
		HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true,
	},
	CodeDependency: {
		HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true,
	},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	meta, known := codeTable[code]
	if !known {
		return codeTable[CodeInternal]
	}
	return meta
}

// ClientVisible reports whether the error's own message may replace the
// public message for its code.
func (m Metadata) ClientVisible() bool {
	return m.HTTPStatus < http.StatusInternalServerError
}

// FieldError is one entry of a validation failure, addressed by json field name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the application error carried up to the HTTP layer.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Validation builds a validation error listing the offending fields.
func Validation(message string, fields ...FieldError) *Error {
	if message == "" {
		message = codeTable[CodeValidation].PublicMessage
	}
	e := New(CodeValidation, message)
	if len(fields) > 0 {
		e.details = fields
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
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

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// Fields returns the per-field problems carried in the details, if any.
func (e *Error) Fields() []FieldError {
	if e == nil {
		return nil
	}
	fields, _ := e.details.([]FieldError)
	return fields
}

// As finds the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err == nil || !stdErrors.As(err, &typed) {
		return nil
	}
	return typed
}

// CodeOf is the code of the outermost *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.code
	}
	return ""
}
