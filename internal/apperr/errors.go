// Package apperr defines the closed set of error kinds shared by every service.
// Each kind maps to exactly one HTTP status code; message consumers use the kind
// to decide between retrying and dead-lettering a delivery.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindQuantity
	KindPayment
	KindDatabase
	KindProcessing
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindValidation:   "validation_error",
	KindUnauthorized: "unauthorized_error",
	KindNotFound:     "not_found",
	KindQuantity:     "quantity_error",
	KindPayment:      "payment_error",
	KindDatabase:     "database_error",
	KindProcessing:   "processing_error",
}

var statusCodes = map[Kind]int{
	KindUnknown:      http.StatusInternalServerError,
	KindValidation:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindNotFound:     http.StatusNotFound,
	KindQuantity:     http.StatusBadRequest,
	KindPayment:      http.StatusPaymentRequired,
	KindDatabase:     http.StatusInternalServerError,
	KindProcessing:   http.StatusInternalServerError,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[KindUnknown]
}

// StatusCode returns the HTTP status associated with the kind.
func (k Kind) StatusCode() int {
	if c, ok := statusCodes[k]; ok {
		return c
	}
	return http.StatusInternalServerError
}

type Error struct {
	Kind      Kind
	Message   string
	Details   []string
	Err       error
	// Temporary marks a failure of the message channel that redelivery can clear.
	Temporary bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func Unauthorized(msg string) *Error {
	if msg == "" {
		msg = "Unauthorized access"
	}
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func NotFound(resource, identifier string) *Error {
	if resource == "" {
		resource = "Resource"
	}
	msg := resource + " not found"
	if identifier != "" {
		msg = fmt.Sprintf("%s with identifier %q not found", resource, identifier)
	}
	return &Error{Kind: KindNotFound, Message: msg}
}

func Quantity(productID int64, available, requested int) *Error {
	return &Error{
		Kind:    KindQuantity,
		Message: fmt.Sprintf("Insufficient stock for product %d. Available: %d, Requested: %d", productID, available, requested),
	}
}

// Payment reports a failure of the payment logic itself. reason is optional and is
// exposed to HTTP callers as the only detail.
func Payment(msg, reason string, err error) *Error {
	e := &Error{Kind: KindPayment, Message: msg, Err: err}
	if reason != "" {
		e.Details = []string{reason}
	}
	return e
}

func Database(msg string, err error) *Error {
	return &Error{Kind: KindDatabase, Message: msg, Err: err}
}

func Processing(msg string, err error) *Error {
	return &Error{Kind: KindProcessing, Message: msg, Err: err}
}

// Unavailable is a processing error caused by the broker refusing a publish.
// Unlike Processing it is retried.
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindProcessing, Message: msg, Err: err, Temporary: true}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func StatusCode(err error) int {
	return KindOf(err).StatusCode()
}

// Retryable reports whether redelivering the message that produced err can succeed.
// Storage failures and refused publishes qualify; business rejections are final.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindDatabase || e.Temporary
}

// Body is the JSON shape written for every failed HTTP request.
type Body struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Details    []string `json:"details,omitempty"`
}

// ToBody converts err into the public response body. Errors that are not *Error
// never leak their text.
func ToBody(err error) Body {
	var e *Error
	if !errors.As(err, &e) {
		return Body{StatusCode: http.StatusInternalServerError, Message: "An unexpected error occurred"}
	}
	b := Body{StatusCode: e.Kind.StatusCode(), Message: e.Message, Details: e.Details}
	if b.Message == "" {
		b.Message = "An unexpected error occurred"
	}
	return b
}
