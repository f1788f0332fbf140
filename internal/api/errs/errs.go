// Package errs provides types and support related to web error
// functionality.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrCode represents an error code in the system.
type ErrCode struct {
	value  string
	status int
}

// Value returns the string value of the error code.
func (ec ErrCode) Value() string { return ec.value }

// String implements the fmt.Stringer interface.
func (ec ErrCode) String() string { return ec.value }

// The set of error codes the API returns.
var (
	InvalidArgument    = ErrCode{value: "invalid_argument", status: http.StatusBadRequest}
	NotFound           = ErrCode{value: "not_found", status: http.StatusNotFound}
	FailedPrecondition = ErrCode{value: "failed_precondition", status: http.StatusConflict}
	Unavailable        = ErrCode{value: "unavailable", status: http.StatusServiceUnavailable}
	Internal           = ErrCode{value: "internal", status: http.StatusInternalServerError}
)

// Error represents an error in the system.
type Error struct {
	Code    ErrCode `json:"-"`
	Message string  `json:"message"`
	Fields  []Field `json:"fields,omitempty"`
}

// Field is one failed request field.
type Field struct {
	Name  string `json:"field"`
	Error string `json:"error"`
}

// New constructs an error based on an app error.
func New(code ErrCode, err error) *Error {
	e := &Error{Code: code, Message: err.Error()}

	var fe FieldErrors
	if errors.As(err, &fe) {
		e.Message = "request validation failed"
		e.Fields = fe
	}
	return e
}

// Newf constructs an error based on an error message.
func Newf(code ErrCode, format string, v ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, v...)}
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// Encode implements the web.Encoder interface.
func (e *Error) Encode() ([]byte, string, error) {
	data, err := json.Marshal(struct {
		Code string `json:"code"`
		*Error
	}{Code: e.Code.value, Error: e})
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}

// HTTPStatus implements the web httpStatus interface so the handler can set
// the status code.
func (e *Error) HTTPStatus() int {
	if e.Code.status == 0 {
		return http.StatusInternalServerError
	}
	return e.Code.status
}

// IsError tests the concrete error is of the Error type.
func IsError(err error) bool {
	var er *Error
	return errors.As(err, &er)
}
