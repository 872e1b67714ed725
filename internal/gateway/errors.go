package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

type Class int

const (
	// Transient failures are worth retrying later.
	Transient Class = iota + 1
	// Permanent failures will not succeed for this lead as it stands.
	Permanent
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	}
	return "unknown"
}

type Error struct {
	Err        error
	Op         string
	Detail     string
	StatusCode int
	Class      Class
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gateway %s: %s", e.Op, e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Class == Transient
}

func IsPermanent(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Class == Permanent
}

// ClassifyStatus maps a provider HTTP status to a failure class.
// 401 is an account credential problem rather than a lead problem, so it is
// retried later instead of failing the lead.
func ClassifyStatus(status int) Class {
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status == http.StatusUnauthorized,
		status >= 500:
		return Transient
	case status >= 400:
		return Permanent
	}
	return Transient
}

// classifyErr wraps a failure that carries no provider verdict, such as a
// timeout or a refused connection. Those are always transient.
func classifyErr(op string, err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return &Error{Op: op, Class: Transient, Err: err}
}
