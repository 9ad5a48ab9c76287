// Package apperr classifies failures into the kinds the UI reacts to:
// transient notices for recoverable problems and a blocking fallback for
// programming errors.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type Kind string

const (
	KindValidation   Kind = "validation_error"
	KindConnectivity Kind = "network_error"
	KindDatabase     Kind = "database_error"
	KindRecognition  Kind = "recognition_error"
	KindInternal     Kind = "internal_error"
)

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op string, err error) error   { return wrap(KindValidation, op, err) }
func Connectivity(op string, err error) error { return wrap(KindConnectivity, op, err) }
func Database(op string, err error) error     { return wrap(KindDatabase, op, err) }
func Recognition(op string, err error) error  { return wrap(KindRecognition, op, err) }
func Internal(op string, err error) error     { return wrap(KindInternal, op, err) }

// ErrOffline is returned by operations that cannot be queued while the
// backend is unreachable.
var ErrOffline = errors.New("backend unreachable")

// KindOf reports the kind of err. Unclassified network and deadline errors are
// treated as connectivity failures, everything else as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, ErrOffline) || errors.Is(err, context.DeadlineExceeded) {
		return KindConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnectivity
	}
	if isConnectionMessage(err.Error()) {
		return KindConnectivity
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func isConnectionMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, s := range []string{"connection refused", "connection reset", "no such host", "broken pipe", "network is unreachable", "failed to fetch"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Notice is the user facing rendering of an error.
type Notice struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	Blocking bool   `json:"fatal"`
}

// Classify maps err onto a Notice. Only internal errors block the UI.
func Classify(err error) Notice {
	kind := KindOf(err)
	switch kind {
	case KindValidation:
		return Notice{Kind: kind, Message: validationMessage(err)}
	case KindConnectivity:
		return Notice{Kind: kind, Message: "Network error. Please check your connection."}
	case KindDatabase:
		return Notice{Kind: kind, Message: "Database error. Please try again."}
	case KindRecognition:
		return Notice{Kind: kind, Message: "Could not read slip."}
	default:
		return Notice{Kind: KindInternal, Message: "Something went wrong. Please reload.", Blocking: true}
	}
}

func validationMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Err != nil {
		return ae.Err.Error()
	}
	return err.Error()
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindRecognition:
		return http.StatusUnprocessableEntity
	case KindConnectivity:
		return http.StatusServiceUnavailable
	case KindDatabase:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
