package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/noah-isme/pos-billing-gateway/internal/common"
	"github.com/noah-isme/pos-billing-gateway/internal/resilience"
)

var (
	// ErrTransport covers unreachable backends, timeouts and open circuits.
	ErrTransport = errors.New("backend unreachable")
	// ErrMalformed means the backend answered with a body that is not valid JSON
	// or does not match the expected shape.
	ErrMalformed = errors.New("backend returned a malformed response")
	// ErrRejected means the backend answered with a non-2xx status.
	ErrRejected = errors.New("backend rejected the request")
	// ErrUnauthorized means the backend refused the session token (401/403).
	ErrUnauthorized = errors.New("backend rejected the session")
)

// Error describes a failed backend interaction.
type Error struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := []error{e.Kind}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func transportError(err error) *Error {
	return &Error{Kind: ErrTransport, Err: err}
}

func rejection(resp Response) *Error {
	kind := ErrRejected
	if resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden {
		kind = ErrUnauthorized
	}
	return &Error{Kind: kind, Status: resp.Status, Message: resp.Message()}
}

// AppError translates err into the response-facing error. Rejections keep the
// backend status and message; anything else is an opaque upstream failure.
func AppError(err error) *common.AppError {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var be *Error
	if errors.As(err, &be) && (errors.Is(be, ErrRejected) || errors.Is(be, ErrUnauthorized)) {
		status := be.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		message := be.Message
		if message == "" {
			message = "request failed"
		}
		code := common.CodeUpstreamRejected
		if errors.Is(be, ErrUnauthorized) {
			code = common.CodeSessionExpired
		}
		return common.NewAppError(code, message, status, err)
	}
	return common.NewAppError(common.CodeUpstreamUnavailable, "something went wrong, please try again", http.StatusInternalServerError, err)
}

// IsUnavailable reports whether err is a transport-level failure, including an open circuit.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrMalformed) || errors.Is(err, resilience.ErrOpenCircuit)
}
