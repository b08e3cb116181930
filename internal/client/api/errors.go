package api

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials matches every AuthError.
var ErrInvalidCredentials = errors.New("invalid credentials")

// NetworkError reports a failed remote call: the transport failed, or the
// server answered with a non-2xx status.
type NetworkError struct {
	// Op names the call, e.g. "GET /products".
	Op string
	// StatusCode is zero when no response arrived.
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError is returned by Login when the server rejects the credentials.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return ErrInvalidCredentials.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidCredentials, e.Message)
}

// Is lets errors.Is(err, ErrInvalidCredentials) match.
func (e *AuthError) Is(target error) bool { return target == ErrInvalidCredentials }
