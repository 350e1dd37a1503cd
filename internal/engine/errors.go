package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable covers transport failures, timeouts and 5xx answers.
	ErrUnreachable = errors.New("engine unreachable")
	// ErrRejected covers 4xx answers and responses that cannot be decoded.
	ErrRejected = errors.New("engine rejected the request")
	// ErrJobNotFound is returned when the engine does not know the job id.
	ErrJobNotFound = errors.New("engine job not found")
)

type StatusError struct {
	Code int
	Body string
	kind error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("engine returned status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

func newStatusError(code int, body string, jobLookup bool) *StatusError {
	kind := ErrRejected
	switch {
	case code == 404 && jobLookup:
		kind = ErrJobNotFound
	case code >= 500:
		kind = ErrUnreachable
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return &StatusError{Code: code, Body: body, kind: kind}
}
