package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the referenced object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Reader opens stored document files by reference.
type Reader interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Type() string
}
