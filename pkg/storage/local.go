package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type LocalReader struct {
	root string
}

func NewLocalReader(root string) *LocalReader {
	return &LocalReader{root: filepath.Clean(root)}
}

func (l *LocalReader) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	// refs are relative to the root; anything escaping it is treated as missing.
	name := filepath.Join(l.root, filepath.Clean("/"+ref))
	if !strings.HasPrefix(name, l.root) {
		return nil, fmt.Errorf("%s: %w", ref, ErrObjectNotFound)
	}

	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", ref, ErrObjectNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (l *LocalReader) Type() string {
	return "local"
}
