package parser

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrFileNotFound       = errors.New("file not found")
	ErrSchema             = errors.New("lookup schema error")
	ErrMalformedLookupRow = errors.New("malformed lookup row")
	ErrMalformedRecord    = errors.New("malformed flow record")
)

// OpenInput opens path for reading. Any open failure is reported as
// ErrFileNotFound with the underlying error kept in the chain.
func OpenInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileNotFound, err)
	}
	return f, nil
}
