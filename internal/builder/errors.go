package builder

import (
	"errors"
	"fmt"
)

// ErrMalformed marks a source that can never build as it stands. Rebuilding
// without an edit will fail the same way.
var ErrMalformed = errors.New("malformed source")

// SourceError ties a build failure to the file that caused it.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func malformed(path, format string, args ...any) error {
	return &SourceError{
		Path: path,
		Err:  fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...)),
	}
}
