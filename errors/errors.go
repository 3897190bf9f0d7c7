package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Failure kinds reported by the collaborators the agent talks to. They are
// attached with Kind and tested with Is.
var (
	ErrTransport  = stderrors.New("transport error")
	ErrUpstream   = stderrors.New("upstream error")
	ErrEmbedding  = stderrors.New("embedding error")
	ErrStore      = stderrors.New("store error")
	ErrCapability = stderrors.New("capability error")
)

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", caller(), fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", caller(), fmt.Sprintf(format, a...), err)
}

// Kind wraps err with a message and marks it as belonging to kind, so that
// Is(result, kind) reports true. A nil err yields nil.
func Kind(kind, err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w: %w", caller(), fmt.Sprintf(format, a...), kind, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

func caller() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
