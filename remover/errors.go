package remover

import "errors"

var (
	ErrNotFound = errors.New("file not found")
	ErrDecode   = errors.New("decode error")
	ErrRemove   = errors.New("background removal failed")
	ErrWrite    = errors.New("write error")
)

// Error records the step of Process that failed. It matches its kind
// sentinel with errors.Is and unwraps to the underlying cause.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Kind.Error() + " (" + e.Path + "): " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
