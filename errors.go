package lasrender

import "fmt"

// ErrInvalidParameter reports a planner or job parameter rejected before any
// external call is made.
type ErrInvalidParameter struct {
	msg string
}

func (err ErrInvalidParameter) Error() string {
	return err.msg
}

func invalidParameter(format string, args ...interface{}) ErrInvalidParameter {
	return ErrInvalidParameter{msg: fmt.Sprintf(format, args...)}
}

// ErrNotFound reports a missing input point cloud or missing metadata.
type ErrNotFound struct {
	Path string
	msg  string
}

func (err ErrNotFound) Error() string {
	if err.msg != "" {
		return fmt.Sprintf("%s: %s", err.Path, err.msg)
	}
	return fmt.Sprintf("%s: not found", err.Path)
}

// ErrEngine reports a failed external rasterization or compositing call. A
// per-call timeout surfaces as an ErrEngine like any other process failure.
type ErrEngine struct {
	Op     string
	Stderr string
	Err    error
}

func (err ErrEngine) Error() string {
	if err.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", err.Op, err.Err, err.Stderr)
	}
	return fmt.Sprintf("%s: %v", err.Op, err.Err)
}

func (err ErrEngine) Unwrap() error {
	return err.Err
}

// ErrConversion reports a failed photographic-format conversion. It is
// logged and the unconverted raster is kept, never propagated as a job
// failure.
type ErrConversion struct {
	Path string
	Err  error
}

func (err ErrConversion) Error() string {
	return fmt.Sprintf("convert %s: %v", err.Path, err.Err)
}

func (err ErrConversion) Unwrap() error {
	return err.Err
}
