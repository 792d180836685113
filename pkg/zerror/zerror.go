// Package zerror carries a status class and a stable machine code on errors
// so they can be translated once at the edge.
package zerror

// ZError is a predefined error, optionally wrapping the error that caused it.
// Values are copied on WrapParent, so predefined errors stay shareable.
type ZError struct {
	parent error
	status Status
	code   string
	msg    string
}

// NewZError creates a ZError. code is an upper snake case identifier such as
// PRODUCT_NOT_FOUND.
func NewZError(parent error, status Status, code, msg string) ZError {
	return ZError{
		parent: parent,
		status: status,
		code:   code,
		msg:    msg,
	}
}

func NewValidationFailed(code, msg string) ZError {
	return NewZError(nil, StatusValidationFailed, code, msg)
}

func NewNotFound(code, msg string) ZError {
	return NewZError(nil, StatusNotFound, code, msg)
}

func NewInternalServerError(code, msg string) ZError {
	return NewZError(nil, StatusInternalServerError, code, msg)
}

func NewServiceUnavailable(code, msg string) ZError {
	return NewZError(nil, StatusServiceUnavailable, code, msg)
}

func (e ZError) Error() string {
	if e.parent == nil {
		return e.code + ": " + e.msg
	}
	return e.code + ": " + e.msg + ": " + e.parent.Error()
}

// WrapParent returns a copy of e caused by parent.
func (e ZError) WrapParent(parent error) ZError {
	e.parent = parent
	return e
}

func (e ZError) Unwrap() error {
	return e.parent
}

// Is matches any ZError with the same status and code, whatever its parent.
func (e ZError) Is(target error) bool {
	t, ok := target.(ZError)
	return ok && e.status == t.status && e.code == t.code
}

func (e ZError) Status() Status { return e.status }

func (e ZError) Code() string { return e.code }

func (e ZError) Msg() string { return e.msg }
