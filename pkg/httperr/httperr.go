package httperr

import "errors"

type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

func IsBadRequest(err error) bool {
	_, ok := errors.AsType[*BadRequestError](err)
	return ok
}

// ForbiddenError carries the stable code surfaced to the caller.
type ForbiddenError struct {
	Code string
	msg  string
}

func (e *ForbiddenError) Error() string { return e.msg }

func NewForbidden(code string, msg string) error { return &ForbiddenError{Code: code, msg: msg} }

func IsForbidden(err error) bool {
	_, ok := errors.AsType[*ForbiddenError](err)
	return ok
}

func ForbiddenCode(err error) string {
	if fe, ok := errors.AsType[*ForbiddenError](err); ok && fe != nil {
		return fe.Code
	}
	return ""
}
