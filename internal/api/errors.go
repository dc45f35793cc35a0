package api

import "errors"

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	param string
	msg   string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(param, msg string) error {
	return invalidRequestError{param: param, msg: msg}
}
