package handlers

import "net/http"

// httpError carries an explicit status for request validation failures
type httpError struct {
	msg  string
	code int
}

func (e *httpError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &httpError{msg: msg, code: http.StatusBadRequest}
}
