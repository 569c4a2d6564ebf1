package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Error codes the backend uses in error bodies.
const (
	ErrCodeOther               = -1
	ErrCodeInternalServer      = 1
	ErrCodeObjectNotFound      = 101
	ErrCodeInvalidQuery        = 102
	ErrCodeInvalidClassName    = 103
	ErrCodeMissingObjectID     = 104
	ErrCodeInvalidJSON         = 107
	ErrCodeInvalidFileName     = 122
	ErrCodeUsernameMissing     = 200
	ErrCodePasswordMissing     = 201
	ErrCodeUsernameTaken       = 202
	ErrCodeInvalidSessionToken = 209
)

type Error struct {
	Status  int
	Code    int
	Message string
}

func (e Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func parseError(rsp *http.Response) error {
	var body struct {
		Code  int    `json:"code"`
		Error string `json:"error"`
	}

	raw, _ := io.ReadAll(io.LimitReader(rsp.Body, 64*1024))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return Error{
			Status:  rsp.StatusCode,
			Message: http.StatusText(rsp.StatusCode),
		}
	}

	return Error{
		Status:  rsp.StatusCode,
		Code:    body.Code,
		Message: body.Error,
	}
}

func asError(err error) (Error, bool) {
	var e Error
	ok := errors.As(err, &e)
	return e, ok
}

func IsErrorObjectNotFound(err error) bool {
	e, ok := asError(err)
	return ok && (e.Code == ErrCodeObjectNotFound || (e.Code == 0 && e.Status == http.StatusNotFound))
}

func IsErrorInvalidSessionToken(err error) bool {
	e, ok := asError(err)
	return ok && e.Code == ErrCodeInvalidSessionToken
}

func IsErrorUnauthorized(err error) bool {
	e, ok := asError(err)
	return ok && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}
