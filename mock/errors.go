package mock

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aep/parsekit/api"
	"github.com/labstack/echo/v4"
)

const (
	codeInternal            = 1
	codeObjectNotFound      = 101
	codeInvalidQuery        = 102
	codeInvalidClassName    = 103
	codeInvalidJSON         = 107
	codeInvalidFileName     = 122
	codeUsernameMissing     = 200
	codePasswordMissing     = 201
	codeUsernameTaken       = 202
	codeInvalidSessionToken = 209
)

type apiError struct {
	status  int
	code    int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d: %s", e.code, e.message)
}

func (e *apiError) body() api.ErrorBody {
	return api.ErrorBody{Code: e.code, Error: e.message}
}

func errNotFound() *apiError {
	return &apiError{http.StatusNotFound, codeObjectNotFound, "Object not found."}
}

func errInvalidQuery(format string, args ...any) *apiError {
	return &apiError{http.StatusBadRequest, codeInvalidQuery, fmt.Sprintf(format, args...)}
}

func errInvalidJSON(format string, args ...any) *apiError {
	return &apiError{http.StatusBadRequest, codeInvalidJSON, fmt.Sprintf(format, args...)}
}

func errInvalidSession() *apiError {
	return &apiError{http.StatusBadRequest, codeInvalidSessionToken, "Invalid session token"}
}

func toAPIError(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := codeInternal
		if he.Code == http.StatusBadRequest {
			code = codeInvalidJSON
		}
		return &apiError{he.Code, code, fmt.Sprint(he.Message)}
	}
	return &apiError{http.StatusInternalServerError, codeInternal, err.Error()}
}

func respondError(c echo.Context, err error) error {
	ae := toAPIError(err)
	return c.JSON(ae.status, ae.body())
}
