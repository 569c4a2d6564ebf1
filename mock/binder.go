package mock

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Binder decodes JSON bodies with UseNumber so integers survive a round
// trip through the store unchanged.
type Binder struct {
	defaultBinder *echo.DefaultBinder
}

func (cb *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()
	if req.Method == http.MethodPost || req.Method == http.MethodPut {
		contentType := req.Header.Get(echo.HeaderContentType)

		if strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
			if req.ContentLength == 0 {
				return nil
			}
			dec := json.NewDecoder(req.Body)
			dec.UseNumber()

			if err := dec.Decode(i); err != nil {
				return errInvalidJSON("invalid JSON body: %v", err)
			}
			return nil
		}
	}

	return cb.defaultBinder.Bind(i, c)
}
