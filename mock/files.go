package mock

import (
	"encoding/base64"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/aep/parsekit/api"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var fileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_. -]*$`)

// handleUploadFile accepts either the raw file content or a JSON body
// carrying the content as base64.
func (s *Server) handleUploadFile(c echo.Context) error {
	name := c.Param("name")
	if !fileNamePattern.MatchString(name) {
		return respondError(c, &apiError{http.StatusBadRequest, codeInvalidFileName, "Filename contains invalid characters."})
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)

	var data []byte
	if strings.HasPrefix(contentType, echo.MIMEApplicationJSON) {
		var upload api.FileUpload
		if err := c.Bind(&upload); err != nil {
			return respondError(c, err)
		}
		decoded, err := base64.StdEncoding.DecodeString(upload.Base64)
		if err != nil {
			return respondError(c, errInvalidJSON("invalid base64 content: %v", err))
		}
		data = decoded
		contentType = upload.ContentType
	} else {
		raw, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return respondError(c, err)
		}
		data = raw
	}
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	stored := strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + name
	s.store.putFile(stored, storedFile{contentType: contentType, data: data})

	url := c.Scheme() + "://" + c.Request().Host + "/files/" + s.opts.ApplicationID + "/" + stored
	c.Response().Header().Set(echo.HeaderLocation, url)
	return c.JSON(http.StatusCreated, map[string]string{
		"name": stored,
		"url":  url,
	})
}

func (s *Server) handleGetFile(c echo.Context) error {
	if c.Param("app") != s.opts.ApplicationID {
		return respondError(c, errNotFound())
	}
	f, ok := s.store.file(c.Param("name"))
	if !ok {
		return respondError(c, errNotFound())
	}
	return c.Blob(http.StatusOK, f.contentType, f.data)
}
