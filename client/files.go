package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/query"
)

var dataURIPattern = regexp.MustCompile(`^data:([a-zA-Z]*/[a-zA-Z+.-]*);(charset=[a-zA-Z0-9\-/\s]*,)?base64,(\S+)`)

func filePath(name string) string {
	return "/files/" + url.PathEscape(name)
}

// UploadFile stores the content of r under name. The returned File can be
// assigned to a field of an object.
func (c *Client) UploadFile(ctx context.Context, name, contentType string, r io.Reader) (*api.File, error) {
	if err := requireName("name", name); err != nil {
		return nil, err
	}
	if err := requireName("contentType", contentType); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}

	return c.postFile(ctx, request{
		method:      http.MethodPost,
		path:        filePath(name),
		raw:         data,
		contentType: contentType,
	})
}

// UploadDataURI stores the base64 payload of a data: URI. When
// contentType is empty the media type of the URI is used.
func (c *Client) UploadDataURI(ctx context.Context, dataURI, name, contentType string) (*api.File, error) {
	if err := requireName("name", name); err != nil {
		return nil, err
	}

	m := dataURIPattern.FindStringSubmatch(dataURI)
	if m == nil {
		return nil, &query.ValidationError{Field: "dataURI", Reason: "unable to parse base64 data"}
	}
	if contentType == "" {
		contentType = m[1]
	}
	if err := requireName("contentType", contentType); err != nil {
		return nil, err
	}

	payload := m[3]
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return nil, &query.ValidationError{Field: "dataURI", Reason: fmt.Sprintf("invalid base64: %v", err)}
	}

	return c.postFile(ctx, request{
		method: http.MethodPost,
		path:   filePath(name),
		body: api.FileUpload{
			Base64:      payload,
			ContentType: contentType,
		},
	})
}

func (c *Client) postFile(ctx context.Context, r request) (*api.File, error) {
	var rsp struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := c.doJSON(ctx, r, &rsp); err != nil {
		return nil, err
	}

	file := api.NewFile(rsp.Name, rsp.URL)
	return &file, nil
}
