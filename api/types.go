package api

import (
	"encoding/json"
	"time"
)

const (
	TypePointer = "Pointer"
	TypeFile    = "File"
)

type Pointer struct {
	Type      string `json:"__type"`
	ClassName string `json:"className"`
	ObjectID  string `json:"objectId"`
}

func NewPointer(className, objectID string) Pointer {
	return Pointer{
		Type:      TypePointer,
		ClassName: className,
		ObjectID:  objectID,
	}
}

type File struct {
	Type string `json:"__type"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

func NewFile(name, url string) File {
	return File{
		Type: TypeFile,
		Name: name,
		URL:  url,
	}
}

// Object is a stored record as the backend returns it.
type Object map[string]any

func (o Object) ObjectID() string {
	id, _ := o["objectId"].(string)
	return id
}

func (o Object) ClassName() string {
	name, _ := o["className"].(string)
	return name
}

type CreateResponse struct {
	ObjectID  string    `json:"objectId"`
	CreatedAt time.Time `json:"createdAt"`
}

type UpdateResponse struct {
	UpdatedAt time.Time `json:"updatedAt"`
}

type User struct {
	ObjectID     string    `json:"objectId"`
	Username     string    `json:"username"`
	SessionToken string    `json:"sessionToken,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
}

type ErrorBody struct {
	Code  int    `json:"code,omitempty"`
	Error string `json:"error"`
}

type BatchRequest struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   any    `json:"body,omitempty"`
}

type BatchRequests struct {
	Requests []BatchRequest `json:"requests"`
}

// BatchResult holds one entry of a batch response. Exactly one of the
// fields is set.
type BatchResult struct {
	Success json.RawMessage `json:"success,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

type FileUpload struct {
	Base64      string `json:"base64"`
	ContentType string `json:"_ContentType"`
}
