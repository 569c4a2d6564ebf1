package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/query"
)

func classPath(className string) string {
	return "/classes/" + url.PathEscape(className)
}

func objectPath(className, objectID string) string {
	return classPath(className) + "/" + url.PathEscape(objectID)
}

// Get fetches one object. includes names pointer fields whose targets
// are inlined in the response.
func (c *Client) Get(ctx context.Context, className, objectID string, includes ...string) (api.Object, error) {
	if err := requireName("className", className); err != nil {
		return nil, err
	}
	if err := requireName("objectId", objectID); err != nil {
		return nil, err
	}

	params := query.Params{}
	include, err := c.enc.EncodeIncludes(includes)
	if err != nil {
		return nil, err
	}
	if include != "" {
		params[c.enc.Names.Include] = include
	}

	rs, err := c.doRead(ctx, request{
		method: http.MethodGet,
		path:   objectPath(className, objectID),
		params: params,
	})
	if err != nil {
		return nil, err
	}

	objs, err := rs.Objects()
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, Error{Status: http.StatusNotFound, Code: ErrCodeObjectNotFound, Message: "object not found"}
	}
	return objs[0], nil
}

func (c *Client) Create(ctx context.Context, className string, object any) (*api.CreateResponse, error) {
	if err := requireName("className", className); err != nil {
		return nil, err
	}

	var rsp api.CreateResponse
	err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   classPath(className),
		body:   object,
	}, &rsp)
	if err != nil {
		return nil, err
	}

	c.log.Debug("created object", "class", className, "objectId", rsp.ObjectID)
	return &rsp, nil
}

// Update sends fields as a partial update. Field values may be plain
// values or operations such as api.Add or api.AddRelation.
func (c *Client) Update(ctx context.Context, className, objectID string, fields any) (*api.UpdateResponse, error) {
	if err := requireName("className", className); err != nil {
		return nil, err
	}
	if err := requireName("objectId", objectID); err != nil {
		return nil, err
	}

	var rsp api.UpdateResponse
	err := c.doJSON(ctx, request{
		method: http.MethodPut,
		path:   objectPath(className, objectID),
		body:   fields,
	}, &rsp)
	if err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *Client) Delete(ctx context.Context, className, objectID string) error {
	if err := requireName("className", className); err != nil {
		return err
	}
	if err := requireName("objectId", objectID); err != nil {
		return err
	}

	return c.doJSON(ctx, request{
		method: http.MethodDelete,
		path:   objectPath(className, objectID),
	}, nil)
}

// AddToArray appends items to the array field property.
func (c *Client) AddToArray(ctx context.Context, className, objectID, property string, items ...any) (*api.UpdateResponse, error) {
	if err := requireName("property", property); err != nil {
		return nil, err
	}
	return c.Update(ctx, className, objectID, map[string]any{
		property: api.Add(items...),
	})
}

// AddRelation adds the targetClass objects with the given ids to the
// relation field property.
func (c *Client) AddRelation(ctx context.Context, className, objectID, property, targetClass string, targetIDs ...string) (*api.UpdateResponse, error) {
	if err := requireName("property", property); err != nil {
		return nil, err
	}
	if err := requireName("targetClass", targetClass); err != nil {
		return nil, err
	}
	return c.Update(ctx, className, objectID, map[string]any{
		property: api.AddRelation(targetClass, targetIDs...),
	})
}

func (c *Client) RemoveRelation(ctx context.Context, className, objectID, property, targetClass string, targetIDs ...string) (*api.UpdateResponse, error) {
	if err := requireName("property", property); err != nil {
		return nil, err
	}
	if err := requireName("targetClass", targetClass); err != nil {
		return nil, err
	}
	return c.Update(ctx, className, objectID, map[string]any{
		property: api.RemoveRelation(targetClass, targetIDs...),
	})
}
