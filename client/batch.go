package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aep/parsekit/api"
)

// MaxBatchSize is the most requests the backend accepts in one batch.
const MaxBatchSize = 50

func (c *Client) CreateRequest(className string, body any) api.BatchRequest {
	return api.BatchRequest{
		Method: http.MethodPost,
		Path:   c.cfg.VersionPath() + classPath(className),
		Body:   body,
	}
}

func (c *Client) UpdateRequest(className, objectID string, updates any) api.BatchRequest {
	return api.BatchRequest{
		Method: http.MethodPut,
		Path:   c.cfg.VersionPath() + objectPath(className, objectID),
		Body:   updates,
	}
}

func (c *Client) DeleteRequest(className, objectID string) api.BatchRequest {
	return api.BatchRequest{
		Method: http.MethodDelete,
		Path:   c.cfg.VersionPath() + objectPath(className, objectID),
	}
}

// Batch sends requests through the batch endpoint, MaxBatchSize at a
// time, and returns one result per request in order. A failed sub
// request does not fail the call; inspect BatchResult.Error instead.
func (c *Client) Batch(ctx context.Context, requests ...api.BatchRequest) ([]api.BatchResult, error) {
	for i, r := range requests {
		if r.Method == "" || r.Path == "" {
			return nil, fmt.Errorf("batch request %d: method and path are required", i)
		}
	}

	results := make([]api.BatchResult, 0, len(requests))
	for start := 0; start < len(requests); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(requests))

		var chunk []api.BatchResult
		err := c.doJSON(ctx, request{
			method: http.MethodPost,
			path:   "/batch",
			body:   api.BatchRequests{Requests: requests[start:end]},
		}, &chunk)
		if err != nil {
			return results, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		if len(chunk) != end-start {
			return results, fmt.Errorf("batch %d-%d: expected %d results, got %d", start, end, end-start, len(chunk))
		}

		results = append(results, chunk...)
	}

	c.log.Debug("batch done", "requests", len(requests))
	return results, nil
}
