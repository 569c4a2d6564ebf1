package mock

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aep/parsekit/api"
	"github.com/labstack/echo/v4"
)

const maxBatchSize = 50

type batchOp struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Body   map[string]any `json:"body"`
}

func (s *Server) handleBatch(c echo.Context) error {
	var req struct {
		Requests []batchOp `json:"requests"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	if len(req.Requests) == 0 {
		return respondError(c, errInvalidJSON("requests must be a non-empty array"))
	}
	if len(req.Requests) > maxBatchSize {
		return respondError(c, errInvalidJSON("batch holds %d requests, at most %d are allowed", len(req.Requests), maxBatchSize))
	}

	results := make([]api.BatchResult, len(req.Requests))
	for i, op := range req.Requests {
		success, err := s.dispatch(op)
		if err != nil {
			body := toAPIError(err).body()
			results[i].Error = &body
			continue
		}
		raw, err := json.Marshal(success)
		if err != nil {
			return respondError(c, err)
		}
		results[i].Success = raw
	}

	return c.JSON(http.StatusOK, results)
}

// dispatch runs one batch entry against the store. Paths carry the
// version prefix, e.g. /1/classes/GameScore/xWMyZ4YEGZ.
func (s *Server) dispatch(op batchOp) (any, error) {
	path := strings.TrimPrefix(op.Path, "/1")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] != "classes" {
		return nil, errInvalidJSON("unsupported batch path %s", op.Path)
	}
	className := parts[1]

	switch {
	case op.Method == http.MethodPost && len(parts) == 2:
		obj, err := s.store.create(className, op.Body)
		if err != nil {
			return nil, err
		}
		s.metrics.objectsCreated.WithLabelValues(className).Inc()
		return map[string]any{"objectId": obj.ObjectID(), "createdAt": obj["createdAt"]}, nil

	case op.Method == http.MethodPut && len(parts) == 3:
		updatedAt, err := s.store.update(className, parts[2], op.Body)
		if err != nil {
			return nil, err
		}
		return map[string]any{"updatedAt": updatedAt}, nil

	case op.Method == http.MethodDelete && len(parts) == 3:
		if err := s.store.delete(className, parts[2]); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	}

	return nil, errInvalidJSON("unsupported batch method %s for %s", op.Method, op.Path)
}
