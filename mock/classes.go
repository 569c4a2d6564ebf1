package mock

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const defaultLimit = 100

func (s *Server) handleCreate(c echo.Context) error {
	var fields map[string]any
	if err := c.Bind(&fields); err != nil {
		return respondError(c, err)
	}

	className := c.Param("class")
	obj, err := s.store.create(className, fields)
	if err != nil {
		return respondError(c, err)
	}
	s.metrics.objectsCreated.WithLabelValues(className).Inc()

	c.Response().Header().Set(echo.HeaderLocation, c.Scheme()+"://"+c.Request().Host+c.Request().URL.Path+"/"+obj.ObjectID())
	return c.JSON(http.StatusCreated, map[string]any{
		"objectId":  obj.ObjectID(),
		"createdAt": obj["createdAt"],
	})
}

func (s *Server) handleGet(c echo.Context) error {
	includes := splitList(c.QueryParam("include"))

	obj, err := s.store.get(c.Param("class"), c.Param("id"), includes)
	if err != nil {
		return respondError(c, err)
	}
	if keys := splitList(c.QueryParam("keys")); len(keys) > 0 {
		obj = project(obj, keys)
	}
	return c.JSON(http.StatusOK, obj)
}

func (s *Server) handleUpdate(c echo.Context) error {
	var fields map[string]any
	if err := c.Bind(&fields); err != nil {
		return respondError(c, err)
	}

	updatedAt, err := s.store.update(c.Param("class"), c.Param("id"), fields)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"updatedAt": updatedAt})
}

func (s *Server) handleDelete(c echo.Context) error {
	if err := s.store.delete(c.Param("class"), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{})
}

func (s *Server) handleFind(c echo.Context) error {
	q, err := parseFindQuery(c.QueryParams())
	if err != nil {
		return respondError(c, err)
	}

	results, total, err := s.store.find(c.Param("class"), q)
	if err != nil {
		return respondError(c, err)
	}

	rsp := map[string]any{"results": results}
	if q.count {
		rsp["count"] = total
	}
	return c.JSON(http.StatusOK, rsp)
}

// parseFindQuery reads the query parameters the encoder emits. start is
// accepted as an alias of skip.
func parseFindQuery(v url.Values) (findQuery, error) {
	q := findQuery{limit: defaultLimit}

	if raw := v.Get("where"); raw != "" {
		if err := decodeJSON(raw, &q.where); err != nil {
			return q, errInvalidJSON("invalid where: %v", err)
		}
	}

	q.order = splitList(v.Get("order"))

	skip := v.Get("skip")
	if skip == "" {
		skip = v.Get("start")
	}
	if skip != "" {
		n, err := strconv.Atoi(skip)
		if err != nil || n < 0 {
			return q, errInvalidQuery("invalid skip: %s", skip)
		}
		q.skip = n
	}

	if limit := v.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return q, errInvalidQuery("invalid limit: %s", limit)
		}
		q.limit = n
	}

	switch v.Get("count") {
	case "", "0", "false":
	case "1", "true":
		q.count = true
	default:
		return q, errInvalidQuery("invalid count: %s", v.Get("count"))
	}

	q.include = splitList(v.Get("include"))
	q.keys = splitList(v.Get("keys"))

	return q, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
