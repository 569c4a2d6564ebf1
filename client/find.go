package client

import (
	"context"
	"errors"
	"iter"
	"net/http"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/query"
	"github.com/aep/parsekit/reader"
)

const DefaultPageSize = 100

func (c *Client) Find(ctx context.Context, className string, d query.Descriptor) (*reader.ResultSet, error) {
	if err := requireName("className", className); err != nil {
		return nil, err
	}

	params, err := c.enc.BuildParameterMap(d)
	if err != nil {
		return nil, err
	}

	return c.doRead(ctx, request{
		method: http.MethodGet,
		path:   classPath(className),
		params: params,
	})
}

// Count returns the number of objects matching filters without fetching
// any of them.
func (c *Client) Count(ctx context.Context, className string, filters ...query.Filter) (int64, error) {
	rs, err := c.Find(ctx, className, query.Descriptor{
		Filters: filters,
		Window:  query.Window{Limit: query.Int(0)},
		Paging:  true,
	})
	if err != nil {
		return 0, err
	}
	if rs.Total == nil {
		return 0, errors.New("response has no count")
	}
	return *rs.Total, nil
}

// Each yields every object matching d, fetching pageSize objects per
// request. The window of d is ignored.
func (c *Client) Each(ctx context.Context, className string, d query.Descriptor, pageSize int) iter.Seq2[api.Object, error] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return func(yield func(api.Object, error) bool) {
		page := d
		page.Paging = true

		for n := 1; ; n++ {
			page.Window = query.Window{Page: query.Int(n), Limit: query.Int(pageSize)}

			rs, err := c.Find(ctx, className, page)
			if err != nil {
				yield(nil, err)
				return
			}

			objs, err := rs.Objects()
			if err != nil {
				yield(nil, err)
				return
			}

			for _, obj := range objs {
				if !yield(obj, nil) {
					return
				}
			}

			if len(objs) < pageSize {
				return
			}
		}
	}
}
