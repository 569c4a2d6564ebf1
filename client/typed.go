package client

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/query"
	"github.com/aep/parsekit/reader"
)

// Class gives typed access to the objects of one class. Obj is decoded
// from and encoded to the backend's JSON representation.
type Class[Obj any] struct {
	*Client
	Name string
}

func NewClass[Obj any](c *Client, name string) *Class[Obj] {
	return &Class[Obj]{Client: c, Name: name}
}

func (c *Class[Obj]) Get(ctx context.Context, objectID string, includes ...string) (*Obj, error) {
	obj, err := c.Client.Get(ctx, c.Name, objectID, includes...)
	if err != nil {
		return nil, err
	}
	return convert[Obj](obj)
}

func (c *Class[Obj]) Create(ctx context.Context, obj *Obj) (*api.CreateResponse, error) {
	return c.Client.Create(ctx, c.Name, obj)
}

func (c *Class[Obj]) Update(ctx context.Context, objectID string, fields any) (*api.UpdateResponse, error) {
	return c.Client.Update(ctx, c.Name, objectID, fields)
}

func (c *Class[Obj]) Delete(ctx context.Context, objectID string) error {
	return c.Client.Delete(ctx, c.Name, objectID)
}

// Find returns the matching objects and, when d has paging enabled, the
// total number of matches.
func (c *Class[Obj]) Find(ctx context.Context, d query.Descriptor) ([]Obj, *int64, error) {
	rs, err := c.Client.Find(ctx, c.Name, d)
	if err != nil {
		return nil, nil, err
	}
	objs, err := reader.Decode[Obj](rs)
	if err != nil {
		return nil, nil, err
	}
	return objs, rs.Total, nil
}

func (c *Class[Obj]) Each(ctx context.Context, d query.Descriptor, pageSize int) iter.Seq2[*Obj, error] {
	return func(yield func(*Obj, error) bool) {
		for obj, err := range c.Client.Each(ctx, c.Name, d, pageSize) {
			if err != nil {
				yield(nil, err)
				return
			}
			typed, err := convert[Obj](obj)
			if !yield(typed, err) || err != nil {
				return
			}
		}
	}
}

func convert[Obj any](obj api.Object) (*Obj, error) {
	buf, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var dest = new(Obj)
	if err := json.Unmarshal(buf, dest); err != nil {
		return nil, err
	}
	return dest, nil
}
