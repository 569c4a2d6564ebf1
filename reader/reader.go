package reader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aep/parsekit/api"
)

// Reader extracts records from a response body. List responses carry
// the records under RootProperty and the total under TotalProperty;
// single object responses (get, create, update) are the record itself.
type Reader struct {
	RootProperty  string
	TotalProperty string
}

func New() Reader {
	return Reader{
		RootProperty:  "results",
		TotalProperty: "count",
	}
}

type ResultSet struct {
	Records []json.RawMessage
	Total   *int64
}

func (r Reader) Read(body io.Reader) (*ResultSet, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(raw)
}

func (r Reader) ReadBytes(raw []byte) (*ResultSet, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &ResultSet{}, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("response is not a json object: %w", err)
	}

	root, ok := envelope[r.RootProperty]
	if !ok || bytes.Equal(root, []byte("null")) {
		return &ResultSet{Records: []json.RawMessage{raw}}, nil
	}

	var rs ResultSet
	if err := json.Unmarshal(root, &rs.Records); err != nil {
		return nil, fmt.Errorf("%s is not an array: %w", r.RootProperty, err)
	}

	if total, ok := envelope[r.TotalProperty]; ok {
		var n int64
		if err := json.Unmarshal(total, &n); err != nil {
			return nil, fmt.Errorf("%s is not a number: %w", r.TotalProperty, err)
		}
		rs.Total = &n
	}

	return &rs, nil
}

// Objects decodes all records as generic objects. Numbers are kept as
// json.Number.
func (rs *ResultSet) Objects() ([]api.Object, error) {
	objects := make([]api.Object, 0, len(rs.Records))
	for _, rec := range rs.Records {
		dec := json.NewDecoder(bytes.NewReader(rec))
		dec.UseNumber()

		var obj api.Object
		if err := dec.Decode(&obj); err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func Decode[T any](rs *ResultSet) ([]T, error) {
	out := make([]T, 0, len(rs.Records))
	for _, rec := range rs.Records {
		var v T
		if err := json.Unmarshal(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
