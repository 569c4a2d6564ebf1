package client

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/config"
	"github.com/aep/parsekit/mock"
	"github.com/aep/parsekit/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T, opts ...Option) (*Client, *mock.Server) {
	srv, err := mock.New(mock.Options{ApplicationID: "app", APIKey: "key"})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := New(config.Config{
		ApplicationID: "app",
		APIKey:        "key",
		ServerURL:     ts.URL,
	}, append([]Option{WithHTTPClient(ts.Client())}, opts...)...)
	require.NoError(t, err)

	return c, srv
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(config.Config{APIKey: "key"})
	assert.True(t, query.IsValidationError(err))
}

func TestObjects(t *testing.T) {
	c, _ := setupTestClient(t)
	ctx := context.Background()

	created, err := c.Create(ctx, "GameScore", map[string]any{"score": 1337, "playerName": "Sean Plott"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ObjectID)
	assert.False(t, created.CreatedAt.IsZero())

	obj, err := c.Get(ctx, "GameScore", created.ObjectID)
	require.NoError(t, err)
	assert.Equal(t, created.ObjectID, obj.ObjectID())
	assert.Equal(t, "Sean Plott", obj["playerName"])

	updated, err := c.Update(ctx, "GameScore", created.ObjectID, map[string]any{"score": api.Increment(1)})
	require.NoError(t, err)
	assert.False(t, updated.UpdatedAt.Before(created.CreatedAt))

	_, err = c.AddToArray(ctx, "GameScore", created.ObjectID, "skills", "flying", "kungfu")
	require.NoError(t, err)

	obj, err = c.Get(ctx, "GameScore", created.ObjectID)
	require.NoError(t, err)
	assert.Equal(t, "1338", obj["score"].(interface{ String() string }).String())
	assert.Equal(t, []any{"flying", "kungfu"}, obj["skills"])

	require.NoError(t, c.Delete(ctx, "GameScore", created.ObjectID))

	_, err = c.Get(ctx, "GameScore", created.ObjectID)
	assert.True(t, IsErrorObjectNotFound(err), "%v", err)

	err = c.Delete(ctx, "GameScore", created.ObjectID)
	assert.True(t, IsErrorObjectNotFound(err), "%v", err)
}

func TestObjectArgumentsAreValidated(t *testing.T) {
	c, _ := setupTestClient(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "", "id")
	assert.True(t, query.IsValidationError(err))

	_, err = c.Update(ctx, "GameScore", "", map[string]any{})
	assert.True(t, query.IsValidationError(err))

	_, err = c.AddRelation(ctx, "GameScore", "id", "likes", "")
	assert.True(t, query.IsValidationError(err))

	_, err = c.Get(ctx, "GameScore", "id", "")
	assert.True(t, query.IsMalformedInput(err))
}

func TestFind(t *testing.T) {
	c, _ := setupTestClient(t)
	ctx := context.Background()

	for i, name := range []string{"a", "b", "a", "a", "b"} {
		_, err := c.Create(ctx, "GameScore", map[string]any{"score": i, "playerName": name})
		require.NoError(t, err)
	}

	rs, err := c.Find(ctx, "GameScore", query.Descriptor{
		Sorters: []query.Sorter{{Property: "score", Direction: query.DESC}},
		Filters: []query.Filter{query.Equality{Property: "playerName", Value: "a"}},
		Window:  query.Window{Page: query.Int(1), Limit: query.Int(2)},
		Paging:  true,
	})
	require.NoError(t, err)
	require.NotNil(t, rs.Total)
	assert.Equal(t, int64(3), *rs.Total)

	objs, err := rs.Objects()
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "3", objs[0]["score"].(interface{ String() string }).String())
	assert.Equal(t, "2", objs[1]["score"].(interface{ String() string }).String())

	rs, err = c.Find(ctx, "GameScore", query.Descriptor{
		Filters: []query.Filter{query.Or{Operands: []query.Filter{
			query.Equality{Property: "score", Value: 0},
			query.Equality{Property: "score", Value: 4},
		}}},
		Keys: []string{"score"},
	})
	require.NoError(t, err)
	assert.Nil(t, rs.Total)
	objs, err = rs.Objects()
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.NotContains(t, objs[0], "playerName")

	n, err := c.Count(ctx, "GameScore", query.Equality{Property: "playerName", Value: "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var seen int
	for obj, err := range c.Each(ctx, "GameScore", query.Descriptor{}, 2) {
		require.NoError(t, err)
		assert.NotEmpty(t, obj.ObjectID())
		seen++
	}
	assert.Equal(t, 5, seen)

	_, err = c.Find(ctx, "GameScore", query.Descriptor{
		Window: query.Window{Page: query.Int(0)},
		Paging: true,
	})
	assert.True(t, query.IsValidationError(err))
}

func TestPointersAndRelations(t *testing.T) {
	c, srv := setupTestClient(t)
	ctx := context.Background()

	team, err := c.Create(ctx, "Team", map[string]any{"name": "red"})
	require.NoError(t, err)
	player, err := c.Create(ctx, "Player", map[string]any{
		"name": "alice",
		"team": api.NewPointer("Team", team.ObjectID),
	})
	require.NoError(t, err)

	rs, err := c.Find(ctx, "Player", query.Descriptor{
		Filters: []query.Filter{query.InQuery{
			Property:  "team",
			ClassName: "Team",
			Where:     query.Equality{Property: "name", Value: "red"},
		}},
		Includes: []string{"team"},
	})
	require.NoError(t, err)
	objs, err := rs.Objects()
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "red", objs[0]["team"].(map[string]any)["name"])

	rs, err = c.Find(ctx, "Player", query.Descriptor{
		Filters: []query.Filter{query.PointerEquality{Property: "team", ClassName: "Team", ObjectID: team.ObjectID}},
	})
	require.NoError(t, err)
	assert.Len(t, rs.Records, 1)

	_, err = c.AddRelation(ctx, "Team", team.ObjectID, "members", "Player", player.ObjectID)
	require.NoError(t, err)
	assert.Equal(t, []api.Pointer{api.NewPointer("Player", player.ObjectID)}, srv.RelationMembers("Team", team.ObjectID, "members"))

	_, err = c.RemoveRelation(ctx, "Team", team.ObjectID, "members", "Player", player.ObjectID)
	require.NoError(t, err)
	assert.Empty(t, srv.RelationMembers("Team", team.ObjectID, "members"))
}

type GameScore struct {
	ObjectID   string `json:"objectId,omitempty"`
	Score      int    `json:"score"`
	PlayerName string `json:"playerName"`
}

func TestClass(t *testing.T) {
	c, _ := setupTestClient(t)
	ctx := context.Background()
	scores := NewClass[GameScore](c, "GameScore")

	var ids []string
	for i := range 3 {
		rsp, err := scores.Create(ctx, &GameScore{Score: i * 10, PlayerName: "sean"})
		require.NoError(t, err)
		ids = append(ids, rsp.ObjectID)
	}

	got, err := scores.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, GameScore{ObjectID: ids[1], Score: 10, PlayerName: "sean"}, *got)

	_, err = scores.Update(ctx, ids[1], map[string]any{"score": 11})
	require.NoError(t, err)

	found, total, err := scores.Find(ctx, query.Descriptor{
		Sorters: []query.Sorter{{Property: "score", Direction: "desc"}},
		Paging:  true,
	})
	require.NoError(t, err)
	require.NotNil(t, total)
	assert.Equal(t, int64(3), *total)
	assert.Equal(t, []int{20, 11, 0}, []int{found[0].Score, found[1].Score, found[2].Score})

	var all []int
	for gs, err := range scores.Each(ctx, query.Descriptor{}, 1) {
		require.NoError(t, err)
		all = append(all, gs.Score)
	}
	assert.Equal(t, []int{0, 11, 20}, all)

	require.NoError(t, scores.Delete(ctx, ids[0]))
	_, err = scores.Get(ctx, ids[0])
	assert.True(t, IsErrorObjectNotFound(err))
}

func TestBatch(t *testing.T) {
	c, _ := setupTestClient(t)
	ctx := context.Background()

	var reqs []api.BatchRequest
	for i := range 2*MaxBatchSize + 20 {
		reqs = append(reqs, c.CreateRequest("Item", map[string]any{"n": i}))
	}

	rs, err := c.Batch(ctx, reqs...)
	require.NoError(t, err)
	require.Len(t, rs, len(reqs))
	for _, r := range rs {
		assert.Nil(t, r.Error)
	}

	n, err := c.Count(ctx, "Item")
	require.NoError(t, err)
	assert.Equal(t, int64(len(reqs)), n)

	rs, err = c.Batch(ctx,
		c.DeleteRequest("Item", "missing"),
		c.UpdateRequest("Item", "missing", map[string]any{"n": 1}),
	)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	require.NotNil(t, rs[0].Error)
	assert.Equal(t, ErrCodeObjectNotFound, rs[0].Error.Code)

	_, err = c.Batch(ctx, api.BatchRequest{Path: "/1/classes/Item"})
	assert.Error(t, err)
}

func TestFiles(t *testing.T) {
	c, _ := setupTestClient(t)
	ctx := context.Background()

	fetch := func(url string) string {
		rsp, err := http.Get(url)
		require.NoError(t, err)
		defer rsp.Body.Close()
		body, err := io.ReadAll(rsp.Body)
		require.NoError(t, err)
		return string(body)
	}

	f, err := c.UploadFile(ctx, "hello.txt", "text/plain", strings.NewReader("Hello, World!"))
	require.NoError(t, err)
	assert.Equal(t, api.TypeFile, f.Type)
	assert.True(t, strings.HasSuffix(f.Name, "hello.txt"))
	assert.Equal(t, "Hello, World!", fetch(f.URL))

	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("not really a png"))
	f, err = c.UploadDataURI(ctx, dataURI, "pic.png", "")
	require.NoError(t, err)
	assert.Equal(t, "not really a png", fetch(f.URL))

	_, err = c.UploadDataURI(ctx, "garbage", "pic.png", "")
	assert.True(t, query.IsValidationError(err))

	_, err = c.UploadFile(ctx, "hello.txt", "", strings.NewReader("x"))
	assert.True(t, query.IsValidationError(err))

	// the file can be referenced from an object
	_, err = c.Create(ctx, "Profile", map[string]any{"picture": f})
	require.NoError(t, err)
}

func TestUsers(t *testing.T) {
	c, _ := setupTestClient(t)
	ctx := context.Background()

	user, err := c.SignUp(ctx, "cooldude6", "p_n7!-e8", map[string]any{"phone": "415-392-0202"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.SessionToken)
	assert.Equal(t, "cooldude6", user.Username)

	_, err = c.SignUp(ctx, "cooldude6", "other", nil)
	var e Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, ErrCodeUsernameTaken, e.Code)

	_, err = c.Login(ctx, "cooldude6", "wrong")
	assert.True(t, IsErrorObjectNotFound(err))

	user, err = c.Login(ctx, "cooldude6", "p_n7!-e8")
	require.NoError(t, err)
	require.NotEmpty(t, user.SessionToken)

	session := c.WithSession(user.SessionToken)
	assert.Empty(t, c.Config().SessionToken)

	me, err := session.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cooldude6", me.Username)
	assert.Equal(t, user.ObjectID, me.ObjectID)

	require.NoError(t, session.Logout(ctx))

	_, err = session.Me(ctx)
	assert.True(t, IsErrorInvalidSessionToken(err), "%v", err)

	_, err = c.Me(ctx)
	assert.True(t, query.IsValidationError(err))
}

func TestUnauthorized(t *testing.T) {
	srv, err := mock.New(mock.Options{ApplicationID: "app", APIKey: "key"})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c, err := New(config.Config{ApplicationID: "app", APIKey: "nope", ServerURL: ts.URL})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "GameScore", "id")
	assert.True(t, IsErrorUnauthorized(err), "%v", err)
	assert.False(t, IsErrorObjectNotFound(err))
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		status   int
		attempts int32
	}{
		{"get is retried on server errors", http.MethodGet, http.StatusServiceUnavailable, 3},
		{"post is not retried on server errors", http.MethodPost, http.StatusServiceUnavailable, 1},
		{"post is retried when rate limited", http.MethodPost, http.StatusTooManyRequests, 3},
		{"client errors are not retried", http.MethodGet, http.StatusBadRequest, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"code":1,"error":"try again"}`)
			}))
			defer ts.Close()

			c, err := New(config.Config{ApplicationID: "app", APIKey: "key", ServerURL: ts.URL},
				WithRetry(3, time.Millisecond))
			require.NoError(t, err)

			if tt.method == http.MethodGet {
				_, err = c.Get(context.Background(), "A", "b")
			} else {
				_, err = c.Create(context.Background(), "A", map[string]any{})
			}

			var e Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, "try again", e.Message)
			assert.Equal(t, tt.attempts, calls.Load())
		})
	}
}

func TestRetrySucceeds(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"objectId":"b","n":1}`)
	}))
	defer ts.Close()

	c, err := New(config.Config{ApplicationID: "app", APIKey: "key", ServerURL: ts.URL},
		WithRetry(5, time.Millisecond), WithRateLimit(1000, 10))
	require.NoError(t, err)

	obj, err := c.Get(context.Background(), "A", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", obj.ObjectID())
	assert.Equal(t, int32(3), calls.Load())
}

func TestParseErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c, err := New(config.Config{ApplicationID: "app", APIKey: "key", ServerURL: ts.URL})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "A", "b")
	assert.True(t, IsErrorObjectNotFound(err))
	assert.EqualError(t, err, "status 404: Not Found")
}
