package client

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aep/parsekit/api"
	"github.com/aep/parsekit/mock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRoot     *cobra.Command
	testRootOnce sync.Once
)

type cli struct {
	t *testing.T
	v *viper.Viper
}

func setupTestCLI(t *testing.T) *cli {
	srv, err := mock.New(mock.Options{ApplicationID: "app", APIKey: "key"})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	testRootOnce.Do(func() {
		testRoot = &cobra.Command{Use: "parsekit", SilenceUsage: true, SilenceErrors: true}
		RegisterCommands(testRoot, viper.New())
	})

	v := viper.New()
	v.Set("server_url", ts.URL)
	v.Set("application_id", "app")
	v.Set("api_key", "key")
	return &cli{t: t, v: v}
}

func (c *cli) run(args ...string) (string, error) {
	settings = c.v
	includes = nil

	var out bytes.Buffer
	testRoot.SetArgs(args)
	testRoot.SetOut(&out)
	testRoot.SetErr(io.Discard)
	err := testRoot.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) writeFile(content string) string {
	path := filepath.Join(c.t.TempDir(), "objects.yaml")
	require.NoError(c.t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCLIObjects(t *testing.T) {
	c := setupTestCLI(t)

	out, err := c.run("put", "-f", c.writeFile(`className: GameScore
playerName: Sean Plott
score: 1337
---
className: GameScore
playerName: Jane
score: 10
`))
	require.NoError(t, err)
	refs := strings.Fields(out)
	require.Len(t, refs, 2)
	assert.True(t, strings.HasPrefix(refs[0], "GameScore/"))

	out, err = c.run("get", refs[0])
	require.NoError(t, err)
	assert.Contains(t, out, "playerName: Sean Plott")
	assert.Contains(t, out, "score: 1337")

	out, err = c.run("query", `(order="-score") GameScore(playerName=?)`, "Jane")
	require.NoError(t, err)
	assert.Contains(t, out, "playerName: Jane")
	assert.NotContains(t, out, "Sean")

	out, err = c.run("query", `(order="score") GameScore`)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "---"))
	assert.Less(t, strings.Index(out, "Jane"), strings.Index(out, "Sean"))

	out, err = c.run("query", `(limit=? order="score") GameScore(score=?)`, "1", "1337")
	require.NoError(t, err)
	assert.Contains(t, out, "playerName: Sean Plott")
	assert.NotContains(t, out, "Jane")

	out, err = c.run("query", `(limit=? order="score") GameScore`, "1")
	require.NoError(t, err)
	assert.Contains(t, out, "playerName: Jane")
	assert.NotContains(t, out, "Sean")

	_, id, err := splitRef(refs[1])
	require.NoError(t, err)
	out, err = c.run("put", "-f", c.writeFile("className: GameScore\nobjectId: \""+id+"\"\nscore: 11\n"))
	require.NoError(t, err)
	assert.Equal(t, refs[1]+"\n", out)

	out, err = c.run("get", refs[1])
	require.NoError(t, err)
	assert.Contains(t, out, "score: 11")

	out, err = c.run("delete", refs[0], refs[1])
	require.NoError(t, err)
	assert.Equal(t, refs[0]+" deleted\n"+refs[1]+" deleted\n", out)

	_, err = c.run("get", refs[0])
	assert.True(t, IsErrorObjectNotFound(err))

	_, err = c.run("get", "nope")
	assert.Error(t, err)

	_, err = c.run("query", "GameScore(")
	assert.Error(t, err)
}

func TestCLIBatch(t *testing.T) {
	c := setupTestCLI(t)

	out, err := c.run("batch", "-f", c.writeFile(`method: post
path: /classes/Item
body:
  n: 1
---
method: DELETE
path: /1/classes/Item/missing
`))
	require.NoError(t, err)
	assert.Contains(t, out, "objectId")
	assert.Contains(t, out, "code: 101")
}

func TestCLIUsers(t *testing.T) {
	c := setupTestCLI(t)

	out, err := c.run("signup", "cooldude6", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = c.run("login", "cooldude6", "secret")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	c.v.Set("session_token", token)
	out, err = c.run("me")
	require.NoError(t, err)
	assert.Contains(t, out, "username: cooldude6")

	_, err = c.run("logout")
	require.NoError(t, err)

	_, err = c.run("me")
	assert.True(t, IsErrorInvalidSessionToken(err))
}

func TestCLIUpload(t *testing.T) {
	c := setupTestCLI(t)

	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("Hello, World!"), 0o600))

	out, err := c.run("upload", path)
	require.NoError(t, err)
	assert.Contains(t, out, "__type: File")
	assert.Contains(t, out, "hello.txt")
}

func TestParseDocuments(t *testing.T) {
	tests := []struct {
		input       string
		expected    []map[string]any
		shouldError bool
	}{
		{
			input:    "",
			expected: nil,
		},
		{
			input:    "a: 1\n---\n\n---\nb: x\n",
			expected: []map[string]any{{"a": float64(1)}, {"b": "x"}},
		},
		{
			input:    `{"className": "A", "tags": ["x"]}`,
			expected: []map[string]any{{"className": "A", "tags": []any{"x"}}},
		},
		{
			input:       "a: [",
			shouldError: true,
		},
	}

	for _, test := range tests {
		docs, err := parseDocuments([]byte(test.input))
		if test.shouldError {
			assert.Error(t, err, test.input)
			continue
		}
		require.NoError(t, err, test.input)
		assert.Equal(t, test.expected, docs, test.input)
	}
}

func TestSplitRef(t *testing.T) {
	tests := []struct {
		input       string
		class, id   string
		shouldError bool
	}{
		{input: "GameScore/abc", class: "GameScore", id: "abc"},
		{input: "GameScore", shouldError: true},
		{input: "/abc", shouldError: true},
		{input: "GameScore/", shouldError: true},
		{input: "a/b/c", shouldError: true},
	}

	for _, test := range tests {
		class, id, err := splitRef(test.input)
		if test.shouldError {
			assert.Error(t, err, test.input)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, test.class, class)
		assert.Equal(t, test.id, id)
	}
}

func TestBatchRequestsAddVersion(t *testing.T) {
	c, _ := setupTestClient(t)

	reqs, err := batchRequests(c, []map[string]any{
		{"method": "post", "path": "classes/A", "body": map[string]any{"a": 1}},
		{"method": "DELETE", "path": "/1/classes/A/b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []api.BatchRequest{
		{Method: "POST", Path: "/1/classes/A", Body: map[string]any{"a": 1}},
		{Method: "DELETE", Path: "/1/classes/A/b"},
	}, reqs)

	_, err = batchRequests(c, []map[string]any{{"path": "/classes/A"}})
	assert.Error(t, err)
}
