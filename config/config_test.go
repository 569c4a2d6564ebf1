package config

import (
	"testing"

	"github.com/aep/parsekit/query"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PARSE_APPLICATION_ID", "app")
	t.Setenv("PARSE_API_KEY", "key")
	t.Setenv("PARSE_SERVER_URL", "http://localhost:1337/")

	c, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "app", c.ApplicationID)
	assert.Equal(t, "key", c.APIKey)
	assert.Equal(t, "", c.SessionToken)
	assert.Equal(t, 1, c.APIVersion)
	assert.Equal(t, "http://localhost:1337", c.ServerURL)
	assert.Equal(t, "http://localhost:1337/1", c.BaseURL())
}

func TestLoadExplicitValuesWin(t *testing.T) {
	t.Setenv("PARSE_API_KEY", "from-env")

	v := viper.New()
	v.Set("application_id", "app")
	v.Set("api_key", "explicit")
	v.Set("api_version", 2)

	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "explicit", c.APIKey)
	assert.Equal(t, "/2", c.VersionPath())
	assert.Equal(t, DefaultServerURL+"/2", c.BaseURL())
}

func TestLoadRequiresCredentials(t *testing.T) {
	v := viper.New()
	v.Set("application_id", "app")

	_, err := Load(v)
	assert.True(t, query.IsValidationError(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		config      Config
		shouldError bool
	}{
		{Config{ApplicationID: "a", APIKey: "k"}, false},
		{Config{ApplicationID: "a", APIKey: "k", ServerURL: "http://127.0.0.1:9000"}, false},
		{Config{ApplicationID: "a", APIKey: "k", ServerURL: "ftp://x"}, true},
		{Config{ApplicationID: "a", APIKey: "k", APIVersion: -1}, true},
		{Config{APIKey: "k"}, true},
	}

	for i, tt := range tests {
		err := tt.config.Validate()
		if tt.shouldError {
			assert.Error(t, err, "test %d", i)
		} else {
			assert.NoError(t, err, "test %d", i)
		}
	}
}

func TestValidateAPIVersion(t *testing.T) {
	// zero means unset and falls back to the default version
	c := Config{ApplicationID: "a", APIKey: "k"}
	require.NoError(t, c.Validate())
	assert.Equal(t, "/1", c.VersionPath())

	c.APIVersion = -1
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be negative")
}

func TestHeadersIncludeSession(t *testing.T) {
	c := Config{ApplicationID: "a", APIKey: "k"}

	h, err := c.Headers()
	require.NoError(t, err)
	assert.NotContains(t, h, query.HeaderSessionToken)

	h, err = c.WithSession("r:abc").Headers()
	require.NoError(t, err)
	assert.Equal(t, "r:abc", h[query.HeaderSessionToken])
	assert.Equal(t, "", c.SessionToken)
}
