package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aep/parsekit/query"
	"github.com/spf13/viper"
)

const (
	DefaultServerURL  = "https://api.parse.com"
	DefaultAPIVersion = 1
	EnvPrefix         = "PARSE"
)

// Config is everything needed to talk to one backend application. It is
// passed by value; there is no process wide connection state.
type Config struct {
	ApplicationID string `mapstructure:"application_id"`
	APIKey        string `mapstructure:"api_key"`
	SessionToken  string `mapstructure:"session_token"`
	APIVersion    int    `mapstructure:"api_version"`
	ServerURL     string `mapstructure:"server_url"`
}

func (c Config) withDefaults() Config {
	if c.APIVersion == 0 {
		c.APIVersion = DefaultAPIVersion
	}
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	c.ServerURL = strings.TrimSuffix(c.ServerURL, "/")
	return c
}

func (c Config) Validate() error {
	if _, err := query.RequiredHeaders(c.ApplicationID, c.APIKey, c.SessionToken); err != nil {
		return err
	}
	if c.APIVersion < 0 {
		return fmt.Errorf("api version must not be negative, got %d", c.APIVersion)
	}
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			return fmt.Errorf("invalid server url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid server url %q: scheme must be http or https", c.ServerURL)
		}
	}
	return nil
}

// Headers returns the headers required on every request.
func (c Config) Headers() (map[string]string, error) {
	return query.RequiredHeaders(c.ApplicationID, c.APIKey, c.SessionToken)
}

// BaseURL is the server url with the api version, e.g. https://api.parse.com/1
func (c Config) BaseURL() string {
	c = c.withDefaults()
	return fmt.Sprintf("%s/%d", c.ServerURL, c.APIVersion)
}

// VersionPath is the path prefix used inside batch requests, e.g. /1
func (c Config) VersionPath() string {
	c = c.withDefaults()
	return fmt.Sprintf("/%d", c.APIVersion)
}

func (c Config) WithSession(token string) Config {
	c.SessionToken = token
	return c
}

// Keys are the viper keys Load reads.
var Keys = []string{"application_id", "api_key", "session_token", "api_version", "server_url"}

// Bind makes every key of v settable through a PARSE_ prefixed
// environment variable, e.g. PARSE_APPLICATION_ID.
func Bind(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for _, key := range Keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetDefault("api_version", DefaultAPIVersion)
	v.SetDefault("server_url", DefaultServerURL)
	return nil
}

// Load reads and validates the config from v.
func Load(v *viper.Viper) (Config, error) {
	if err := Bind(v); err != nil {
		return Config{}, err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
