package shared

import (
	_ "embed"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// ClientIDEnv overrides [SpotifyConfig.ClientID] when set.
const ClientIDEnv = "SPOTIFY_CLIENT_ID"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Auth    AuthConfig    `toml:"auth"`
	Secrets SecretsConfig `toml:"secrets"`
	Player  PlayerConfig  `toml:"player"`
	Log     LogConfig     `toml:"log"`
}

// SpotifyConfig contains the registered app's identifiers.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
	APIURL       string   `toml:"api_url"`
}

// AuthConfig contains settings for the browser authorization flow.
type AuthConfig struct {
	Timeout int `toml:"timeout"` // seconds
}

// SecretsConfig selects where tokens are persisted.
type SecretsConfig struct {
	Backend string `toml:"backend"` // keyring or memory
	Service string `toml:"service"`
}

// PlayerConfig contains playback and polling settings.
type PlayerConfig struct {
	RefreshInterval   int     `toml:"refresh_interval"` // milliseconds
	RequestTimeout    int     `toml:"request_timeout"`  // seconds
	CommandsPerSecond float64 `toml:"commands_per_second"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.applyEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() {
	if id := strings.TrimSpace(os.Getenv(ClientIDEnv)); id != "" {
		c.Spotify.ClientID = id
	}
}

// Validate reports settings the authorization flow cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Spotify.ClientID) == "" {
		return fmt.Errorf("%w: spotify.client_id is not set (or export %s)", ErrConfiguration, ClientIDEnv)
	}
	if _, err := c.Spotify.CallbackAddr(); err != nil {
		return err
	}
	switch c.Secrets.Backend {
	case "", "keyring", "memory": // empty means keyring
	default:
		return fmt.Errorf("%w: unknown secrets.backend %q", ErrConfiguration, c.Secrets.Backend)
	}
	return nil
}

// CallbackAddr returns the host:port the loopback listener binds, derived from the redirect URI.
func (s SpotifyConfig) CallbackAddr() (string, error) {
	u, err := url.Parse(s.RedirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: invalid redirect_uri: %v", ErrConfiguration, err)
	}
	if u.Scheme != "http" || u.Port() == "" {
		return "", fmt.Errorf("%w: redirect_uri must be http://<loopback>:<port>/<path>", ErrConfiguration)
	}
	host := u.Hostname()
	if host == "localhost" {
		host = "127.0.0.1"
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return "", fmt.Errorf("%w: redirect_uri host %q is not a loopback address", ErrConfiguration, host)
	}
	return net.JoinHostPort(host, u.Port()), nil
}

// CallbackPath returns the path component of the redirect URI.
func (s SpotifyConfig) CallbackPath() string {
	u, err := url.Parse(s.RedirectURI)
	if err != nil || u.Path == "" {
		return "/callback"
	}
	return u.Path
}

// AuthTimeout returns how long to wait for the browser redirect.
func (c *Config) AuthTimeout() time.Duration {
	if c.Auth.Timeout <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Auth.Timeout) * time.Second
}

// RefreshInterval returns the status poll interval.
func (c *Config) RefreshInterval() time.Duration {
	if c.Player.RefreshInterval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Player.RefreshInterval) * time.Millisecond
}

// RequestTimeout returns the per-request timeout for API calls.
func (c *Config) RequestTimeout() time.Duration {
	if c.Player.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Player.RequestTimeout) * time.Second
}
