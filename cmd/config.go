package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the embedded template to the --config path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("Wrote %s. Set spotify.client_id (or export %s), then run `spotbar auth login`.\n", path, shared.ClientIDEnv)
}

// ConfigCheck validates the loaded configuration and reports what the auth flow will use.
func (r *Runner) ConfigCheck(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config
	r.writePlainHeader("spotbar configuration")
	r.writePlain("Config file:    %s\n", r.configPath)
	r.writePlain("Client ID:      %s\n", mask(cfg.Spotify.ClientID))
	r.writePlain("Redirect URI:   %s\n", cfg.Spotify.RedirectURI)
	r.writePlain("Scopes:         %s\n", strings.Join(cfg.Spotify.Scopes, " "))
	r.writePlain("Secrets:        %s (%s)\n", cfg.Secrets.Backend, cfg.Secrets.Service)
	r.writePlain("Refresh every:  %s\n", cfg.RefreshInterval())
	if cfg.Spotify.ClientSecret != "" {
		r.writePlain("Client secret:  set but unused by the PKCE flow\n")
	}

	if err := cfg.Validate(); err != nil {
		r.writePlainln("✗ %v", err)
		return err
	}
	return r.writePlainln("✓ configuration looks good")
}

// mask shows the first and last characters of an identifier.
func mask(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 8:
		return strings.Repeat("*", len(s))
	default:
		return fmt.Sprintf("%s…%s", s[:4], s[len(s)-4:])
	}
}
