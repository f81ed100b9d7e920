package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
)

// AuthLogin runs the browser authorization flow and stores the resulting tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	return r.manager.Authenticate(ctx)
}

// authStatus is the `auth status --json` shape.
type authStatus struct {
	State        string     `json:"state"`
	AccessToken  bool       `json:"access_token"`
	RefreshToken bool       `json:"refresh_token"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	Backend      string     `json:"backend"`
}

// AuthStatus reports which tokens are held. Token values are never printed.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	st := r.manager.Status()
	out := authStatus{
		State:        st.State.String(),
		AccessToken:  st.HasAccessToken,
		RefreshToken: st.HasRefreshToken,
		Backend:      r.config.Secrets.Backend,
	}
	if !st.Expiry.IsZero() {
		out.Expiry = &st.Expiry
	}

	if cmd.Bool("json") {
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Spotify authorization")
	r.writePlain("State:          %s\n", out.State)
	r.writePlain("Access token:   %s\n", yesNo(out.AccessToken))
	r.writePlain("Refresh token:  %s\n", yesNo(out.RefreshToken))
	r.writePlain("Secrets:        %s\n", out.Backend)
	if out.Expiry != nil {
		r.writePlain("Expires:        %s\n", out.Expiry.Local().Format(time.RFC1123))
	}
	return nil
}

// AuthLogout clears both tokens from memory and the secret store.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	return r.manager.Logout(ctx)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
