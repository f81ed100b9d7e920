// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func ephemeralFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "ephemeral",
		Usage: "Keep tokens in memory for this run only",
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	}
}

// authCommand handles the Spotify authorization lifecycle
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize spotbar in the browser (OAuth PKCE)",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show whether tokens are stored",
				Flags:  outputFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget stored tokens",
				Action: r.AuthLogout,
			},
		},
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "play",
		Usage:  "Resume playback on the active device",
		Action: r.Play,
	}
}

func pauseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "pause",
		Usage:  "Pause playback on the active device",
		Action: r.Pause,
	}
}

func toggleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "toggle",
		Usage:  "Pause when playing, play when paused",
		Action: r.Toggle,
	}
}

func nextCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "next",
		Aliases: []string{"skip"},
		Usage:   "Skip to the next track",
		Action:  r.Next,
	}
}

func previousCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "previous",
		Aliases: []string{"prev"},
		Usage:   "Go back to the previous track",
		Action:  r.Previous,
	}
}

func nowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "now",
		Usage:  "Show the current track",
		Action: r.Now,
	}
}

// statusCommand prints one status line, suitable for status bar modules
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Print the current playback status",
		Flags:  outputFlags(),
		Action: r.Status,
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration helpers",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write a config file from the built-in template",
				Action: r.ConfigInit,
			},
			{
				Name:   "check",
				Usage:  "Validate the configuration",
				Action: r.ConfigCheck,
			},
		},
	}
}

// barCommand runs the live status display
func barCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "bar",
		Usage:  "Live now-playing display with playback keys",
		Action: r.Bar,
	}
}
