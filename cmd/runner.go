package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotbar/internal/auth"
	"github.com/desertthunder/spotbar/internal/formatter"
	"github.com/desertthunder/spotbar/internal/server"
	"github.com/desertthunder/spotbar/internal/services"
	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/desertthunder/spotbar/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner is the application context: every command action reads its collaborators from here.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	errOutput  io.Writer
	httpClient *http.Client
	notifier   shared.Notifier

	authURL  string
	tokenURL string

	store    auth.SecretStore
	receiver auth.CodeReceiver
	manager  *auth.Manager
	executor *services.Executor
	player   *services.Player
	poller   *tasks.Poller

	customStore    bool
	customReceiver bool
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store and Receiver are built from Config when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	ErrOutput  io.Writer
	HTTPClient *http.Client
	Notifier   shared.Notifier
	Store      auth.SecretStore
	Receiver   auth.CodeReceiver
	AuthURL    string
	TokenURL   string
}

// NewRunner creates a new Runner and wires the playback stack from its config.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrOutput == nil {
		opts.ErrOutput = os.Stderr
	}

	r := &Runner{
		config:         opts.Config,
		configPath:     opts.ConfigPath,
		logger:         opts.Logger,
		output:         opts.Output,
		errOutput:      opts.ErrOutput,
		httpClient:     opts.HTTPClient,
		notifier:       opts.Notifier,
		authURL:        opts.AuthURL,
		tokenURL:       opts.TokenURL,
		store:          opts.Store,
		receiver:       opts.Receiver,
		customStore:    opts.Store != nil,
		customReceiver: opts.Receiver != nil,
	}
	if r.notifier == nil {
		r.notifier = newCLINotifier(r.output, r.errOutput)
	}
	r.wire()
	return r
}

// wire rebuilds the credential manager, executor, facade and poller from the current config, logger and notifier.
func (r *Runner) wire() {
	cfg := r.config
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(cfg.Log.Level))

	if !r.customStore {
		store, err := auth.NewSecretStore(cfg.Secrets)
		if err != nil {
			r.logger.Warn("falling back to in-memory token storage", "error", err)
			store = auth.NewMemoryStore()
		}
		r.store = store
	}

	if !r.customReceiver {
		addr, err := cfg.Spotify.CallbackAddr()
		if err != nil {
			r.logger.Debug("callback address unavailable", "error", err)
		}
		r.receiver = server.NewCallbackListener(server.ListenerOpts{
			Addr:      addr,
			Path:      cfg.Spotify.CallbackPath(),
			Timeout:   cfg.AuthTimeout(),
			OnAuthURL: r.printAuthURL,
			Logger:    r.logger,
		})
	}

	r.manager = auth.NewManager(auth.ManagerOpts{
		ClientID:    cfg.Spotify.ClientID,
		RedirectURI: cfg.Spotify.RedirectURI,
		Scopes:      cfg.Spotify.Scopes,
		AuthURL:     r.authURL,
		TokenURL:    r.tokenURL,
		Store:       r.store,
		Receiver:    r.receiver,
		Notifier:    r.notifier,
		HTTPClient:  r.httpClient,
		Logger:      r.logger,
	})

	r.executor = services.NewExecutor(services.ExecutorOpts{
		BaseURL:    cfg.Spotify.APIURL,
		Tokens:     r.manager,
		HTTPClient: r.httpClient,
		Timeout:    cfg.RequestTimeout(),
		Logger:     r.logger,
	})

	r.player = services.NewPlayer(services.PlayerOpts{
		Requester:         r.executor,
		Notifier:          r.notifier,
		Logger:            r.logger,
		CommandsPerSecond: cfg.Player.CommandsPerSecond,
	})

	r.poller = tasks.NewPoller(tasks.PollerOpts{
		Source:   r.player,
		Interval: cfg.RefreshInterval(),
		Logger:   r.logger,
	})
	r.player.OnChange(r.poller.TriggerNow)
}

// SetLogger replaces the logger and rewires every component onto it.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.wire()
}

// SetNotifier replaces the notifier and rewires every component onto it.
func (r *Runner) SetNotifier(n shared.Notifier) {
	r.notifier = n
	r.wire()
}

// Configure is the root Before hook. It loads --config when the file exists, rewires, then restores stored tokens.
func (r *Runner) Configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path != "" {
		r.configPath = path
	}

	if r.configPath != "" {
		if _, err := os.Stat(r.configPath); err == nil {
			config, err := shared.LoadConfig(r.configPath)
			if err != nil {
				return ctx, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		}
	}
	if cmd.Bool("ephemeral") {
		r.config.Secrets.Backend = "memory"
	}
	r.wire()

	r.restore(ctx)
	return ctx, nil
}

// restore loads persisted tokens without any network traffic.
func (r *Runner) restore(ctx context.Context) {
	found, err := r.manager.TryAutoAuthenticate(ctx)
	if err != nil {
		r.logger.Warn("could not read stored credentials", "error", err)
		return
	}
	r.logger.Debug("startup credential check", "found", found)
}

// printAuthURL goes through the notifier so the status display can show it too.
func (r *Runner) printAuthURL(url string) {
	r.notifier.Info("Open this URL in your browser to authorize spotbar: " + url)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		authCommand, playCommand, pauseCommand, toggleCommand, nextCommand, previousCommand,
		nowCommand, statusCommand, configCommand, barCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := formatter.ToJSON(data, pretty)
	if err != nil {
		return err
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
