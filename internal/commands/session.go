// Package commands implements the hrmsctl subcommands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/akjtjhklf/fnb-hrms-client/apiclient"
	"github.com/akjtjhklf/fnb-hrms-client/config"
	"github.com/akjtjhklf/fnb-hrms-client/httpclient"
	"github.com/akjtjhklf/fnb-hrms-client/logger"
	"github.com/akjtjhklf/fnb-hrms-client/observability"
)

// Environment variables read when the credential flags are empty
const (
	EnvUsername = "HRMS_USERNAME"
	EnvPassword = "HRMS_PASSWORD"
)

// GlobalOptions holds the flags shared by every subcommand
type GlobalOptions struct {
	ConfigFile string
	Verbose    bool
	Telemetry  bool
	Username   string
	Password   string
}

// Register adds the persistent flags and the session subcommands to root
func Register(root *cobra.Command) *GlobalOptions {
	opts := &GlobalOptions{}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (default ./config.yaml)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Debug logging")
	flags.BoolVar(&opts.Telemetry, "telemetry", false, "Print traces and metrics to stderr")
	flags.StringVarP(&opts.Username, "username", "u", "", "Sign in as this user ($"+EnvUsername+")")
	flags.StringVarP(&opts.Password, "password", "p", "", "Password ($"+EnvPassword+")")

	root.AddCommand(
		NewLoginCommand(opts),
		NewLogoutCommand(opts),
		NewMeCommand(opts),
		NewRequestCommand(opts),
		NewFetchCommand(opts),
	)
	return opts
}

func (o *GlobalOptions) credentials() (username, password string) {
	username, password = o.Username, o.Password
	if username == "" {
		username = os.Getenv(EnvUsername)
	}
	if password == "" {
		password = os.Getenv(EnvPassword)
	}
	return username, password
}

// session is one configured API client plus the telemetry pipeline feeding it
type session struct {
	api      *apiclient.API
	provider observability.Provider
	log      logger.Logger
}

func openSession(cmd *cobra.Command, opts *GlobalOptions) (*session, error) {
	cfg, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	stderr := cmd.ErrOrStderr()
	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	var out io.Writer = stderr
	if cfg.Log.Pretty {
		out = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}
	log := logger.NewWithWriter(out, level, nil)

	provider, err := telemetry(cfg, opts, stderr)
	if err != nil {
		return nil, err
	}
	if opts.Telemetry {
		cfg.API.Tracing = true
	}

	api, err := apiclient.New(cmd.Context(), cfg, &apiclient.Options{
		Logger:        log,
		MeterProvider: provider.MeterProvider(),
		Redirector: httpclient.RedirectFunc(func(context.Context) {
			fmt.Fprintln(stderr, "Session ended. Sign in again with: hrmsctl login")
		}),
	})
	if err != nil {
		_ = observability.Shutdown(provider, observability.DefaultShutdownTimeout)
		return nil, err
	}
	return &session{api: api, provider: provider, log: log}, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load("")
}

// telemetry builds the provider from the "observability" section. The --telemetry flag
// forces both signals on and sends them to stderr.
func telemetry(cfg *config.Config, opts *GlobalOptions, stderr io.Writer) (observability.Provider, error) {
	var obsCfg observability.Config
	if cfg.Exists("observability") {
		if err := cfg.Unmarshal("observability", &obsCfg); err != nil {
			return nil, fmt.Errorf("observability config: %w", err)
		}
	}
	if obsCfg.Service.Name == "" {
		obsCfg.Service.Name = cfg.App.Name
	}
	if obsCfg.Environment == "" {
		obsCfg.Environment = cfg.App.Env
	}
	if opts.Telemetry {
		obsCfg.Enabled = true
		obsCfg.Trace.Enabled = true
		obsCfg.Metrics.Enabled = true
		obsCfg.Trace.Endpoint = observability.EndpointStdout
		obsCfg.Metrics.Endpoint = observability.EndpointStdout
		obsCfg.Writer = stderr
	}
	return observability.NewProvider(&obsCfg)
}

// signIn logs in when credentials were given. Without them the stored session is used.
func (s *session) signIn(ctx context.Context, opts *GlobalOptions) (*apiclient.Session, error) {
	username, password := opts.credentials()
	if username == "" {
		return nil, nil
	}
	if password == "" {
		return nil, fmt.Errorf("password is required for %s (use --password or $%s)", username, EnvPassword)
	}
	return s.api.Login(ctx, username, password)
}

func (s *session) close() {
	if err := s.api.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Closing token store failed")
	}
	if err := observability.Shutdown(s.provider, observability.DefaultShutdownTimeout); err != nil {
		s.log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// report prints a normalized failure as JSON to stderr and returns err unchanged
func report(cmd *cobra.Command, err error) error {
	if nerr, ok := httpclient.AsNormalizedError(err); ok {
		enc := json.NewEncoder(cmd.ErrOrStderr())
		enc.SetIndent("", "  ")
		_ = enc.Encode(nerr)
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printBody writes a response body, indenting it when it is JSON
func printBody(w io.Writer, body []byte) error {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		_, werr := fmt.Fprintln(w, string(body))
		return werr
	}
	return printJSON(w, decoded)
}
