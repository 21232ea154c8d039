// Package commands implements the faultline CLI commands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/faultline/pkg/config"
	"github.com/Sumatoshi-tech/faultline/pkg/framework"
	"github.com/Sumatoshi-tech/faultline/pkg/observability"
	"github.com/Sumatoshi-tech/faultline/pkg/version"
)

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	EnvFile    string
	Verbose    bool
	Quiet      bool
	NoColor    bool

	// opener replaces framework.OpenGit in tests.
	opener framework.RepositoryOpener
}

// Bind registers the persistent flags on the root command.
func (o *GlobalOptions) Bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.ConfigPath, "config", "", "config file (default .faultline.yaml in . or $HOME)")
	flags.StringVar(&o.EnvFile, "env-file", "", "dotenv file with tracker credentials (default .env)")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&o.Quiet, "quiet", "q", false, "suppress output")
	flags.BoolVar(&o.NoColor, "no-color", false, "disable colored output")
}

// projectFlags are the per-command overrides of the project section.
type projectFlags struct {
	project string
	repo    string
	out     string
	format  string
}

func (p *projectFlags) bind(cmd *cobra.Command, withOutput bool) {
	cmd.Flags().StringVar(&p.project, "project", "", "tracker project key, e.g. BOOKKEEPER")
	cmd.Flags().StringVar(&p.repo, "repo", "", "repository URL to clone")

	if withOutput {
		cmd.Flags().StringVar(&p.out, "out", "", "output path (default <KEY>.csv or <KEY>.db)")
		cmd.Flags().StringVar(&p.format, "format", "", "output format: csv, sqlite")
	}
}

// loadConfig reads .env, the config file and the environment, applies the
// flags that were set and validates the result.
func (o *GlobalOptions) loadConfig(cmd *cobra.Command, p projectFlags) (*config.Config, error) {
	envFiles := []string{}
	if o.EnvFile != "" {
		envFiles = append(envFiles, o.EnvFile)
	}

	err := config.LoadDotEnv(envFiles...)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("project") {
		cfg.Project.Key = p.project
	}

	if flags.Changed("repo") {
		cfg.Project.RepositoryURL = p.repo
	}

	if flags.Changed("out") {
		cfg.Output.Path = p.out
	}

	if flags.Changed("format") {
		cfg.Output.Format = p.format
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initObservability builds the logger, tracer and meter for one command run.
func (o *GlobalOptions) initObservability(cmd *cobra.Command, cfg *config.Config) (observability.Providers, error) {
	if o.NoColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.Prometheus = cfg.Telemetry.MetricsAddr != ""
	obsCfg.LogJSON = cfg.Log.JSON
	obsCfg.LogOutput = cmd.ErrOrStderr()

	level, err := observability.ParseLevel(cfg.Log.Level)
	if err != nil {
		return observability.Providers{}, err
	}

	switch {
	case o.Verbose:
		level = slog.LevelDebug
	case o.Quiet:
		level = slog.LevelError
	}

	obsCfg.LogLevel = level

	return observability.Init(obsCfg)
}

func (o *GlobalOptions) runnerOptions(providers observability.Providers) []framework.Option {
	opts := []framework.Option{
		framework.WithLogger(providers.Logger),
		framework.WithTracer(providers.Tracer),
	}

	if o.opener != nil {
		opts = append(opts, framework.WithRepositoryOpener(o.opener))
	}

	return opts
}

func shutdown(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
