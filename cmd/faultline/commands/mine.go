package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/faultline/pkg/dataset"
	"github.com/Sumatoshi-tech/faultline/pkg/framework"
	"github.com/Sumatoshi-tech/faultline/pkg/observability"
)

// Summary formats.
const (
	SummaryTable = "table"
	SummaryYAML  = "yaml"
)

// ErrUnknownSummary is returned for an unsupported --summary value.
var ErrUnknownSummary = errors.New("unknown summary format")

// MineCommand holds the flags of the mine command.
type MineCommand struct {
	global  *GlobalOptions
	project projectFlags
	summary string
}

// NewMineCommand creates the mine command.
func NewMineCommand(global *GlobalOptions) *cobra.Command {
	mc := &MineCommand{global: global}

	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Build the method-level defect dataset of a project",
		Long: `Fetch releases and fixed defects from the tracker, clone or open the
repository, link defects to fix commits and write one row per method for the
leading share of releases.`,
		Args: cobra.NoArgs,
		RunE: mc.run,
	}

	mc.project.bind(cmd, true)
	cmd.Flags().StringVar(&mc.summary, "summary", SummaryTable, "run summary format: table, yaml")

	return cmd
}

func (mc *MineCommand) run(cmd *cobra.Command, _ []string) error {
	if mc.summary != SummaryTable && mc.summary != SummaryYAML {
		return fmt.Errorf("%w: %q", ErrUnknownSummary, mc.summary)
	}

	cfg, err := mc.global.loadConfig(cmd, mc.project)
	if err != nil {
		return err
	}

	providers, err := mc.global.initObservability(cmd, cfg)
	if err != nil {
		return err
	}
	defer shutdown(providers)

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	if cfg.Telemetry.MetricsAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(cfg.Telemetry.MetricsAddr, providers.Registry)
		if diagErr != nil {
			return diagErr
		}

		defer func() {
			closeErr := diag.Close()
			if closeErr != nil {
				providers.Logger.Warn("diagnostics server close failed", "error", closeErr)
			}
		}()

		providers.Logger.Info("diagnostics server listening", "addr", diag.Addr())
	}

	opts := append(mc.global.runnerOptions(providers), framework.WithObserver(metrics))

	report, err := framework.NewRunner(*cfg, opts...).Run(cmd.Context())
	if err != nil {
		return err
	}

	if mc.global.Quiet {
		return nil
	}

	return writeSummary(cmd.OutOrStdout(), mc.summary, report, cfg.Output.ResolvedPath(cfg.Project.Key))
}

func writeSummary(w io.Writer, format string, report dataset.Report, path string) error {
	if format == SummaryYAML {
		return renderYAML(w, report)
	}

	return renderTable(w, report, path)
}
