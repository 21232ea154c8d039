package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/faultline/pkg/framework"
	"github.com/Sumatoshi-tech/faultline/pkg/release"
)

const missing = "-"

// NewReleasesCommand creates the releases command.
func NewReleasesCommand(global *GlobalOptions) *cobra.Command {
	var project projectFlags

	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List tracker releases with their indices and resolved tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.loadConfig(cmd, project)
			if err != nil {
				return err
			}

			providers, err := global.initObservability(cmd, cfg)
			if err != nil {
				return err
			}
			defer shutdown(providers)

			infos, err := framework.NewRunner(*cfg, global.runnerOptions(providers)...).Releases(cmd.Context())
			if err != nil {
				return err
			}

			return renderReleases(cmd, infos)
		},
	}

	project.bind(cmd, false)

	return cmd
}

func renderReleases(cmd *cobra.Command, infos []framework.ReleaseInfo) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"#", "Release", "Date", "Tag", "Commit", "Analysed"})

	selected, tagged := 0, 0
	untagged := color.New(color.FgYellow)

	for _, info := range infos {
		tag, commit := info.Tag, missing
		if tag == "" {
			tag = untagged.Sprint(missing)
		} else {
			tagged++
			commit = info.Commit.Short()
		}

		analysed := ""
		if info.Selected {
			analysed = "yes"
			selected++
		}

		tbl.AppendRow(table.Row{info.Index, info.Name, info.Date.Format(release.DateLayout), tag, commit, analysed})
	}

	tbl.AppendFooter(table.Row{"", fmt.Sprintf("%d releases", len(infos)), "", fmt.Sprintf("%d tagged", tagged), "",
		fmt.Sprintf("%d selected", selected)})

	_, err := fmt.Fprintln(cmd.OutOrStdout(), tbl.Render())
	if err != nil {
		return fmt.Errorf("write releases: %w", err)
	}

	return nil
}
