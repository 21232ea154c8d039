package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/faultline/pkg/dataset"
)

const percent = 100

func renderYAML(w io.Writer, report dataset.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(report)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	return enc.Close()
}

func renderTable(w io.Writer, report dataset.Report, path string) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Releases (tracker)", humanize.Comma(int64(report.Releases))},
		{"Releases selected", humanize.Comma(int64(report.Selected))},
		{"Releases analysed", humanize.Comma(int64(report.Analysed))},
		{"Releases skipped", skipped(report.Skipped)},
		{"Rows", humanize.Comma(int64(report.Rows))},
		{"Buggy rows", fmt.Sprintf("%s (%s%%)", humanize.Comma(int64(report.BuggyRows)),
			humanize.FtoaWithDigits(ratio(report.BuggyRows, report.Rows)*percent, 1))},
		{"Parse failures", humanize.Comma(int64(report.ParseFailures))},
		{"History failures", humanize.Comma(int64(report.HistoryFailures))},
	})
	tbl.AppendSeparator()
	tbl.AppendRows([]table.Row{
		{"Defects", humanize.Comma(int64(report.Defects))},
		{"Linked to fix commit", humanize.Comma(int64(report.DefectsLinked))},
		{"Without fix commit", humanize.Comma(int64(report.DefectsUnlinked))},
		{"Mapped to methods", humanize.Comma(int64(report.DefectsMapped))},
		{"Introduction estimated", humanize.Comma(int64(report.DefectsEstimated))},
		{"Proportion coefficient", humanize.FtoaWithDigits(report.Coefficient, 3)},
	})

	heading := color.New(color.FgGreen, color.Bold)
	if report.Analysed == 0 {
		heading = color.New(color.FgYellow, color.Bold)
	}

	_, err := heading.Fprintf(w, "%s: %s rows written to %s\n", report.Project, humanize.Comma(int64(report.Rows)), path)
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	_, err = fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func skipped(names []string) string {
	if len(names) == 0 {
		return "0"
	}

	return fmt.Sprintf("%d (%s)", len(names), strings.Join(names, ", "))
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}

	return float64(part) / float64(whole)
}
