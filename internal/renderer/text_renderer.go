package renderer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
)

// maxListedKeys caps how many added or removed keys are printed in full
const maxListedKeys = 20

// TextRenderer renders a report for the terminal
type TextRenderer struct {
	UseColor bool
	Logger   *logrus.Logger
}

// NewTextRenderer creates a new text renderer
func NewTextRenderer(useColor bool, logger *logrus.Logger) *TextRenderer {
	return &TextRenderer{
		UseColor: useColor,
		Logger:   logger,
	}
}

// Render writes the report as formatted terminal output
func (tr *TextRenderer) Render(w io.Writer, report *models.Report) error {
	red, green, yellow := tr.painters()

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, strings.ToUpper(report.Meta.Title))
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Generated: %s\n", report.Meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Comparing: %s (old) vs %s (new)\n", report.Meta.OldName, report.Meta.NewName)
	fmt.Fprintf(w, "Identity key: %s\n", strings.Join(report.Meta.Key, ", "))
	if len(report.Meta.ColumnSubset) > 0 {
		fmt.Fprintf(w, "Column subset: %s\n", strings.Join(report.Meta.ColumnSubset, ", "))
	}

	if report.Meta.AllEqual {
		fmt.Fprintln(w, "\n✅ The tables are identical")
	} else {
		fmt.Fprintln(w, "\n❌ Differences found")
	}

	tr.renderTableSummaries(w, report)
	tr.renderSchemaChanges(w, report, red, green, yellow)
	tr.renderRecordChanges(w, report, red, green, yellow)
	tr.renderChangedValues(w, report, red, green)
	tr.renderWarnings(w, report, yellow)

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	return nil
}

// painters returns the color functions, or identity functions when color is off
func (tr *TextRenderer) painters() (func(a ...interface{}) string, func(a ...interface{}) string, func(a ...interface{}) string) {
	if !tr.UseColor {
		plain := fmt.Sprint
		return plain, plain, plain
	}
	red := color.New(color.FgHiRed).SprintFunc()
	green := color.New(color.FgHiGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	return red, green, yellow
}

// renderTableSummaries prints the shape of both table versions
func (tr *TextRenderer) renderTableSummaries(w io.Writer, report *models.Report) {
	fmt.Fprintln(w, "\nTABLE SUMMARY")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Version", "Table", "Records", "Columns", "Key Unique"})
	table.SetAutoWrapText(false)
	table.Append([]string{"old", report.OldSummary.Name, strconv.Itoa(report.OldSummary.RecordCount),
		strconv.Itoa(report.OldSummary.ColumnCount), yesNo(report.OldSummary.KeyIsUnique)})
	table.Append([]string{"new", report.NewSummary.Name, strconv.Itoa(report.NewSummary.RecordCount),
		strconv.Itoa(report.NewSummary.ColumnCount), yesNo(report.NewSummary.KeyIsUnique)})
	table.Render()
}

// renderSchemaChanges prints the column-level changes
func (tr *TextRenderer) renderSchemaChanges(w io.Writer, report *models.Report, red, green, yellow func(a ...interface{}) string) {
	fmt.Fprintln(w, "\nCOLUMN CHANGES")
	fmt.Fprintf(w, "Columns added:   %s\n", green(report.Summary.ColumnsAdded))
	fmt.Fprintf(w, "Columns removed: %s\n", red(report.Summary.ColumnsRemoved))
	fmt.Fprintf(w, "Type changes:    %s\n", yellow(report.Summary.ColumnsTypeChanged))

	if len(report.Schema.AddedColumns) > 0 {
		fmt.Fprintf(w, "Added:   %s\n", strings.Join(report.Schema.AddedColumns, ", "))
	}
	if len(report.Schema.RemovedColumns) > 0 {
		fmt.Fprintf(w, "Removed: %s\n", strings.Join(report.Schema.RemovedColumns, ", "))
	}

	if len(report.Schema.TypeChanges) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Column", "Old Type", "New Type"})
		table.SetAutoWrapText(false)
		for _, change := range report.Schema.TypeChanges {
			table.Append([]string{change.Column, change.OldType.String(), change.NewType.String()})
		}
		table.Render()
	}
}

// renderRecordChanges prints the record population changes
func (tr *TextRenderer) renderRecordChanges(w io.Writer, report *models.Report, red, green, yellow func(a ...interface{}) string) {
	fmt.Fprintln(w, "\nRECORD CHANGES")
	fmt.Fprintf(w, "Records added:     %s\n", green(report.Summary.RecordsAdded))
	fmt.Fprintf(w, "Records removed:   %s\n", red(report.Summary.RecordsRemoved))
	fmt.Fprintf(w, "Records changed:   %s\n", yellow(report.Summary.RecordsChanged))
	fmt.Fprintf(w, "Records unchanged: %d\n", report.Summary.RecordsUnchanged)

	if len(report.AddedKeys) > 0 {
		fmt.Fprintf(w, "Added keys:   %s\n", formatKeyList(report.AddedKeys))
	}
	if len(report.RemovedKeys) > 0 {
		fmt.Fprintf(w, "Removed keys: %s\n", formatKeyList(report.RemovedKeys))
	}
}

// renderChangedValues prints the denormalized changed records table
func (tr *TextRenderer) renderChangedValues(w io.Writer, report *models.Report, red, green func(a ...interface{}) string) {
	if report.ChangedRecords == nil || report.ChangedRecords.NumRows() == 0 {
		return
	}

	fmt.Fprintln(w, "\nCHANGED VALUES")
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Column", "Old Value", "New Value"})
	table.SetAutoWrapText(false)
	for _, row := range report.ChangedRecords.Rows {
		table.Append([]string{
			row["key"].String(),
			row["column"].String(),
			red(row["old_value"].String()),
			green(row["new_value"].String()),
		})
	}
	table.Render()

	if len(report.ColumnStats) > 0 {
		fmt.Fprintln(w, "\nCHANGES BY COLUMN")
		stats := tablewriter.NewWriter(w)
		stats.SetHeader([]string{"Column", "Records Changed", "% of Matched"})
		stats.SetAutoWrapText(false)
		for _, stat := range report.ColumnStats {
			stats.Append([]string{stat.Column, strconv.Itoa(stat.Changed),
				fmt.Sprintf("%.1f%%", stat.Proportion*100)})
		}
		stats.Render()
	}
}

// renderWarnings prints the data quality warnings
func (tr *TextRenderer) renderWarnings(w io.Writer, report *models.Report, yellow func(a ...interface{}) string) {
	if len(report.Warnings) == 0 {
		return
	}

	fmt.Fprintf(w, "\n⚠️  %s\n", yellow(fmt.Sprintf("%d data quality warning(s)", len(report.Warnings))))
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  - %s\n", warning.Message)
	}
}

// formatKeyList joins keys for display, truncating very long lists
func formatKeyList(keys []string) string {
	if len(keys) <= maxListedKeys {
		return strings.Join(keys, ", ")
	}
	shown := strings.Join(keys[:maxListedKeys], ", ")
	return fmt.Sprintf("%s ... and %d more", shown, len(keys)-maxListedKeys)
}

// yesNo formats a boolean for display
func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
