package renderer

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gibbsbravo/DataDelta/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const htmlStyle = `
body { font-family: -apple-system, Helvetica, Arial, sans-serif; margin: 2em auto; max-width: 60em; color: #202020; }
h1 { border-bottom: 2px solid #2c3e50; padding-bottom: 0.3em; }
h2 { color: #2c3e50; margin-top: 1.6em; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #c0c0c0; padding: 0.4em 0.8em; text-align: left; }
th { background: #eef2f5; }
.verdict-equal { color: #1e7d32; font-weight: bold; }
.verdict-diff { color: #b71c1c; font-weight: bold; }
`

// HTMLRenderer renders a report as a standalone HTML document
type HTMLRenderer struct {
	Logger *logrus.Logger
}

// NewHTMLRenderer creates a new HTML renderer
func NewHTMLRenderer(logger *logrus.Logger) *HTMLRenderer {
	return &HTMLRenderer{
		Logger: logger,
	}
}

// Render writes the report as an HTML page. The report sections are
// composed as Markdown and converted, so the HTML output stays in step
// with the other formats.
func (hr *HTMLRenderer) Render(w io.Writer, report *models.Report) error {
	markdown := hr.buildMarkdown(report)

	converter := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := converter.Convert([]byte(markdown), &body); err != nil {
		hr.Logger.Errorf("Error converting report to HTML: %v", err)
		return err
	}

	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>%s</style>\n</head>\n<body>\n", report.Meta.Title, htmlStyle); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body>\n</html>\n")
	return err
}

// buildMarkdown composes the report sections as Markdown
func (hr *HTMLRenderer) buildMarkdown(report *models.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", report.Meta.Title)
	fmt.Fprintf(&sb, "- Generated: %s\n", report.Meta.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "- Comparing: %s (old) vs %s (new)\n", report.Meta.OldName, report.Meta.NewName)
	fmt.Fprintf(&sb, "- Identity key: %s\n", strings.Join(report.Meta.Key, ", "))
	if len(report.Meta.ColumnSubset) > 0 {
		fmt.Fprintf(&sb, "- Column subset: %s\n", strings.Join(report.Meta.ColumnSubset, ", "))
	}
	if report.Meta.AllEqual {
		sb.WriteString("\nThe tables are **identical**.\n")
	} else {
		sb.WriteString("\nDifferences were **found**.\n")
	}

	sb.WriteString("\n## Table summaries\n\n")
	sb.WriteString("| Version | Table | Records | Columns | Key unique |\n")
	sb.WriteString("| --- | --- | --- | --- | --- |\n")
	fmt.Fprintf(&sb, "| old | %s | %d | %d | %s |\n", mdEscape(report.OldSummary.Name),
		report.OldSummary.RecordCount, report.OldSummary.ColumnCount, yesNo(report.OldSummary.KeyIsUnique))
	fmt.Fprintf(&sb, "| new | %s | %d | %d | %s |\n", mdEscape(report.NewSummary.Name),
		report.NewSummary.RecordCount, report.NewSummary.ColumnCount, yesNo(report.NewSummary.KeyIsUnique))

	hr.writeColumnPopulation(&sb, "old", report.OldSummary)
	hr.writeColumnPopulation(&sb, "new", report.NewSummary)

	sb.WriteString("\n## Column changes\n\n")
	fmt.Fprintf(&sb, "- Columns added: %d\n", report.Summary.ColumnsAdded)
	fmt.Fprintf(&sb, "- Columns removed: %d\n", report.Summary.ColumnsRemoved)
	fmt.Fprintf(&sb, "- Type changes: %d\n", report.Summary.ColumnsTypeChanged)
	if len(report.Schema.AddedColumns) > 0 {
		fmt.Fprintf(&sb, "- Added: %s\n", mdEscape(strings.Join(report.Schema.AddedColumns, ", ")))
	}
	if len(report.Schema.RemovedColumns) > 0 {
		fmt.Fprintf(&sb, "- Removed: %s\n", mdEscape(strings.Join(report.Schema.RemovedColumns, ", ")))
	}
	if len(report.Schema.TypeChanges) > 0 {
		sb.WriteString("\n| Column | Old type | New type |\n| --- | --- | --- |\n")
		for _, change := range report.Schema.TypeChanges {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", mdEscape(change.Column), change.OldType, change.NewType)
		}
	}

	sb.WriteString("\n## Record changes\n\n")
	fmt.Fprintf(&sb, "- Records added: %d\n", report.Summary.RecordsAdded)
	fmt.Fprintf(&sb, "- Records removed: %d\n", report.Summary.RecordsRemoved)
	fmt.Fprintf(&sb, "- Records changed: %d\n", report.Summary.RecordsChanged)
	fmt.Fprintf(&sb, "- Records unchanged: %d\n", report.Summary.RecordsUnchanged)
	if len(report.AddedKeys) > 0 {
		fmt.Fprintf(&sb, "- Added keys: %s\n", mdEscape(strings.Join(report.AddedKeys, ", ")))
	}
	if len(report.RemovedKeys) > 0 {
		fmt.Fprintf(&sb, "- Removed keys: %s\n", mdEscape(strings.Join(report.RemovedKeys, ", ")))
	}

	if report.ChangedRecords != nil && report.ChangedRecords.NumRows() > 0 {
		sb.WriteString("\n## Changed values\n\n")
		sb.WriteString("| Key | Column | Old value | New value |\n| --- | --- | --- | --- |\n")
		for _, row := range report.ChangedRecords.Rows {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
				mdEscape(row["key"].String()), mdEscape(row["column"].String()),
				mdEscape(row["old_value"].String()), mdEscape(row["new_value"].String()))
		}
	}

	if len(report.ColumnStats) > 0 {
		sb.WriteString("\n## Changes by column\n\n")
		sb.WriteString("| Column | Records changed | % of matched |\n| --- | --- | --- |\n")
		for _, stat := range report.ColumnStats {
			fmt.Fprintf(&sb, "| %s | %d | %.1f%% |\n", mdEscape(stat.Column), stat.Changed, stat.Proportion*100)
		}
	}

	if len(report.Warnings) > 0 {
		sb.WriteString("\n## Data quality warnings\n\n")
		for _, warning := range report.Warnings {
			fmt.Fprintf(&sb, "- %s\n", mdEscape(warning.Message))
		}
	}

	return sb.String()
}

// writeColumnPopulation appends the per-column population table for one side
func (hr *HTMLRenderer) writeColumnPopulation(sb *strings.Builder, side string, summary models.TableSummary) {
	if len(summary.Columns) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n### Column population (%s)\n\n", side)
	sb.WriteString("| Column | Type | Non-null | Proportion |\n| --- | --- | --- | --- |\n")
	for _, col := range summary.Columns {
		fmt.Fprintf(sb, "| %s | %s | %d | %.2f |\n", mdEscape(col.Name), col.Type, col.NonNull, col.Proportion)
	}
}

// mdEscape keeps cell text from breaking Markdown table syntax
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
