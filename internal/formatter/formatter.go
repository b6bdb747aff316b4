// package formatter renders completion ledger reports as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/voxup/internal/models"
	"github.com/desertthunder/voxup/internal/shared"
)

// Format names an output format accepted by [Render].
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
)

// ParseFormat validates a user-supplied format name. An empty name selects plain text.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatText, nil
	case "text":
		return FormatText, nil
	case "markdown":
		return FormatMarkdown, nil
	case FormatJSON, FormatCSV, FormatText, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (use json, csv, txt or md)", shared.ErrInvalidFlag, name)
	}
}

// Report is a snapshot of one owner's completion ledger.
type Report struct {
	OwnerID     string              `json:"owner_id"`
	GeneratedAt time.Time           `json:"generated_at"`
	Total       int                 `json:"total"`
	Uploaded    int                 `json:"uploaded"`
	Remote      int                 `json:"remote"`
	Completions []models.Completion `json:"completions"`
}

// NewReport counts completions by source.
func NewReport(owner string, completions []models.Completion, now time.Time) *Report {
	r := &Report{OwnerID: owner, GeneratedAt: now, Total: len(completions), Completions: completions}
	if r.Completions == nil {
		r.Completions = []models.Completion{}
	}
	for _, c := range completions {
		switch c.Source {
		case models.SourceUpload:
			r.Uploaded++
		case models.SourceRemote:
			r.Remote++
		}
	}
	return r
}

// Render encodes report in format.
func Render(report *Report, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(report, true)
	case FormatCSV:
		return ExportToCSV(report)
	case FormatMarkdown:
		return ExportToMarkdown(report)
	case FormatText, "":
		return ExportToText(report)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// ExportToCSV writes one row per completion with columns: Key, Hash, Source, CompletedAt
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Key", "Hash", "Source", "CompletedAt"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range report.Completions {
		record := []string{c.Key, c.Hash, string(c.Source), c.CompletedAt.UTC().Format(time.RFC3339)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders the report as a heading, a summary and a table.
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Voice notes for %s\n\n", report.OwnerID)
	fmt.Fprintf(&buf, "**Generated**: %s\n\n", report.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "**Completed**: %d (%d uploaded, %d already on server)\n\n", report.Total, report.Uploaded, report.Remote)

	if len(report.Completions) == 0 {
		buf.WriteString("_Nothing uploaded yet._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| File | Source | Completed | Hash |\n")
	buf.WriteString("|---|---|---|---|\n")
	for _, c := range report.Completions {
		fmt.Fprintf(&buf, "| %s | %s | %s | `%s` |\n",
			escapePipes(c.Key), c.Source, c.CompletedAt.UTC().Format(time.RFC3339), shortHash(c.Hash))
	}
	return buf.Bytes(), nil
}

// ExportToText renders the report for a terminal.
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Owner: %s\n", report.OwnerID)
	fmt.Fprintf(&buf, "Completed: %d (%d uploaded, %d already on server)\n\n", report.Total, report.Uploaded, report.Remote)

	for i, c := range report.Completions {
		fmt.Fprintf(&buf, "%d. %s [%s] %s\n", i+1, c.Key, c.Source, c.CompletedAt.Local().Format(time.DateTime))
	}
	return buf.Bytes(), nil
}

// DefaultFilename returns voxup_<owner>_completions.<ext>.
func DefaultFilename(owner string, format Format) string {
	return fmt.Sprintf("voxup_%s_completions.%s", owner, format)
}

// WriteReport renders report to path, falling back to [DefaultFilename]. It returns the path written.
func WriteReport(report *Report, format Format, path string) (string, error) {
	if path == "" {
		path = DefaultFilename(report.OwnerID, format)
	}

	data, err := Render(report, format)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
