package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/voxup/internal/models"
	"github.com/desertthunder/voxup/internal/shared"
	th "github.com/desertthunder/voxup/internal/testing"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleReport() *Report {
	return NewReport("owner-1", []models.Completion{
		{
			OwnerID:     "owner-1",
			Key:         "/notes/2025-05-31 walk.opus",
			Hash:        "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
			Source:      models.SourceUpload,
			CompletedAt: fixedNow.Add(-time.Hour),
		},
		{
			OwnerID:     "owner-1",
			Key:         "/notes/a|b.m4a",
			Hash:        "abc",
			Source:      models.SourceRemote,
			CompletedAt: fixedNow.Add(-2 * time.Hour),
		},
	}, fixedNow)
}

func TestNewReport(t *testing.T) {
	r := sampleReport()
	if r.Total != 2 || r.Uploaded != 1 || r.Remote != 1 {
		t.Errorf("unexpected counts %+v", r)
	}

	empty := NewReport("owner-1", nil, fixedNow)
	if empty.Completions == nil || empty.Total != 0 {
		t.Errorf("expected empty non-nil completions, got %+v", empty)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"json", FormatJSON, false},
		{"CSV", FormatCSV, false},
		{" txt ", FormatText, false},
		{"text", FormatText, false},
		{"markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleReport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(rows))
		}
		if strings.Join(rows[0], ",") != "Key,Hash,Source,CompletedAt" {
			t.Errorf("unexpected headers %v", rows[0])
		}
		if rows[1][0] != "/notes/2025-05-31 walk.opus" || rows[1][2] != "upload" {
			t.Errorf("unexpected first row %v", rows[1])
		}
		if rows[2][3] != "2025-06-01T10:00:00Z" {
			t.Errorf("unexpected timestamp %q", rows[2][3])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleReport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# Voice notes for owner-1") {
			t.Errorf("missing heading, got: %s", output)
		}
		if !strings.Contains(output, "**Completed**: 2 (1 uploaded, 1 already on server)") {
			t.Errorf("missing summary, got: %s", output)
		}
		if !strings.Contains(output, "`9f86d081884c`") {
			t.Errorf("expected shortened hash, got: %s", output)
		}
		if !strings.Contains(output, `/notes/a\|b.m4a`) {
			t.Errorf("expected escaped pipe, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown empty", func(t *testing.T) {
		data, _ := ExportToMarkdown(NewReport("owner-1", nil, fixedNow))
		if !strings.Contains(string(data), "Nothing uploaded yet") {
			t.Errorf("expected empty notice, got: %s", data)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleReport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Owner: owner-1") {
			t.Errorf("missing owner, got: %s", output)
		}
		if !strings.Contains(output, "1. /notes/2025-05-31 walk.opus [upload]") {
			t.Errorf("missing first completion, got: %s", output)
		}
		if !strings.Contains(output, "2. /notes/a|b.m4a [remote]") {
			t.Errorf("missing second completion, got: %s", output)
		}
	})

	t.Run("Render JSON", func(t *testing.T) {
		data, err := Render(sampleReport(), FormatJSON)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}

		var got Report
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.OwnerID != "owner-1" || len(got.Completions) != 2 || got.Completions[1].Source != models.SourceRemote {
			t.Errorf("unexpected report %+v", got)
		}
	})

	t.Run("Render unknown format", func(t *testing.T) {
		if _, err := Render(sampleReport(), Format("xml")); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestWriteReport(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.csv")

		got, err := WriteReport(sampleReport(), FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "Key,Hash,Source,CompletedAt") {
			t.Errorf("unexpected content %s", content)
		}
	})

	t.Run("default filename", func(t *testing.T) {
		if got := DefaultFilename("owner-1", FormatJSON); got != "voxup_owner-1_completions.json" {
			t.Errorf("unexpected filename %s", got)
		}
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "report.txt")
		if _, err := WriteReport(sampleReport(), FormatText, path); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}
