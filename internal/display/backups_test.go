package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"results-backup/internal/backup"

	"gopkg.in/yaml.v3"
)

var listNow = time.Date(2024, time.March, 9, 15, 0, 0, 0, time.UTC)

func testRecords() []backup.BackupRecord {
	return []backup.BackupRecord{
		{
			Name:      "results_backup_20240309_143000.json",
			Path:      "/backups/results_backup_20240309_143000.json",
			Size:      2048,
			CreatedAt: listNow.Add(-30 * time.Minute),
		},
		{
			Name:      "results_backup_20240309_142500.json",
			Path:      "/backups/results_backup_20240309_142500.json",
			Size:      100,
			CreatedAt: listNow.Add(-35 * time.Minute),
		},
	}
}

func newTestPrinter() (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, nil)
	p.now = func() time.Time { return listNow }
	return p, &buf
}

func TestParseOutputFormat(t *testing.T) {
	for input, want := range map[string]OutputFormat{"": FormatTable, "TABLE": FormatTable, "json": FormatJSON, " yaml ": FormatYAML} {
		got, err := ParseOutputFormat(input)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v; want %q", input, got, err, want)
		}
	}

	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Error("xml should be rejected")
	}
}

func TestPrinter_BackupsTable(t *testing.T) {
	p, buf := newTestPrinter()

	if err := p.Backups(testRecords(), FormatTable); err != nil {
		t.Fatalf("Backups returned error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"NAME", "SIZE", "AGE",
		"results_backup_20240309_143000.json",
		"2.0 KiB",
		"100 B",
		"30 minutes ago",
		"2 backups, 2.1 KiB",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("table output should contain %q:\n%s", want, output)
		}
	}
}

func TestPrinter_BackupsEmpty(t *testing.T) {
	p, buf := newTestPrinter()

	if err := p.Backups(nil, FormatTable); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No backups found") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	buf.Reset()
	if err := p.Backups([]backup.BackupRecord{}, FormatJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON listing should be [], got %q", buf.String())
	}
}

func TestPrinter_BackupsJSON(t *testing.T) {
	p, buf := newTestPrinter()

	if err := p.Backups(testRecords(), FormatJSON); err != nil {
		t.Fatal(err)
	}

	var decoded []backup.BackupRecord
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Name != "results_backup_20240309_143000.json" || decoded[0].Size != 2048 {
		t.Errorf("unexpected decoded records: %+v", decoded)
	}
}

func TestPrinter_BackupsYAML(t *testing.T) {
	p, buf := newTestPrinter()

	if err := p.Backups(testRecords(), FormatYAML); err != nil {
		t.Fatal(err)
	}

	var decoded []map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if len(decoded) != 2 || decoded[1]["path"] != "/backups/results_backup_20240309_142500.json" {
		t.Errorf("unexpected decoded records: %+v", decoded)
	}
}

func TestPrinter_Cleanup(t *testing.T) {
	records := testRecords()

	p, buf := newTestPrinter()
	p.Cleanup(&backup.CleanupResult{Retained: records[:1], Deleted: records[1:]}, false)
	if !strings.Contains(buf.String(), "Deleted 1 backup, 1 backup retained") {
		t.Errorf("unexpected output: %q", buf.String())
	}
	if !strings.Contains(buf.String(), records[1].Name) {
		t.Error("deleted backups should be listed")
	}

	buf.Reset()
	p.Cleanup(&backup.CleanupResult{Retained: records[:1], Deleted: records[1:]}, true)
	if !strings.Contains(buf.String(), "Would delete 1 backup") {
		t.Errorf("dry run should say what would happen: %q", buf.String())
	}

	buf.Reset()
	p.Cleanup(&backup.CleanupResult{
		Retained: records[:1],
		Failed:   []backup.CleanupError{{Record: records[1], Error: "permission denied"}},
	}, false)
	if !strings.Contains(buf.String(), "permission denied") || !strings.Contains(buf.String(), "1 backup could not be deleted") {
		t.Errorf("failures should be reported: %q", buf.String())
	}

	buf.Reset()
	p.Cleanup(&backup.CleanupResult{Retained: records}, false)
	if !strings.Contains(buf.String(), "Nothing to clean up, 2 backups retained") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
