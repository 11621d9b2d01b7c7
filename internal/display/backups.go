package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"results-backup/internal/backup"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents different output format options
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a user supplied format name.
func ParseOutputFormat(name string) (OutputFormat, error) {
	switch format := OutputFormat(strings.ToLower(strings.TrimSpace(name))); format {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON, FormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want table, json or yaml)", name)
	}
}

// Printer writes backup listings and status lines.
type Printer struct {
	out    io.Writer
	colors ColorSystem
	now    func() time.Time
}

// NewPrinter creates a printer for out.
func NewPrinter(out io.Writer, colors ColorSystem) *Printer {
	if colors == nil {
		colors = NewColorSystem(PlainTextTheme(), out)
	}
	return &Printer{out: out, colors: colors, now: time.Now}
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...interface{}) {
	p.status("✓", p.colors.GetTheme().Success, format, args...)
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...interface{}) {
	p.status("!", p.colors.GetTheme().Warning, format, args...)
}

// Info prints an informational line.
func (p *Printer) Info(format string, args ...interface{}) {
	p.status("i", p.colors.GetTheme().Info, format, args...)
}

func (p *Printer) status(icon string, clr Color, format string, args ...interface{}) {
	fmt.Fprintf(p.out, "%s %s\n", p.colors.Colorize(icon, clr), fmt.Sprintf(format, args...))
}

// Backups writes records in the requested format. Tables show sizes and
// ages in human form; JSON and YAML carry the raw values.
func (p *Printer) Backups(records []backup.BackupRecord, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return p.json(records)
	case FormatYAML:
		return p.yaml(records)
	}

	if len(records) == 0 {
		p.Info("No backups found")
		return nil
	}

	now := p.now()
	table := NewTableFormatter(p.colors)
	table.SetHeaders([]string{"NAME", "SIZE", "CREATED", "AGE"})
	table.SetColumnAlignment(1, AlignRight)
	for _, record := range records {
		table.AddRow([]string{
			record.Name,
			humanize.IBytes(uint64(record.Size)),
			record.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			humanize.RelTime(record.CreatedAt, now, "ago", "from now"),
		})
	}
	table.RenderTo(p.out)

	var total int64
	for _, record := range records {
		total += record.Size
	}
	fmt.Fprintf(p.out, "%s, %s\n", pluralize(len(records), "backup"), humanize.IBytes(uint64(total)))
	return nil
}

// Cleanup reports a retention pass. With dryRun the deleted list is what
// would have been removed.
func (p *Printer) Cleanup(result *backup.CleanupResult, dryRun bool) {
	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}

	if len(result.Deleted) == 0 && len(result.Failed) == 0 {
		p.Success("Nothing to clean up, %s retained", pluralize(len(result.Retained), "backup"))
		return
	}

	for _, record := range result.Deleted {
		fmt.Fprintf(p.out, "  %s %s\n", p.colors.Colorize("-", p.colors.GetTheme().Muted), record.Name)
	}
	for _, failed := range result.Failed {
		fmt.Fprintf(p.out, "  %s %s: %s\n", p.colors.Colorize("x", p.colors.GetTheme().Error), failed.Record.Name, failed.Error)
	}

	p.Success("%s %s, %s retained", verb, pluralize(len(result.Deleted), "backup"), pluralize(len(result.Retained), "backup"))
	if len(result.Failed) > 0 {
		p.Warning("%s could not be deleted", pluralize(len(result.Failed), "backup"))
	}
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v interface{}) error {
	return p.json(v)
}

func (p *Printer) json(v interface{}) error {
	encoder := json.NewEncoder(p.out)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

func (p *Printer) yaml(v interface{}) error {
	encoder := yaml.NewEncoder(p.out)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%s %ss", humanize.Comma(int64(n)), noun)
}
