package display

import (
	"bytes"
	"strings"
	"testing"
)

func TestColorSystem_NonTerminalIsPlain(t *testing.T) {
	t.Setenv("FORCE_COLOR", "")
	t.Setenv("NO_COLOR", "")

	cs := NewColorSystem(DefaultColorTheme(), &bytes.Buffer{})
	if cs.IsColorSupported() {
		t.Error("A buffer is not a terminal, colors should be off")
	}
	if got := cs.Colorize("text", ColorRed); got != "text" {
		t.Errorf("Colorize should return plain text, got %q", got)
	}
	if got := cs.Sprintf(ColorGreen, "%d backups", 3); got != "3 backups" {
		t.Errorf("Sprintf should format without color, got %q", got)
	}
}

func TestColorSystem_ForceColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "1")

	cs := NewColorSystem(DefaultColorTheme(), &bytes.Buffer{})
	if !cs.IsColorSupported() {
		t.Fatal("FORCE_COLOR should enable colors")
	}

	got := cs.Colorize("text", ColorRed)
	if !strings.Contains(got, "\x1b[") || !strings.Contains(got, "text") {
		t.Errorf("Colorize should wrap text in escape codes, got %q", got)
	}
	if got := cs.Colorize("text", ColorReset); got != "text" {
		t.Errorf("ColorReset should leave text alone, got %q", got)
	}
}

func TestColorSystem_NoColorWins(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "1")

	if NewColorSystem(DefaultColorTheme(), &bytes.Buffer{}).IsColorSupported() {
		t.Error("NO_COLOR should disable colors even when FORCE_COLOR is set")
	}
}

func TestGetThemeByName(t *testing.T) {
	tests := []struct {
		name string
		want ColorTheme
	}{
		{"dark", DarkColorTheme()},
		{"plain", PlainTextTheme()},
		{"none", PlainTextTheme()},
		{"", DefaultColorTheme()},
		{"unknown", DefaultColorTheme()},
	}

	for _, tt := range tests {
		if got := GetThemeByName(tt.name); got != tt.want {
			t.Errorf("GetThemeByName(%q) = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}
