package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// TableFormatter renders rows of text as an aligned table
type TableFormatter interface {
	SetHeaders(headers []string)
	AddRow(row []string)
	SetColumnAlignment(column int, alignment Alignment)
	SetStyle(style TableStyle)
	Render() string
	RenderTo(writer io.Writer)
}

// Alignment represents column alignment options
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// TableStyle defines the visual style of a table
type TableStyle struct {
	Name    string
	Border  BorderStyle
	Padding int
	// MaxWidth caps the rendered width. 0 uses the terminal width, -1
	// disables the cap.
	MaxWidth int
}

// BorderStyle defines table border characters. An empty Horizontal drops
// every border line.
type BorderStyle struct {
	Corner     string
	Horizontal string
	Vertical   string
}

var (
	// DefaultTableStyle is a simple ASCII table style
	DefaultTableStyle = TableStyle{
		Name:    "default",
		Border:  BorderStyle{Corner: "+", Horizontal: "-", Vertical: "|"},
		Padding: 1,
	}

	// CompactTableStyle is minimal with no borders
	CompactTableStyle = TableStyle{
		Name:    "compact",
		Padding: 1,
	}
)

type tableFormatter struct {
	headers       []string
	rows          [][]string
	alignments    map[int]Alignment
	style         TableStyle
	colorSystem   ColorSystem
	terminalWidth int
}

// NewTableFormatter creates a new table formatter. Headers are drawn in the
// theme's primary color.
func NewTableFormatter(colorSystem ColorSystem) TableFormatter {
	return &tableFormatter{
		alignments:    make(map[int]Alignment),
		style:         DefaultTableStyle,
		colorSystem:   colorSystem,
		terminalWidth: getTerminalWidth(),
	}
}

func (tf *tableFormatter) SetHeaders(headers []string) {
	tf.headers = headers
}

func (tf *tableFormatter) AddRow(row []string) {
	tf.rows = append(tf.rows, row)
}

func (tf *tableFormatter) SetColumnAlignment(column int, alignment Alignment) {
	tf.alignments[column] = alignment
}

func (tf *tableFormatter) SetStyle(style TableStyle) {
	tf.style = style
}

// Render returns the formatted table as a string
func (tf *tableFormatter) Render() string {
	if len(tf.headers) == 0 && len(tf.rows) == 0 {
		return ""
	}

	widths := tf.fitWidths(tf.columnWidths())
	border := tf.style.Border.Horizontal != ""

	var result strings.Builder
	if border {
		result.WriteString(tf.renderBorder(widths))
	}
	if len(tf.headers) > 0 {
		result.WriteString(tf.renderRow(tf.headers, widths, true))
		if border {
			result.WriteString(tf.renderBorder(widths))
		}
	}
	for _, row := range tf.rows {
		result.WriteString(tf.renderRow(row, widths, false))
	}
	if border {
		result.WriteString(tf.renderBorder(widths))
	}

	return result.String()
}

// RenderTo renders the table to the specified writer
func (tf *tableFormatter) RenderTo(writer io.Writer) {
	fmt.Fprint(writer, tf.Render())
}

// columnWidths returns the content width of every column, padding included.
func (tf *tableFormatter) columnWidths() []int {
	numCols := len(tf.headers)
	for _, row := range tf.rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}

	widths := make([]int, numCols)
	for _, row := range append([][]string{tf.headers}, tf.rows...) {
		for i, cell := range row {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for i := range widths {
		widths[i] += tf.style.Padding * 2
	}
	return widths
}

// fitWidths shrinks the widest column until the table fits the maximum
// width. Columns never go below three characters of content.
func (tf *tableFormatter) fitWidths(widths []int) []int {
	maxWidth := tf.style.MaxWidth
	if maxWidth == 0 {
		maxWidth = tf.terminalWidth
	}
	if maxWidth <= 0 || len(widths) == 0 {
		return widths
	}

	total := 0
	for _, w := range widths {
		total += w
	}
	if tf.style.Border.Vertical != "" {
		total += len(widths) + 1
	}
	if total <= maxWidth {
		return widths
	}

	minWidth := tf.style.Padding*2 + 3
	for total > maxWidth {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= minWidth {
			break
		}
		widths[widest]--
		total--
	}
	return widths
}

func (tf *tableFormatter) renderBorder(widths []int) string {
	var result strings.Builder
	result.WriteString(tf.style.Border.Corner)
	for _, width := range widths {
		result.WriteString(strings.Repeat(tf.style.Border.Horizontal, width))
		result.WriteString(tf.style.Border.Corner)
	}
	result.WriteString("\n")
	return result.String()
}

func (tf *tableFormatter) renderRow(row []string, widths []int, isHeader bool) string {
	var result strings.Builder

	result.WriteString(tf.style.Border.Vertical)
	for i, width := range widths {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		result.WriteString(tf.formatCell(cell, width, tf.alignments[i], isHeader))
		result.WriteString(tf.style.Border.Vertical)
	}

	return strings.TrimRight(result.String(), " ") + "\n"
}

// formatCell pads or truncates content to width. Color is applied after
// padding so that escape codes do not count towards the width.
func (tf *tableFormatter) formatCell(content string, width int, alignment Alignment, isHeader bool) string {
	contentWidth := width - tf.style.Padding*2
	if contentWidth < 0 {
		contentWidth = 0
	}

	if utf8.RuneCountInString(content) > contentWidth {
		runes := []rune(content)
		if contentWidth > 3 {
			content = string(runes[:contentWidth-3]) + "..."
		} else {
			content = string(runes[:contentWidth])
		}
	}

	gap := contentWidth - utf8.RuneCountInString(content)
	if isHeader && tf.colorSystem != nil {
		content = tf.colorSystem.Colorize(content, tf.colorSystem.GetTheme().Primary)
	}

	pad := strings.Repeat(" ", tf.style.Padding)
	if alignment == AlignRight {
		return pad + strings.Repeat(" ", gap) + content + pad
	}
	return pad + content + strings.Repeat(" ", gap) + pad
}

func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return -1
	}
	return width
}
