// Package output renders reachability reports as text, markdown, JSON or
// TOON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	toon "github.com/toon-format/toon-go"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTOON     Format = "toon"
)

var formatNames = map[string]Format{
	"text":     FormatText,
	"json":     FormatJSON,
	"markdown": FormatMarkdown,
	"md":       FormatMarkdown,
	"toon":     FormatTOON,
}

// ParseFormat converts a string to Format. Unknown names yield FormatText.
func ParseFormat(s string) Format {
	if f, ok := formatNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f
	}
	return FormatText
}

// MachineReadable reports whether the format is meant for programs.
func (f Format) MachineReadable() bool {
	return f == FormatJSON || f == FormatTOON
}

// Formatter writes reports to stdout or a file.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter creates a formatter. A non-empty path redirects output to that
// file and disables color.
func NewFormatter(format Format, path string, colored bool) (*Formatter, error) {
	f := &Formatter{format: format, writer: os.Stdout, colored: colored}
	if path == "" {
		return f, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	f.writer, f.file, f.colored = file, file, false
	return f, nil
}

// Close closes the output file, if any.
func (f *Formatter) Close() error {
	if f.file == nil {
		return nil
	}
	return f.file.Close()
}

func (f *Formatter) Writer() io.Writer { return f.writer }

func (f *Formatter) Format() Format { return f.format }

func (f *Formatter) Colored() bool { return f.colored }

// Output writes data in the configured format. Renderable values draw
// themselves for text and markdown; anything else is encoded, fenced as JSON
// for markdown.
func (f *Formatter) Output(data any) error {
	r, renderable := data.(Renderable)
	if renderable && f.format.MachineReadable() {
		data = r.RenderData()
	}
	switch {
	case f.format == FormatTOON:
		return writeTOON(f.writer, data)
	case f.format == FormatJSON:
		return writeJSON(f.writer, data)
	case renderable && f.format == FormatMarkdown:
		return r.RenderMarkdown(f.writer)
	case renderable:
		return r.RenderText(f.writer, f.colored)
	case f.format == FormatMarkdown:
		if _, err := io.WriteString(f.writer, "```json\n"); err != nil {
			return err
		}
		if err := writeJSON(f.writer, data); err != nil {
			return err
		}
		_, err := io.WriteString(f.writer, "```\n")
		return err
	default:
		return writeJSON(f.writer, data)
	}
}

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeTOON(w io.Writer, data any) error {
	out, err := MarshalTOON(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// MarshalTOON encodes data as TOON with two-space indentation.
func MarshalTOON(data any) (string, error) {
	out, err := toon.Marshal(data, toon.WithIndent(2))
	if err != nil {
		return "", fmt.Errorf("encode toon: %w", err)
	}
	return string(out), nil
}

// MarshalJSON encodes data as indented JSON.
func MarshalJSON(data any) (string, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(out), nil
}

func (f *Formatter) message(c *color.Color, prefix, format string, args ...any) {
	if f.colored {
		_, _ = c.Fprintf(f.writer, format+"\n", args...)
		return
	}
	_, _ = fmt.Fprintf(f.writer, prefix+format+"\n", args...)
}

func (f *Formatter) Success(format string, args ...any) {
	f.message(color.New(color.FgGreen), "", format, args...)
}

func (f *Formatter) Warning(format string, args ...any) {
	f.message(color.New(color.FgYellow), "WARNING: ", format, args...)
}

func (f *Formatter) Error(format string, args ...any) {
	f.message(color.New(color.FgRed), "ERROR: ", format, args...)
}

func (f *Formatter) Info(format string, args ...any) {
	f.message(color.New(color.FgCyan), "", format, args...)
}

// ConfidenceColor colors text by dead-code confidence: high is red,
// medium yellow and low left plain.
func ConfidenceColor(confidence, text string) string {
	switch strings.ToLower(confidence) {
	case "high":
		return color.RedString(text)
	case "medium":
		return color.YellowString(text)
	}
	return text
}

// StatusColor colors a reachability status.
func StatusColor(status, text string) string {
	switch strings.ToLower(status) {
	case "dead":
		return color.RedString(text)
	case "ignored":
		return color.YellowString(text)
	case "entry", "live":
		return color.GreenString(text)
	}
	return text
}
