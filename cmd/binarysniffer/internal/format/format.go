// Package format renders analysis results for the CLI's one human-facing
// surface: a summary line and a match table after analyze/dir, plus the
// machine-readable json/yaml encodings of the same result.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/binarysniffer/binarysniffer/pkg/model"
	"github.com/binarysniffer/binarysniffer/pkg/stringutil"
)

// Mode selects how a result is rendered.
type Mode string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
	ModeYAML Mode = "yaml"
)

// ParseMode validates and normalizes a user-supplied output mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeText, ModeJSON, ModeYAML:
		return Mode(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("invalid output mode %q (must be text, json, or yaml)", s)
	}
}

var summaryStyle = lipgloss.NewStyle().Bold(true)

// Formatter renders AnalysisResult values to an io.Writer in the selected
// Mode. It carries no other state; every call is independently formatted.
type Formatter struct {
	out   io.Writer
	mode  Mode
	color bool
}

// New builds a Formatter writing to out in the given mode.
func New(out io.Writer, mode Mode, useColor bool) *Formatter {
	return &Formatter{out: out, mode: mode, color: useColor}
}

// One renders a single file's result.
func (f *Formatter) One(r model.AnalysisResult) error {
	switch f.mode {
	case ModeJSON:
		return f.printJSON(r)
	case ModeYAML:
		return f.printYAML(r)
	default:
		f.printSummaryLine(r)
		return f.printTable(r.Matches)
	}
}

// Many renders a directory scan's per-path results, keyed by path, plus an
// aggregate summary line.
func (f *Formatter) Many(results map[string]model.AnalysisResult, paths []string) error {
	switch f.mode {
	case ModeJSON:
		ordered := make([]model.AnalysisResult, 0, len(paths))
		for _, p := range paths {
			ordered = append(ordered, results[p])
		}
		return f.printJSON(ordered)
	case ModeYAML:
		ordered := make([]model.AnalysisResult, 0, len(paths))
		for _, p := range paths {
			ordered = append(ordered, results[p])
		}
		return f.printYAML(ordered)
	default:
		matched, failed := 0, 0
		for _, p := range paths {
			r := results[p]
			if r.Error != nil {
				failed++
				continue
			}
			if len(r.Matches) > 0 {
				matched++
			}
		}
		f.summary(fmt.Sprintf("scanned %d files: %d with matches, %d failed", len(paths), matched, failed))
		for _, p := range paths {
			r := results[p]
			if len(r.Matches) == 0 && r.Error == nil {
				continue
			}
			fmt.Fprintf(f.out, "\n%s\n", p)
			if r.Error != nil {
				f.errorLine(fmt.Sprintf("  %s: %s", r.Error.Kind, r.Error.Cause))
				continue
			}
			if err := f.printTable(r.Matches); err != nil {
				return err
			}
		}
		return nil
	}
}

func (f *Formatter) printJSON(v any) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *Formatter) printYAML(v any) error {
	enc := yaml.NewEncoder(f.out)
	defer enc.Close()
	return enc.Encode(v)
}

func (f *Formatter) printSummaryLine(r model.AnalysisResult) {
	if r.Error != nil {
		f.errorLine(fmt.Sprintf("%s: %s: %s", r.Path, r.Error.Kind, r.Error.Cause))
		return
	}
	f.summary(fmt.Sprintf("%s: %s, %d features, %d matches (%s)",
		r.Path, r.FileType, r.FeaturesExtracted, len(r.Matches), r.WallTime))
}

func (f *Formatter) summary(msg string) {
	if f.color {
		fmt.Fprintln(f.out, summaryStyle.Render(msg))
		return
	}
	fmt.Fprintln(f.out, msg)
}

func (f *Formatter) errorLine(msg string) {
	if f.color {
		color.New(color.FgRed).Fprintln(f.out, msg)
		return
	}
	fmt.Fprintln(f.out, msg)
}

func (f *Formatter) printTable(matches []model.ComponentMatch) error {
	if len(matches) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
	headers := []string{"COMPONENT", "CONFIDENCE", "METHOD", "LICENSE", "ECOSYSTEM"}
	if f.color {
		bold := make([]string, len(headers))
		for i, h := range headers {
			bold[i] = color.New(color.Bold).Sprint(h)
		}
		fmt.Fprintln(w, strings.Join(bold, "\t"))
	} else {
		fmt.Fprintln(w, strings.Join(headers, "\t"))
	}
	for _, m := range matches {
		license := stringutil.Ellipsis(m.Component.License, 24)
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\t%s\n",
			m.Component.DisplayName(), m.Confidence, m.MatchMethod, license, m.Component.Ecosystem)
	}
	return w.Flush()
}
