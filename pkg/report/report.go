// Package report renders audit results, either as human readable text or as
// a JSON document for tooling.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"golang.org/x/xerrors"

	"github.com/rotty/deb-audit/pkg/types"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Writer interface {
	Write(result types.AuditResult) error

	// Close flushes any buffered output. It must be called once after the
	// last Write.
	Close() error
}

type Option struct {
	Output  io.Writer
	Format  string
	ShowAll bool
}

func NewWriter(opt Option) (Writer, error) {
	switch opt.Format {
	case FormatJSON:
		return &jsonWriter{output: opt.Output}, nil
	case FormatText, "":
		return &textWriter{output: opt.Output, showAll: opt.ShowAll}, nil
	default:
		return nil, xerrors.Errorf("unknown report format %q", opt.Format)
	}
}

type textWriter struct {
	output  io.Writer
	showAll bool
}

var (
	presentColor = color.New(color.FgRed)
	ignoredColor = color.New(color.FgYellow)
	fixedColor   = color.New(color.FgGreen)
)

func (w *textWriter) Write(result types.AuditResult) error {
	if !result.Known {
		_, err := fmt.Fprintf(w.output, "%s %s %s: unknown package in %s\n",
			result.Package, result.Architecture, result.Version, result.Release)
		return err
	}

	_, err := fmt.Fprintf(w.output, "%s %s %s: %s present, %s ignored, %s fixed\n",
		result.Package, result.Architecture, result.Version,
		count(presentColor, len(result.Present)),
		count(ignoredColor, len(result.Ignored)),
		count(fixedColor, len(result.Fixed)))
	if err != nil {
		return err
	}

	if err = w.writeIssues(result.Present, "present"); err != nil {
		return err
	}
	if !w.showAll {
		return nil
	}
	if err = w.writeIssues(result.Ignored, "ignored"); err != nil {
		return err
	}
	return w.writeIssues(result.Fixed, "fixed")
}

func (w *textWriter) writeIssues(records []types.IssueRecord, label string) error {
	for _, rec := range records {
		detail := rec.Description
		switch {
		case label == "ignored" && rec.IgnoreReason != "":
			detail = fmt.Sprintf("%s [%s]", detail, rec.IgnoreReason)
		case label == "fixed" && rec.FixedVersion != "":
			detail = fmt.Sprintf("%s [fixed in %s]", detail, rec.FixedVersion)
		}
		if _, err := fmt.Fprintf(w.output, "  %s (%s): %s\n", rec.SourceID, label, detail); err != nil {
			return err
		}
	}
	return nil
}

func (w *textWriter) Close() error {
	return nil
}

// count renders a bucket size, highlighting non-zero counts.
func count(c *color.Color, n int) string {
	if n == 0 {
		return "0"
	}
	return c.Sprint(n)
}

type jsonWriter struct {
	output  io.Writer
	results []types.AuditResult
}

func (w *jsonWriter) Write(result types.AuditResult) error {
	w.results = append(w.results, result)
	return nil
}

func (w *jsonWriter) Close() error {
	enc := json.NewEncoder(w.output)
	enc.SetIndent("", "  ")
	if err := enc.Encode(w.results); err != nil {
		return xerrors.Errorf("failed to encode results: %w", err)
	}
	return nil
}
