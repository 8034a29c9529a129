// Package report renders a completed test run into a document: JSON for
// machines, HTML/markdown for people, CSV for spreadsheets.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/archon-ai/agent-tester/internal/testsuite"
)

// Format selects the report output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// Formats lists the supported report formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatHTML, FormatMarkdown, FormatCSV}
}

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatJSON, FormatHTML, FormatMarkdown, FormatCSV:
		return f, nil
	}
	return "", &Error{Format: s, Err: fmt.Errorf("unknown report format (expected one of %v)", Formats())}
}

// extensions maps formats to file extensions.
var extensions = map[Format]string{
	FormatJSON:     "json",
	FormatHTML:     "html",
	FormatMarkdown: "md",
	FormatCSV:      "csv",
}

// Error reports a failed report generation: an unknown format or a render or
// write failure.
type Error struct {
	Format string
	Err    error
}

func (e *Error) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("report generation failed for format %q: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("report generation failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Bundle is everything a report needs: the run plus the suite, cases, and
// results it references. The generator only reads it.
type Bundle struct {
	Run     testsuite.TestRun
	Suite   testsuite.TestSuite
	Cases   map[string]testsuite.TestCase
	Results []testsuite.TestResult
}

// caseName resolves a result's case name, falling back to the id when the
// case is no longer registered.
func (b Bundle) caseName(caseID string) string {
	if tc, ok := b.Cases[caseID]; ok {
		return tc.Name
	}
	return caseID
}

// Generator writes reports under an output directory, one subdirectory per
// run.
type Generator struct {
	outputDir string
}

// NewGenerator creates a report generator rooted at outputDir.
func NewGenerator(outputDir string) *Generator {
	return &Generator{outputDir: outputDir}
}

// Generate renders the bundle in the given format and returns the path of
// the written file.
func (g *Generator) Generate(bundle Bundle, format Format) (string, error) {
	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = g.renderJSON(bundle)
	case FormatHTML:
		data, err = g.renderHTML(bundle)
	case FormatMarkdown:
		data, err = g.renderMarkdown(bundle)
	case FormatCSV:
		data, err = g.renderCSV(bundle)
	default:
		return "", &Error{Format: string(format), Err: fmt.Errorf("unknown report format (expected one of %v)", Formats())}
	}
	if err != nil {
		return "", &Error{Format: string(format), Err: err}
	}

	dir := filepath.Join(g.outputDir, bundle.Run.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Format: string(format), Err: fmt.Errorf("failed to create report directory: %w", err)}
	}
	path := filepath.Join(dir, "report."+extensions[format])
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &Error{Format: string(format), Err: fmt.Errorf("failed to write report: %w", err)}
	}
	return path, nil
}

// jsonReport is the canonical machine-readable report shape.
type jsonReport struct {
	GeneratedAt string             `json:"generated_at"`
	Run         testsuite.TestRun  `json:"run"`
	Suite       jsonSuite          `json:"suite"`
	Summary     map[string]int     `json:"summary"`
	Results     []jsonReportResult `json:"results"`
}

type jsonSuite struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type jsonReportResult struct {
	testsuite.TestResult
	CaseName string `json:"case_name"`
}

func (g *Generator) renderJSON(bundle Bundle) ([]byte, error) {
	doc := jsonReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Run:         bundle.Run,
		Suite: jsonSuite{
			ID:          bundle.Suite.ID,
			Name:        bundle.Suite.Name,
			Description: bundle.Suite.Description,
		},
		Summary: bundle.Run.Summary,
		Results: make([]jsonReportResult, 0, len(bundle.Results)),
	}
	for _, res := range bundle.Results {
		doc.Results = append(doc.Results, jsonReportResult{
			TestResult: res,
			CaseName:   bundle.caseName(res.TestCaseID),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}

type htmlResult struct {
	CaseName   string
	Status     string
	StatusCls  string
	DurationMS string
	Errors     []string
}

type htmlReportData struct {
	Title       string
	GeneratedAt string
	AgentID     string
	SuiteName   string
	RunID       string
	Status      string
	StatusCls   string
	Total       int
	Passed      int
	Failed      int
	Errored     int
	Skipped     int
	Results     []htmlResult
}

func (g *Generator) renderHTML(bundle Bundle) ([]byte, error) {
	data := htmlReportData{
		Title:       "Agent Test Report",
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		AgentID:     bundle.Run.AgentID,
		SuiteName:   bundle.Suite.Name,
		RunID:       bundle.Run.ID,
		Status:      string(bundle.Run.Status),
		StatusCls:   statusClass(bundle.Run.Status),
		Total:       bundle.Run.Summary["total"],
		Passed:      bundle.Run.Summary["passed"],
		Failed:      bundle.Run.Summary["failed"],
		Errored:     bundle.Run.Summary["error"],
		Skipped:     bundle.Run.Summary["skipped"],
	}
	for _, res := range bundle.Results {
		data.Results = append(data.Results, htmlResult{
			CaseName:   bundle.caseName(res.TestCaseID),
			Status:     string(res.Status),
			StatusCls:  statusClass(res.Status),
			DurationMS: formatDuration(res.DurationMS),
			Errors:     res.Errors,
		})
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) renderMarkdown(bundle Bundle) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Agent Test Report\n\n")
	fmt.Fprintf(&buf, "- **Run:** %s\n", bundle.Run.ID)
	fmt.Fprintf(&buf, "- **Agent:** %s\n", bundle.Run.AgentID)
	fmt.Fprintf(&buf, "- **Suite:** %s\n", bundle.Suite.Name)
	fmt.Fprintf(&buf, "- **Status:** %s\n", bundle.Run.Status)
	fmt.Fprintf(&buf, "- **Generated:** %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&buf, "## Summary\n\n")
	fmt.Fprintf(&buf, "| Total | Passed | Failed | Errors | Skipped |\n")
	fmt.Fprintf(&buf, "|---|---|---|---|---|\n")
	fmt.Fprintf(&buf, "| %d | %d | %d | %d | %d |\n\n",
		bundle.Run.Summary["total"],
		bundle.Run.Summary["passed"],
		bundle.Run.Summary["failed"],
		bundle.Run.Summary["error"],
		bundle.Run.Summary["skipped"],
	)

	fmt.Fprintf(&buf, "## Results\n\n")
	fmt.Fprintf(&buf, "| Test Case | Status | Duration | Notes |\n")
	fmt.Fprintf(&buf, "|---|---|---|---|\n")
	for _, res := range bundle.Results {
		notes := strings.Join(res.Errors, "; ")
		fmt.Fprintf(&buf, "| %s | %s | %s | %s |\n",
			escapeMarkdown(bundle.caseName(res.TestCaseID)),
			res.Status,
			formatDuration(res.DurationMS),
			escapeMarkdown(notes),
		)
	}
	return buf.Bytes(), nil
}

func (g *Generator) renderCSV(bundle Bundle) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"run_id", "agent_id", "test_case_id", "test_case_name", "status", "duration_ms", "errors"}); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, res := range bundle.Results {
		row := []string{
			bundle.Run.ID,
			res.AgentID,
			res.TestCaseID,
			bundle.caseName(res.TestCaseID),
			string(res.Status),
			formatDuration(res.DurationMS),
			strings.Join(res.Errors, "; "),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func statusClass(s testsuite.Status) string {
	switch s {
	case testsuite.StatusPassed:
		return "passed"
	case testsuite.StatusFailed:
		return "failed"
	case testsuite.StatusError:
		return "errored"
	case testsuite.StatusSkipped:
		return "skipped"
	}
	return "neutral"
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", *ms)
}

// escapeMarkdown keeps table cells on one row.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
