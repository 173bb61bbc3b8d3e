// Package report renders analysis results: a JSON artifact for downstream
// tooling, a terminal summary, and an HTML view for browsing.
package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crashscope/crashscope/internal/models"
	"github.com/pkg/browser"
)

// Report bundles everything one run produced.
type Report struct {
	RunID       string                     `json:"run_id"`
	Signature   string                     `json:"signature"`
	Channel     string                     `json:"channel,omitempty"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Crashes     []*models.CrashRecord      `json:"crashes,omitempty"`
	Suspects    []*models.SuspectCommit    `json:"suspects,omitempty"`
	Functions   []*models.ModifiedFunction `json:"functions,omitempty"`
	Tests       []*models.RelatedTest      `json:"tests,omitempty"`
}

// Introducing returns the suspects classified as introducing the crash.
func (r *Report) Introducing() []*models.SuspectCommit {
	var out []*models.SuspectCommit
	for _, s := range r.Suspects {
		if s.Bucket == "introducing" {
			out = append(out, s)
		}
	}
	return out
}

// Writer persists reports under a base directory, one subdirectory per run.
type Writer struct {
	dir string
}

// NewWriter creates a report writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// runDir ensures and returns the per-run output directory.
func (w *Writer) runDir(runID string) (string, error) {
	dir := filepath.Join(w.dir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	return dir, nil
}

// WriteJSON writes the machine-readable artifact and returns its path.
func (w *Writer) WriteJSON(r *Report) (string, error) {
	dir, err := w.runDir(r.RunID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	path := filepath.Join(dir, "report.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// WriteHTML writes the browsable view and returns its path.
func (w *Writer) WriteHTML(r *Report) (string, error) {
	dir, err := w.runDir(r.RunID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "report.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create html report: %w", err)
	}
	defer f.Close()

	if err := htmlTemplate.Execute(f, r); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	return path, nil
}

// Open opens a written report in the default browser.
func Open(path string) error {
	return browser.OpenFile(path)
}

// Load reads a previously written JSON report.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}

// Summary renders the terminal summary.
func Summary(r *Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Crash signature: %s\n", r.Signature)
	fmt.Fprintf(&sb, "Run: %s (%s)\n\n", r.RunID, r.GeneratedAt.Format(time.RFC3339))

	if len(r.Crashes) > 0 {
		fmt.Fprintf(&sb, "Sampled %d unique builds\n\n", len(r.Crashes))
	}

	introducing := r.Introducing()
	switch {
	case len(introducing) > 0:
		fmt.Fprintf(&sb, "Likely introducing commits (%d):\n", len(introducing))
		for _, s := range introducing {
			fmt.Fprintf(&sb, "  %s  score %.2f  %s\n", short(s.Revision), s.Score, firstLine(s.Description))
		}
	case len(r.Suspects) > 0:
		fmt.Fprintf(&sb, "No commit crossed the introducing threshold; %d related candidates:\n", len(r.Suspects))
		for i, s := range r.Suspects {
			if i == 5 {
				fmt.Fprintf(&sb, "  ... and %d more\n", len(r.Suspects)-5)
				break
			}
			fmt.Fprintf(&sb, "  %s  score %.2f  %s\n", short(s.Revision), s.Score, firstLine(s.Description))
		}
	default:
		sb.WriteString("No candidate commits found.\n")
	}

	if len(r.Functions) > 0 {
		fmt.Fprintf(&sb, "\nModified functions (%d):\n", len(r.Functions))
		for _, fn := range r.Functions {
			fmt.Fprintf(&sb, "  %s  %s (%s, %.1f%%)\n", fn.File, fn.Name, fn.Classification, fn.OverlapPercent)
		}
	}

	if len(r.Tests) > 0 {
		fmt.Fprintf(&sb, "\nRelated tests (%d):\n", len(r.Tests))
		for _, test := range r.Tests {
			fmt.Fprintf(&sb, "  %.2f  %s\n", test.Score, test.Path)
		}
	}

	return sb.String()
}

func short(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>crashscope: {{.Signature}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; margin-bottom: 2rem; }
th, td { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: left; }
th { background: #f0f0f0; }
.introducing { background: #fdd; }
</style>
</head>
<body>
<h1>{{.Signature}}</h1>
<p>Run {{.RunID}} generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}</p>

{{if .Suspects}}
<h2>Suspect commits</h2>
<table>
<tr><th>Revision</th><th>Score</th><th>Bucket</th><th>Description</th></tr>
{{range .Suspects}}
<tr{{if eq .Bucket "introducing"}} class="introducing"{{end}}>
<td>{{.Revision}}</td><td>{{printf "%.2f" .Score}}</td><td>{{.Bucket}}</td><td>{{.Description}}</td>
</tr>
{{end}}
</table>
{{end}}

{{if .Functions}}
<h2>Modified functions</h2>
<table>
<tr><th>File</th><th>Function</th><th>Lines</th><th>Classification</th><th>Overlap</th></tr>
{{range .Functions}}
<tr><td>{{.File}}</td><td>{{.Name}}</td><td>{{.StartLine}}&ndash;{{.EndLine}}</td>
<td>{{.Classification}}</td><td>{{printf "%.1f%%" .OverlapPercent}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Tests}}
<h2>Related tests</h2>
<table>
<tr><th>Score</th><th>Path</th></tr>
{{range .Tests}}
<tr><td>{{printf "%.2f" .Score}}</td><td>{{.Path}}</td></tr>
{{end}}
</table>
{{end}}

</body>
</html>
`))
