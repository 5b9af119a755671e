package journal

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/template"
	"time"
)

// Run summarizes one trainer session from start to exit.
type Run struct {
	RunID   string
	Started time.Time
	Ended   time.Time

	StartPhase   string
	EndPhase     string
	FullyTrained bool
	Ticks        int

	// Results
	Trades       int
	Wins         int
	Losses       int
	NetPL        float64
	WinRate      float64 // 0..1
	ProfitFactor float64

	StartBalance float64
	EndBalance   float64

	Advances int
	Failures int

	Notes []string
}

// RunRecorder is implemented by journals that keep session summaries.
type RunRecorder interface {
	RecordRun(Run) error
}

var runOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var runOrgTemplate = template.Must(template.New("run").Funcs(runOrgFuncs).Parse(RunOrgTemplate))

// WriteOrg renders the run as an Org-mode entry.
func (r Run) WriteOrg(w io.Writer) error {
	if err := runOrgTemplate.Execute(w, r); err != nil {
		return fmt.Errorf("render run: %w", err)
	}
	return nil
}

// SaveOrg writes the Org entry to path.
func (r Run) SaveOrg(path string) error {
	var buf bytes.Buffer
	if err := r.WriteOrg(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

const RunOrgTemplate = `* SESSION: {{.StartPhase}} -> {{.EndPhase}}{{if .FullyTrained}} (fully trained){{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STARTED:     [{{(orTime .Started).Format "2006-01-02 Mon 15:04:05"}}]
:ENDED:       [{{(orTime .Ended).Format "2006-01-02 Mon 15:04:05"}}]
:TICKS:       {{.Ticks}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PL:      {{printf "%.2f" .NetPL}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:PROFIT_FAC:  {{printf "%.2f" .ProfitFactor}}
:ADVANCES:    {{.Advances}}
:FAILURES:    {{.Failures}}
:END:

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPL}}*
- Win Rate:         *{{printf "%.2f" (mul100 .WinRate)}}%*
- Profit Factor:    *{{printf "%.2f" .ProfitFactor}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |
{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
