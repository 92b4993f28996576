package journal

import (
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/rustyeddy/rebalancer/market"
	"github.com/rustyeddy/rebalancer/rebalance"
)

var orgFuncs = template.FuncMap{
	"money": market.Money,
	"qty":   market.Qty,
	"short": shortID,
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
}

var runOrg = template.Must(template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate))

// FormatRunOrg renders a run as an Org-mode entry: the facts go in a
// PROPERTIES drawer, the orders in a table, and a Review heading is left
// for notes.
func FormatRunOrg(r RunRecord) (string, error) {
	var b strings.Builder
	if err := runOrg.Execute(&b, r); err != nil {
		return "", err
	}
	return b.String(), nil
}

// FormatRunsOrg renders several runs separated by blank lines.
func FormatRunsOrg(runs []RunRecord) (string, error) {
	parts := make([]string, 0, len(runs))
	for _, r := range runs {
		s, err := FormatRunOrg(r)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n"), nil
}

// FormatPlanOrg renders a plan that has not been journaled yet.
func FormatPlanOrg(account string, p *rebalance.Plan, now time.Time) (string, error) {
	return FormatRunOrg(NewRunRecord(account, ModeDryRun, p, now))
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}

const RunOrgTemplate = `* REBALANCE: {{.Account}} ({{short .RunID}})
:PROPERTIES:
:RUN_ID:     {{.RunID}}
:ACCOUNT:    {{.Account}}
:MODE:       {{.Mode}}
:CREATED:    [{{.Created.Format "2006-01-02 Mon 15:04"}}]
:CASH:       {{money .StartingCash}}
:EQUITY:     {{money .Equity}}
:SELLS:      {{money .TotalSells}}
:BUYS:       {{money .TotalBuys}}
:RESIDUAL:   {{money .Residual}}
:FEASIBLE:   {{yesno .Feasible}}
:PARTIAL:    {{yesno .Partial}}
:END:

** Orders
{{- if .Orders}}
| Side | Symbol | Qty | Price | Value | Status |
|------+--------+-----+-------+-------+--------|
{{- range .Orders}}
| {{.Side}} | {{.Symbol}} | {{qty .Quantity}} | {{money .Price}} | {{money .Value}} | {{.Status}} |
{{- end}}
{{- else}}
- none, portfolio within tolerance
{{- end}}
{{- if .Submissions}}

** Broker
{{- range .Submissions}}
- {{.Side}} {{.Symbol}}: {{if .Error}}error: {{.Error}}{{else}}{{.Status}}{{if .OrderID}} ({{.OrderID}}){{end}}{{end}}
{{- end}}
{{- end}}

** Review
- 
`

// OrgReporter writes each plan as an Org entry for one account.
type OrgReporter struct {
	W       io.Writer
	Account string
	Now     func() time.Time
}

func (r OrgReporter) Report(p *rebalance.Plan) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	s, err := FormatPlanOrg(r.Account, p, now())
	if err != nil {
		return err
	}
	_, err = io.WriteString(r.W, s)
	return err
}
