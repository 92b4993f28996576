package journal

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRunOrg(t *testing.T) {
	t.Parallel()

	r := exampleRun(t)
	out, err := FormatRunOrg(r)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "* REBALANCE: U1234567 ("+r.RunID[:8]+")\n"))
	assert.Contains(t, out, ":RUN_ID:     "+r.RunID+"\n")
	assert.Contains(t, out, ":MODE:       execute\n")
	assert.Contains(t, out, ":CREATED:    [2026-03-02 Mon 14:30]\n")
	assert.Contains(t, out, ":EQUITY:     4000.00\n")
	assert.Contains(t, out, ":FEASIBLE:   yes\n")
	assert.Contains(t, out, ":PARTIAL:    no\n")
	assert.Contains(t, out, "| SELL | B | 10 | 100.00 | 1000.00 | planned |\n")
	assert.Contains(t, out, "| BUY | A | 10 | 100.00 | 1000.00 | planned |\n\n** Review\n")
	assert.NotContains(t, out, "** Broker")
}

func TestFormatRunOrgSubmissions(t *testing.T) {
	t.Parallel()

	r := exampleRun(t)
	r.Submissions = []SubmissionRecord{
		{Seq: 0, Symbol: "B", Side: "SELL", OrderID: "1001", Status: "Submitted"},
		{Seq: 1, Symbol: "A", Side: "BUY", Error: "rejected"},
	}
	out, err := FormatRunOrg(r)
	require.NoError(t, err)

	assert.Contains(t, out, "** Broker\n- SELL B: Submitted (1001)\n- BUY A: error: rejected\n\n** Review")
}

func TestFormatPlanOrgEmpty(t *testing.T) {
	t.Parallel()

	r := exampleRun(t)
	r.Orders = nil
	out, err := FormatRunOrg(r)
	require.NoError(t, err)
	assert.Contains(t, out, "** Orders\n- none, portfolio within tolerance\n\n** Review")
}

func TestFormatRunsOrg(t *testing.T) {
	t.Parallel()

	p := examplePlan(t)
	one, err := FormatPlanOrg("U1", p, created)
	require.NoError(t, err)
	assert.Contains(t, one, ":MODE:       dry-run")

	out, err := FormatRunsOrg([]RunRecord{exampleRun(t), exampleRun(t)})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "* REBALANCE:"))
}

func TestOrgReporter(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	r := OrgReporter{W: &b, Account: "IRA", Now: func() time.Time { return created }}
	require.NoError(t, r.Report(examplePlan(t)))
	assert.True(t, strings.HasPrefix(b.String(), "* REBALANCE: IRA ("))
	assert.Contains(t, b.String(), ":CREATED:    [2026-03-02 Mon 14:30]")
}
