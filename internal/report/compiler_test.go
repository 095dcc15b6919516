package report

import (
	"strings"
	"testing"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFixture(t *testing.T) (*core.RunSnapshot, core.MergedView) {
	t.Helper()
	state := core.NewRunState("run-1", "How is EV demand trending in Europe?", core.NewBudget(2, 2))

	content := map[core.Producer]string{
		core.ProducerMarket:  "EV sales grew 30% year over year. Demand is strongest in Germany. See https://example.com/market-2026.",
		core.ProducerPolicy:  "Subsidies are being phased out in two markets. Emission rules tighten in 2027.",
		core.ProducerSupply:  "Lithium prices stabilized. Cell capacity is expanding in Hungary.",
		core.ProducerOEM:     "Legacy OEMs cut EV prices. Two new entrants announced compact models.",
		core.ProducerFinance: "Margins compressed across the sector. Capex guidance held steady.",
	}
	merged := core.MergedView{
		Input:  state.Input(),
		Layers: make(map[core.Producer]core.LayerContent, core.NumProducers),
	}
	for _, p := range core.AllProducers() {
		require.NoError(t, state.WriteSlot(p, core.Slot{Status: core.SlotDone, Content: content[p]}))
		merged.Layers[p] = core.LayerContent{Content: content[p]}
	}
	for _, g := range core.AllGates() {
		state.AppendGateResult(core.GateResult{Gate: g, Verdict: core.VerdictPass, Pass: 1})
	}
	return state.Snapshot(), merged
}

func TestCompiler_EightSections(t *testing.T) {
	snap, merged := snapshotFixture(t)
	out := NewCompiler().Compile(snap, merged)

	for _, heading := range []string{
		"## 1. Executive Summary",
		"## 2. Market Overview",
		"## 3. Policy and Regulation",
		"## 4. OEM Analysis",
		"## 5. Supply Chain Analysis",
		"## 6. Financial Outlook",
		"## 7. Cross-Layer Insights",
		"## 8. References",
	} {
		assert.Contains(t, out, heading)
	}
	assert.Contains(t, out, "User Query: How is EV demand trending in Europe?")
	assert.Contains(t, out, "EV sales grew 30% year over year.")
	assert.Contains(t, out, "https://example.com/market-2026")
	assert.NotContains(t, out, "## Caveats")
}

func TestCompiler_Deterministic(t *testing.T) {
	snap, merged := snapshotFixture(t)
	c := NewCompiler()
	assert.Equal(t, c.Compile(snap, merged), c.Compile(snap, merged))
}

func TestCompiler_MissingLayerNoted(t *testing.T) {
	snap, merged := snapshotFixture(t)
	merged.Layers[core.ProducerSupply] = core.LayerContent{Missing: true, Error: "feed unavailable"}
	snap.Warnings = []string{"layer supply is missing from the final report: feed unavailable"}

	out := NewCompiler().Compile(snap, merged)

	assert.Contains(t, out, "Layer unavailable (feed unavailable).")
	assert.Contains(t, out, "## Caveats")
	assert.Contains(t, out, "layer supply is missing")
}

func TestCompiler_NoReferencesFallback(t *testing.T) {
	snap, merged := snapshotFixture(t)
	for p, l := range merged.Layers {
		l.Content = "No links here. Just findings."
		merged.Layers[p] = l
	}

	out := NewCompiler().Compile(snap, merged)
	assert.Contains(t, out, "No external sources cited.")
}

func TestCompiler_ClipStripsMarkdownAndLimitsSentences(t *testing.T) {
	c := NewCompiler()
	in := "# Heading\n- First point. Second point. Third point. Fourth point. Fifth point.\n`code`"
	out := c.clip(in, 2)
	assert.Equal(t, "First point. Second point.", out)
}

func TestCompiler_ClipEmptyFallsBack(t *testing.T) {
	c := NewCompiler()
	assert.Equal(t, noData, c.clip("   \n# only a heading\n", 4))
}

func TestCompiler_DowngradedGateSurfacesInInsights(t *testing.T) {
	snap, merged := snapshotFixture(t)
	snap.ValidationResults = append(snap.ValidationResults, core.GateResult{
		Gate:    core.GateReportQuality,
		Verdict: core.VerdictPass,
		Target:  core.TargetProducer(core.ProducerMarket),
		Reason:  "market numbers look stale",
		Pass:    2,
	})

	out := NewCompiler().Compile(snap, merged)
	assert.Contains(t, out, "retry budget exhausted, accepted with warnings")
	assert.Contains(t, out, "market numbers look stale")
}

func TestRenderTerminal_FallsBackOnRawMarkdown(t *testing.T) {
	md := "# Title\n\nbody\n"
	out := RenderTerminal(md, 80)
	assert.True(t, strings.Contains(out, "Title"))
}
