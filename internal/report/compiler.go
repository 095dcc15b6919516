package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// Compiler assembles the final market report from the merged producer layers
// and the validation history. Compilation is purely mechanical: content is
// cleaned and arranged, never invented, so a given snapshot always yields
// the same report.
type Compiler struct {
	sentenceLimit int
}

// NewCompiler creates a report compiler with the default summary length.
func NewCompiler() *Compiler {
	return &Compiler{sentenceLimit: 4}
}

const noData = "Insufficient data for this section."

var (
	urlPattern      = regexp.MustCompile(`https?://[\w\-._~:/?#\[\]@!$&'()*+,;=%]+`)
	headingPattern  = regexp.MustCompile(`(?m)^\s*#+.*$`)
	bulletPattern   = regexp.MustCompile(`[*\-•]+`)
	spacePattern    = regexp.MustCompile(`\s+`)
	sentencePattern = regexp.MustCompile(`(?:[.!?])\s+`)
)

// Compile builds the eight-section report. Missing layers render an explicit
// absence note instead of being dropped, matching the warnings already on
// the run.
func (c *Compiler) Compile(snap *core.RunSnapshot, merged core.MergedView) string {
	var b strings.Builder

	b.WriteString("# EV Market Intelligence Report\n\n")
	fmt.Fprintf(&b, "Run `%s`\n\n", snap.ID)

	c.section(&b, "1. Executive Summary", []string{
		"User Query: " + c.clip(snap.Input, 1),
		"Key Finding: " + c.layer(merged, core.ProducerMarket),
		"Finance Metrics: " + c.layer(merged, core.ProducerFinance),
		"Action: Review policy and supply chain risks to establish an execution plan.",
	})
	c.section(&b, "2. Market Overview", []string{
		"Global and Regional Trends:",
		c.combine(merged, core.ProducerMarket, core.ProducerPolicy),
	})
	c.section(&b, "3. Policy and Regulation", []string{c.layer(merged, core.ProducerPolicy)})
	c.section(&b, "4. OEM Analysis", []string{c.layer(merged, core.ProducerOEM)})
	c.section(&b, "5. Supply Chain Analysis", []string{c.layer(merged, core.ProducerSupply)})
	c.section(&b, "6. Financial Outlook", []string{c.layer(merged, core.ProducerFinance)})
	c.section(&b, "7. Cross-Layer Insights", crossLayerLines(snap))
	c.section(&b, "8. References", referenceLines(merged))

	if len(snap.Warnings) > 0 {
		b.WriteString("## Caveats\n\n")
		for _, w := range snap.Warnings {
			b.WriteString("- " + w + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Report auto-generated by the EV market intelligence pipeline.\n")
	return b.String()
}

func (c *Compiler) section(b *strings.Builder, title string, lines []string) {
	b.WriteString("## " + title + "\n\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString("- " + line + "\n")
	}
	b.WriteString("\n")
}

// layer returns the cleaned content of one producer layer, or an absence
// note when the layer is missing.
func (c *Compiler) layer(merged core.MergedView, p core.Producer) string {
	l := merged.Layers[p]
	if l.Missing {
		if l.Error != "" {
			return fmt.Sprintf("Layer unavailable (%s).", l.Error)
		}
		return noData
	}
	return c.clip(l.Content, c.sentenceLimit)
}

// combine joins the cleaned content of several layers, deduplicating exact
// repeats so overlapping producers do not double a finding.
func (c *Compiler) combine(merged core.MergedView, producers ...core.Producer) string {
	seen := make(map[string]bool)
	var parts []string
	for _, p := range producers {
		l := merged.Layers[p]
		if l.Missing {
			continue
		}
		snippet := c.clip(l.Content, c.sentenceLimit)
		if snippet == noData || seen[snippet] {
			continue
		}
		seen[snippet] = true
		parts = append(parts, snippet)
	}
	if len(parts) == 0 {
		return noData
	}
	return strings.Join(parts, " ")
}

// clip strips markdown noise and trims the text to the first few sentences.
func (c *Compiler) clip(text string, sentenceLimit int) string {
	text = strings.ReplaceAll(text, "`", "")
	text = headingPattern.ReplaceAllString(text, "")
	text = bulletPattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
	if text == "" {
		return noData
	}
	sentences := splitSentences(text)
	if len(sentences) > sentenceLimit {
		sentences = sentences[:sentenceLimit]
	}
	out := strings.TrimSpace(strings.Join(sentences, " "))
	if out == "" {
		return noData
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		// Keep the terminating punctuation with its sentence.
		end := loc[0] + 1
		sentences = append(sentences, strings.TrimSpace(text[last:end]))
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// crossLayerLines summarizes the validation history: how each gate concluded
// on the final pass, including downgraded approvals.
func crossLayerLines(snap *core.RunSnapshot) []string {
	final := make(map[core.Gate]core.GateResult)
	for _, res := range snap.ValidationResults {
		final[res.Gate] = res
	}
	if len(final) == 0 {
		return []string{"Validation chain did not complete."}
	}
	var lines []string
	for _, g := range core.AllGates() {
		res, ok := final[g]
		if !ok {
			continue
		}
		line := fmt.Sprintf("%s: %s", g.Description(), string(res.Verdict))
		if res.Downgraded() {
			line += " (retry budget exhausted, accepted with warnings)"
		}
		if res.Reason != "" {
			line += ": " + res.Reason
		}
		lines = append(lines, line)
	}
	return lines
}

// referenceLines extracts every URL cited by any layer, deduplicated and
// sorted for a stable reference list.
func referenceLines(merged core.MergedView) []string {
	refs := make(map[string]bool)
	for _, l := range merged.Layers {
		for _, match := range urlPattern.FindAllString(l.Content, -1) {
			refs[strings.TrimRight(match, ".,;")] = true
		}
	}
	if len(refs) == 0 {
		return []string{"No external sources cited. Review the layer notes for details."}
	}
	out := make([]string, 0, len(refs))
	for ref := range refs {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}
