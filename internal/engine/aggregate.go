package engine

import (
	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// Merge builds the deterministic composite over all producer slots. It runs
// only after the dispatch join barrier, and is the single point that reads
// across slot partitions. Content is combined as-is, never transformed; a
// failed producer contributes an explicit absence marker so downstream gates
// can detect the missing layer instead of silently losing it.
func Merge(state *core.RunState) core.MergedView {
	merged := core.MergedView{
		Input:  state.Input(),
		Layers: make(map[core.Producer]core.LayerContent, core.NumProducers),
	}
	for _, p := range core.AllProducers() {
		slot := state.Slot(p)
		switch slot.Status {
		case core.SlotDone:
			merged.Layers[p] = core.LayerContent{Content: slot.Content}
		case core.SlotFailed:
			merged.Layers[p] = core.LayerContent{Missing: true, Error: slot.LastError}
		default:
			// A pending slot past the join barrier is a controller bug, but
			// the merge stays total: mark the layer absent.
			merged.Layers[p] = core.LayerContent{Missing: true, Error: "producer never dispatched"}
		}
	}
	return merged
}
