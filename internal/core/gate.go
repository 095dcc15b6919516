package core

// Gate identifies one validation step in the fixed sequential chain.
type Gate string

const (
	// GateCrossLayer cross-checks producer conclusions for consistency.
	GateCrossLayer Gate = "cross_layer"

	// GateReportQuality checks report structure, clarity, and completeness.
	GateReportQuality Gate = "report_quality"

	// GateHallucination checks for unsupported claims in producer content.
	GateHallucination Gate = "hallucination"
)

// AllGates returns the gates in chain execution order.
func AllGates() []Gate {
	return []Gate{GateCrossLayer, GateReportQuality, GateHallucination}
}

// GateOrder returns the numeric position of a gate in the chain (0-indexed).
func GateOrder(g Gate) int {
	switch g {
	case GateCrossLayer:
		return 0
	case GateReportQuality:
		return 1
	case GateHallucination:
		return 2
	default:
		return -1
	}
}

// ValidGate checks if a gate identifier belongs to the fixed chain.
func ValidGate(g Gate) bool {
	return GateOrder(g) >= 0
}

// ParseGate converts a string to a Gate with validation.
func ParseGate(s string) (Gate, error) {
	g := Gate(s)
	if !ValidGate(g) {
		return "", ErrValidation(CodeUnknownGate, "unknown gate: "+s)
	}
	return g, nil
}

// String returns the string representation of the gate.
func (g Gate) String() string {
	return string(g)
}

// Description returns a human-readable description of the gate.
func (g Gate) Description() string {
	switch g {
	case GateCrossLayer:
		return "Cross-check analysis layers for internal consistency"
	case GateReportQuality:
		return "Check report structure and completeness"
	case GateHallucination:
		return "Check for unsupported claims and hallucinations"
	default:
		return "Unknown gate"
	}
}
