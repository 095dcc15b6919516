package core

// Budget enforces the retry bounds that make the run provably terminating.
// Two independent counter sets: per-producer (how many times a producer may
// be sent back for rework) and per-gate (how many times a gate may request a
// retry across the whole run). Counters are monotonically non-decreasing and
// never exceed their configured maxima.
type Budget struct {
	maxPerProducer int
	maxPerGate     int
	producerUsed   map[Producer]int
	gateUsed       map[Gate]int
}

// NewBudget creates a budget with explicit maxima. Maxima must be
// non-negative; zero means no retries at all, never "unbounded".
func NewBudget(maxPerProducer, maxPerGate int) *Budget {
	if maxPerProducer < 0 {
		maxPerProducer = 0
	}
	if maxPerGate < 0 {
		maxPerGate = 0
	}
	return &Budget{
		maxPerProducer: maxPerProducer,
		maxPerGate:     maxPerGate,
		producerUsed:   make(map[Producer]int),
		gateUsed:       make(map[Gate]int),
	}
}

// MaxPerProducer returns the configured per-producer maximum.
func (b *Budget) MaxPerProducer() int { return b.maxPerProducer }

// MaxPerGate returns the configured per-gate maximum.
func (b *Budget) MaxPerGate() int { return b.maxPerGate }

// ProducerUsed returns how many retries a producer has consumed.
func (b *Budget) ProducerUsed(p Producer) int { return b.producerUsed[p] }

// GateUsed returns how many retries a gate has requested.
func (b *Budget) GateUsed(g Gate) int { return b.gateUsed[g] }

// ProducerExhausted reports whether a producer has no retry budget left.
func (b *Budget) ProducerExhausted(p Producer) bool {
	return b.producerUsed[p] >= b.maxPerProducer
}

// GateExhausted reports whether a gate has no retry budget left.
func (b *Budget) GateExhausted(g Gate) bool {
	return b.gateUsed[g] >= b.maxPerGate
}

// ConsumeProducer increments a producer's counter. Returns false without
// incrementing when the maximum is already reached.
func (b *Budget) ConsumeProducer(p Producer) bool {
	if b.ProducerExhausted(p) {
		return false
	}
	b.producerUsed[p]++
	return true
}

// ConsumeGate increments a gate's counter. Returns false without
// incrementing when the maximum is already reached.
func (b *Budget) ConsumeGate(g Gate) bool {
	if b.GateExhausted(g) {
		return false
	}
	b.gateUsed[g]++
	return true
}

// MaxPasses is the hard upper bound on validation passes:
// sum of per-producer maxima plus the initial pass.
func (b *Budget) MaxPasses() int {
	return b.maxPerProducer*NumProducers + 1
}

// snapshot returns a copyable view for state snapshots.
func (b *Budget) snapshot() BudgetSnapshot {
	s := BudgetSnapshot{
		MaxPerProducer: b.maxPerProducer,
		MaxPerGate:     b.maxPerGate,
		ProducerUsed:   make(map[Producer]int, len(b.producerUsed)),
		GateUsed:       make(map[Gate]int, len(b.gateUsed)),
	}
	for p, n := range b.producerUsed {
		s.ProducerUsed[p] = n
	}
	for g, n := range b.gateUsed {
		s.GateUsed[g] = n
	}
	return s
}

// BudgetSnapshot is the serializable view of a Budget.
type BudgetSnapshot struct {
	MaxPerProducer int              `json:"max_per_producer"`
	MaxPerGate     int              `json:"max_per_gate"`
	ProducerUsed   map[Producer]int `json:"producer_used"`
	GateUsed       map[Gate]int     `json:"gate_used"`
}
