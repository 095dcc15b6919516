package core

// Producer identifies one of the fixed analysis roles. Each producer owns
// exactly one slot of run state and writes nothing else.
type Producer string

const (
	// ProducerMarket covers demand, pricing, sales mix, and regional share.
	ProducerMarket Producer = "market"

	// ProducerPolicy covers regulatory and incentive signals.
	ProducerPolicy Producer = "policy"

	// ProducerSupply covers battery, semiconductor, and drivetrain supply health.
	ProducerSupply Producer = "supply"

	// ProducerOEM covers OEM strategies, launches, and competitive positioning.
	ProducerOEM Producer = "oem"

	// ProducerFinance covers capital markets, funding flows, and profitability.
	ProducerFinance Producer = "finance"
)

// NumProducers is the size of the fixed producer set.
const NumProducers = 5

// AllProducers returns the producer roster in canonical order.
func AllProducers() []Producer {
	return []Producer{ProducerMarket, ProducerPolicy, ProducerSupply, ProducerOEM, ProducerFinance}
}

// ProducerIndex returns the slot index of a producer (0-indexed), or -1.
// Slot storage is an array indexed by this value so that concurrent writers
// touch disjoint memory.
func ProducerIndex(p Producer) int {
	switch p {
	case ProducerMarket:
		return 0
	case ProducerPolicy:
		return 1
	case ProducerSupply:
		return 2
	case ProducerOEM:
		return 3
	case ProducerFinance:
		return 4
	default:
		return -1
	}
}

// ValidProducer checks if a producer identifier belongs to the fixed set.
func ValidProducer(p Producer) bool {
	return ProducerIndex(p) >= 0
}

// ParseProducer converts a string to a Producer with validation.
func ParseProducer(s string) (Producer, error) {
	p := Producer(s)
	if !ValidProducer(p) {
		return "", ErrValidation(CodeUnknownProducer, "unknown producer: "+s)
	}
	return p, nil
}

// String returns the string representation of the producer.
func (p Producer) String() string {
	return string(p)
}

// Focus returns the analysis scope handed to the producer's collaborator.
func (p Producer) Focus() string {
	switch p {
	case ProducerMarket:
		return "market demand, pricing, sales mix, and regional share dynamics"
	case ProducerPolicy:
		return "major policy, regulatory, and incentive signals affecting EV adoption"
	case ProducerSupply:
		return "battery, semiconductor, and drivetrain supply chain health"
	case ProducerOEM:
		return "OEM strategies, product launches, and competitive positioning"
	case ProducerFinance:
		return "capital markets, funding flows, stock movements, and profitability indicators"
	default:
		return "your designated analysis scope"
	}
}
