package tax

// Policy answers the two display questions the pricing core depends on.
type Policy interface {
	// UseGross reports whether prices are shown including tax.
	UseGross() bool
	// IsNetDelivery reports whether shipping costs are charged without tax.
	IsNetDelivery() bool
}

// Detector is a fixed Policy. Its answers never change after construction.
type Detector struct {
	useGross    bool
	netDelivery bool
}

// NewDetector builds a detector from the two flags.
func NewDetector(useGross, netDelivery bool) Detector {
	return Detector{useGross: useGross, netDelivery: netDelivery}
}

// GrossDetector shows gross prices and taxes delivery.
func GrossDetector() Detector { return NewDetector(true, false) }

// NetDetector shows net prices and taxes delivery.
func NetDetector() Detector { return NewDetector(false, false) }

// NetDeliveryDetector shows net prices and charges delivery without tax.
func NetDeliveryDetector() Detector { return NewDetector(false, true) }

// UseGross implements Policy.
func (d Detector) UseGross() bool { return d.useGross }

// IsNetDelivery implements Policy.
func (d Detector) IsNetDelivery() bool { return d.netDelivery }
