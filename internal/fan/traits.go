package fan

// Traits records which optional controls a fan supports.
//
// Traits are metadata set once by the driver during setup. Consumers read
// them to decide which controls to expose; the State itself never enforces
// them.
type Traits struct {
	// Oscillation is true when the fan can oscillate.
	Oscillation bool `json:"oscillation"`

	// Speed is true when the fan supports discrete speed control.
	Speed bool `json:"speed"`
}

// NewTraits returns a Traits value with the given capabilities.
func NewTraits(oscillation, speed bool) Traits {
	return Traits{Oscillation: oscillation, Speed: speed}
}
