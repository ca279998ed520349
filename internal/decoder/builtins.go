package decoder

// Bluetooth SIG company identifiers with built-in decoders.
const (
	ManufacturerApple     uint16 = 0x004C
	ManufacturerVictron   uint16 = 0x02E1
	ManufacturerEspressif uint16 = 0x02E5
	ManufacturerRuuvi     uint16 = 0x0499
)

// RegisterBuiltins registers the decoders shipped with Bosun.
func RegisterBuiltins(r *Registry) {
	r.Register(ManufacturerVictron, Victron{})
	r.Register(ManufacturerRuuvi, Ruuvi{})
	r.Register(ManufacturerEspressif, Anchor{})
	// Continuity frames are encrypted and rotate addresses.
	r.Register(ManufacturerApple, NotImplemented("apple-continuity"))
}
