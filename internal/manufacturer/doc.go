// Package manufacturer holds the catalog of Bluetooth company identifiers.
//
// The catalog is a read-only lookup table loaded once at startup, either
// from the embedded list or from a YAML file:
//
//	- value: 0x02E1
//	  name: Victron Energy BV
//	  country: NL
//	  comment: Instant Readout
//	  parent: 0x0059
//
// value and parent accept a decimal integer or a 0x-prefixed hex string and
// are normalized to a uint16 at load time.
package manufacturer
