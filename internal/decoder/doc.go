// Package decoder turns BLE manufacturer data into named metrics.
//
// A manufacturer-data payload starts with the 16-bit Bluetooth company
// identifier (little-endian) followed by vendor-specific bytes. The Registry
// reads the identifier, picks the Decoder registered for it and hands the
// remaining bytes, plus the device's configuration, to Decoder.Decode.
//
// Decoders are pure: output depends only on the bytes and the config passed
// in (for example a per-device encryption key), and every read is bounds
// checked. The registry additionally enforces MinLength, recovers panics and
// drops any metric a decoder did not declare in Fields.
//
//	reg := decoder.NewRegistry()
//	decoder.RegisterBuiltins(reg)
//	res, err := reg.DecodeFor(payload, device.Config)
//	switch {
//	case errors.Is(err, decoder.ErrNoDecoder):
//	    // unknown manufacturer, informational
//	case errors.Is(err, decoder.ErrDecodeFailure):
//	    // recorded against the device
//	}
package decoder
