package decoder

// Metrics is a decoded metric set keyed by metric name. Values are float64,
// int, bool or string.
type Metrics map[string]any

// Decoder decodes the vendor bytes that follow the company identifier.
type Decoder interface {
	// Name identifies the decoder in logs and errors.
	Name() string

	// Fields lists every metric key Decode may return.
	Fields() []string

	// MinLength is the smallest vendor payload Decode accepts.
	MinLength() int

	// Decode must not retain data or cfg and must not read past len(data).
	Decode(data []byte, cfg map[string]any) (Metrics, error)
}

// notImplemented declares a known manufacturer whose format is not decoded.
type notImplemented struct {
	name string
}

// NotImplemented returns a Decoder that always fails with ErrNotImplemented.
func NotImplemented(name string) Decoder {
	return notImplemented{name: name}
}

func (n notImplemented) Name() string     { return n.name }
func (n notImplemented) Fields() []string { return nil }
func (n notImplemented) MinLength() int   { return 0 }

func (n notImplemented) Decode([]byte, map[string]any) (Metrics, error) {
	return nil, ErrNotImplemented
}
