package decoder

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
)

type stubDecoder struct {
	name    string
	fields  []string
	min     int
	metrics Metrics
	err     error
	panics  bool
	mutate  bool
}

func (s stubDecoder) Name() string     { return s.name }
func (s stubDecoder) Fields() []string { return s.fields }
func (s stubDecoder) MinLength() int   { return s.min }

func (s stubDecoder) Decode(data []byte, _ map[string]any) (Metrics, error) {
	if s.panics {
		var m map[string]int
		m["boom"] = 1
	}
	if s.mutate {
		for i := range data {
			data[i] = 0
		}
	}
	return s.metrics, s.err
}

func TestRegistry_RegisterLastWins(t *testing.T) {
	r := NewRegistry()
	r.Register(0x0001, stubDecoder{name: "first"})
	r.Register(0x0001, stubDecoder{name: "second"})
	r.Register(0x0000, stubDecoder{name: "zero"})

	d, ok := r.Lookup(0x0001)
	if !ok || d.Name() != "second" {
		t.Fatalf("Lookup(1) = %v, %v; want second", d, ok)
	}
	if _, ok := r.Lookup(0x0002); ok {
		t.Error("Lookup(2) found a decoder")
	}
	if ids := r.IDs(); !slices.Equal(ids, []uint16{0, 1}) {
		t.Errorf("IDs() = %v", ids)
	}
}

func TestRegistry_DecodeFor(t *testing.T) {
	r := NewRegistry()
	r.Register(0x1234, stubDecoder{
		name:    "stub",
		fields:  []string{"a", "b"},
		min:     2,
		metrics: Metrics{"a": 1, "b": 2.5, "sneaky": true},
	})
	r.Register(0x0002, stubDecoder{name: "broken", err: errors.New("crc mismatch")})
	r.Register(0x0003, stubDecoder{name: "panicky", panics: true})
	r.Register(0x0004, NotImplemented("later"))

	t.Run("success filters undeclared", func(t *testing.T) {
		res, err := r.DecodeFor([]byte{0x34, 0x12, 0xAA, 0xBB}, nil)
		if err != nil {
			t.Fatalf("DecodeFor() error = %v", err)
		}
		if res.ManufacturerID != 0x1234 || res.Decoder != "stub" {
			t.Errorf("result = %+v", res)
		}
		if len(res.Metrics) != 2 || res.Metrics["a"] != 1 {
			t.Errorf("Metrics = %v", res.Metrics)
		}
		if _, ok := res.Metrics["sneaky"]; ok {
			t.Error("undeclared metric returned")
		}
	})

	tests := []struct {
		name    string
		payload []byte
		want    []error
		notWant error
		id      uint16
	}{
		{"empty", nil, []error{ErrDecodeFailure, ErrPayloadTooShort}, ErrNoDecoder, 0},
		{"one byte", []byte{0x34}, []error{ErrDecodeFailure, ErrPayloadTooShort}, ErrNoDecoder, 0},
		{"unregistered", []byte{0xFF, 0xFF, 1}, []error{ErrNoDecoder}, ErrDecodeFailure, 0xFFFF},
		{"below min length", []byte{0x34, 0x12, 0xAA}, []error{ErrDecodeFailure, ErrPayloadTooShort}, nil, 0x1234},
		{"decoder error", []byte{0x02, 0x00}, []error{ErrDecodeFailure}, nil, 0x0002},
		{"decoder panic", []byte{0x03, 0x00}, []error{ErrDecodeFailure, ErrPanic}, nil, 0x0003},
		{"not implemented", []byte{0x04, 0x00, 9}, []error{ErrDecodeFailure, ErrNotImplemented}, nil, 0x0004},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.DecodeFor(tt.payload, nil)
			if err == nil {
				t.Fatal("DecodeFor() error = nil")
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Errorf("error %v does not match %v", err, want)
				}
			}
			if tt.notWant != nil && errors.Is(err, tt.notWant) {
				t.Errorf("error %v unexpectedly matches %v", err, tt.notWant)
			}
			if res.ManufacturerID != tt.id {
				t.Errorf("ManufacturerID = 0x%04X, want 0x%04X", res.ManufacturerID, tt.id)
			}
			if res.Metrics != nil {
				t.Errorf("Metrics = %v on failure", res.Metrics)
			}
		})
	}
}

func TestRegistry_DecodeErrorFields(t *testing.T) {
	r := NewRegistry()
	r.Register(0x0002, stubDecoder{name: "broken", err: ErrKeyMismatch})

	_, err := r.DecodeFor([]byte{0x02, 0x00}, nil)
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error %T is not *DecodeError", err)
	}
	if de.ManufacturerID != 2 || de.Decoder != "broken" || de.Reason == "" {
		t.Errorf("DecodeError = %+v", de)
	}
	if de.Error() != "decode 0x0002 (broken): "+ErrKeyMismatch.Error() {
		t.Errorf("Error() = %q", de.Error())
	}
}

func TestRegistry_DecoderCannotMutatePayload(t *testing.T) {
	r := NewRegistry()
	r.Register(0x0001, stubDecoder{name: "vandal", mutate: true})

	payload := []byte{0x01, 0x00, 0xAB, 0xCD}
	if _, err := r.DecodeFor(payload, nil); err != nil {
		t.Fatalf("DecodeFor() error = %v", err)
	}
	if !slices.Equal(payload, []byte{0x01, 0x00, 0xAB, 0xCD}) {
		t.Errorf("payload mutated: % X", payload)
	}
}

// Every built-in decoder either fails with a decode failure or returns
// only declared fields, for any input length.
func TestBuiltins_ArbitraryInput(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)
	rng := rand.New(rand.NewPCG(7, 11))
	cfg := map[string]any{ConfigEncryptionKey: testVictronKey}

	for _, id := range r.IDs() {
		d, _ := r.Lookup(id)
		for n := 0; n < 48; n++ {
			for trial := 0; trial < 20; trial++ {
				payload := make([]byte, idLength+n)
				payload[0], payload[1] = byte(id), byte(id>>8)
				for i := idLength; i < len(payload); i++ {
					payload[i] = byte(rng.UintN(256))
				}

				res, err := r.DecodeFor(payload, cfg)
				if err != nil {
					if !errors.Is(err, ErrDecodeFailure) {
						t.Fatalf("%s len %d: error %v is not a decode failure", d.Name(), n, err)
					}
					if n < d.MinLength() && !errors.Is(err, ErrPayloadTooShort) {
						t.Fatalf("%s len %d: short payload error = %v", d.Name(), n, err)
					}
					if errors.Is(err, ErrPanic) {
						t.Fatalf("%s len %d: decoder panicked: %v", d.Name(), n, err)
					}
					continue
				}
				for k := range res.Metrics {
					if !slices.Contains(d.Fields(), k) {
						t.Fatalf("%s returned undeclared field %q", d.Name(), k)
					}
				}
			}
		}
	}
}
