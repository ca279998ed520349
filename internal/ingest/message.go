package ingest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/bosun-core/internal/pipeline"
)

// maxManufacturerData bounds the decoded payload. Legacy advertisements
// carry at most 31 bytes; extended advertising allows more.
const maxManufacturerData = 255

// Message is the JSON body a scanner sends.
type Message struct {
	Address          string     `json:"address"`
	Name             string     `json:"name,omitempty"`
	RSSI             int        `json:"rssi,omitempty"`
	ManufacturerData string     `json:"manufacturer_data"`
	Timestamp        *time.Time `json:"timestamp,omitempty"`
}

// Parse decodes a scanner message. A missing timestamp is left zero so the
// pipeline stamps it on arrival.
func Parse(data []byte) (pipeline.Advertisement, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return pipeline.Advertisement{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return m.Advertisement()
}

// Advertisement validates m and converts it.
func (m Message) Advertisement() (pipeline.Advertisement, error) {
	if strings.TrimSpace(m.Address) == "" {
		return pipeline.Advertisement{}, fmt.Errorf("%w: address is required", ErrInvalidMessage)
	}
	payload, err := DecodeHex(m.ManufacturerData)
	if err != nil {
		return pipeline.Advertisement{}, err
	}

	adv := pipeline.Advertisement{
		Address: m.Address,
		Name:    strings.TrimSpace(m.Name),
		RSSI:    m.RSSI,
		Payload: payload,
	}
	if m.Timestamp != nil {
		adv.ObservedAt = m.Timestamp.UTC()
	}
	return adv, nil
}

// DecodeHex accepts plain hex, optionally 0x-prefixed and separated by
// colons, dashes or spaces.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(":", "", "-", "", " ", "").Replace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: manufacturer_data is required", ErrInvalidMessage)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: manufacturer_data: %w", ErrInvalidMessage, err)
	}
	if len(b) > maxManufacturerData {
		return nil, fmt.Errorf("%w: manufacturer_data is %d bytes, max %d", ErrInvalidMessage, len(b), maxManufacturerData)
	}
	return b, nil
}
