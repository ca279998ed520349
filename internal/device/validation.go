package device

import (
	"fmt"
	"strings"
	"unicode"
)

// Validation limits.
const (
	maxAddressLength  = 64
	maxNameLength     = 100
	maxConfigKeys     = 50
	maxStringValueLen = 1024
	maxConfigDepth    = 4
)

// NormalizeAddress trims and upper-cases an address so that
// "aa:bb:cc:dd:ee:ff" and "AA:BB:CC:DD:EE:FF" name the same device.
func NormalizeAddress(address string) (string, error) {
	a := strings.ToUpper(strings.TrimSpace(address))
	if a == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if len(a) > maxAddressLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidAddress, maxAddressLength)
	}
	if strings.IndexFunc(a, unicode.IsSpace) >= 0 || strings.ContainsRune(a, '/') {
		return "", fmt.Errorf("%w: %q contains whitespace or '/'", ErrInvalidAddress, a)
	}
	return a, nil
}

// ValidateMetadata checks the descriptive fields of a device.
func ValidateMetadata(m Metadata) error {
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	if len(m.Type) > maxNameLength {
		return fmt.Errorf("%w: type exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateConfig bounds the size of a device config map.
func ValidateConfig(cfg map[string]any) error {
	if len(cfg) > maxConfigKeys {
		return fmt.Errorf("%w: %d keys exceeds limit of %d", ErrInvalidConfig, len(cfg), maxConfigKeys)
	}
	for k, v := range cfg {
		if err := validateValue(v, k, 0); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(v any, field string, depth int) error {
	if depth > maxConfigDepth {
		return fmt.Errorf("%w: %s nested deeper than %d", ErrInvalidConfig, field, maxConfigDepth)
	}
	switch val := v.(type) {
	case nil, bool, int, int64, float64:
		return nil
	case string:
		if len(val) > maxStringValueLen {
			return fmt.Errorf("%w: %s value exceeds %d characters", ErrInvalidConfig, field, maxStringValueLen)
		}
		return nil
	case map[string]any:
		if len(val) > maxConfigKeys {
			return fmt.Errorf("%w: %s has too many keys", ErrInvalidConfig, field)
		}
		for k, nested := range val {
			if err := validateValue(nested, field+"."+k, depth+1); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, elem := range val {
			if err := validateValue(elem, fmt.Sprintf("%s[%d]", field, i), depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidConfig, field, v)
	}
}
