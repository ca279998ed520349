package manufacturer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	tests := []struct {
		id   uint16
		want string
	}{
		{0x02E1, "Victron Energy BV"},
		{0x0499, "Ruuvi Innovations Ltd."},
		{0x02E5, "Espressif Incorporated"},
		{0xFFFF, UnknownName},
	}
	for _, tt := range tests {
		if got := c.Name(tt.id); got != tt.want {
			t.Errorf("Name(0x%04X) = %q, want %q", tt.id, got, tt.want)
		}
	}

	if c.Len() == 0 || len(c.Entries()) != c.Len() {
		t.Errorf("Len() = %d, Entries() = %d", c.Len(), len(c.Entries()))
	}
}

func TestLoad_ValueForms(t *testing.T) {
	data := []byte(`
- value: 737
  name: decimal int
- value: "738"
  name: decimal string
- value: 0x02E3
  name: hex int
- value: "0X02e4"
  name: hex string upper prefix
`)
	c, err := Load(data)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for id, want := range map[uint16]string{
		737: "decimal int", 738: "decimal string", 0x02E3: "hex int", 0x02E4: "hex string upper prefix",
	} {
		if got := c.Name(id); got != want {
			t.Errorf("Name(%d) = %q, want %q", id, got, want)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"out of range", "- {value: 70000, name: big}", ErrInvalidValue},
		{"negative", "- {value: -1, name: neg}", ErrInvalidValue},
		{"garbage", "- {value: acme, name: sym}", ErrInvalidValue},
		{"missing value", "- name: Nameless Vendor\n", ErrInvalidValue},
		{"null value", "- {value: ~, name: nil}", ErrInvalidValue},
		{"empty name", "- {value: 1, name: ' '}", ErrEmptyName},
		{"duplicate", "- {value: 1, name: a}\n- {value: 0x0001, name: b}", ErrDuplicate},
		{"dangling parent", "- {value: 1, name: a, parent: 2}", ErrUnknownParent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	if _, err := Load([]byte("- value: [1")); err == nil {
		t.Error("Load() expected error for malformed YAML")
	}
}

func TestFamily(t *testing.T) {
	c, err := Load([]byte(`
- {value: 1, name: root}
- {value: 2, name: child, parent: 1, country: NL, comment: sub-brand}
- {value: 3, name: loop-a, parent: 4}
- {value: 4, name: loop-b, parent: 3}
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	family := c.Family(2)
	if len(family) != 2 || family[0].Name != "child" || family[1].Name != "root" {
		t.Errorf("Family(2) = %+v", family)
	}
	if family[0].Country != "NL" || family[0].Comment != "sub-brand" {
		t.Errorf("optional fields lost: %+v", family[0])
	}

	if got := len(c.Family(3)); got != 2 {
		t.Errorf("Family(3) length = %d, want 2 (cycle stops)", got)
	}
	if got := c.Family(99); got != nil {
		t.Errorf("Family(99) = %v, want nil", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.yaml")
	if err := os.WriteFile(path, []byte("- {value: 0x02E1, name: Victron}"), 0600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c.Name(0x02E1) != "Victron" {
		t.Errorf("Name = %q", c.Name(0x02E1))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile() expected error for missing file")
	}
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	if c.Name(1) != UnknownName || c.Len() != 0 || c.Entries() != nil {
		t.Error("nil catalog should behave as empty")
	}
}
