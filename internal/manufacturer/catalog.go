package manufacturer

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnknownName is returned by Name for identifiers not in the catalog.
const UnknownName = "Unknown"

//go:embed data/manufacturers.yaml
var embeddedCatalog []byte

// Entry is one company identifier.
type Entry struct {
	ID      uint16  `json:"id"`
	Name    string  `json:"name"`
	Country string  `json:"country,omitempty"`
	Comment string  `json:"comment,omitempty"`
	Parent  *uint16 `json:"parent,omitempty"`
}

// Catalog is immutable after Load and safe for concurrent reads.
type Catalog struct {
	entries map[uint16]Entry
}

type rawEntry struct {
	Value   *identifier `yaml:"value"`
	Name    string      `yaml:"name"`
	Country string      `yaml:"country"`
	Comment string      `yaml:"comment"`
	Parent  *identifier `yaml:"parent"`
}

// identifier decodes a YAML scalar written as 737, "737", 0x02E1 or "0x02E1".
type identifier uint16

func (id *identifier) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: not a scalar", ErrInvalidValue, node.Line)
	}
	v, err := ParseID(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*id = identifier(v)
	return nil
}

// ParseID normalizes a decimal or 0x-prefixed hex identifier.
func ParseID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	base := 10
	if lower := strings.ToLower(s); strings.HasPrefix(lower, "0x") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return uint16(v), nil
}

// LoadEmbedded loads the catalog compiled into the binary.
func LoadEmbedded() (*Catalog, error) {
	return Load(embeddedCatalog)
}

// LoadFile loads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manufacturer catalog: %w", err)
	}
	return Load(data)
}

// Load parses a YAML list of entries.
func Load(data []byte) (*Catalog, error) {
	var raw []rawEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing manufacturer catalog: %w", err)
	}

	c := &Catalog{entries: make(map[uint16]Entry, len(raw))}
	for i, r := range raw {
		if r.Value == nil {
			return nil, fmt.Errorf("entry %d (%q): %w: missing value", i, strings.TrimSpace(r.Name), ErrInvalidValue)
		}
		id := uint16(*r.Value)
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("entry %d (0x%04X): %w", i, id, ErrEmptyName)
		}
		if _, dup := c.entries[id]; dup {
			return nil, fmt.Errorf("entry %d: %w: 0x%04X", i, ErrDuplicate, id)
		}
		e := Entry{
			ID:      id,
			Name:    name,
			Country: strings.TrimSpace(r.Country),
			Comment: strings.TrimSpace(r.Comment),
		}
		if r.Parent != nil {
			p := uint16(*r.Parent)
			e.Parent = &p
		}
		c.entries[id] = e
	}

	for _, e := range c.entries {
		if e.Parent == nil {
			continue
		}
		if _, ok := c.entries[*e.Parent]; !ok {
			return nil, fmt.Errorf("0x%04X: %w: 0x%04X", e.ID, ErrUnknownParent, *e.Parent)
		}
	}

	return c, nil
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id uint16) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries[id]
	return e, ok
}

// Name returns the manufacturer name for id, or UnknownName.
func (c *Catalog) Name(id uint16) string {
	if e, ok := c.Lookup(id); ok {
		return e.Name
	}
	return UnknownName
}

// Family returns the entry for id followed by its parent chain. Cycles stop
// at the first repeated identifier.
func (c *Catalog) Family(id uint16) []Entry {
	var family []Entry
	seen := make(map[uint16]bool)
	for {
		e, ok := c.Lookup(id)
		if !ok || seen[id] {
			return family
		}
		seen[id] = true
		family = append(family, e)
		if e.Parent == nil {
			return family
		}
		id = *e.Parent
	}
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Entries returns all entries ordered by identifier.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
