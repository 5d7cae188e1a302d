// Package catalog holds the ordered, read-only list of lesson units.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/khutwa/pkg/models"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmpty is returned for a catalog without units
	ErrEmpty = errors.New("catalog has no units")
	// ErrDuplicateID is returned when two units share an id
	ErrDuplicateID = errors.New("duplicate unit id")
	// ErrDuplicateSymbol is returned when two units share a symbol, since
	// the games tell answers from distractors by symbol
	ErrDuplicateSymbol = errors.New("duplicate unit symbol")
	// ErrOrder is returned when unit order is not strictly increasing
	ErrOrder = errors.New("unit order must be strictly increasing")
)

// Catalog is an immutable ordered list of units
type Catalog struct {
	units []models.UnitContent
	index map[string]int
}

// New validates units and builds a catalog. Units must already be in
// catalog order.
func New(units []models.UnitContent) (*Catalog, error) {
	if len(units) == 0 {
		return nil, ErrEmpty
	}

	c := &Catalog{
		units: make([]models.UnitContent, len(units)),
		index: make(map[string]int, len(units)),
	}
	copy(c.units, units)

	symbols := make(map[string]string, len(units))
	for i, u := range c.units {
		if u.ID == "" {
			return nil, fmt.Errorf("unit at position %d has no id", i)
		}
		if _, ok := c.index[u.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, u.ID)
		}
		if prev, ok := symbols[u.Symbol]; ok {
			return nil, fmt.Errorf("%w: %q used by %s and %s", ErrDuplicateSymbol, u.Symbol, prev, u.ID)
		}
		symbols[u.Symbol] = u.ID
		if i > 0 && u.Order <= c.units[i-1].Order {
			return nil, fmt.Errorf("%w: %s (%d) after %s (%d)", ErrOrder, u.ID, u.Order, c.units[i-1].ID, c.units[i-1].Order)
		}
		c.index[u.ID] = i
	}

	return c, nil
}

// Units returns a copy of the units in catalog order
func (c *Catalog) Units() []models.UnitContent {
	out := make([]models.UnitContent, len(c.units))
	copy(out, c.units)
	return out
}

// Len returns the number of units
func (c *Catalog) Len() int {
	return len(c.units)
}

// First returns the first unit in the catalog
func (c *Catalog) First() models.UnitContent {
	return c.units[0]
}

// Lookup returns the unit with the given id
func (c *Catalog) Lookup(id string) (models.UnitContent, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.UnitContent{}, false
	}
	return c.units[i], true
}

// Has reports whether id names a unit in the catalog
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Index returns the catalog position of id, or -1
func (c *Catalog) Index(id string) int {
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}

// Resolve returns the unit with the given id, falling back to the first
// unit so a learner is never left without a lesson. The second result is
// false when the fallback was used.
func (c *Catalog) Resolve(id string) (models.UnitContent, bool) {
	if u, ok := c.Lookup(id); ok {
		return u, true
	}
	return c.First(), false
}

// Others returns every unit except the one with the given id
func (c *Catalog) Others(id string) []models.UnitContent {
	out := make([]models.UnitContent, 0, len(c.units))
	for _, u := range c.units {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

type catalogFile struct {
	Units []models.UnitContent `yaml:"units"`
}

// LoadFile reads a YAML catalog of the form `units: [...]`
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	return New(f.Units)
}

// WriteFile stores units as a YAML catalog
func WriteFile(path string, units []models.UnitContent) error {
	data, err := yaml.Marshal(catalogFile{Units: units})
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
