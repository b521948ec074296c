package toolspec

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog is an ordered, validated set of tool specs. Names are unique and
// every tool owns a distinct subdirectory of the installation root.
type Catalog struct {
	specs []Spec
	index map[string]int
}

// UnknownToolError is returned when a requested tool is not in the catalog.
type UnknownToolError struct {
	Name      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// NewCatalog validates specs and returns them as a catalog, preserving order.
func NewCatalog(specs ...Spec) (*Catalog, error) {
	c := &Catalog{
		specs: make([]Spec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	subdirs := make(map[string]string, len(specs))

	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q in catalog", spec.Name)
		}
		// Case-insensitive so the layout is also disjoint on macOS and Windows.
		key := strings.ToLower(spec.Subdir)
		if owner, taken := subdirs[key]; taken {
			return nil, fmt.Errorf("tools %q and %q share subdirectory %q", owner, spec.Name, spec.Subdir)
		}
		subdirs[key] = spec.Name

		c.index[spec.Name] = len(c.specs)
		c.specs = append(c.specs, spec.Clone())
	}

	return c, nil
}

// Lookup returns the spec named name.
func (c *Catalog) Lookup(name string) (Spec, bool) {
	i, ok := c.index[name]
	if !ok {
		return Spec{}, false
	}
	return c.specs[i].Clone(), true
}

// Names returns tool names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.specs))
	for i, s := range c.specs {
		names[i] = s.Name
	}
	return names
}

// Specs returns copies of every spec in catalog order.
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, len(c.specs))
	for i, s := range c.specs {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	return len(c.specs)
}

// Merge returns a new catalog where each override replaces the spec with the
// same name in place, and unknown names are appended in the given order.
func (c *Catalog) Merge(overrides ...Spec) (*Catalog, error) {
	merged := c.Specs()
	for _, o := range overrides {
		if i, ok := c.index[o.Name]; ok {
			merged[i] = o
			continue
		}
		merged = append(merged, o)
	}
	return NewCatalog(merged...)
}

// Select returns the named specs in the order requested. No names selects
// the whole catalog. Repeated names are installed once.
func (c *Catalog) Select(names ...string) ([]Spec, error) {
	if len(names) == 0 {
		return c.Specs(), nil
	}

	seen := make(map[string]bool, len(names))
	out := make([]Spec, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		spec, ok := c.Lookup(name)
		if !ok {
			available := c.Names()
			sort.Strings(available)
			return nil, &UnknownToolError{Name: name, Available: available}
		}
		seen[name] = true
		out = append(out, spec)
	}
	return out, nil
}
