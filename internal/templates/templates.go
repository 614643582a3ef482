package templates

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Beat is one slot in a template's structure.
type Beat struct {
	Type    string `yaml:"type" json:"type"`
	Purpose string `yaml:"purpose" json:"purpose"`
}

// Template is a named script structure used when drafting segments.
type Template struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Structure   []Beat `yaml:"structure" json:"structure"`
}

// SegmentTypes returns the segment type of every beat in order.
func (t Template) SegmentTypes() []string {
	types := make([]string, len(t.Structure))
	for i, b := range t.Structure {
		types[i] = b.Type
	}
	return types
}

type file struct {
	Templates []Template `yaml:"templates"`
}

// Catalog holds the available templates, keyed by ID.
type Catalog struct {
	byID  map[string]Template
	order []string
}

// Builtin returns the catalog shipped with the service.
func Builtin() *Catalog {
	c := &Catalog{byID: make(map[string]Template)}
	for _, t := range builtin {
		c.add(t)
	}
	return c
}

// Load returns the built-in catalog extended with the templates in path.
// A file template with a built-in ID replaces it. An empty path loads
// only the built-ins.
func Load(path string) (*Catalog, error) {
	c := Builtin()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse templates file: %w", err)
	}

	for i, t := range f.Templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template %d in %s has no id", i, path)
		}
		if len(t.Structure) == 0 {
			return nil, fmt.Errorf("template %q has an empty structure", t.ID)
		}
		c.add(t)
	}
	return c, nil
}

func (c *Catalog) add(t Template) {
	if _, ok := c.byID[t.ID]; !ok {
		c.order = append(c.order, t.ID)
	}
	c.byID[t.ID] = t
}

// Get looks a template up by ID.
func (c *Catalog) Get(id string) (Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// All returns every template, built-ins first in their declared order.
func (c *Catalog) All() []Template {
	out := make([]Template, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns the sorted template IDs.
func (c *Catalog) IDs() []string {
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}

var builtin = []Template{
	{
		ID:          "problem-solution",
		Name:        "Problem-Solution",
		Description: "Introduces a problem and presents your product/service as the solution",
		Structure: []Beat{
			{Type: "intro", Purpose: "Introduce the problem briefly (1 sentence)"},
			{Type: "point", Purpose: "Explain the issue briefly (1 sentence)"},
			{Type: "point", Purpose: "Introduce solution briefly (1 sentence)"},
			{Type: "point", Purpose: "Show benefits briefly (1 sentence)"},
			{Type: "conclusion", Purpose: "Call to action (1 sentence)"},
		},
	},
	{
		ID:          "how-to",
		Name:        "How-To Tutorial",
		Description: "Step-by-step instructions to accomplish a specific task",
		Structure: []Beat{
			{Type: "intro", Purpose: "Introduce what viewers will learn briefly (1 sentence)"},
			{Type: "point", Purpose: "Step 1 briefly (1 sentence)"},
			{Type: "point", Purpose: "Step 2 briefly (1 sentence)"},
			{Type: "point", Purpose: "Step 3 briefly (1 sentence)"},
			{Type: "conclusion", Purpose: "Recap and benefits briefly (1 sentence)"},
		},
	},
	{
		ID:          "listicle",
		Name:        "Listicle (Top 5)",
		Description: "Presents a list of tips, ideas, or products",
		Structure: []Beat{
			{Type: "intro", Purpose: "Introduce the topic briefly (1 sentence)"},
			{Type: "point", Purpose: "Item #1 briefly (1 sentence)"},
			{Type: "point", Purpose: "Item #2 briefly (1 sentence)"},
			{Type: "point", Purpose: "Item #3 briefly (1 sentence)"},
			{Type: "point", Purpose: "Item #4 briefly (1 sentence)"},
			{Type: "point", Purpose: "Item #5 briefly (1 sentence)"},
			{Type: "conclusion", Purpose: "Summarize and call to action briefly (1 sentence)"},
		},
	},
}
