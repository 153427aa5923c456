package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a test catalog from a YAML file.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. Unknown fields are rejected so typos in
// test files surface at startup instead of silently dropping questions.
func Parse(data []byte) (Catalog, error) {
	var cat Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cat); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Catalog{}, fmt.Errorf("parse catalog: multiple YAML documents are not supported")
		}
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// Validate checks structural invariants the engine relies on.
func (c Catalog) Validate() error {
	if len(c.Tests) == 0 {
		return fmt.Errorf("catalog: no tests defined")
	}
	seen := make(map[string]bool, len(c.Tests))
	for i, t := range c.Tests {
		if t.Name == "" {
			return fmt.Errorf("catalog: test %d has no name", i+1)
		}
		if seen[t.Name] {
			return fmt.Errorf("catalog: duplicate test name %q", t.Name)
		}
		seen[t.Name] = true
		if len(t.Questions) == 0 {
			return fmt.Errorf("catalog: test %q has no questions", t.Name)
		}
		qids := make(map[string]bool, len(t.Questions))
		for j, q := range t.Questions {
			if q.Text == "" {
				return fmt.Errorf("catalog: test %q question %d has no text", t.Name, j+1)
			}
			if len(q.Options) < 2 {
				return fmt.Errorf("catalog: test %q question %d needs at least two options", t.Name, j+1)
			}
			if q.ID != "" {
				if qids[q.ID] {
					return fmt.Errorf("catalog: test %q has duplicate question id %q", t.Name, q.ID)
				}
				qids[q.ID] = true
			}
		}
	}
	for _, p := range c.Packages {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("catalog: package missing id or name")
		}
		if len(p.TestIndexes) == 0 {
			return fmt.Errorf("catalog: package %q lists no tests", p.ID)
		}
		for _, idx := range p.TestIndexes {
			if idx < 1 || idx > len(c.Tests) {
				return fmt.Errorf("catalog: package %q references test index %d out of range", p.ID, idx)
			}
		}
	}
	return nil
}

// TestByName returns the test with the given name, or false when absent.
func (c Catalog) TestByName(name string) (Test, bool) {
	for _, t := range c.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return Test{}, false
}

// PackageByID returns the package with the given id, or false when absent.
func (c Catalog) PackageByID(id string) (Package, bool) {
	for _, p := range c.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}
