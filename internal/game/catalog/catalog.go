// Package catalog loads game definitions that bind a catalog ID to the Lua
// rules script implementing that game.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition describes one playable game.
type Definition struct {
	// ID is the catalog identifier referenced by broker configuration.
	ID string `yaml:"id"`
	// Name is the human-readable game name.
	Name string `yaml:"name"`
	// Script is the path to the Lua rules script, relative to the working directory.
	Script string `yaml:"script"`
	// InstructionLimit caps Lua opcodes per rules call; 0 uses the engine default.
	InstructionLimit int `yaml:"instruction_limit"`
}

// Validate checks the definition invariants.
//
// Postcondition: Returns nil if the definition is valid, or a descriptive error.
func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("game definition missing id")
	}
	if d.Script == "" {
		return fmt.Errorf("game %q missing script path", d.ID)
	}
	if d.InstructionLimit < 0 {
		return fmt.Errorf("game %q has negative instruction_limit %d", d.ID, d.InstructionLimit)
	}
	return nil
}

// Catalog is an immutable set of game definitions keyed by ID.
type Catalog struct {
	defs map[string]Definition
}

// LoadDirectory reads every *.yaml file in dir as a game definition.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a Catalog with at least one definition, or an error
// on unreadable files, invalid definitions, or duplicate IDs.
func LoadDirectory(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading games dir %s: %w", dir, err)
	}

	defs := make(map[string]Definition)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		def, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if _, exists := defs[def.ID]; exists {
			return nil, fmt.Errorf("duplicate game id %q in %s", def.ID, path)
		}
		defs[def.ID] = def
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("no game definitions found in %s", dir)
	}
	return &Catalog{defs: defs}, nil
}

func loadFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("reading game file %s: %w", path, err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("parsing game YAML %s: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return Definition{}, fmt.Errorf("validating %s: %w", path, err)
	}
	return def, nil
}

// Get returns the definition for the given ID.
//
// Postcondition: Returns (definition, true) if found, or (zero, false) otherwise.
func (c *Catalog) Get(id string) (Definition, bool) {
	def, ok := c.defs[id]
	return def, ok
}

// IDs returns all catalog IDs in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of definitions in the catalog.
func (c *Catalog) Len() int {
	return len(c.defs)
}
