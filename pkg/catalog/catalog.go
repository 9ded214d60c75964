// Package catalog loads the static snippet and composition-chain catalog.
// Catalog entries are immutable once loaded; validators never mutate them.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// Catalog holds the loaded snippets and composition chains, indexed for
// lookup by snippet id and by analytical intent.
type Catalog struct {
	snippets map[string]*models.ComposableSnippet
	chains   map[string]*models.CompositionChain
	ordered  []*models.ComposableSnippet
}

type catalogFile struct {
	Snippets []*models.ComposableSnippet `yaml:"snippets"`
	Chains   []*models.CompositionChain  `yaml:"chains"`
}

// Load reads a catalog YAML file from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	return New(f.Snippets, f.Chains)
}

// New builds a catalog from already-decoded entries, validating internal
// consistency: unique snippet ids, one chain per intent, and chain steps
// referencing known snippets.
func New(snippets []*models.ComposableSnippet, chains []*models.CompositionChain) (*Catalog, error) {
	c := &Catalog{
		snippets: make(map[string]*models.ComposableSnippet, len(snippets)),
		chains:   make(map[string]*models.CompositionChain, len(chains)),
	}

	for _, s := range snippets {
		if s.ID == "" {
			return nil, fmt.Errorf("snippet %q has no id", s.Name)
		}
		if _, exists := c.snippets[s.ID]; exists {
			return nil, fmt.Errorf("duplicate snippet id %q", s.ID)
		}
		c.snippets[s.ID] = s
		c.ordered = append(c.ordered, s)
	}

	for _, ch := range chains {
		if ch.Intent == "" {
			return nil, fmt.Errorf("chain %q has no intent", ch.Name)
		}
		if _, exists := c.chains[ch.Intent]; exists {
			return nil, fmt.Errorf("duplicate chain for intent %q", ch.Intent)
		}
		for _, id := range append(append([]string{}, ch.RequiredSnippets...), ch.OptionalSnippets...) {
			if _, ok := c.snippets[id]; !ok {
				return nil, fmt.Errorf("chain %q references unknown snippet %q", ch.Intent, id)
			}
		}
		c.chains[ch.Intent] = ch
	}

	return c, nil
}

// Snippet returns the snippet with the given id.
func (c *Catalog) Snippet(id string) (*models.ComposableSnippet, bool) {
	s, ok := c.snippets[id]
	return s, ok
}

// Chain returns the composition chain for an analytical intent.
// There is no default chain: an unknown intent returns false.
func (c *Catalog) Chain(intent string) (*models.CompositionChain, bool) {
	ch, ok := c.chains[intent]
	return ch, ok
}

// Snippets returns all snippets in file order.
func (c *Catalog) Snippets() []*models.ComposableSnippet {
	return c.ordered
}
