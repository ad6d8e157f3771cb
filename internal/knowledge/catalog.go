package knowledge

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// CatalogFile is the YAML document format for fact catalogs
type CatalogFile struct {
	Facts []Fact `yaml:"facts"`
}

// Catalog is an in-memory fact index keyed by domain and entity
type Catalog struct {
	index map[Domain]map[string][]int
	facts []Fact
}

// NewCatalog indexes facts. Facts with an unknown domain are rejected.
func NewCatalog(facts []Fact) (*Catalog, error) {
	c := &Catalog{index: make(map[Domain]map[string][]int)}
	for _, f := range facts {
		d, err := ParseDomain(string(f.Domain))
		if err != nil {
			return nil, err
		}
		if f.Text == "" || f.Source == "" {
			return nil, fmt.Errorf("fact for %v is missing text or source", f.Entities)
		}
		f.Domain = d
		f.Entities = Normalize(f.Entities)
		i := len(c.facts)
		c.facts = append(c.facts, f)
		if c.index[d] == nil {
			c.index[d] = make(map[string][]int)
		}
		for _, e := range f.Entities {
			c.index[d][e] = append(c.index[d][e], i)
		}
	}
	return c, nil
}

// ParseCatalog reads a YAML catalog document
func ParseCatalog(r io.Reader) ([]Fact, error) {
	var file CatalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return file.Facts, nil
}

// LoadCatalogFile reads and indexes a YAML catalog from disk
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	facts, err := ParseCatalog(f)
	if err != nil {
		return nil, err
	}
	return NewCatalog(facts)
}

// DefaultFacts returns the facts bundled with the binary
func DefaultFacts() ([]Fact, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(defaultCatalogYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to decode bundled catalog: %w", err)
	}
	return file.Facts, nil
}

// DefaultCatalog returns the catalog bundled with the binary
func DefaultCatalog() (*Catalog, error) {
	facts, err := DefaultFacts()
	if err != nil {
		return nil, err
	}
	return NewCatalog(facts)
}

// Lookup implements Lookup
func (c *Catalog) Lookup(_ context.Context, entities []string, domain Domain) ([]Fact, error) {
	byEntity := c.index[domain]
	if byEntity == nil {
		return []Fact{}, nil
	}
	seen := make(map[int]struct{})
	out := []Fact{}
	for _, e := range Normalize(entities) {
		for _, i := range byEntity[e] {
			if _, ok := seen[i]; ok {
				continue
			}
			seen[i] = struct{}{}
			out = append(out, c.facts[i])
		}
	}
	return out, nil
}

// Len returns the number of indexed facts
func (c *Catalog) Len() int {
	return len(c.facts)
}
