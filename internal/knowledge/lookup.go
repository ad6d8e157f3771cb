// Package knowledge retrieves clinical, drug-interaction and food facts used to ground
// agent answers. An empty result is a normal outcome and must never be papered over.
package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// Domain selects which kind of facts a lookup searches
type Domain string

const (
	DomainDrugInteraction   Domain = "drug_interaction"
	DomainFood              Domain = "food"
	DomainClinicalGuideline Domain = "clinical_guideline"
)

// Domains lists every supported domain
var Domains = []Domain{DomainDrugInteraction, DomainFood, DomainClinicalGuideline}

// ParseDomain validates a domain name
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.TrimSpace(strings.ToLower(s)))
	for _, known := range Domains {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown knowledge domain %q", s)
}

// Fact is a snippet of grounding text with the label of where it came from
type Fact struct {
	Domain   Domain   `json:"domain" yaml:"domain"`
	Entities []string `json:"entities" yaml:"entities"`
	Text     string   `json:"text" yaml:"text"`
	Source   string   `json:"source" yaml:"source"`
}

// Lookup retrieves facts about entities in one domain
type Lookup interface {
	Lookup(ctx context.Context, entities []string, domain Domain) ([]Fact, error)
}

// Normalize lowercases and trims entity names and drops empties and duplicates
func Normalize(entities []string) []string {
	seen := make(map[string]struct{}, len(entities))
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		n := strings.ToLower(strings.TrimSpace(e))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Sources returns the distinct source labels of facts in order of first appearance
func Sources(facts []Fact) []string {
	seen := make(map[string]struct{}, len(facts))
	var out []string
	for _, f := range facts {
		if _, ok := seen[f.Source]; ok || f.Source == "" {
			continue
		}
		seen[f.Source] = struct{}{}
		out = append(out, f.Source)
	}
	return out
}

// Dedupe removes facts with identical text and source, keeping the first
func Dedupe(facts []Fact) []Fact {
	seen := make(map[string]struct{}, len(facts))
	out := make([]Fact, 0, len(facts))
	for _, f := range facts {
		key := f.Source + "\x00" + f.Text
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}
