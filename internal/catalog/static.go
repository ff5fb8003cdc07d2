package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticLookup serves a fixed set of prices.
type StaticLookup struct {
	prices map[string]ProductPrice
}

// NewStaticLookup copies prices into a lookup.
func NewStaticLookup(prices map[string]ProductPrice) *StaticLookup {
	cp := make(map[string]ProductPrice, len(prices))
	for id, p := range prices {
		if p.ProductID == "" {
			p.ProductID = id
		}
		cp[id] = p
	}
	return &StaticLookup{prices: cp}
}

// Prices implements PriceLookup.
func (s *StaticLookup) Prices(_ context.Context, productIDs []string) (map[string]ProductPrice, error) {
	ids := uniqueIDs(productIDs)
	out := make(map[string]ProductPrice, len(ids))
	for _, id := range ids {
		if p, ok := s.prices[id]; ok {
			out[id] = p
		}
	}
	if err := checkComplete(ids, out); err != nil {
		return nil, err
	}
	return out, nil
}

// File is the YAML layout of a price list.
type File struct {
	Prices []ProductPrice `yaml:"prices"`
}

// ReadFile decodes a YAML price list.
func ReadFile(path string) ([]ProductPrice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price list: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode price list: %w", err)
	}
	for i, p := range f.Prices {
		if p.ProductID == "" {
			return nil, fmt.Errorf("price list entry %d has no productId", i)
		}
	}
	return f.Prices, nil
}

// LoadStaticFile builds a StaticLookup from a YAML price list.
func LoadStaticFile(path string) (*StaticLookup, error) {
	prices, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]ProductPrice, len(prices))
	for _, p := range prices {
		byID[p.ProductID] = p
	}
	return NewStaticLookup(byID), nil
}
