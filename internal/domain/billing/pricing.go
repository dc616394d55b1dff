package billing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// PriceTable maps a billing category to its unit cost.
type PriceTable map[string]float64

// DefaultPrices is the built-in scan price list, used when no pricing file is
// configured.
func DefaultPrices() PriceTable {
	return PriceTable{
		"CT":         10000,
		"MRI":        20000,
		"XRAY":       5000,
		"ULTRASOUND": 7500,
		"GENERAL":    2500,
	}
}

// LoadPriceTable reads a YAML price file of the form `CATEGORY: cost`. Entries
// merge over the defaults so a partial file only overrides what it names.
func LoadPriceTable(path string) (PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price file: %w", err)
	}

	var overrides map[string]float64
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse price file: %w", err)
	}

	table := DefaultPrices()
	for category, cost := range overrides {
		if cost < 0 {
			return nil, fmt.Errorf("negative cost for category %s", category)
		}
		table[category] = cost
	}
	return table, nil
}

// CostOf returns the unit cost for a category, falling back to the default
// category's cost for unknown types.
func (t PriceTable) CostOf(category string) float64 {
	if cost, ok := t[category]; ok {
		return cost
	}
	return t["GENERAL"]
}
