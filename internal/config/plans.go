package config

import (
	"fmt"
	"os"
	"ptero-billing/internal/model"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultCurrency = "USD"

type planCatalog struct {
	Plans []*model.Plan `yaml:"plans"`
}

// LoadPlanCatalog reads the plan tiers offered to customers from a YAML file.
func LoadPlanCatalog(path string) ([]*model.Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return ParsePlanCatalog(raw)
}

func ParsePlanCatalog(raw []byte) ([]*model.Plan, error) {
	var catalog planCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("decode plan catalog: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Plans))
	for i, p := range catalog.Plans {
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("plan #%d: missing id", i)
		case seen[p.ID]:
			return nil, fmt.Errorf("plan %s: duplicate id", p.ID)
		case p.Memory <= 0 || p.Disk <= 0 || p.CPU <= 0:
			return nil, fmt.Errorf("plan %s: memory, disk and cpu must be positive", p.ID)
		case p.Price.IsNegative():
			return nil, fmt.Errorf("plan %s: negative price", p.ID)
		}

		p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
		if p.Currency == "" {
			p.Currency = defaultCurrency
		}
		if len(p.Currency) != 3 {
			return nil, fmt.Errorf("plan %s: currency must be a 3-letter ISO code", p.ID)
		}
		seen[p.ID] = true
	}

	return catalog.Plans, nil
}
