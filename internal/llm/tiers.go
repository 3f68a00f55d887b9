package llm

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type Rank string

const (
	RankPrimary   Rank = "primary"
	RankSecondary Rank = "secondary"
	RankTertiary  Rank = "tertiary"
	RankFallback  Rank = "fallback"
)

var rankOrder = map[Rank]int{
	RankPrimary:   0,
	RankSecondary: 1,
	RankTertiary:  2,
	RankFallback:  3,
}

// Tier is one entry of the model fallback table.
type Tier struct {
	Rank        Rank    `yaml:"rank"`
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// ID is the provider/model identifier reported to callers.
func (t Tier) ID() string {
	return t.Provider + "/" + t.Model
}

type tierFile struct {
	Tiers []Tier `yaml:"tiers"`
}

//go:embed tiers.yaml
var defaultTiersYAML []byte

// DefaultTiers returns the built-in tier table in fallback order.
func DefaultTiers() ([]Tier, error) {
	return ParseTiers(defaultTiersYAML)
}

// LoadTiers reads a tier table from path, or the built-in table if path is empty.
func LoadTiers(path string) ([]Tier, error) {
	if path == "" {
		return DefaultTiers()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tiers file: %w", err)
	}
	return ParseTiers(data)
}

// ParseTiers decodes and validates a YAML tier table and sorts it by rank.
func ParseTiers(data []byte) ([]Tier, error) {
	var f tierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing tiers: %w", err)
	}
	if err := ValidateTiers(f.Tiers); err != nil {
		return nil, err
	}
	tiers := append([]Tier(nil), f.Tiers...)
	sort.SliceStable(tiers, func(i, j int) bool {
		return rankOrder[tiers[i].Rank] < rankOrder[tiers[j].Rank]
	})
	return tiers, nil
}

func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("tier table is empty")
	}
	seen := make(map[Rank]bool, len(tiers))
	for i, t := range tiers {
		if _, ok := rankOrder[t.Rank]; !ok {
			return fmt.Errorf("tier %d: unknown rank %q", i, t.Rank)
		}
		if seen[t.Rank] {
			return fmt.Errorf("tier %d: duplicate rank %q", i, t.Rank)
		}
		seen[t.Rank] = true
		if t.Provider == "" || t.Model == "" {
			return fmt.Errorf("tier %s: provider and model are required", t.Rank)
		}
		if t.MaxTokens <= 0 {
			return fmt.Errorf("tier %s: max_tokens must be positive", t.Rank)
		}
		if t.Temperature < 0 || t.Temperature > 2 {
			return fmt.Errorf("tier %s: temperature %.2f outside [0,2]", t.Rank, t.Temperature)
		}
	}
	return nil
}
