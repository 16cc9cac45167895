package keywords

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_seeds.json
var defaultSeeds []byte

// Seeds is the parsed content of a seed file.
type Seeds struct {
	Keywords  []KeywordRule
	Overrides []OverrideRule
}

type seedFile struct {
	Keywords  []seedKeyword  `json:"keywords" yaml:"keywords"`
	Overrides []seedOverride `json:"overrides" yaml:"overrides"`
}

type seedKeyword struct {
	Phrase          string   `json:"phrase" yaml:"phrase"`
	TaskCode        string   `json:"task_code" yaml:"task_code"`
	ActivityCode    string   `json:"activity_code" yaml:"activity_code"`
	ConfidenceBoost *float64 `json:"confidence_boost" yaml:"confidence_boost"`
}

type seedOverride struct {
	Phrase       string `json:"phrase" yaml:"phrase"`
	TaskCode     string `json:"task_code" yaml:"task_code"`
	ActivityCode string `json:"activity_code" yaml:"activity_code"`
	Notes        string `json:"notes" yaml:"notes"`
}

// LoadSeeds reads a seed file. Files ending in .yml or .yaml are parsed as
// YAML, everything else as JSON. An empty path selects the built-in seeds.
func LoadSeeds(path string) (*Seeds, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ParseSeeds(defaultSeeds, false)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	seeds, err := ParseSeeds(data, ext == ".yml" || ext == ".yaml")
	if err != nil {
		return nil, fmt.Errorf("seeds %s: %w", path, err)
	}
	return seeds, nil
}

// DefaultSeeds returns the built-in seed rules.
func DefaultSeeds() *Seeds {
	seeds, err := ParseSeeds(defaultSeeds, false)
	if err != nil {
		panic(fmt.Sprintf("embedded seeds: %v", err))
	}
	return seeds
}

// ParseSeeds decodes seed content. Rows are validated individually and the
// first invalid row aborts the load with its position.
func ParseSeeds(data []byte, isYAML bool) (*Seeds, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	var file seedFile
	if len(bytes.TrimSpace(data)) > 0 {
		var err error
		if isYAML {
			err = yaml.Unmarshal(data, &file)
		} else {
			err = json.Unmarshal(data, &file)
		}
		if err != nil {
			return nil, fmt.Errorf("decode seeds: %w", err)
		}
	}

	seeds := &Seeds{}
	for i, row := range file.Keywords {
		rule := KeywordRule{
			Phrase:          row.Phrase,
			TaskCode:        row.TaskCode,
			ActivityCode:    row.ActivityCode,
			ConfidenceBoost: DefaultConfidenceBoost,
		}
		if row.ConfidenceBoost != nil {
			rule.ConfidenceBoost = *row.ConfidenceBoost
		}
		if err := rule.Normalize(); err != nil {
			return nil, fmt.Errorf("keywords[%d]: %w", i, err)
		}
		seeds.Keywords = append(seeds.Keywords, rule)
	}
	for i, row := range file.Overrides {
		rule := OverrideRule{Phrase: row.Phrase, TaskCode: row.TaskCode, ActivityCode: row.ActivityCode, Notes: row.Notes}
		if err := rule.Normalize(); err != nil {
			return nil, fmt.Errorf("overrides[%d]: %w", i, err)
		}
		seeds.Overrides = append(seeds.Overrides, rule)
	}
	return seeds, nil
}

// Snapshot builds an in-memory snapshot from the seeds, assigning sequential
// identifiers in file order.
func (s *Seeds) Snapshot() (*Snapshot, error) {
	overrides := make([]OverrideRule, len(s.Overrides))
	for i, rule := range s.Overrides {
		rule.ID = int64(i + 1)
		overrides[i] = rule
	}
	kws := make([]KeywordRule, len(s.Keywords))
	for i, rule := range s.Keywords {
		rule.ID = int64(i + 1)
		kws[i] = rule
	}
	return NewSnapshot(overrides, kws)
}
