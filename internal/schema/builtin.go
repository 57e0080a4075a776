package schema

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// StageFeedback is the structured critique of one authoring stage.
var StageFeedback = MustNew("stage_feedback", "Structured critique of one document stage",
	Field{Name: "summary", Kind: Text, Description: "one-paragraph assessment"},
	Field{Name: "strengths", Kind: List, Items: Text},
	Field{Name: "weaknesses", Kind: List, Items: Text},
	Field{Name: "suggestions", Kind: List, Items: Text},
	Field{Name: "confidence", Kind: Number, Description: "0-100"},
	Field{Name: "verdict", Kind: Choice, Choices: []string{"revise", "acceptable", "strong"}},
	Field{Name: "dimension_scores", Kind: Mapping, Description: "score per rubric dimension", Optional: true},
)

// MarketAnalysis is a market sentiment report.
var MarketAnalysis = MustNew("market_analysis", "Market analysis result",
	Field{Name: "msci_score", Kind: Number, Description: "composite market sentiment index"},
	Field{Name: "sentiment", Kind: Choice, Choices: []string{"极度乐观", "乐观", "中性", "悲观", "极度悲观"}},
	Field{Name: "trend_direction", Kind: Choice, Choices: []string{"强势上涨", "温和上涨", "震荡整理", "温和下跌", "快速下跌"}},
	Field{Name: "volatility_level", Kind: Text},
	Field{Name: "risk_assessment", Kind: Choice, Choices: []string{"极低风险", "低风险", "中等风险", "高风险", "极高风险"}},
	Field{Name: "confidence_score", Kind: Number, Description: "0-100"},
	Field{Name: "key_factors", Kind: List, Items: Text},
)

var (
	registryMu sync.RWMutex
	registry   = map[string]*Schema{
		StageFeedback.Name():  StageFeedback,
		MarketAnalysis.Name(): MarketAnalysis,
	}
)

// Lookup returns a registered schema by name.
func Lookup(name string) (*Schema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

// Register adds s, replacing any schema with the same name.
func Register(s *Schema) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name()] = s
}

// Names lists registered schemas, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type schemaFile struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Fields      []Field `yaml:"fields"`
}

// ParseYAML builds a schema from a YAML document.
func ParseYAML(data []byte) (*Schema, error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return New(f.Name, f.Description, f.Fields...)
}

// LoadFile reads a YAML schema file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return s, nil
}
