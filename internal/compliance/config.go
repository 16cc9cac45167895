package compliance

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"billexact/internal/logging"
)

// ErrConfig classifies unreadable or malformed rule configuration.
var ErrConfig = errors.New("compliance configuration")

var builtinOrder = []string{
	RuleDescriptionLength,
	RuleVaguePhrase,
	RuleBlockBilling,
	RuleDailyHoursCap,
	RuleTravelTime,
	RuleMaxEntryDuration,
	RuleForbiddenPhrase,
	RuleExpression,
}

// primaryParam names the parameter whose presence switches an off-by-default
// rule on when "enabled" is not given.
var primaryParam = map[string]string{
	RuleMaxEntryDuration: "max_hours",
	RuleForbiddenPhrase:  "patterns",
	RuleExpression:       "checks",
}

// RuleSpec is one resolved entry of the rule plan.
type RuleSpec struct {
	Kind    string         `json:"kind"`
	Enabled bool           `json:"enabled"`
	Params  map[string]any `json:"params,omitempty"`
}

type configuredRule struct {
	kind       string
	enabled    bool
	enabledSet bool
	params     map[string]any
}

// Config is a parsed rule configuration document. The zero value (and a nil
// *Config) selects the built-in defaults.
type Config struct {
	rules    []configuredRule
	warnings []string
}

// Warnings returns problems found while loading the configuration.
func (c *Config) Warnings() []string {
	if c == nil {
		return nil
	}
	return slices.Clone(c.warnings)
}

// Plan resolves the ordered rule list: configured rules in document order,
// then the remaining built-ins in their default order.
func (c *Config) Plan() []RuleSpec {
	var configured []configuredRule
	if c != nil {
		configured = c.rules
	}
	plan := make([]RuleSpec, 0, len(builtinOrder))
	seen := map[string]bool{}
	for _, rule := range configured {
		seen[rule.kind] = true
		plan = append(plan, RuleSpec{Kind: rule.kind, Enabled: resolveEnabled(rule), Params: rule.params})
	}
	for _, kind := range builtinOrder {
		if seen[kind] {
			continue
		}
		plan = append(plan, RuleSpec{Kind: kind, Enabled: defaultEnabled(kind)})
	}
	return plan
}

func defaultEnabled(kind string) bool {
	_, offByDefault := primaryParam[kind]
	return !offByDefault
}

func resolveEnabled(rule configuredRule) bool {
	if rule.enabledSet {
		return rule.enabled
	}
	if key, ok := primaryParam[rule.kind]; ok {
		_, present := rule.params[key]
		return present
	}
	return true
}

// ParseConfig decodes a YAML or JSON rule document with a top-level "rules"
// mapping keyed by rule ID. Empty input yields the default configuration.
func ParseConfig(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrConfig, err)
	}
	return configFromNode(&doc)
}

func configFromNode(doc *yaml.Node) (*Config, error) {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return &Config{}, nil
		}
		root = root.Content[0]
	}
	if root.Kind == 0 || isNull(root) {
		return &Config{}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrConfig)
	}
	rulesNode := mappingValue(root, "rules")
	if rulesNode == nil || isNull(rulesNode) {
		return &Config{}, nil
	}
	if rulesNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: rules must be a mapping", ErrConfig)
	}

	cfg := &Config{}
	for i := 0; i+1 < len(rulesNode.Content); i += 2 {
		kind := strings.TrimSpace(rulesNode.Content[i].Value)
		body := rulesNode.Content[i+1]
		if !slices.Contains(builtinOrder, kind) {
			cfg.warnings = append(cfg.warnings, fmt.Sprintf("unknown rule %q ignored", kind))
			continue
		}
		params := map[string]any{}
		if !isNull(body) {
			if body.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%w: rules.%s must be a mapping", ErrConfig, kind)
			}
			if err := body.Decode(&params); err != nil {
				return nil, fmt.Errorf("%w: rules.%s: %v", ErrConfig, kind, err)
			}
		}
		rule := configuredRule{kind: kind, params: params}
		if raw, ok := params["enabled"]; ok {
			enabled, isBool := raw.(bool)
			if !isBool {
				return nil, fmt.Errorf("%w: rules.%s.enabled must be a boolean", ErrConfig, kind)
			}
			rule.enabled = enabled
			rule.enabledSet = true
			delete(params, "enabled")
		}
		cfg.rules = append(cfg.rules, rule)
	}
	return cfg, nil
}

// LoadConfig reads and parses a rule configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Options selects where rule configuration comes from. PolicyDir takes
// precedence over RulesPath; neither selects the defaults.
type Options struct {
	RulesPath string
	PolicyDir string
	ClientID  string
}

// LoadOrDefault loads configuration per opts. Failures fall back to the
// built-in rule set; the fallback is logged and carried in the returned
// config's warnings.
func LoadOrDefault(opts Options, logger *slog.Logger) *Config {
	var (
		cfg    *Config
		err    error
		source string
	)
	switch {
	case strings.TrimSpace(opts.PolicyDir) != "":
		source = opts.PolicyDir
		cfg, err = LoadPolicy(opts.PolicyDir, opts.ClientID)
	case strings.TrimSpace(opts.RulesPath) != "":
		source = opts.RulesPath
		cfg, err = LoadConfig(opts.RulesPath)
	default:
		return &Config{}
	}
	if err == nil {
		return cfg
	}
	logging.WarnWithContext(logging.NewComponentLogger(logger, "compliance"),
		"rule configuration unusable; using default rules",
		"compliance_config_fallback",
		logging.String("source", source),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix the rules file syntax or remove it"),
		logging.String(logging.FieldImpact, "built-in rule set and parameters apply"),
	)
	return &Config{warnings: []string{fmt.Sprintf("using default rules: %v", err)}}
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}
