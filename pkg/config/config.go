package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/secgate/pkg/engine"
)

// Duration wraps time.Duration so YAML can carry values like "90s" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ToolConfig configures one scanner invocation.
type ToolConfig struct {
	// Command overrides the wrapper's default command line; "{target}" is
	// replaced with the target path. Empty keeps the built-in.
	Command     string   `yaml:"command,omitempty"`
	Timeout     Duration `yaml:"timeout"`
	Required    bool     `yaml:"required"`
	Retries     int      `yaml:"retries"`
	RunInTarget bool     `yaml:"run_in_target,omitempty"`
}

// Config is the whole pipeline configuration: which tools run and how, plus
// the gate policy. All of it is externally supplied; defaults exist to be
// printed and edited, never to silently override an explicit file.
type Config struct {
	Tools  map[string]ToolConfig `yaml:"tools"`
	Policy engine.GatePolicy     `yaml:"policy"`
}

// Default returns the full built-in configuration with every table explicit.
func Default() *Config {
	return &Config{
		Tools: map[string]ToolConfig{
			"checkov":            {Timeout: Duration(2 * time.Minute), Required: true, Retries: 1},
			"tfsec":              {Timeout: Duration(1 * time.Minute), Required: true, Retries: 1},
			"trivy":              {Timeout: Duration(2 * time.Minute)},
			"terraform-validate": {Timeout: Duration(1 * time.Minute), RunInTarget: true},
		},
		Policy: engine.DefaultGatePolicy(),
	}
}

// Load reads a YAML configuration file. A missing path returns the default
// configuration; a present but malformed file is a fatal configuration error.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Policy.SeverityWeights == nil {
		cfg.Policy.SeverityWeights = engine.DefaultSeverityWeights()
	}
	if cfg.Policy.CategoryWeights == nil {
		cfg.Policy.CategoryWeights = engine.DefaultCategoryWeights()
	}
	// A policy block that never mentions thresholds gets the defaults, the
	// same way absent weight tables do; zero thresholds would turn every
	// clean run into a FAIL.
	if cfg.Policy.FailThreshold == 0 && cfg.Policy.WarnThreshold == 0 {
		def := engine.DefaultGatePolicy()
		cfg.Policy.FailThreshold = def.FailThreshold
		cfg.Policy.WarnThreshold = def.WarnThreshold
	}
	// An explicit policy.required_tools wins; otherwise derive it from the
	// per-tool required flags.
	if cfg.Policy.RequiredTools == nil {
		cfg.syncRequiredTools()
	}
	return &cfg, nil
}

// syncRequiredTools derives the gate policy's required-tool list from the
// per-tool required flags, keeping the two views consistent.
func (c *Config) syncRequiredTools() {
	var required []string
	for name, tc := range c.Tools {
		if tc.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	c.Policy.RequiredTools = required
}

// ToolNames returns the configured tools in deterministic order.
func (c *Config) ToolNames() []string {
	names := make([]string, 0, len(c.Tools))
	for name := range c.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every field and names the offending one; any error here is
// fatal before a single scanner runs.
func (c *Config) Validate(knownTools []string) error {
	if len(c.Tools) == 0 {
		return fmt.Errorf("tools: no scanners configured")
	}
	known := make(map[string]bool, len(knownTools))
	for _, t := range knownTools {
		known[t] = true
	}
	for _, name := range c.ToolNames() {
		tc := c.Tools[name]
		if !known[name] {
			return fmt.Errorf("tools.%s: unknown tool", name)
		}
		if tc.Timeout <= 0 {
			return fmt.Errorf("tools.%s.timeout: must be positive", name)
		}
		if tc.Retries < 0 {
			return fmt.Errorf("tools.%s.retries: must not be negative", name)
		}
	}

	p := c.Policy
	if p.WarnThreshold <= 0 {
		return fmt.Errorf("policy.warn_threshold: must be positive")
	}
	if p.FailThreshold <= 0 {
		return fmt.Errorf("policy.fail_threshold: must be positive")
	}
	if p.FailThreshold < p.WarnThreshold {
		return fmt.Errorf("policy.fail_threshold: %.1f is below warn_threshold %.1f", p.FailThreshold, p.WarnThreshold)
	}
	if p.CorroborationBonus < 0 {
		return fmt.Errorf("policy.corroboration_bonus: must not be negative")
	}
	for sev, w := range p.SeverityWeights {
		if !sev.Valid() {
			return fmt.Errorf("policy.severity_weights.%s: unknown severity", sev)
		}
		if w < 0 {
			return fmt.Errorf("policy.severity_weights.%s: must not be negative", sev)
		}
	}
	// A supplied table must cover every canonical level: findings at an
	// omitted level would otherwise score zero without warning.
	for _, sev := range engine.Severities {
		if _, ok := p.SeverityWeights[sev]; !ok {
			return fmt.Errorf("policy.severity_weights: missing %s", sev)
		}
	}
	for cat, w := range p.CategoryWeights {
		if !cat.Valid() {
			return fmt.Errorf("policy.category_weights.%s: unknown category", cat)
		}
		if w < 0 {
			return fmt.Errorf("policy.category_weights.%s: must not be negative", cat)
		}
	}
	for i, rule := range p.Overrides {
		if !rule.Severity.Valid() {
			return fmt.Errorf("policy.overrides[%d].severity: unknown severity %q", i, rule.Severity)
		}
		if !rule.Category.Valid() {
			return fmt.Errorf("policy.overrides[%d].category: unknown category %q", i, rule.Category)
		}
	}
	for _, tool := range p.RequiredTools {
		if _, ok := c.Tools[tool]; !ok {
			return fmt.Errorf("policy.required_tools: %q is not a configured tool", tool)
		}
	}
	return nil
}

// Save writes the configuration as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
