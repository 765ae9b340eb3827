package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/gridshift/carbonsched/core/catalog"
	"github.com/gridshift/carbonsched/core/metrics"
	"github.com/gridshift/carbonsched/core/model"
	"github.com/gridshift/carbonsched/core/planner"
	"github.com/gridshift/carbonsched/core/signal"
	"github.com/gridshift/carbonsched/infra/mqtt"
)

// Config is the full installation configuration.
type Config struct {
	// Regions lists the grid regions jobs may be placed in. Empty means
	// every known region.
	Regions   []model.Region         `json:"regions"`
	Planner   planner.Config         `json:"planner"`
	Cache     signal.Config          `json:"cache"`
	Generator signal.GeneratorConfig `json:"generator"`
	Audit     AuditConfig            `json:"audit"`
	Catalog   catalog.Config         `json:"catalog"`
	Metrics   metrics.Config         `json:"metrics"`
	MQTT      mqtt.Config            `json:"mqtt"`
}

// Load reads the configuration file, applies K_-prefixed environment
// overrides (with __ as the section separator), fills defaults and
// validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section's zero fields.
func (c *Config) SetDefaults() {
	if len(c.Regions) == 0 {
		c.Regions = model.AllRegions()
	}
	c.Planner.SetDefaults()
	c.Cache.SetDefaults()
	c.Generator.SetDefaults()
	c.Audit.SetDefaults()
	c.Catalog.SetDefaults()
	c.MQTT.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	for _, r := range c.Regions {
		if !r.Valid() {
			return fmt.Errorf("%w: unknown region %q", model.ErrInvalidConfiguration, r)
		}
	}
	if err := c.Planner.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Audit.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	return nil
}
