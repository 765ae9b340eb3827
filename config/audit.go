package config

import (
	"fmt"

	"github.com/gridshift/carbonsched/core/audit"
)

// AuditConfig selects the decision history backend.
type AuditConfig struct {
	// Backend selects the store type: "jsonl", "sqlite" or "memory".
	Backend string `json:"backend"`
	// Path is the file location of the store. Unused for "memory".
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *AuditConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "decisions.log"
	}
}

// Validate checks mandatory fields.
func (c AuditConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("audit: path is required for %s backend", c.Backend)
		}
	case "memory":
	default:
		return fmt.Errorf("audit: unknown backend %s", c.Backend)
	}
	return nil
}

// OpenStore builds the configured audit store.
func (c AuditConfig) OpenStore() (audit.Store, error) {
	switch c.Backend {
	case "jsonl":
		return audit.NewJSONLStore(c.Path)
	case "sqlite":
		return audit.NewSQLiteStore(c.Path)
	case "memory":
		return audit.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("audit: unknown backend %s", c.Backend)
	}
}
