package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"autograder/internal/sandbox"
)

// poolDocument mirrors the on-disk sandbox pool configuration file: a
// "general" section of shared defaults applied to every language,
// followed by optional per-language overrides. Grounded on the
// original Python source's pool_config.py, which only carries the
// general section; per-language overrides are this module's addition
// for instructors who need, say, a larger Java pool.
type poolDocument struct {
	General  poolDefaults            `yaml:"general"`
	Monitor  monitorDefaults         `yaml:"monitor"`
	Languages map[string]poolOverride `yaml:"languages"`
}

type poolDefaults struct {
	StartAmount    int    `yaml:"start_amount"`
	ScaleLimit     int    `yaml:"scale_limit"`
	IdleTimeout    int    `yaml:"idle_timeout"`    // seconds
	RunningTimeout int    `yaml:"running_timeout"` // seconds
	Image          string `yaml:"image"`
}

type monitorDefaults struct {
	TickSeconds int    `yaml:"tick_seconds"`
	AppLabel    string `yaml:"app_label"`
}

type poolOverride struct {
	StartAmount    *int    `yaml:"start_amount,omitempty"`
	ScaleLimit     *int    `yaml:"scale_limit,omitempty"`
	IdleTimeout    *int    `yaml:"idle_timeout,omitempty"`
	RunningTimeout *int    `yaml:"running_timeout,omitempty"`
	Image          *string `yaml:"image,omitempty"`
	ExposePort     *int    `yaml:"expose_port,omitempty"`
}

// LoadPoolConfig reads a sandbox pool configuration file, applying the
// "general" section's defaults to every configured language and then
// any per-language overrides on top, the same layering pool_config.py
// does for the shared values it supports.
func LoadPoolConfig(path string) (sandbox.ManagerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sandbox.ManagerConfig{}, fmt.Errorf("config: read pool config %s: %w", path, err)
	}

	var doc poolDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return sandbox.ManagerConfig{}, fmt.Errorf("config: parse pool config %s: %w", path, err)
	}
	if doc.General.StartAmount == 0 && doc.General.ScaleLimit == 0 {
		return sandbox.ManagerConfig{}, fmt.Errorf("config: invalid sandbox configuration: 'general' section not found in %s", path)
	}

	base := sandbox.DefaultLanguagePoolConfig()
	if doc.General.StartAmount > 0 {
		base.PoolSize = doc.General.StartAmount
	}
	if doc.General.ScaleLimit > 0 {
		base.ScaleLimit = doc.General.ScaleLimit
	}
	if doc.General.IdleTimeout > 0 {
		base.IdleTimeout = time.Duration(doc.General.IdleTimeout) * time.Second
	}
	if doc.General.RunningTimeout > 0 {
		base.RunningTimeout = time.Duration(doc.General.RunningTimeout) * time.Second
	}

	defaultCfg := sandbox.DefaultManagerConfig()
	languages := make(map[string]sandbox.LanguagePoolConfig, len(defaultCfg.Languages))
	for lang, dflt := range defaultCfg.Languages {
		cfg := base
		cfg.Image = dflt.Image
		if override, ok := doc.Languages[lang]; ok {
			applyOverride(&cfg, override)
		}
		languages[lang] = cfg
	}

	tick := time.Second
	if doc.Monitor.TickSeconds > 0 {
		tick = time.Duration(doc.Monitor.TickSeconds) * time.Second
	}
	appLabel := defaultCfg.AppLabel
	if doc.Monitor.AppLabel != "" {
		appLabel = doc.Monitor.AppLabel
	}

	return sandbox.ManagerConfig{Languages: languages, MonitorTick: tick, AppLabel: appLabel}, nil
}

func applyOverride(cfg *sandbox.LanguagePoolConfig, o poolOverride) {
	if o.StartAmount != nil {
		cfg.PoolSize = *o.StartAmount
	}
	if o.ScaleLimit != nil {
		cfg.ScaleLimit = *o.ScaleLimit
	}
	if o.IdleTimeout != nil {
		cfg.IdleTimeout = time.Duration(*o.IdleTimeout) * time.Second
	}
	if o.RunningTimeout != nil {
		cfg.RunningTimeout = time.Duration(*o.RunningTimeout) * time.Second
	}
	if o.Image != nil {
		cfg.Image = *o.Image
	}
	if o.ExposePort != nil {
		cfg.ExposePort = *o.ExposePort
	}
}
