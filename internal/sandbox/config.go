package sandbox

import "time"

// LanguagePoolConfig configures one per-language pool.
type LanguagePoolConfig struct {
	PoolSize       int           // target idle-sandbox floor
	ScaleLimit     int           // hard cap on idle+active
	IdleTimeout    time.Duration // destroy idle sandboxes older than this, above PoolSize
	RunningTimeout time.Duration // reclaim active sandboxes older than this (watchdog)
	Image          string        // container image for this language
	ExposePort     int           // container port published to the host for MakeRequest; 0 = no port
}

// ManagerConfig configures the sandbox manager across all languages.
type ManagerConfig struct {
	Languages   map[string]LanguagePoolConfig
	MonitorTick time.Duration // background monitor loop period, default ~1s
	AppLabel    string        // label key the startup orphan sweep matches; CreateSandbox tags containers with LabelApp
}

// DefaultLanguagePoolConfig mirrors the shared "general" defaults the
// original pool configuration applies uniformly before per-language
// overrides: start_amount=2, scale_limit=5, idle_timeout=300s,
// running_timeout=60s.
func DefaultLanguagePoolConfig() LanguagePoolConfig {
	return LanguagePoolConfig{
		PoolSize:       2,
		ScaleLimit:     5,
		IdleTimeout:    300 * time.Second,
		RunningTimeout: 60 * time.Second,
	}
}

// DefaultManagerConfig provisions python/java/node/cpp with the shared
// defaults and their standard base images.
func DefaultManagerConfig() ManagerConfig {
	images := map[string]string{
		"python": "python:3.12-slim-bookworm",
		"java":   "eclipse-temurin:21-jdk-alpine",
		"node":   "node:22-slim",
		"cpp":    "gcc:13-bookworm",
	}
	langs := make(map[string]LanguagePoolConfig, len(images))
	for lang, image := range images {
		cfg := DefaultLanguagePoolConfig()
		cfg.Image = image
		langs[lang] = cfg
	}
	return ManagerConfig{
		Languages:   langs,
		MonitorTick: time.Second,
		AppLabel:    LabelApp,
	}
}
