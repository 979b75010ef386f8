// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/store.go
// Summary: Load logic for the config store.

package config

import "log"

// loadSystemLocked reads texelnvim.json, falling back to texelnvim.yaml.
// When neither exists the embedded defaults are written as JSON.
func loadSystemLocked() error {
	path, err := systemConfigPath()
	if err != nil {
		log.Printf("Config: Failed to resolve config path: %v", err)
		system = make(Config)
		source = ""
		applySystemDefaults(system)
		return err
	}

	cfg, exists, readErr := readConfig(path)
	if !exists && readErr == nil {
		if yamlPath, err := yamlConfigPath(); err == nil {
			var yamlExists bool
			cfg, yamlExists, readErr = readConfig(yamlPath)
			if yamlExists {
				path, exists = yamlPath, true
			}
		}
	}
	if readErr != nil {
		log.Printf("Config: Failed to read config %s: %v", path, readErr)
		cfg = make(Config)
	}

	if !exists || len(cfg) == 0 {
		def := defaultSystemConfig()
		if def == nil {
			def = make(Config)
		}
		cfg = def
		applySystemDefaults(cfg)
		if readErr == nil {
			if err := writeConfig(path, cfg); err != nil {
				log.Printf("Config: Failed to write default config: %v", err)
				readErr = err
			}
		}
	} else {
		applySystemDefaults(cfg)
	}

	system = cfg
	source = ""
	if readErr == nil {
		source = path
		if exists {
			log.Printf("Config: Loaded config from %s", path)
		}
	}
	return readErr
}
