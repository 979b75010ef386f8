// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Default values for the configuration file.

package config

func applySystemDefaults(cfg Config) {
	if cfg == nil {
		return
	}
	cfg.RegisterDefaults("editor", Section{
		"path":   "nvim",
		"args":   []interface{}{},
		"listen": "",
	})
	// A zero size means "use the terminal size".
	cfg.RegisterDefaults("ui", Section{
		"width":              0,
		"height":             0,
		"multigrid":          true,
		"ext_cmdline":        false,
		"ext_popupmenu":      false,
		"ext_tabline":        false,
		"ext_messages":       false,
		"resize_debounce_ms": 50,
	})
	cfg.RegisterDefaults("trace", Section{
		"path": "",
	})
	cfg.RegisterDefaults("log", Section{
		"panic": true,
	})
}

// UIExtensions lists the optional ui extensions enabled in cfg, in the
// order they are requested from the editor.
func (c Config) UIExtensions() []string {
	var exts []string
	if c.GetBool("ui", "multigrid", true) {
		exts = append(exts, "ext_multigrid")
	}
	for _, name := range []string{"ext_cmdline", "ext_popupmenu", "ext_tabline", "ext_messages"} {
		if c.GetBool("ui", name, false) {
			exts = append(exts, name)
		}
	}
	return exts
}
