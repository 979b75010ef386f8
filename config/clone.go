// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/clone.go
// Summary: Deep copy and normalisation of decoded config trees.
// Notes: JSON decodes nested objects as map[string]interface{}, YAML as
// Config; both become Section so lookups see one shape.

package config

// Clone returns a deep copy of cfg in which every top-level table is a
// Section.
func Clone(cfg Config) Config {
	if cfg == nil {
		return nil
	}
	out := make(Config, len(cfg))
	for name, raw := range cfg {
		if section, ok := asSection(raw); ok {
			out[name] = cloneSection(section)
			continue
		}
		out[name] = cloneValue(raw)
	}
	return out
}

func cloneSection(s Section) Section {
	out := make(Section, len(s))
	for key, value := range s {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	if section, ok := asSection(v); ok {
		return map[string]interface{}(cloneSection(section))
	}
	switch list := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), list...)
	}
	return v
}

// asSection recognises every map shape the decoders produce.
func asSection(v interface{}) (Section, bool) {
	switch m := v.(type) {
	case Section:
		return m, true
	case Config:
		return Section(m), true
	case map[string]interface{}:
		return Section(m), true
	}
	return nil, false
}
