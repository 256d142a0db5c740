package config

import (
	"github.com/knadh/koanf/v2"
)

// LoadDefaults sets registered defaults for keys that are not already present
// in k. Safe to call more than once, values that were loaded from files or the
// environment are never overwritten.
func LoadDefaults(k *koanf.Koanf, r *Registry) {
	for key, val := range r.Defaults() {
		if !k.Exists(key) {
			_ = k.Set(key, val)
		}
	}
}
