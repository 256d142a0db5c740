package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/v2"
)

// Warning flags a loaded key that is unknown or deprecated.
type Warning struct {
	Key         string
	Suggestions []string
	Deprecated  bool
}

func (w Warning) String() string {
	if w.Deprecated {
		return fmt.Sprintf("'%s' is deprecated, use '%s'", w.Key, w.Suggestions[0])
	}
	msg := fmt.Sprintf("'%s' is not a known config key", w.Key)
	switch len(w.Suggestions) {
	case 0:
	case 1:
		msg += fmt.Sprintf(". Did you mean '%s'?", w.Suggestions[0])
	default:
		msg += ". Did you mean one of these?"
		for _, s := range w.Suggestions {
			msg += "\n  - " + s
		}
	}
	return msg
}

// Check compares every key loaded into k, from any source, against the
// registry.
func (r *Registry) Check(k *koanf.Koanf) []Warning {
	keys := k.Keys()
	sort.Strings(keys)

	var warnings []Warning
	for _, key := range keys {
		if info, ok := r.Lookup(key); ok && info.Deprecated() {
			warnings = append(warnings, Warning{Key: key, Suggestions: []string{info.ReplacedBy}, Deprecated: true})
			continue
		}
		if r.covers(key) {
			continue
		}
		warnings = append(warnings, Warning{Key: key, Suggestions: r.Suggest(key, 3)})
	}
	return warnings
}

// FormatWarnings renders warnings for the terminal, or "" when there are none.
func FormatWarnings(warnings []Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("⚠️  Configuration warnings:\n")
	for _, w := range warnings {
		for i, line := range strings.Split(w.String(), "\n") {
			if i == 0 {
				sb.WriteString("  - " + line + "\n")
			} else {
				sb.WriteString("  " + line + "\n")
			}
		}
	}
	sb.WriteString("\nUnknown keys are ignored. Run `gatehouse config keys` for the full list.\n")
	return sb.String()
}

// Mask hides secret values when printing configuration.
func (r *Registry) Mask(key string, value interface{}) interface{} {
	if info, ok := r.Lookup(key); ok && info.Secret {
		if s, ok := value.(string); ok && s == "" {
			return ""
		}
		return "********"
	}
	return value
}
