// Package config keeps the catalogue of known configuration keys and the
// helpers used to load them into koanf.
package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// KeyInfo describes a configuration key.
type KeyInfo struct {
	Key         string      // Full path, e.g. "session.idleTimeout".
	Description string      // Shown by `gatehouse config keys`.
	Type        string      // "string", "int", "bool", "duration" or "[]string".
	Default     interface{} // Applied when no source sets the key.
	Secret      bool        // Value is masked when configuration is printed.
	ReplacedBy  string      // Set on deprecated keys.
}

// Deprecated reports whether the key has been replaced by another.
func (k KeyInfo) Deprecated() bool {
	return k.ReplacedBy != ""
}

// Registry is a set of known keys. The zero value is not usable, call
// NewRegistry.
type Registry struct {
	mu   sync.RWMutex
	keys map[string]KeyInfo
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{keys: map[string]KeyInfo{}}
}

// Register adds keys, replacing any existing entry with the same path.
func (r *Registry) Register(infos ...KeyInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, info := range infos {
		r.keys[info.Key] = info
	}
}

// Deprecate records that oldKey has been replaced by newKey.
func (r *Registry) Deprecate(oldKey, newKey string) {
	r.Register(KeyInfo{Key: oldKey, ReplacedBy: newKey})
}

// Lookup returns the entry for key.
func (r *Registry) Lookup(key string) (KeyInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.keys[key]
	return info, ok
}

// All returns every entry sorted by key.
func (r *Registry) All() []KeyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]KeyInfo, 0, len(r.keys))
	for _, info := range r.keys {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Defaults returns the default value of every key that has one.
func (r *Registry) Defaults() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defaults := map[string]interface{}{}
	for key, info := range r.keys {
		if info.Default != nil {
			defaults[key] = info.Default
		}
	}
	return defaults
}

// covers reports whether key is registered, or sits under a registered
// namespace such as "myapp" for "myapp.feature".
func (r *Registry) covers(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := key; k != ""; k = parent(k) {
		if _, ok := r.keys[k]; ok {
			return true
		}
	}
	return false
}

// maxSuggestDistance is the largest edit distance still offered as a
// suggestion. Keys sharing a parent get one edit for free.
const maxSuggestDistance = 3

// Suggest returns up to n registered keys that look like typos of key, most
// similar first.
func (r *Registry) Suggest(key string, n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type candidate struct {
		key   string
		score int
	}
	var candidates []candidate
	for registered, info := range r.keys {
		if info.Deprecated() {
			continue
		}
		score := levenshtein.ComputeDistance(key, registered)
		if score > 0 && parent(key) != "" && parent(key) == parent(registered) {
			score--
		}
		if score <= maxSuggestDistance {
			candidates = append(candidates, candidate{registered, score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].key < candidates[j].key
	})

	out := make([]string, 0, n)
	for i := 0; i < len(candidates) && i < n; i++ {
		out = append(out, candidates[i].key)
	}
	return out
}

// parent returns "server.security" for "server.security.corsOrigins".
func parent(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[:i]
	}
	return ""
}
