package config

import (
	"strings"
	"testing"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(keys ...string) *Registry {
	r := NewRegistry()
	for _, k := range keys {
		r.Register(KeyInfo{Key: k})
	}
	return r
}

func load(t *testing.T, values map[string]interface{}) *koanf.Koanf {
	t.Helper()
	k := koanf.New(".")
	require.NoError(t, k.Load(confmap.Provider(values, "."), nil))
	return k
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(
		KeyInfo{Key: "session.idleTimeout", Type: "duration", Default: "24h"},
		KeyInfo{Key: "session.secret", Type: "string", Secret: true},
	)

	info, ok := r.Lookup("session.idleTimeout")
	require.True(t, ok)
	assert.Equal(t, "duration", info.Type)

	_, ok = r.Lookup("session.ttl")
	assert.False(t, ok)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "session.idleTimeout", all[0].Key)
	assert.Equal(t, "session.secret", all[1].Key)

	assert.Equal(t, map[string]interface{}{"session.idleTimeout": "24h"}, r.Defaults())
}

func TestSuggest(t *testing.T) {
	r := testRegistry(
		"server.security.corsOrigins",
		"server.security.corsMaxAge",
		"server.port",
		"session.idleTimeout",
		"auth.google.secret",
	)

	assert.Equal(t, "server.security.corsOrigins", r.Suggest("server.security.corsOrigns", 3)[0])
	assert.Equal(t, "session.idleTimeout", r.Suggest("session.idelTimeout", 3)[0])
	assert.Contains(t, r.Suggest("auth.google.scret", 3), "auth.google.secret")
	assert.Empty(t, r.Suggest("completely.different.thing", 3))
	assert.Len(t, r.Suggest("server.security.corsMaxAg", 1), 1)
}

func TestSuggestSkipsDeprecated(t *testing.T) {
	r := testRegistry("session.idleTimeout")
	r.Deprecate("session.ttl", "session.idleTimeout")
	assert.NotContains(t, r.Suggest("session.tt", 3), "session.ttl")
}

func TestCheck(t *testing.T) {
	r := testRegistry(
		"session.secret",
		"session.idleTimeout",
		"auth.google.id",
		"auth.google.secret",
		"myapp",
	)
	k := load(t, map[string]interface{}{
		"session.secret":      "s3cr3t",
		"session.idelTimeout": "1h", // Typo.
		"auth.google.scret":   "x",  // Typo.
		"myapp.custom":        true, // Registered namespace.
		"totally.unknown":     1,
	})

	byKey := map[string]Warning{}
	for _, w := range r.Check(k) {
		byKey[w.Key] = w
	}

	require.Contains(t, byKey, "session.idelTimeout")
	assert.Contains(t, byKey["session.idelTimeout"].Suggestions, "session.idleTimeout")
	require.Contains(t, byKey, "auth.google.scret")
	assert.Contains(t, byKey["auth.google.scret"].Suggestions, "auth.google.secret")
	assert.Contains(t, byKey, "totally.unknown")
	assert.NotContains(t, byKey, "session.secret")
	assert.NotContains(t, byKey, "myapp.custom")
}

func TestCheckDeprecated(t *testing.T) {
	r := testRegistry("session.idleTimeout")
	r.Deprecate("session.ttl", "session.idleTimeout")

	warnings := r.Check(load(t, map[string]interface{}{"session.ttl": "1h"}))
	require.Len(t, warnings, 1)
	assert.True(t, warnings[0].Deprecated)
	assert.Equal(t, "'session.ttl' is deprecated, use 'session.idleTimeout'", warnings[0].String())
}

func TestWarningString(t *testing.T) {
	tests := []struct {
		name    string
		warning Warning
		want    string
	}{
		{"single", Warning{Key: "server.prot", Suggestions: []string{"server.port"}}, "Did you mean 'server.port'?"},
		{"multiple", Warning{Key: "server.prt", Suggestions: []string{"server.port", "server.host"}}, "Did you mean one of these?\n  - server.port\n  - server.host"},
		{"none", Warning{Key: "unknown.key"}, "'unknown.key' is not a known config key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.warning.String(), tt.want)
		})
	}
}

func TestFormatWarnings(t *testing.T) {
	assert.Empty(t, FormatWarnings(nil))

	out := FormatWarnings([]Warning{
		{Key: "session.idelTimeout", Suggestions: []string{"session.idleTimeout", "session.maxAge"}},
		{Key: "unknownKey"},
	})
	assert.Contains(t, out, "  - 'session.idelTimeout' is not a known config key")
	assert.Contains(t, out, "    - session.idleTimeout")
	assert.True(t, strings.HasSuffix(out, "for the full list.\n"))
}

func TestMask(t *testing.T) {
	r := NewRegistry()
	r.Register(KeyInfo{Key: "session.secret", Secret: true}, KeyInfo{Key: "server.port"})

	assert.Equal(t, "********", r.Mask("session.secret", "hunter2"))
	assert.Equal(t, "", r.Mask("session.secret", ""))
	assert.Equal(t, 5000, r.Mask("server.port", 5000))
	assert.Equal(t, "x", r.Mask("unknown", "x"))
}

func TestLoadDefaults(t *testing.T) {
	r := NewRegistry()
	r.Register(
		KeyInfo{Key: "session.idleTimeout", Default: "24h"},
		KeyInfo{Key: "session.store", Default: "memory"},
	)
	k := load(t, map[string]interface{}{"session.store": "database"})

	LoadDefaults(k, r)
	assert.Equal(t, "24h", k.String("session.idleTimeout"))
	assert.Equal(t, "database", k.String("session.store"), "loaded values win")
}
