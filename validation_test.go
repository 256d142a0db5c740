package gatehouse

import (
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withConfig swaps the global Config for one holding only values.
func withConfig(t *testing.T, values map[string]interface{}) {
	t.Helper()
	original := Config
	t.Cleanup(func() { Config = original })

	Config = koanf.New(".")
	require.NoError(t, Config.Load(confmap.Provider(values, "."), nil))
}

func validConfig() map[string]interface{} {
	return map[string]interface{}{
		"address":               "http://localhost:5000",
		"auth.google.id":        "client-id.apps.googleusercontent.com",
		"auth.google.secret":    "shhh",
		"auth.successRedirect":  "http://localhost:3000",
		"auth.failureRedirect":  "http://localhost:3000/login",
		"session.secret":        strings.Repeat("s", MinSecretLength),
		"session.idleTimeout":   "24h",
		"session.store":         "memory",
		"server.port":           5000,
		"server.host":           "localhost",
		"auth.google.prompt":    "select_account",
		"session.sweepInterval": "5m",
	}
}

func errorKeys(errs []ValidationError) []string {
	keys := make([]string, len(errs))
	for i, e := range errs {
		keys[i] = e.Key
	}
	return keys
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidatePort(443))
	assert.Error(t, ValidatePort(0))
	assert.Error(t, ValidatePort(70000))

	assert.NoError(t, ValidatePositiveDuration(time.Second))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.NoError(t, ValidateNonNegativeDuration(0))
	assert.Error(t, ValidateNonNegativeDuration(-time.Second))

	assert.NoError(t, ValidateURL("https://app.example.com/login"))
	assert.Error(t, ValidateURL(""))
	assert.Error(t, ValidateURL("/relative"))
	assert.Error(t, ValidateURL("javascript://alert(1)"))
	assert.Error(t, ValidateURL("https://"))

	assert.NoError(t, ValidateOneOf("memory", "memory", "database"))
	assert.EqualError(t, ValidateOneOf("redis", "memory", "database"), `must be one of [memory, database], got: "redis"`)
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		withConfig(t, validConfig())
		assert.Empty(t, ValidateConfig())
	})

	t.Run("missing credentials", func(t *testing.T) {
		c := validConfig()
		delete(c, "auth.google.id")
		delete(c, "auth.google.secret")
		withConfig(t, c)

		assert.ElementsMatch(t, []string{"auth.google.id", "auth.google.secret"}, errorKeys(ValidateConfig()))
	})

	t.Run("missing session secret", func(t *testing.T) {
		c := validConfig()
		delete(c, "session.secret")
		withConfig(t, c)

		errs := ValidateConfig()
		require.Len(t, errs, 1)
		assert.Equal(t, "session.secret", errs[0].Key)
	})

	t.Run("short session secret", func(t *testing.T) {
		c := validConfig()
		c["session.secret"] = "keyboard cat"
		withConfig(t, c)

		errs := ValidateConfig()
		require.Len(t, errs, 1)
		assert.Equal(t, "session.secret: must be at least 32 bytes, got: 12", errs[0].Error())
	})

	t.Run("bad address", func(t *testing.T) {
		c := validConfig()
		c["address"] = "localhost:5000"
		withConfig(t, c)

		assert.Equal(t, []string{"address"}, errorKeys(ValidateConfig()))
	})

	t.Run("no redirects", func(t *testing.T) {
		c := validConfig()
		delete(c, "auth.successRedirect")
		delete(c, "auth.failureRedirect")
		withConfig(t, c)

		assert.ElementsMatch(t, []string{"auth.successRedirect", "auth.failureRedirect"}, errorKeys(ValidateConfig()))
	})

	t.Run("relative redirect", func(t *testing.T) {
		c := validConfig()
		c["auth.failureRedirect"] = "/login"
		withConfig(t, c)

		assert.Equal(t, []string{"auth.failureRedirect"}, errorKeys(ValidateConfig()))
	})

	t.Run("out of range values", func(t *testing.T) {
		c := validConfig()
		c["server.port"] = 0
		c["session.idleTimeout"] = "0s"
		c["session.store"] = "redis"
		c["server.tls.certFile"] = "cert.pem"
		withConfig(t, c)

		assert.ElementsMatch(t,
			[]string{"server.port", "session.idleTimeout", "session.store", "server.tls"},
			errorKeys(ValidateConfig()))
	})
}

func TestCheckConfig(t *testing.T) {
	c := validConfig()
	delete(c, "auth.google.secret")
	withConfig(t, c)

	err := CheckConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "auth.google.secret: cannot be empty")
	assert.Contains(t, err.Error(), ConfigFile)
}

func TestFormatValidationErrors(t *testing.T) {
	assert.Empty(t, FormatValidationErrors(nil))

	out := FormatValidationErrors([]ValidationError{
		{Key: "server.port", Message: "must be between 1 and 65535, got: 0"},
	})
	assert.Contains(t, out, "Configuration validation failed:")
	assert.Contains(t, out, "  - server.port: must be between 1 and 65535, got: 0")
}
