package gatehouse

import (
	"net"
	"strings"
	"time"

	"github.com/dpup/gatehouse/internal/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Filename of the standard configuration file.
const ConfigFile = "gatehouse.yaml"

// ConfigKeyInfo contains metadata about a known configuration key.
// This is re-exported from internal/config for public API use.
type ConfigKeyInfo = config.KeyInfo

// Known configuration keys.
var configKeys = config.NewRegistry()

// Config is a global koanf instance used to access application level
// configuration options.
//
// Config is loaded in the following order (later sources override earlier):
// 1. Built-in defaults registered with RegisterConfigKeys (see LoadConfig)
// 2. Auto-discovered gatehouse.yaml (in LoadConfig)
// 3. Environment variables with GH__ prefix (in LoadConfig)
// 4. Additional sources loaded via LoadConfigFile() or LoadConfigDefaults()
//
// Environment variable transformation:
//   - GH__SERVER__PORT → server.port
//   - GH__SESSION__IDLE_TIMEOUT → session.idleTimeout
//   - GH__AUTH__GOOGLE__ID → auth.google.id
var Config = koanf.New(".")

const (
	defaultPort = "5000"
	defaultHost = "localhost"
)

func init() {
	registerCoreConfigKeys()
}

// LoadConfig populates Config from registered defaults, the nearest
// gatehouse.yaml and GH__ environment variables. explicitFile, when not
// empty, is loaded instead of searching for gatehouse.yaml.
func LoadConfig(explicitFile string) error {
	path := explicitFile
	if path == "" {
		path = config.SearchForConfig(ConfigFile, ".")
	}
	if path != "" {
		if err := Config.Load(file.Provider(path), yaml.Parser()); err != nil {
			return ConfigurationErrorf("error loading config file '%s': %s", path, err)
		}
	}

	if err := Config.Load(env.Provider(config.EnvPrefix, ".", config.TransformEnv), nil); err != nil {
		return ConfigurationErrorf("error loading env config: %s", err)
	}

	config.LoadDefaults(Config, configKeys)
	applyDerivedDefaults()
	return nil
}

// LoadConfigFile loads additional configuration from a YAML file into the
// global Config instance.
func LoadConfigFile(path string) {
	if err := Config.Load(file.Provider(path), yaml.Parser()); err != nil {
		panic("error loading config file '" + path + "': " + err.Error())
	}
}

// LoadConfigDefaults loads configuration values into the global Config
// instance. Mostly useful in tests.
//
// Example:
//
//	gatehouse.LoadConfigDefaults(map[string]interface{}{
//	    "session.idleTimeout": "30m",
//	})
func LoadConfigDefaults(defaults map[string]interface{}) {
	if err := Config.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic("error loading config defaults: " + err.Error())
	}
}

// RegisterConfigKeys documents application keys so they are not reported as
// unknown and their defaults are applied by LoadConfig.
func RegisterConfigKeys(infos ...ConfigKeyInfo) {
	configKeys.Register(infos...)
}

// RegisteredConfigKeys returns metadata for every known key, sorted by key.
func RegisteredConfigKeys() []ConfigKeyInfo {
	return configKeys.All()
}

// ConfigWarnings returns a human readable report of unknown or deprecated
// keys found in the loaded configuration, or an empty string.
func ConfigWarnings() string {
	return config.FormatWarnings(configKeys.Check(Config))
}

// EffectiveConfig returns every loaded value keyed by path, with secrets
// masked.
func EffectiveConfig() map[string]interface{} {
	out := map[string]interface{}{}
	for key, value := range Config.All() {
		out[key] = configKeys.Mask(key, value)
	}
	return out
}

// ConfigString returns the string value for the given key.
func ConfigString(key string) string {
	return Config.String(key)
}

// ConfigInt returns the int value for the given key.
func ConfigInt(key string) int {
	return Config.Int(key)
}

// ConfigBool returns the bool value for the given key.
func ConfigBool(key string) bool {
	return Config.Bool(key)
}

// ConfigDuration returns the duration value for the given key.
// Duration strings like "5m", "1h", "30s" are parsed automatically.
func ConfigDuration(key string) time.Duration {
	return Config.Duration(key)
}

// ConfigStrings returns the string slice value for the given key.
func ConfigStrings(key string) []string {
	return Config.Strings(key)
}

// The original deployment only knew about the front-end URL, success and
// failure redirects follow from it unless set explicitly.
func applyDerivedDefaults() {
	client := strings.TrimRight(Config.String("clientUrl"), "/")
	if client == "" {
		return
	}
	derived := map[string]interface{}{}
	if Config.String("auth.successRedirect") == "" {
		derived["auth.successRedirect"] = client
	}
	if Config.String("auth.failureRedirect") == "" {
		derived["auth.failureRedirect"] = client + "/login"
	}
	if len(Config.Strings("server.security.corsOrigins")) == 0 {
		derived["server.security.corsOrigins"] = []string{client}
	}
	if len(derived) > 0 {
		LoadConfigDefaults(derived)
	}
}

func registerCoreConfigKeys() {
	registerServerConfigKeys()
	registerAuthConfigKeys()
	registerSessionConfigKeys()
}

func registerServerConfigKeys() {
	RegisterConfigKeys(
		ConfigKeyInfo{
			Key:         "name",
			Description: "User-facing name that identifies the service",
			Type:        "string",
			Default:     "gatehouse",
		},
		ConfigKeyInfo{
			Key:         "address",
			Description: "External base URL of this service, used to build the OAuth callback URL",
			Type:        "string",
			Default:     "http://" + net.JoinHostPort(defaultHost, defaultPort),
		},
		ConfigKeyInfo{
			Key:         "clientUrl",
			Description: "URL of the front-end application; seeds redirect targets and CORS origins",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "log.format",
			Description: "Log output format, dev or prod",
			Type:        "string",
			Default:     "dev",
		},
		ConfigKeyInfo{
			Key:         "server.host",
			Description: "Host to bind the server to",
			Type:        "string",
			Default:     defaultHost,
		},
		ConfigKeyInfo{
			Key:         "server.port",
			Description: "Port to bind the server to",
			Type:        "int",
			Default:     defaultPort,
		},
		ConfigKeyInfo{
			Key:         "server.trustProxy",
			Description: "Derive client IPs from X-Forwarded-For / X-Real-IP",
			Type:        "bool",
			Default:     false,
		},
		ConfigKeyInfo{
			Key:         "server.tls.certFile",
			Description: "Path to TLS certificate file",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "server.tls.keyFile",
			Description: "Path to TLS key file",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "server.security.xFramesOptions",
			Description: "X-Frame-Options header value",
			Type:        "string",
			Default:     "DENY",
		},
		ConfigKeyInfo{
			Key:         "server.security.hstsExpiration",
			Description: "HSTS max-age duration, 0 disables the header",
			Type:        "duration",
		},
		ConfigKeyInfo{
			Key:         "server.security.corsOrigins",
			Description: "Allowed CORS origins",
			Type:        "[]string",
		},
		ConfigKeyInfo{
			Key:         "server.security.corsMaxAge",
			Description: "CORS preflight cache duration",
			Type:        "duration",
			Default:     "5m",
		},
		ConfigKeyInfo{
			Key:         "db.driver",
			Description: "Database driver, sqlite or postgres",
			Type:        "string",
			Default:     "sqlite",
		},
		ConfigKeyInfo{
			Key:         "db.dsn",
			Description: "Database connection string",
			Type:        "string",
			Default:     "file:gatehouse.db?cache=shared",
		},
	)
}

func registerAuthConfigKeys() {
	RegisterConfigKeys(
		ConfigKeyInfo{
			Key:         "auth.google.id",
			Description: "Google OAuth2 client ID",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "auth.google.secret",
			Description: "Google OAuth2 client secret",
			Type:        "string",
			Secret:      true,
		},
		ConfigKeyInfo{
			Key:         "auth.google.scopes",
			Description: "Scopes requested when redirecting to Google",
			Type:        "[]string",
			Default:     []string{"email", "profile"},
		},
		ConfigKeyInfo{
			Key:         "auth.google.prompt",
			Description: "Prompt policy sent to Google, select_account or empty",
			Type:        "string",
			Default:     "select_account",
		},
		ConfigKeyInfo{
			Key:         "auth.google.verifyIdToken",
			Description: "Validate the id_token returned by the code exchange",
			Type:        "bool",
			Default:     false,
		},
		ConfigKeyInfo{
			Key:         "auth.google.requireState",
			Description: "Reject callbacks that do not carry a valid signed state parameter",
			Type:        "bool",
			Default:     false,
		},
		ConfigKeyInfo{
			Key:         "auth.successRedirect",
			Description: "Where to send the browser after a successful login",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "auth.failureRedirect",
			Description: "Where to send the browser after a failed login",
			Type:        "string",
		},
	)
}

func registerSessionConfigKeys() {
	RegisterConfigKeys(
		ConfigKeyInfo{
			Key:         "session.secret",
			Description: "Secret used to sign and encrypt session cookies, at least 32 bytes",
			Type:        "string",
			Secret:      true,
		},
		ConfigKeyInfo{
			Key:         "session.cookieName",
			Description: "Name of the session cookie",
			Type:        "string",
			Default:     "gatehouse.sid",
		},
		ConfigKeyInfo{
			Key:         "session.crossSite",
			Description: "Mark cookies Secure and SameSite=None for split front-end/back-end origins",
			Type:        "bool",
			Default:     true,
		},
		ConfigKeyInfo{
			Key:         "session.idleTimeout",
			Description: "Sessions expire after this much inactivity",
			Type:        "duration",
			Default:     "24h",
		},
		ConfigKeyInfo{
			Key:         "session.maxAge",
			Description: "Absolute session lifetime, 0 for none",
			Type:        "duration",
			Default:     "0s",
		},
		ConfigKeyInfo{
			Key:         "session.store",
			Description: "Where session records live, memory or database",
			Type:        "string",
			Default:     "memory",
		},
		ConfigKeyInfo{
			Key:         "session.sweepInterval",
			Description: "How often expired sessions are reclaimed, 0 disables sweeping",
			Type:        "duration",
			Default:     "5m",
		},
	)
}
