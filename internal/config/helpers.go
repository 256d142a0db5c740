package config

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// EnvPrefix marks environment variables that belong to the configuration.
const EnvPrefix = "GH__"

// SearchForConfig looks for filename in startDir and then in each parent
// directory. Returns the absolute path of the first match, or "" when the
// filesystem root is reached without one.
func SearchForConfig(filename string, startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// TransformEnv maps an environment variable name to a config key. Double
// underscores separate path segments and single underscores camel case the
// segment, so GH__SESSION__IDLE_TIMEOUT becomes session.idleTimeout.
func TransformEnv(name string) string {
	segments := strings.Split(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "__")
	for i, segment := range segments {
		var b strings.Builder
		for j, word := range strings.Split(segment, "_") {
			if j > 0 {
				word = upperFirst(word)
			}
			b.WriteString(word)
		}
		segments[i] = b.String()
	}
	return strings.Join(segments, ".")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
