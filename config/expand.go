package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvStrict resolves ${VAR} references in a raw configuration
// document before it is parsed, so secrets like the payment API key never
// have to live in the file. A reference to an unset variable is an error
// naming every missing variable at once. `$$` emits a literal `$`.
func expandEnvStrict(doc string) (string, error) {
	const dollarSentinel = "\x00GUARDRAIL_CONFIG_DOLLAR\x00"
	doc = strings.ReplaceAll(doc, "$$", dollarSentinel)

	missing := make(map[string]struct{})
	expanded := envVarPattern.ReplaceAllStringFunc(doc, func(ref string) string {
		name := ref[2 : len(ref)-1]
		value, ok := os.LookupEnv(name)
		if !ok {
			missing[name] = struct{}{}
			return ref
		}
		return value
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("config: unset environment variables referenced: %s", strings.Join(names, ", "))
	}

	return strings.ReplaceAll(expanded, dollarSentinel, "$"), nil
}
