package flags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestUniqueFlags asserts that all flag names are unique, to avoid accidental conflicts between the many flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		for _, name := range flag.Names() {
			_, ok := seenCLI[name]
			require.Falsef(t, ok, "duplicate flag %s", name)
			seenCLI[name] = struct{}{}
		}
	}
}

// TestUniqueEnvVars asserts that every flag has exactly one env var, carrying the shared prefix.
func TestUniqueEnvVars(t *testing.T) {
	seenEnv := make(map[string]struct{})
	for _, flag := range Flags {
		envFlag, ok := flag.(interface{ GetEnvVars() []string })
		require.Truef(t, ok, "flag %s has no env vars", flag.Names()[0])
		envs := envFlag.GetEnvVars()
		require.Lenf(t, envs, 1, "flag %s", flag.Names()[0])
		require.Truef(t, strings.HasPrefix(envs[0], EnvVarPrefix+"_"), "flag %s env var %s", flag.Names()[0], envs[0])
		_, ok = seenEnv[envs[0]]
		require.Falsef(t, ok, "duplicate env var %s", envs[0])
		seenEnv[envs[0]] = struct{}{}
	}
}
