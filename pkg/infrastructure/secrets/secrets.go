// Package secrets resolves named secrets for the OAuth application.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvSecretStore resolves secrets from environment variables. Secret names use
// kebab-case ("strava-client-id") and map to upper snake case env vars.
type EnvSecretStore struct{}

func (s *EnvSecretStore) GetSecret(_ context.Context, name string) (string, error) {
	envVar := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("environment variable %s not found", envVar)
	}
	return value, nil
}
