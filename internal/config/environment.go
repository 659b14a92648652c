// Package config is the single access point for environment-derived configuration.
//
// Every value the application reads from its environment is declared as a
// SecretDescriptor and resolved through a SecretStore. Nothing else in the
// repository calls os.Getenv.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	customErrors "github.com/mnaflow/crm-guard/internal/common/errors"
	"github.com/mnaflow/crm-guard/internal/common/logging"
)

// Environment is the indirection through which all variables are read
type Environment interface {
	Lookup(key string) (string, bool)
}

// OSEnvironment reads the process environment
type OSEnvironment struct{}

// Lookup implements Environment
func (OSEnvironment) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnvironment is a fixed set of variables, used for .env contents and tests
type MapEnvironment map[string]string

// Lookup implements Environment
func (m MapEnvironment) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// LayeredEnvironment consults each layer in order; the first layer that
// defines a key wins.
type LayeredEnvironment []Environment

// Lookup implements Environment
func (l LayeredEnvironment) Lookup(key string) (string, bool) {
	for _, layer := range l {
		if v, ok := layer.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// LoadEnvironment returns the process environment layered over the given
// .env files. Earlier files take precedence over later ones and the process
// environment takes precedence over all of them, matching godotenv.Load.
// Missing files are skipped; unreadable or malformed files are an error.
func LoadEnvironment(logger *logging.Logger, paths ...string) (Environment, error) {
	layers := LayeredEnvironment{OSEnvironment{}}

	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			if os.IsNotExist(err) {
				if logger != nil {
					logger.InfoKV("No .env file loaded", "file", path)
				}
				continue
			}
			return nil, customErrors.WrapConfigError(err, "env_file", "failed to read env file").
				WithData("file", path)
		}
		if logger != nil {
			logger.InfoKV("Loaded environment variables from .env file", "file", path, "count", len(values))
		}
		layers = append(layers, MapEnvironment(values))
	}

	return layers, nil
}
