// Package config loads plugloc settings: environment variables (optionally
// from a .env file) and the plugin group definitions in plugins.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/minios-linux/plugloc/translate"
)

// DotEnvFile is read from the project root when present.
const DotEnvFile = ".env"

// Env holds settings taken from the environment.
type Env struct {
	DeepLAPIKey string `env:"DEEPL_API_KEY"`
	DeepLProxy  string `env:"DEEPL_PROXY"`

	GoogleCredentials string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	GoogleAPIKey      string `env:"GOOGLE_API_KEY"`
	GoogleProject     string `env:"GOOGLE_CLOUD_PROJECT"`
	GoogleAPIVersion  string `env:"GOOGLE_TRANSLATE_API_VERSION" envDefault:"v3"`

	// Service selects the translation backend (deepl or google).
	Service        string `env:"TRANSLATION_SERVICE" envDefault:"deepl"`
	TargetLanguage string `env:"TARGET_LANGUAGE" envDefault:"ru_RU"`

	ConfluenceURL   string `env:"CONFLUENCE_URL"`
	ConfluenceToken string `env:"CONFLUENCE_BEARER_TOKEN"`

	DBPath string `env:"PLUGLOC_DB" envDefault:"db/translations.db"`
}

// LoadEnv reads rootDir/.env (if any) and the process environment. Process
// variables win over .env values; the process environment is not modified.
func LoadEnv(rootDir string) (*Env, error) {
	vars := map[string]string{}
	path := filepath.Join(rootDir, DotEnvFile)
	dot, err := godotenv.Read(path)
	switch {
	case err == nil:
		for k, v := range dot {
			vars[k] = v
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	for k, v := range env.ToMap(os.Environ()) {
		vars[k] = v
	}
	return ParseEnv(vars)
}

// ParseEnv parses settings from an explicit variable map.
func ParseEnv(vars map[string]string) (*Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	var err error
	if e.Service, err = translate.ParseBackend(e.Service); err != nil {
		return nil, fmt.Errorf("TRANSLATION_SERVICE: %w", err)
	}
	if e.GoogleAPIVersion, err = translate.NormalizeGoogleVersion(e.GoogleAPIVersion); err != nil {
		return nil, fmt.Errorf("GOOGLE_TRANSLATE_API_VERSION: %w", err)
	}
	return &e, nil
}

// Provider returns the gateway configuration for a backend, filled from the
// environment.
func (e *Env) Provider(backend string) translate.Provider {
	prov := translate.DefaultProviders()[backend]
	switch backend {
	case translate.BackendDeepL:
		prov.APIKey = e.DeepLAPIKey
		prov.Proxy = e.DeepLProxy
	case translate.BackendGoogle:
		prov.APIKey = e.GoogleAPIKey
		prov.APIVersion = e.GoogleAPIVersion
		prov.ProjectID = e.GoogleProject
		prov.CredentialsFile = e.GoogleCredentials
	}
	return prov
}
