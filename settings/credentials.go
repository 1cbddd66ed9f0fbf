// Package settings stores plugloc user credentials in the XDG data
// directory:
//
//	$XDG_DATA_HOME/plugloc/auth.json  (default: ~/.local/share/plugloc/)
//
// The file is a JSON object keyed by service ID (deepl, google,
// confluence). Each entry carries a "type" field:
//
//   - "api"             API key (DeepL auth key, Google API key)
//   - "service-account" path to a Google service account JSON file
//   - "bearer"          bearer token plus base URL (Confluence)
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for secrets:
//  1. command-line flag
//  2. environment variable (or .env)
//  3. this credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dataDirName = "plugloc"
	fileName    = "auth.json"
)

// Service IDs.
const (
	ServiceDeepL      = "deepl"
	ServiceGoogle     = "google"
	ServiceConfluence = "confluence"
)

// Entry types.
const (
	TypeAPI            = "api"
	TypeServiceAccount = "service-account"
	TypeBearer         = "bearer"
)

// Info is the entry stored per service in auth.json.
type Info struct {
	Type string `json:"type"`

	// Key is the API key or bearer token.
	Key string `json:"key,omitempty"`
	// CredentialsFile is a service account JSON path (type service-account).
	CredentialsFile string `json:"credentialsFile,omitempty"`
	// ProjectID is the Google Cloud project.
	ProjectID string `json:"projectId,omitempty"`
	// BaseURL is the service endpoint (Confluence).
	BaseURL string `json:"baseUrl,omitempty"`
}

// Store holds all credentials, keyed by service ID.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the plugloc data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}
	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the entry for a service, or nil if not found.
func Get(service string) *Info {
	return Load()[service]
}

// Set stores an entry for a service (upsert).
func Set(service string, info *Info) error {
	store := Load()
	store[service] = info
	return Save(store)
}

// Remove deletes the credentials of a service.
func Remove(service string) error {
	store := Load()
	if _, ok := store[service]; !ok {
		return nil
	}
	delete(store, service)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// SetAPIKey stores an API key.
func SetAPIKey(service, key string) error {
	return Set(service, &Info{Type: TypeAPI, Key: key})
}

// SetServiceAccount stores a Google service account file and project.
func SetServiceAccount(credentialsFile, projectID string) error {
	abs, err := filepath.Abs(credentialsFile)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("service account file: %w", err)
	}
	return Set(ServiceGoogle, &Info{Type: TypeServiceAccount, CredentialsFile: abs, ProjectID: projectID})
}

// SetBearer stores a bearer token and its base URL.
func SetBearer(service, token, baseURL string) error {
	return Set(service, &Info{Type: TypeBearer, Key: token, BaseURL: baseURL})
}

// GetKey returns the stored key or token of a service, or "".
func GetKey(service string) string {
	if info := Get(service); info != nil {
		return info.Key
	}
	return ""
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// EnvVarForService returns the environment variable holding a service's
// secret.
func EnvVarForService(service string) string {
	switch service {
	case ServiceDeepL:
		return "DEEPL_API_KEY"
	case ServiceGoogle:
		return "GOOGLE_API_KEY"
	case ServiceConfluence:
		return "CONFLUENCE_BEARER_TOKEN"
	default:
		return ""
	}
}

// Resolve picks the first non-empty of flag value, environment value and
// stored value.
func Resolve(flagValue, envValue, stored string) string {
	for _, v := range []string{flagValue, envValue, stored} {
		if v != "" {
			return v
		}
	}
	return ""
}

// ResolveKey resolves a service secret with flag → env → store priority.
func ResolveKey(service, flagValue, envValue string) string {
	return Resolve(flagValue, envValue, GetKey(service))
}

// MaskKey returns a masked version of a key/token for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
