// Package translate implements the machine translation gateway: a single
// Translate call backed by either DeepL or Google Cloud Translation (v2 or
// v3). The backend is chosen once per run from configuration; callers only
// see the Gateway interface and the failure kinds in errors.go.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ---------------------------------------------------------------------------
// Backend IDs
// ---------------------------------------------------------------------------

const (
	BackendDeepL  = "deepl"
	BackendGoogle = "google"
)

// Google Cloud Translation API versions.
const (
	GoogleV2 = "v2"
	GoogleV3 = "v3"
)

// DefaultTimeout bounds every backend request.
const DefaultTimeout = 60 * time.Second

// SourceLocale is the language all source strings are written in.
const SourceLocale = "en"

// ErrMissingCredentials is returned by New when a backend cannot be built
// from the supplied configuration.
var ErrMissingCredentials = errors.New("missing translation credentials")

// ParseBackend validates a backend name.
func ParseBackend(name string) (string, error) {
	switch b := strings.ToLower(strings.TrimSpace(name)); b {
	case BackendDeepL, BackendGoogle:
		return b, nil
	case "":
		return BackendDeepL, nil
	default:
		return "", fmt.Errorf("unknown translation service %q (want %s or %s)", name, BackendDeepL, BackendGoogle)
	}
}

// NormalizeGoogleVersion accepts "v2", "2", "V3" etc.
func NormalizeGoogleVersion(v string) (string, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "v") {
	case "2":
		return GoogleV2, nil
	case "3", "":
		return GoogleV3, nil
	default:
		return "", fmt.Errorf("unknown Google Translation API version %q (want v2 or v3)", v)
	}
}

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for one translation backend.
type Provider struct {
	// ID is the backend identifier (deepl, google).
	ID string
	// Name is the display name.
	Name string
	// BaseURL overrides the API endpoint. For DeepL an empty value selects
	// the free or paid endpoint from the key.
	BaseURL string
	// APIKey is the DeepL auth key or a Google API key (v2 only).
	APIKey string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the per-request timeout.
	Timeout time.Duration

	// APIVersion selects the Google API (v2 or v3).
	APIVersion string
	// ProjectID is the Google Cloud project for v3 requests.
	ProjectID string
	// CredentialsFile is a Google service account JSON file.
	CredentialsFile string
}

// DefaultProviders returns the pre-configured backend definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		BackendDeepL: {
			ID:      BackendDeepL,
			Name:    "DeepL",
			Timeout: DefaultTimeout,
		},
		BackendGoogle: {
			ID:         BackendGoogle,
			Name:       "Google Cloud Translation",
			BaseURL:    "https://translation.googleapis.com",
			APIVersion: GoogleV3,
			Timeout:    DefaultTimeout,
		},
	}
}

func (p Provider) effectiveTimeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

// ---------------------------------------------------------------------------
// Gateway
// ---------------------------------------------------------------------------

// Usage is the character quota reported by a backend. Known is false when
// the backend has no usage endpoint.
type Usage struct {
	Count int64
	Limit int64
	Known bool
}

// Remaining returns the characters left in the current period.
func (u Usage) Remaining() int64 {
	return u.Limit - u.Count
}

// Gateway translates one text at a time. Text containing markup or
// placeholder markers is sent in the backend's tag-preserving mode.
type Gateway interface {
	// Name is the backend ID, stored as the record's translation method.
	Name() string
	// Translate translates text between two locales. Failures are *Error
	// values classified by Kind.
	Translate(ctx context.Context, text, sourceLocale, targetLocale string) (string, error)
	// Check verifies credentials and quota before any work starts.
	Check(ctx context.Context) (Usage, error)
}

// New builds the gateway for prov. Credential problems are reported here so
// that a run can abort before touching any key.
func New(ctx context.Context, prov Provider) (Gateway, error) {
	switch prov.ID {
	case BackendDeepL:
		return newDeepL(prov)
	case BackendGoogle:
		return newGoogle(ctx, prov)
	default:
		return nil, fmt.Errorf("unknown translation service %q", prov.ID)
	}
}

// ---------------------------------------------------------------------------
// HTTP client
// ---------------------------------------------------------------------------

// newClient builds a dedicated HTTP client per gateway. Without an explicit
// proxy, HTTP_PROXY/HTTPS_PROXY from the environment apply.
func newClient(prov Provider) *resty.Client {
	c := resty.New().
		SetTimeout(prov.effectiveTimeout()).
		SetHeader("User-Agent", "plugloc").
		SetHeader("Accept", "application/json")
	if prov.BaseURL != "" {
		c.SetBaseURL(strings.TrimRight(prov.BaseURL, "/"))
	}
	if prov.Proxy != "" {
		c.SetProxy(prov.Proxy)
	}
	return c
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
