// Package confluence fetches plugin translation keys from the Confluence
// i18n REST endpoint and keeps a copy of every raw response.
package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds a fetch request.
const DefaultTimeout = 30 * time.Second

// DefaultRawDir receives raw API responses.
const DefaultRawDir = "raw_data"

const i18nPath = "/rest/prototype/1/i18n.json"

var (
	ErrMissingURL   = errors.New("Confluence URL not set (CONFLUENCE_URL or --url)")
	ErrMissingToken = errors.New("Confluence bearer token not set (CONFLUENCE_BEARER_TOKEN or --token)")
	ErrNoPlugins    = errors.New("no plugin keys to fetch")
)

// Config holds connection settings.
type Config struct {
	BaseURL string
	Token   string
	Proxy   string
	Timeout time.Duration
	// RawDir is where raw responses are saved; empty means DefaultRawDir.
	RawDir string
}

// Client talks to one Confluence instance.
type Client struct {
	http   *resty.Client
	rawDir string
	now    func() time.Time
}

// New validates cfg and builds a client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrMissingURL
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingToken
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	h := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetAuthToken(strings.TrimSpace(cfg.Token)).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "plugloc")
	if cfg.Proxy != "" {
		h.SetProxy(cfg.Proxy)
	}
	rawDir := cfg.RawDir
	if rawDir == "" {
		rawDir = DefaultRawDir
	}
	return &Client{http: h, rawDir: rawDir, now: time.Now}, nil
}

// Result is a fetched key set.
type Result struct {
	// Keys maps translation key to English source text.
	Keys map[string]string
	// Skipped counts entries whose value was not a string.
	Skipped int
	// RawPath is the saved copy of the response.
	RawPath string
}

// Fetch requests the keys of pluginKeys in one call. name labels the raw
// response file; when empty it is derived from the plugin keys.
func (c *Client) Fetch(ctx context.Context, pluginKeys []string, name string) (*Result, error) {
	if len(pluginKeys) == 0 {
		return nil, ErrNoPlugins
	}
	rr, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(url.Values{"pluginKeys": pluginKeys}).
		Get(i18nPath)
	if err != nil {
		return nil, fmt.Errorf("fetching i18n keys: %w", err)
	}
	if rr.IsError() {
		return nil, fmt.Errorf("Confluence returned %s: %s", rr.Status(), truncate(rr.String(), 300))
	}

	var raw map[string]any
	if err := json.Unmarshal(rr.Body(), &raw); err != nil {
		return nil, fmt.Errorf("decoding i18n response: %w", err)
	}

	res := &Result{Keys: make(map[string]string, len(raw))}
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			res.Skipped++
			continue
		}
		res.Keys[k] = s
	}

	if name == "" {
		name = RawName(pluginKeys)
	}
	res.RawPath, err = c.saveRaw(name, raw)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) saveRaw(name string, raw map[string]any) (string, error) {
	safe := strings.NewReplacer(" ", "_", ".", "_", "/", "_").Replace(name)
	path := filepath.Join(c.rawDir, fmt.Sprintf("%s_%s.json", safe, c.now().Format("20060102_150405")))

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return "", err
	}
	if err := os.MkdirAll(c.rawDir, 0755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", c.rawDir, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// RawName builds a file label from up to three plugin keys.
func RawName(pluginKeys []string) string {
	n := min(len(pluginKeys), 3)
	name := strings.Join(pluginKeys[:n], "_")
	if extra := len(pluginKeys) - n; extra > 0 {
		name += fmt.Sprintf("_and_%d_more", extra)
	}
	return name
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
