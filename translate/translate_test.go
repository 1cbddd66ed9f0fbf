package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestDeepL(t *testing.T, handler http.HandlerFunc) *deeplGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := newDeepL(Provider{ID: BackendDeepL, BaseURL: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("newDeepL: %v", err)
	}
	return g
}

func newTestGoogle(t *testing.T, version string, handler http.HandlerFunc) *googleGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g := &googleGateway{
		http:    newClient(Provider{BaseURL: srv.URL}),
		version: version,
		project: "demo-project",
		token: func(context.Context) (string, error) {
			return "tok", nil
		},
	}
	return g
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// ---------------------------------------------------------------------------
// Backend selection
// ---------------------------------------------------------------------------

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"deepl", BackendDeepL, false},
		{" Google ", BackendGoogle, false},
		{"", BackendDeepL, false},
		{"yandex", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeGoogleVersion(t *testing.T) {
	for in, want := range map[string]string{"v2": GoogleV2, "2": GoogleV2, "V3": GoogleV3, "": GoogleV3} {
		got, err := NormalizeGoogleVersion(in)
		if err != nil || got != want {
			t.Errorf("NormalizeGoogleVersion(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := NormalizeGoogleVersion("v4"); err == nil {
		t.Error("expected error for v4")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), Provider{ID: "babelfish"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

// ---------------------------------------------------------------------------
// DeepL
// ---------------------------------------------------------------------------

func TestNewDeepL_MissingKey(t *testing.T) {
	_, err := newDeepL(Provider{ID: BackendDeepL})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("got %v, want ErrMissingCredentials", err)
	}
}

func TestNewDeepL_EndpointFromKey(t *testing.T) {
	free, err := newDeepL(Provider{APIKey: "abc:fx"})
	if err != nil {
		t.Fatal(err)
	}
	if free.http.BaseURL != DeepLFreeURL {
		t.Errorf("free key base URL = %q, want %q", free.http.BaseURL, DeepLFreeURL)
	}
	pro, err := newDeepL(Provider{APIKey: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if pro.http.BaseURL != DeepLProURL {
		t.Errorf("pro key base URL = %q, want %q", pro.http.BaseURL, DeepLProURL)
	}
}

func TestDeepL_TranslatePlain(t *testing.T) {
	g := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/translate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "DeepL-Auth-Key secret" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("target_lang"); got != "RU" {
			t.Errorf("target_lang = %q, want RU", got)
		}
		if got := r.PostForm.Get("source_lang"); got != "EN" {
			t.Errorf("source_lang = %q, want EN", got)
		}
		if got := r.PostForm.Get("tag_handling"); got != "" {
			t.Errorf("tag_handling = %q, want empty for plain text", got)
		}
		writeJSON(w, map[string]any{"translations": []map[string]string{{"text": "Мир"}}})
	})

	got, err := g.Translate(context.Background(), "World", "en", "ru_RU")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Мир" {
		t.Errorf("got %q, want %q", got, "Мир")
	}
}

func TestDeepL_TranslateTagMode(t *testing.T) {
	g := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if got := r.PostForm.Get("tag_handling"); got != "xml" {
			t.Errorf("tag_handling = %q, want xml", got)
		}
		if got := r.PostForm.Get("ignore_tags"); got != "ph" {
			t.Errorf("ignore_tags = %q, want ph", got)
		}
		writeJSON(w, map[string]any{"translations": []map[string]string{{"text": `Привет <ph id="0"/>`}}})
	})

	got, err := g.Translate(context.Background(), `Hello <ph id="0"/>`, "en", "ru_RU")
	if err != nil {
		t.Fatal(err)
	}
	if got != `Привет <ph id="0"/>` {
		t.Errorf("got %q", got)
	}
}

func TestDeepL_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   Kind
	}{
		{http.StatusTooManyRequests, "Too many requests", KindRateLimited},
		{529, "", KindRateLimited},
		{456, "Quota exceeded", KindQuotaExceeded},
		{http.StatusForbidden, "Wrong key", KindAuthFailed},
		{http.StatusUnauthorized, "", KindAuthFailed},
		{http.StatusInternalServerError, "boom", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			g := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tt.body, tt.status)
			})
			_, err := g.Translate(context.Background(), "x", "en", "ru_RU")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf = %v, want %v (%v)", got, tt.want, err)
			}
			var gwErr *Error
			if !errors.As(err, &gwErr) || gwErr.Status != tt.status {
				t.Errorf("expected *Error with status %d, got %v", tt.status, err)
			}
		})
	}
}

func TestDeepL_Check(t *testing.T) {
	g := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/usage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(w, map[string]int64{"character_count": 1000, "character_limit": 500000})
	})
	u, err := g.Check(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !u.Known || u.Remaining() != 499000 {
		t.Errorf("usage = %+v", u)
	}
}

func TestDeepL_CheckQuotaExhausted(t *testing.T) {
	g := newTestDeepL(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int64{"character_count": 500000, "character_limit": 500000})
	})
	_, err := g.Check(context.Background())
	if KindOf(err) != KindQuotaExceeded {
		t.Fatalf("got %v, want quota exceeded", err)
	}
}

func TestDeepL_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g, err := newDeepL(Provider{BaseURL: url, APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = g.Translate(context.Background(), "x", "en", "ru_RU")
	if KindOf(err) != KindUnreachable {
		t.Fatalf("got %v (%v), want unreachable", KindOf(err), err)
	}
}

// ---------------------------------------------------------------------------
// Google
// ---------------------------------------------------------------------------

func TestGoogleV3_Translate(t *testing.T) {
	g := newTestGoogle(t, GoogleV3, func(w http.ResponseWriter, r *http.Request) {
		if want := "/v3/projects/demo-project/locations/global:translateText"; r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["mimeType"] != "text/html" {
			t.Errorf("mimeType = %v, want text/html", body["mimeType"])
		}
		if body["targetLanguageCode"] != "ru" {
			t.Errorf("targetLanguageCode = %v", body["targetLanguageCode"])
		}
		writeJSON(w, map[string]any{"translations": []map[string]string{{"translatedText": `Привет <ph id="0"/>`}}})
	})

	got, err := g.Translate(context.Background(), `Hello <ph id="0"/>`, "en", "ru_RU")
	if err != nil {
		t.Fatal(err)
	}
	if got != `Привет <ph id="0"/>` {
		t.Errorf("got %q", got)
	}
}

func TestGoogleV2_TranslateWithAPIKey(t *testing.T) {
	g := newTestGoogle(t, GoogleV2, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/language/translate/v2" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "api-key" {
			t.Errorf("key = %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["format"] != "text" {
			t.Errorf("format = %v, want text", body["format"])
		}
		writeJSON(w, map[string]any{"data": map[string]any{
			"translations": []map[string]string{{"translatedText": "Мир"}},
		}})
	})
	g.token = nil
	g.apiKey = "api-key"

	got, err := g.Translate(context.Background(), "World", "en", "ru_RU")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Мир" {
		t.Errorf("got %q", got)
	}
}

func TestGoogle_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"429", http.StatusTooManyRequests, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`, KindQuotaExceeded},
		{"429 plain", http.StatusTooManyRequests, "slow down", KindRateLimited},
		{"403 quota", http.StatusForbidden, `{"error":{"message":"Daily Limit Exceeded"}}`, KindQuotaExceeded},
		{"403 rate", http.StatusForbidden, `{"error":{"reason":"userRateLimitExceeded"}}`, KindRateLimited},
		{"403 auth", http.StatusForbidden, `{"error":{"message":"The caller does not have permission"}}`, KindAuthFailed},
		{"401", http.StatusUnauthorized, "", KindAuthFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGoogle(t, GoogleV3, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tt.body, tt.status)
			})
			_, err := g.Translate(context.Background(), "x", "en", "ru_RU")
			if got := KindOf(err); got != tt.want {
				t.Errorf("KindOf = %v, want %v (%v)", got, tt.want, err)
			}
		})
	}
}

func TestGoogle_TokenFailure(t *testing.T) {
	g := newTestGoogle(t, GoogleV3, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a token")
	})
	g.token = func(context.Context) (string, error) { return "", errors.New("invalid_grant") }

	if _, err := g.Check(context.Background()); KindOf(err) != KindAuthFailed {
		t.Fatalf("Check: got %v, want auth failure", err)
	}
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindUnreachable},
		{"wrapped gateway error", fmt.Errorf("batch: %w", &Error{Kind: KindQuotaExceeded}), KindQuotaExceeded},
		{"too many requests", errors.New("429 Too Many Requests"), KindRateLimited},
		{"resource exhausted", errors.New("Resource exhausted for project"), KindQuotaExceeded},
		{"timeout text", errors.New("read timed out"), KindUnreachable},
		{"other", errors.New("bad things"), KindUnknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("%s: KindOf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestKind_HighLoad(t *testing.T) {
	for k, want := range map[Kind]bool{
		KindRateLimited:   true,
		KindQuotaExceeded: true,
		KindUnreachable:   false,
		KindAuthFailed:    false,
		KindUnknown:       false,
	} {
		if got := k.HighLoad(); got != want {
			t.Errorf("%v.HighLoad() = %v, want %v", k, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("привет", 3); got != "при..." {
		t.Errorf("got %q", got)
	}
	if got := truncate("ok", 3); got != "ok" {
		t.Errorf("got %q", got)
	}
}
