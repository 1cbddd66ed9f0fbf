package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/minios-linux/plugloc/langmeta"
	"github.com/minios-linux/plugloc/placeholder"
)

// DeepL endpoints. Free-tier keys end in ":fx".
const (
	DeepLFreeURL = "https://api-free.deepl.com"
	DeepLProURL  = "https://api.deepl.com"
)

type deeplGateway struct {
	http *resty.Client
	key  string
}

type deeplTranslateResponse struct {
	Translations []struct {
		DetectedSourceLanguage string `json:"detected_source_language"`
		Text                   string `json:"text"`
	} `json:"translations"`
}

type deeplUsageResponse struct {
	CharacterCount int64 `json:"character_count"`
	CharacterLimit int64 `json:"character_limit"`
}

func newDeepL(prov Provider) (*deeplGateway, error) {
	key := strings.TrimSpace(prov.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: DeepL API key not set (DEEPL_API_KEY)", ErrMissingCredentials)
	}
	if prov.BaseURL == "" {
		prov.BaseURL = DeepLProURL
		if strings.HasSuffix(key, ":fx") {
			prov.BaseURL = DeepLFreeURL
		}
	}
	return &deeplGateway{http: newClient(prov), key: key}, nil
}

func (g *deeplGateway) Name() string { return BackendDeepL }

func (g *deeplGateway) request(ctx context.Context) *resty.Request {
	return g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "DeepL-Auth-Key "+g.key)
}

func (g *deeplGateway) Translate(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	form := map[string]string{
		"text":                text,
		"source_lang":         langmeta.Resolve(sourceLocale).DeepL,
		"target_lang":         langmeta.Resolve(targetLocale).DeepL,
		"preserve_formatting": "1",
	}
	if placeholder.NeedsTagHandling(text) {
		form["tag_handling"] = "xml"
		form["ignore_tags"] = placeholder.Tag
	}

	var out deeplTranslateResponse
	rr, err := g.request(ctx).
		SetFormData(form).
		SetResult(&out).
		Post("/v2/translate")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", transportError(BackendDeepL, err)
	}
	if rr.IsError() {
		return "", deeplStatusError(rr.StatusCode(), rr.String())
	}
	if len(out.Translations) == 0 {
		return "", &Error{Kind: KindUnknown, Backend: BackendDeepL, Status: rr.StatusCode(), Message: "empty translations in response"}
	}
	return out.Translations[0].Text, nil
}

// Check reads the account usage. A reachable API that rejects the key or
// reports an exhausted quota fails the check.
func (g *deeplGateway) Check(ctx context.Context) (Usage, error) {
	var out deeplUsageResponse
	rr, err := g.request(ctx).SetResult(&out).Get("/v2/usage")
	if err != nil {
		if ctx.Err() != nil {
			return Usage{}, ctx.Err()
		}
		return Usage{}, transportError(BackendDeepL, err)
	}
	if rr.IsError() {
		return Usage{}, deeplStatusError(rr.StatusCode(), rr.String())
	}
	u := Usage{Count: out.CharacterCount, Limit: out.CharacterLimit, Known: true}
	if u.Limit > 0 && u.Count >= u.Limit {
		return u, &Error{
			Kind:    KindQuotaExceeded,
			Backend: BackendDeepL,
			Message: fmt.Sprintf("character quota exhausted (%d/%d)", u.Count, u.Limit),
		}
	}
	return u, nil
}
