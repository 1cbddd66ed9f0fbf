package translate

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/auth/credentials"
	"github.com/go-resty/resty/v2"
	"github.com/minios-linux/plugloc/langmeta"
	"github.com/minios-linux/plugloc/placeholder"
)

const cloudTranslationScope = "https://www.googleapis.com/auth/cloud-translation"

// tokenFunc returns an OAuth2 access token.
type tokenFunc func(ctx context.Context) (string, error)

type googleGateway struct {
	http    *resty.Client
	version string
	apiKey  string
	project string
	token   tokenFunc
}

type googleTranslation struct {
	TranslatedText         string `json:"translatedText"`
	DetectedSourceLanguage string `json:"detectedSourceLanguage,omitempty"`
}

type googleV2Response struct {
	Data struct {
		Translations []googleTranslation `json:"translations"`
	} `json:"data"`
}

type googleV3Response struct {
	Translations []googleTranslation `json:"translations"`
}

func newGoogle(ctx context.Context, prov Provider) (*googleGateway, error) {
	version, err := NormalizeGoogleVersion(prov.APIVersion)
	if err != nil {
		return nil, err
	}
	if prov.BaseURL == "" {
		prov.BaseURL = DefaultProviders()[BackendGoogle].BaseURL
	}
	g := &googleGateway{
		http:    newClient(prov),
		version: version,
		apiKey:  strings.TrimSpace(prov.APIKey),
		project: strings.TrimSpace(prov.ProjectID),
	}
	if version == GoogleV2 && g.apiKey != "" {
		return g, nil
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{cloudTranslationScope},
		CredentialsFile: prov.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: Google credentials (GOOGLE_APPLICATION_CREDENTIALS): %v", ErrMissingCredentials, err)
	}
	g.token = func(ctx context.Context) (string, error) {
		tok, err := creds.Token(ctx)
		if err != nil {
			return "", err
		}
		return tok.Value, nil
	}

	if version == GoogleV3 && g.project == "" {
		g.project, err = creds.ProjectID(ctx)
		if err != nil || g.project == "" {
			return nil, fmt.Errorf("%w: Google Cloud project id not found (GOOGLE_CLOUD_PROJECT)", ErrMissingCredentials)
		}
	}
	return g, nil
}

func (g *googleGateway) Name() string { return BackendGoogle }

func (g *googleGateway) request(ctx context.Context) (*resty.Request, error) {
	r := g.http.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
	if g.token == nil {
		return r.SetQueryParam("key", g.apiKey), nil
	}
	tok, err := g.token(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: KindAuthFailed, Backend: BackendGoogle, Message: "obtaining access token", Err: err}
	}
	return r.SetAuthToken(tok), nil
}

func (g *googleGateway) Translate(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	source := langmeta.Resolve(sourceLocale).Google
	target := langmeta.Resolve(targetLocale).Google
	html := placeholder.NeedsTagHandling(text)

	req, err := g.request(ctx)
	if err != nil {
		return "", err
	}

	var (
		rr           *resty.Response
		translations []googleTranslation
	)
	if g.version == GoogleV2 {
		format := "text"
		if html {
			format = "html"
		}
		var out googleV2Response
		rr, err = req.SetBody(map[string]any{
			"q":      []string{text},
			"source": source,
			"target": target,
			"format": format,
		}).SetResult(&out).Post("/language/translate/v2")
		translations = out.Data.Translations
	} else {
		mime := "text/plain"
		if html {
			mime = "text/html"
		}
		var out googleV3Response
		path := fmt.Sprintf("/v3/projects/%s/locations/global:translateText", g.project)
		rr, err = req.SetBody(map[string]any{
			"contents":           []string{text},
			"sourceLanguageCode": source,
			"targetLanguageCode": target,
			"mimeType":           mime,
		}).SetResult(&out).Post(path)
		translations = out.Translations
	}

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", transportError(BackendGoogle, err)
	}
	if rr.IsError() {
		return "", googleStatusError(rr.StatusCode(), rr.String())
	}
	if len(translations) == 0 {
		return "", &Error{Kind: KindUnknown, Backend: BackendGoogle, Status: rr.StatusCode(), Message: "empty translations in response"}
	}
	return translations[0].TranslatedText, nil
}

// Check verifies that an access token can be obtained. Google exposes no
// quota endpoint, so Usage is never known.
func (g *googleGateway) Check(ctx context.Context) (Usage, error) {
	if g.token == nil {
		return Usage{}, nil
	}
	_, err := g.request(ctx)
	return Usage{}, err
}
