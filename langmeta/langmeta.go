// Package langmeta maps canonical language_COUNTRY locales (ru_RU, pt_BR)
// to the codes each translation backend expects, and to the spellings used
// by Jira resource files.
package langmeta

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocale is the target locale when none is configured.
const DefaultLocale = "ru_RU"

// Info describes one target locale.
type Info struct {
	// Locale is the canonical language_COUNTRY tag.
	Locale string
	// Name is a human readable name, e.g. "Russian (Russia)".
	Name     string
	Language string
	Country  string
	// DeepL is the DeepL target_lang code (RU, ZH, PT).
	DeepL string
	// Google is the Google Cloud Translation code (ru, zh-CN).
	Google string
}

// Flag returns the emoji flag of the locale's country, or "".
func (i Info) Flag() string {
	return flagFromRegion(i.Country)
}

// Registry holds the locales with explicit backend mappings.
var Registry = map[string]Info{
	"ru_RU": {Name: "Russian (Russia)", Language: "ru", Country: "RU", DeepL: "RU", Google: "ru"},
	"de_DE": {Name: "German (Germany)", Language: "de", Country: "DE", DeepL: "DE", Google: "de"},
	"fr_FR": {Name: "French (France)", Language: "fr", Country: "FR", DeepL: "FR", Google: "fr"},
	"es_ES": {Name: "Spanish (Spain)", Language: "es", Country: "ES", DeepL: "ES", Google: "es"},
	"it_IT": {Name: "Italian (Italy)", Language: "it", Country: "IT", DeepL: "IT", Google: "it"},
	"pt_BR": {Name: "Portuguese (Brazil)", Language: "pt", Country: "BR", DeepL: "PT", Google: "pt"},
	"ja_JP": {Name: "Japanese (Japan)", Language: "ja", Country: "JP", DeepL: "JA", Google: "ja"},
	"ko_KR": {Name: "Korean (South Korea)", Language: "ko", Country: "KR", DeepL: "KO", Google: "ko"},
	"zh_CN": {Name: "Chinese (Simplified)", Language: "zh", Country: "CN", DeepL: "ZH", Google: "zh-CN"},
	"zh_TW": {Name: "Chinese (Traditional)", Language: "zh", Country: "TW", DeepL: "ZH", Google: "zh-TW"},
	"pl_PL": {Name: "Polish (Poland)", Language: "pl", Country: "PL", DeepL: "PL", Google: "pl"},
	"nl_NL": {Name: "Dutch (Netherlands)", Language: "nl", Country: "NL", DeepL: "NL", Google: "nl"},
	"sv_SE": {Name: "Swedish (Sweden)", Language: "sv", Country: "SE", DeepL: "SV", Google: "sv"},
	"fi_FI": {Name: "Finnish (Finland)", Language: "fi", Country: "FI", DeepL: "FI", Google: "fi"},
	"uk_UA": {Name: "Ukrainian (Ukraine)", Language: "uk", Country: "UA", DeepL: "UK", Google: "uk"},
}

// Canonicalize normalizes locale spellings (ru-ru, ru_RU, RU) to the
// language_COUNTRY form. Tags without a region keep only the language.
func Canonicalize(locale string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
	if normalized == "" {
		return ""
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		parts := strings.SplitN(normalized, "-", 2)
		out := strings.ToLower(parts[0])
		if len(parts) == 2 {
			out += "_" + strings.ToUpper(parts[1])
		}
		return out
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == language.Exact {
		return base.String() + "_" + region.String()
	}
	return base.String()
}

// Resolve returns backend metadata for a locale, falling back to codes
// derived from the language part (upper case for DeepL, lower case for
// Google) when the locale is not in the Registry.
func Resolve(locale string) Info {
	canonical := Canonicalize(locale)
	if info, ok := Registry[canonical]; ok {
		info.Locale = canonical
		return info
	}
	lang, country, _ := strings.Cut(canonical, "_")
	return Info{
		Locale:   canonical,
		Name:     canonical,
		Language: lang,
		Country:  country,
		DeepL:    strings.ToUpper(lang),
		Google:   strings.ToLower(lang),
	}
}

// Jira converts a locale to the hyphenated form used in Jira resource file
// names (ru_RU -> ru-RU).
func Jira(locale string) string {
	return strings.ReplaceAll(Canonicalize(locale), "_", "-")
}

// ---------------------------------------------------------------------------
// Script detection
// ---------------------------------------------------------------------------

// scriptPatterns match characters typical of a language's script. They are
// used to separate real translations from untranslated English values.
var scriptPatterns = map[string]*regexp.Regexp{
	"ru": regexp.MustCompile(`[\x{0400}-\x{04FF}]`),
	"uk": regexp.MustCompile(`[\x{0400}-\x{04FF}]`),
	"de": regexp.MustCompile(`[äöüÄÖÜß]`),
	"fr": regexp.MustCompile(`[àâäéèêëïîôùûüÿç]`),
	"es": regexp.MustCompile(`[ñáéíóúüÑÁÉÍÓÚÜ¿¡]`),
	"it": regexp.MustCompile(`[àèéìíîòóùú]`),
	"pt": regexp.MustCompile(`[áàâãéêíóôõúç]`),
	"ja": regexp.MustCompile(`[\x{3040}-\x{309F}\x{30A0}-\x{30FF}\x{4E00}-\x{9FAF}]`),
	"ko": regexp.MustCompile(`[\x{AC00}-\x{D7AF}]`),
	"zh": regexp.MustCompile(`[\x{4E00}-\x{9FFF}]`),
	"pl": regexp.MustCompile(`[ąćęłńóśźżĄĆĘŁŃÓŚŹŻ]`),
	"nl": regexp.MustCompile(`[éëïöüÉËÏÖÜ]`),
	"sv": regexp.MustCompile(`[äöåÄÖÅ]`),
	"fi": regexp.MustCompile(`[äöåÄÖÅ]`),
}

// ContainsTargetScript reports whether text looks like it is written in the
// locale's language. Languages without a pattern accept any non-ASCII text.
func ContainsTargetScript(text, locale string) bool {
	if text == "" {
		return false
	}
	if re, ok := scriptPatterns[Resolve(locale).Language]; ok {
		return re.MatchString(text)
	}
	for _, r := range text {
		if r > 127 {
			return true
		}
	}
	return false
}

// flagFromRegion builds a regional-indicator emoji from a two-letter code.
func flagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	region = strings.ToUpper(region)
	var b strings.Builder
	for _, c := range region {
		if c < 'A' || c > 'Z' {
			return ""
		}
		b.WriteRune(0x1F1E6 + (c - 'A'))
	}
	return b.String()
}
