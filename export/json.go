package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/minios-linux/plugloc/langmeta"
	"github.com/minios-linux/plugloc/propfile"
)

// DefaultJSONLocale is used when a file name carries no locale.
const DefaultJSONLocale = "ru-RU"

var fileLocale = regexp.MustCompile(`(?i)_([a-z]{2})[-_]([a-z]{2})$`)

// DetectLocale extracts a hyphenated locale from a file name such as
// message_ru_RU.properties or bigpicture_ru-RU.properties.
func DetectLocale(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := fileLocale.FindStringSubmatch(stem)
	if m == nil {
		return DefaultJSONLocale
	}
	return langmeta.Jira(m[1] + "_" + m[2])
}

// apiDocument is the locale-wrapped JSON layout served to the frontend.
type apiDocument struct {
	Locale      string            `json:"locale"`
	Translation map[string]string `json:"translation"`
}

// ConvertToJSON converts a .properties file to JSON. With wrap set the
// output is {"locale": ..., "translation": {...}}, otherwise a flat object.
// An empty locale is detected from the file name. It returns the number of
// keys written.
func ConvertToJSON(propsPath, outPath, locale string, wrap bool) (int, error) {
	f, err := propfile.ParseFile(propsPath)
	if err != nil {
		return 0, err
	}
	if locale == "" {
		locale = DetectLocale(propsPath)
	}

	values := f.Values()
	var doc any = values
	if wrap {
		doc = apiDocument{Locale: locale, Translation: values}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encoding %s: %w", outPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", filepath.Dir(outPath), err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", outPath, err)
	}
	return len(values), nil
}
