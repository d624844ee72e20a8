package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// Translator resolves user-visible strings from an embedded YAML
// catalog. Dialogs never hard-code prompt or response text.
type Translator struct {
	translations map[string]string
}

func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := filepath.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the string for key, or the key itself when missing so a
// broken catalog stays visible instead of silent.
func (t *Translator) T(key string) string {
	if s, ok := t.translations[key]; ok {
		return s
	}
	return key
}

// Tf formats the string for key with fmt verbs.
func (t *Translator) Tf(key string, args ...any) string {
	return fmt.Sprintf(t.T(key), args...)
}
