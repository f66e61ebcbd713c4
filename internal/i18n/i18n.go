// Package i18n holds the bot's user-facing texts.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var bundled embed.FS

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	// Tf formats the translated pattern with args, fmt style.
	Tf(key string, args ...any) string
	Lang() string
}

// Manager stores all available translations.
type Manager struct {
	translations map[string]map[string]string
	defaultLang  string
}

// Load loads the translations compiled into the binary.
func Load(defaultLang string) (*Manager, error) {
	sub, err := fs.Sub(bundled, "locales")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub, defaultLang)
}

// LoadFromDir loads translations from a directory containing YAML files.
func LoadFromDir(dir, defaultLang string) (*Manager, error) {
	return LoadFS(os.DirFS(dir), defaultLang)
}

// LoadFS loads every YAML file at the root of fsys.
func LoadFS(fsys fs.FS, defaultLang string) (*Manager, error) {
	catalog, err := parseDir(fsys)
	if err != nil {
		return nil, err
	}

	if defaultLang == "" {
		defaultLang = "en"
	}

	if _, ok := catalog[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{translations: catalog, defaultLang: defaultLang}, nil
}

// Translator returns a translator for the requested language.
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	norm := strings.ToLower(strings.TrimSpace(lang))
	if norm == "" || m.translations[norm] == nil {
		norm = m.defaultLang
	}

	return translator{
		lang:         norm,
		fallback:     m.defaultLang,
		translations: m.translations,
	}
}

// Languages returns all loaded languages.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	languages := make([]string, 0, len(m.translations))
	for lang := range m.translations {
		languages = append(languages, lang)
	}
	return languages
}

// Missing lists the keys of the default language that lang does not translate.
func (m *Manager) Missing(lang string) []string {
	if m == nil {
		return nil
	}

	target := m.translations[strings.ToLower(lang)]
	var missing []string
	for key := range m.translations[m.defaultLang] {
		if _, ok := target[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

type translator struct {
	lang         string
	fallback     string
	translations map[string]map[string]string
}

func (t translator) Lang() string {
	return t.lang
}

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	if value := t.lookup(t.lang, key); value != "" {
		return value
	}

	if value := t.lookup(t.fallback, key); value != "" {
		return value
	}

	return key
}

func (t translator) Tf(key string, args ...any) string {
	return fmt.Sprintf(t.T(key), args...)
}

func (t translator) lookup(lang, key string) string {
	if lang == "" || t.translations == nil {
		return ""
	}

	if entries := t.translations[lang]; entries != nil {
		if value, ok := entries[key]; ok {
			return value
		}
	}

	return ""
}

func parseDir(fsys fs.FS) (map[string]map[string]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir: %w", err)
	}

	catalog := make(map[string]map[string]string)
	var processed bool

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry) {
			continue
		}

		processed = true

		fileCatalog, err := parseFile(fsys, entry.Name())
		if err != nil {
			return nil, err
		}

		for lang, translations := range fileCatalog {
			if _, ok := catalog[lang]; !ok {
				catalog[lang] = make(map[string]string)
			}
			for key, value := range translations {
				catalog[lang][key] = value
			}
		}
	}

	if !processed {
		return nil, fmt.Errorf("i18n: no yaml files found")
	}

	return catalog, nil
}

func isYAML(entry fs.DirEntry) bool {
	ext := strings.ToLower(path.Ext(entry.Name()))
	return ext == ".yaml" || ext == ".yml"
}

// parseFile reads a file shaped as {lang: {nested keys: text}} and flattens
// the nested keys with dots. Non-scalar leaves are rejected with their line.
func parseFile(fsys fs.FS, name string) (map[string]map[string]string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("i18n: read file %s: %w", name, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("i18n: parse file %s: %w", name, err)
	}

	catalog := make(map[string]map[string]string)
	if len(doc.Content) == 0 {
		return catalog, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("i18n: %s: top level must map languages to texts", name)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		lang := strings.ToLower(strings.TrimSpace(root.Content[i].Value))
		if lang == "" {
			continue
		}

		texts := make(map[string]string)
		if err := flatten("", root.Content[i+1], texts); err != nil {
			return nil, fmt.Errorf("i18n: %s: %w", name, err)
		}
		if len(texts) > 0 {
			catalog[lang] = texts
		}
	}

	return catalog, nil
}

func flatten(prefix string, node *yaml.Node, out map[string]string) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if prefix != "" {
			out[prefix] = node.Value
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := flatten(key, node.Content[i+1], out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: %q must be text or a nested map", node.Line, prefix)
	}
}
