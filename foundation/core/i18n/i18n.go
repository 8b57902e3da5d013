// File: i18n.go
// Title: Message Catalog
// Description: Loads translation catalogs in TOML and YAML from an fs.FS and
//              renders user-visible texts with text/template. The catalogs
//              shipped with mBOT are embedded; a directory on disk may be
//              layered on top to override single keys.
// Author: msto63
// Version: v0.2.0
// Created: 2026-09-14
// Modified: 2026-10-03
//
// Change History:
// - 2026-09-14 v0.1.0: Initial implementation with TOML/YAML support
// - 2026-10-03 v0.2.0: fs.FS based loading, embedded catalogs, override dir

package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	mbotstringx "github.com/msto63/mBOT/foundation/utils/stringx"
)

//go:embed locales/*.toml locales/*.yaml
var embedded embed.FS

// DefaultLocale is the locale the embedded catalogs are written for
const DefaultLocale = "zh-CN"

// Options defines configuration options for the i18n manager
type Options struct {
	DefaultLocale string // fallback locale, DefaultLocale if empty
	Locale        string // active locale, DefaultLocale if empty
	FS            fs.FS  // catalog files at the root, embedded catalogs if nil
	OverrideDir   string // optional directory whose files override FS keys
}

// Manager resolves translation keys for one active locale
type Manager struct {
	mu            sync.RWMutex
	defaultLocale string
	currentLocale string
	translations  map[string]map[string]interface{} // locale -> translations

	tmplMu    sync.Mutex
	templates map[string]*template.Template // locale:key -> compiled template
}

// New creates a manager from the given options
func New(options Options) (*Manager, error) {
	m := &Manager{
		defaultLocale: mbotstringx.FromBlankDefault(options.DefaultLocale, DefaultLocale),
		translations:  make(map[string]map[string]interface{}),
		templates:     make(map[string]*template.Template),
	}
	m.currentLocale = mbotstringx.FromBlankDefault(options.Locale, m.defaultLocale)

	fsys := options.FS
	if fsys == nil {
		sub, err := fs.Sub(embedded, "locales")
		if err != nil {
			return nil, mboterror.Wrap(err, "embedded catalogs unavailable").WithCode(mboterror.CodeInternal).WithOperation("i18n.New")
		}
		fsys = sub
	}
	if err := m.loadFS(fsys); err != nil {
		return nil, err
	}

	if !mbotstringx.IsBlank(options.OverrideDir) {
		if _, err := os.Stat(options.OverrideDir); err != nil {
			return nil, mboterror.New("locales directory not found").
				WithCode(mboterror.CodeMissingConfig).
				WithOperation("i18n.New").
				WithDetail("directory", options.OverrideDir)
		}
		if err := m.loadFS(os.DirFS(options.OverrideDir)); err != nil {
			return nil, err
		}
	}

	if _, ok := m.translations[m.defaultLocale]; !ok {
		return nil, mboterror.Newf("default locale '%s' not found", m.defaultLocale).
			WithCode(mboterror.CodeInvalidConfig).
			WithOperation("i18n.New")
	}
	return m, nil
}

// MustDefault returns a manager over the embedded catalogs and panics if
// they cannot be parsed.
func MustDefault() *Manager {
	m, err := New(Options{})
	if err != nil {
		panic(err)
	}
	return m
}

// loadFS loads every catalog file at the root of fsys, merging keys into
// catalogs already loaded for the same locale.
func (m *Manager) loadFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return mboterror.Wrap(err, "failed to read locales").WithCode(mboterror.CodeInvalidConfig).WithOperation("i18n.loadFS")
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(path.Ext(name))
		locale := strings.TrimSuffix(name, path.Ext(name))
		if mbotstringx.IsBlank(locale) {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read locale file %s: %w", name, err)
		}

		data := make(map[string]interface{})
		switch ext {
		case ".toml":
			err = toml.Unmarshal(content, &data)
		case ".yaml", ".yml":
			err = yaml.Unmarshal(content, &data)
		default:
			continue
		}
		if err != nil {
			return mboterror.Wrap(err, "failed to parse locale file").
				WithCode(mboterror.CodeInvalidConfig).
				WithOperation("i18n.loadFS").
				WithDetail("file", name)
		}

		m.mu.Lock()
		if existing, ok := m.translations[locale]; ok {
			mergeInto(existing, data)
		} else {
			m.translations[locale] = data
		}
		m.mu.Unlock()
	}

	m.tmplMu.Lock()
	m.templates = make(map[string]*template.Template)
	m.tmplMu.Unlock()
	return nil
}

func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]interface{})
		dstMap, dstIsMap := dst[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
}

// T translates a key with optional template data. A missing key renders as
// the key itself in brackets.
func (m *Manager) T(key string, data ...map[string]interface{}) string {
	translation, err := m.TryT(key, data...)
	if err != nil && translation == "" {
		return "[" + key + "]"
	}
	return translation
}

// TryT translates a key and returns an error if translation fails
func (m *Manager) TryT(key string, data ...map[string]interface{}) (string, error) {
	m.mu.RLock()
	locale, translation := m.lookup(key)
	m.mu.RUnlock()

	if translation == "" {
		return "", mboterror.New("translation not found").WithCode(mboterror.CodeNotFound).WithOperation("i18n.TryT").WithDetail("key", key)
	}
	if len(data) == 0 || data[0] == nil || !strings.Contains(translation, "{{") {
		return translation, nil
	}

	rendered, err := m.render(locale+":"+key, translation, data[0])
	if err != nil {
		return translation, mboterror.Wrap(err, "template rendering failed").WithCode(mboterror.CodeInvalidConfig).WithOperation("i18n.render")
	}
	return rendered, nil
}

// lookup finds key in the active locale, then in the default locale
func (m *Manager) lookup(key string) (string, string) {
	for _, locale := range []string{m.currentLocale, m.defaultLocale} {
		if translations, ok := m.translations[locale]; ok {
			if value := nestedValue(translations, key); value != "" {
				return locale, value
			}
		}
	}
	return "", ""
}

// nestedValue retrieves a value using dot notation
func nestedValue(data map[string]interface{}, key string) string {
	keys := strings.Split(key, ".")
	current := data
	for i, k := range keys {
		value, ok := current[k]
		if !ok {
			return ""
		}
		if i == len(keys)-1 {
			if _, isMap := value.(map[string]interface{}); isMap {
				return ""
			}
			return fmt.Sprintf("%v", value)
		}
		next, ok := value.(map[string]interface{})
		if !ok {
			return ""
		}
		current = next
	}
	return ""
}

func (m *Manager) render(cacheKey, text string, data map[string]interface{}) (string, error) {
	m.tmplMu.Lock()
	tmpl, ok := m.templates[cacheKey]
	if !ok {
		var err error
		tmpl, err = template.New(cacheKey).Option("missingkey=zero").Parse(text)
		if err != nil {
			m.tmplMu.Unlock()
			return text, fmt.Errorf("template compilation failed: %w", err)
		}
		m.templates[cacheKey] = tmpl
	}
	m.tmplMu.Unlock()

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return text, fmt.Errorf("template execution failed: %w", err)
	}
	return b.String(), nil
}

// SetLocale switches the active locale
func (m *Manager) SetLocale(locale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.translations[locale]; !ok {
		return mboterror.New("locale not available").WithCode(mboterror.CodeNotFound).WithOperation("i18n.SetLocale").WithDetail("locale", locale)
	}
	m.currentLocale = locale
	return nil
}

// Locale returns the active locale
func (m *Manager) Locale() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentLocale
}

// Locales returns all loaded locales, sorted
func (m *Manager) Locales() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	locales := make([]string, 0, len(m.translations))
	for l := range m.translations {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// Keys returns every leaf key of the given locale in dot notation, sorted
func (m *Manager) Keys(locale string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	collectKeys(m.translations[locale], "", &keys)
	sort.Strings(keys)
	return keys
}

func collectKeys(data map[string]interface{}, prefix string, keys *[]string) {
	for k, v := range data {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if sub, ok := v.(map[string]interface{}); ok {
			collectKeys(sub, full, keys)
			continue
		}
		*keys = append(*keys, full)
	}
}
