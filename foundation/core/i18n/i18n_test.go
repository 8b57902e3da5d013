// File: i18n_test.go
// Title: Message Catalog Tests
// Author: msto63
// Version: v0.2.0
// Created: 2026-09-14
// Modified: 2026-10-03

package i18n

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"zh-CN.toml": {Data: []byte(`
[greeting]
hello = "你好，{{.name}}"
plain = "纯文本"
`)},
		"en.yaml": {Data: []byte(`
greeting:
  hello: "Hello, {{.name}}"
`)},
		"README.md": {Data: []byte("ignored")},
	}
}

func TestNew_EmbeddedCatalogs(t *testing.T) {
	m, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := m.T("service.unknown_command", map[string]interface{}{
		"service": "weather",
		"command": "tomorrow",
		"prefix":  "/",
	})
	want := "未知命令 'tomorrow'。请使用 '/help weather' 获取可用命令列表。"
	if got != want {
		t.Errorf("T() = %q, want %q", got, want)
	}
	if m.T("api.unreachable") != "无法连接到服务器" {
		t.Errorf("api.unreachable = %q", m.T("api.unreachable"))
	}
}

func TestEmbeddedCatalogs_SameKeys(t *testing.T) {
	m := MustDefault()

	zh := m.Keys("zh-CN")
	en := m.Keys("en")
	if len(zh) == 0 {
		t.Fatal("no keys in default catalog")
	}
	enSet := make(map[string]bool, len(en))
	for _, k := range en {
		enSet[k] = true
	}
	for _, k := range zh {
		if !enSet[k] {
			t.Errorf("key %q missing from en catalog", k)
		}
	}
	if len(zh) != len(en) {
		t.Errorf("catalog sizes differ: zh-CN=%d en=%d", len(zh), len(en))
	}
}

func TestTranslation(t *testing.T) {
	m, err := New(Options{FS: testFS()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name   string
		locale string
		key    string
		data   map[string]interface{}
		want   string
	}{
		{"default locale", "zh-CN", "greeting.hello", map[string]interface{}{"name": "小明"}, "你好，小明"},
		{"other locale", "en", "greeting.hello", map[string]interface{}{"name": "Ann"}, "Hello, Ann"},
		{"fallback to default", "en", "greeting.plain", nil, "纯文本"},
		{"missing key", "en", "greeting.nope", nil, "[greeting.nope]"},
		{"table is not a leaf", "zh-CN", "greeting", nil, "[greeting]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.SetLocale(tt.locale); err != nil {
				t.Fatalf("SetLocale() error = %v", err)
			}
			if got := m.T(tt.key, tt.data); got != tt.want {
				t.Errorf("T(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestTryT_NotFound(t *testing.T) {
	m, _ := New(Options{FS: testFS()})
	_, err := m.TryT("does.not.exist")
	if !mboterror.HasCode(err, mboterror.CodeNotFound) {
		t.Errorf("TryT() error = %v, want NOT_FOUND", err)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Run("default locale missing", func(t *testing.T) {
		_, err := New(Options{DefaultLocale: "fr", FS: testFS()})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("broken file", func(t *testing.T) {
		fsys := fstest.MapFS{"zh-CN.toml": {Data: []byte("[broken")}}
		_, err := New(Options{FS: fsys})
		if !mboterror.HasCode(err, mboterror.CodeInvalidConfig) {
			t.Errorf("error = %v, want INVALID_CONFIG", err)
		}
	})

	t.Run("override dir missing", func(t *testing.T) {
		_, err := New(Options{OverrideDir: filepath.Join(t.TempDir(), "nope")})
		if !mboterror.HasCode(err, mboterror.CodeMissingConfig) {
			t.Errorf("error = %v, want MISSING_CONFIG", err)
		}
	})

	t.Run("unknown locale", func(t *testing.T) {
		m, _ := New(Options{FS: testFS()})
		if err := m.SetLocale("de"); err == nil {
			t.Error("SetLocale(de) should fail")
		}
	})
}

func TestOverrideDir_MergesKeys(t *testing.T) {
	dir := t.TempDir()
	content := "[api]\nunreachable = \"服务器开小差了\"\n"
	if err := os.WriteFile(filepath.Join(dir, "zh-CN.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := New(Options{OverrideDir: dir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := m.T("api.unreachable"); got != "服务器开小差了" {
		t.Errorf("overridden key = %q", got)
	}
	if got := m.T("api.timeout"); got != "请求超时" {
		t.Errorf("sibling key lost after merge: %q", got)
	}
}

func TestLocales(t *testing.T) {
	m, _ := New(Options{FS: testFS(), Locale: "en"})
	if m.Locale() != "en" {
		t.Errorf("Locale() = %q", m.Locale())
	}
	got := m.Locales()
	if len(got) != 2 || got[0] != "en" || got[1] != "zh-CN" {
		t.Errorf("Locales() = %v", got)
	}
}
