package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/internal/plugins"
	"github.com/msto63/mBOT/pkg/core/config"
	"github.com/msto63/mBOT/pkg/dispatch"
)

type recorder struct {
	mu      sync.Mutex
	replies []string
}

func (r *recorder) Reply(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
	return nil
}

func quietLogger() *log.Logger {
	return log.NewWithConfig(log.Config{Level: log.LevelError, Output: &bytes.Buffer{}})
}

func testConfig(t *testing.T, weatherURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.General.Superusers = []string{"admin"}
	cfg.Bot.CommandPrefixes = []string{"/", "!"}
	cfg.Store.Enabled = true
	cfg.Store.Path = filepath.Join(t.TempDir(), "mbot.db")
	if weatherURL != "" {
		cfg.APIs = []config.APIConfig{{Name: plugins.WeatherAPIName, URL: weatherURL}}
	}
	return cfg
}

func newTestBot(t *testing.T, cfg *config.Config) *Bot {
	t.Helper()
	b, err := New(cfg, quietLogger(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func dispatchAs(t *testing.T, b *Bot, user, text string) (bool, []string) {
	t.Helper()
	rec := &recorder{}
	handled, err := b.Dispatch(context.Background(), dispatch.Message{
		Platform: "test", UserID: user, ChannelID: "c1", Text: text, Reply: rec,
	})
	if err != nil {
		t.Fatalf("Dispatch(%q): %v", text, err)
	}
	return handled, rec.replies
}

func weatherServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(plugins.WeatherReport{
			City:        r.URL.Query().Get("city"),
			Condition:   "晴",
			Temperature: 18,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBot_EndToEnd(t *testing.T) {
	b := newTestBot(t, testConfig(t, weatherServer(t).URL))

	if !b.Registry().Frozen() {
		t.Error("registry should be frozen after New")
	}
	for _, name := range []string{"help", "stats", "status", "echo", "ping", "weather"} {
		if !b.Registry().Has(name) {
			t.Errorf("registry missing %q", name)
		}
	}

	steps := []struct {
		user string
		text string
		want string
	}{
		{"u1", "/ping", "<ping>: pong"},
		{"u1", "!ping", "<ping>: pong"},
		{"u1", "/wx now Berlin", "<weather today>: Berlin：晴，18°C"},
		{"u1", "/echo loud hi", "HI"},
	}
	for _, s := range steps {
		handled, replies := dispatchAs(t, b, s.user, s.text)
		if !handled || len(replies) != 1 || replies[0] != s.want {
			t.Errorf("%s: handled=%v replies=%q, want %q", s.text, handled, replies, s.want)
		}
	}

	if handled, _ := dispatchAs(t, b, "u1", "hello there"); handled {
		t.Error("plain text should not be handled")
	}
	if handled, _ := dispatchAs(t, b, "u1", "/status"); handled {
		t.Error("status must be denied for non-superusers")
	}

	_, replies := dispatchAs(t, b, "u1", "/stats")
	if len(replies) != 1 || !strings.Contains(replies[0], "　» ping　2 次") {
		t.Errorf("stats = %q", replies)
	}

	_, replies = dispatchAs(t, b, "admin", "/status")
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "✔ <status>: 运行状态：healthy") ||
		!strings.Contains(replies[0], "api:weather") || !strings.Contains(replies[0], "store") {
		t.Errorf("status = %q", replies)
	}

	var out bytes.Buffer
	if err := b.WriteCommands(&out); err != nil {
		t.Fatalf("WriteCommands: %v", err)
	}
	if !strings.Contains(out.String(), "/weather\t天气查询") {
		t.Errorf("WriteCommands output:\n%s", out.String())
	}
}

func TestBot_WithoutWeatherAPIOrStore(t *testing.T) {
	cfg := testConfig(t, "")
	b, err := New(cfg, quietLogger(), Options{SkipStore: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if b.Registry().Has("weather") {
		t.Error("weather must not be installed without its api")
	}
	if b.Store() != nil {
		t.Error("store should be skipped")
	}
	_, replies := dispatchAs(t, b, "u1", "/stats")
	if len(replies) != 1 || replies[0] != "⚠ <stats>: 调用记录未启用" {
		t.Errorf("stats = %q", replies)
	}
}

func TestBot_EnglishLocale(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.General.Locale = "en"
	b := newTestBot(t, cfg)

	_, replies := dispatchAs(t, b, "u1", "/help nope")
	if len(replies) != 1 || !strings.HasPrefix(replies[0], "✘ <help>: Unknown command 'nope'") {
		t.Errorf("help = %q", replies)
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil, quietLogger(), Options{}); !mboterror.HasCode(err, mboterror.CodeMissingConfig) {
		t.Errorf("nil config: %v", err)
	}

	cfg := testConfig(t, "")
	cfg.Bot.CommandPrefixes = nil
	if _, err := New(cfg, quietLogger(), Options{}); !mboterror.HasCode(err, mboterror.CodeInvalidConfig) {
		t.Errorf("no prefixes: %v", err)
	}

	cfg = testConfig(t, "")
	cfg.APIs = []config.APIConfig{{Name: "weather", URL: "ftp://example.com"}}
	if _, err := New(cfg, quietLogger(), Options{}); !mboterror.HasCode(err, mboterror.CodeInvalidConfig) {
		t.Errorf("bad api url: %v", err)
	}
}
