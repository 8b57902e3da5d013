package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/pkg/apimgr"
	"github.com/msto63/mBOT/pkg/command"
	"github.com/msto63/mBOT/pkg/core/cache"
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

type fixture struct {
	t      *testing.T
	table  *dispatch.Table
	reg    *command.Registry
	logger *log.Logger
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := log.NewWithConfig(log.Config{Level: log.LevelError, Output: logs})
	table := dispatch.NewTable(dispatch.Options{Prefixes: []string{"/"}, Logger: logger})
	return &fixture{
		t:      t,
		table:  table,
		reg:    command.NewRegistry(command.RegistryOptions{Router: table, Logger: logger}),
		logger: logger,
		logs:   logs,
	}
}

// send dispatches text and returns the replies
func (f *fixture) send(text string) []string {
	f.t.Helper()
	rec := &recorder{}
	handled, err := f.table.Dispatch(context.Background(), dispatch.Message{
		Platform: "test", UserID: "u1", ChannelID: "c1", Text: text, Reply: rec,
	})
	if err != nil {
		f.t.Fatalf("Dispatch(%q) error = %v", text, err)
	}
	if !handled {
		f.t.Fatalf("Dispatch(%q) not handled", text)
	}
	return rec.replies
}

func expectReplies(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("replies = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reply[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

type weatherBackend struct {
	calls  atomic.Int32
	status int
	body   string
}

func (b *weatherBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.calls.Add(1)
	if b.status != 0 {
		w.WriteHeader(b.status)
		return
	}
	if b.body != "" {
		w.Write([]byte(b.body))
		return
	}

	city := r.URL.Query().Get("city")
	if city == "Atlantis" {
		json.NewEncoder(w).Encode(WeatherReport{City: city})
		return
	}
	switch r.URL.Query().Get("mode") {
	case "today":
		json.NewEncoder(w).Encode(WeatherReport{City: city, Condition: "晴", Temperature: 21.5})
	case "forecast":
		json.NewEncoder(w).Encode(WeatherReport{City: city, Days: []ForecastDay{
			{Date: "2026-09-27", Condition: "多云", Low: 12, High: 20},
			{Date: "2026-09-28", Condition: "小雨", Low: 10, High: 16},
		}})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fixture) installWeather(backend *weatherBackend, opts ...apimgr.Option) *cache.Cache[WeatherReport] {
	f.t.Helper()
	srv := httptest.NewServer(backend)
	f.t.Cleanup(srv.Close)

	opts = append([]apimgr.Option{apimgr.WithName(WeatherAPIName), apimgr.WithLogger(f.logger)}, opts...)
	api, err := apimgr.New(srv.URL, opts...)
	if err != nil {
		f.t.Fatalf("apimgr.New: %v", err)
	}
	reports := cache.New[WeatherReport](cache.Config{TTL: time.Minute})
	if _, err := InstallWeather(f.reg, api, reports); err != nil {
		f.t.Fatalf("InstallWeather: %v", err)
	}
	return reports
}

func TestWeather_Today(t *testing.T) {
	f := newFixture(t)
	backend := &weatherBackend{}
	reports := f.installWeather(backend)

	for _, text := range []string{"/weather today Berlin", "/wx now Berlin", "/weather now berlin"} {
		got := f.send(text)
		if len(got) != 1 {
			t.Fatalf("%s: replies = %q", text, got)
		}
	}
	expectReplies(t, f.send("/wx today Berlin"), "<weather today>: Berlin：晴，21.5°C")

	if n := backend.calls.Load(); n != 1 {
		t.Errorf("backend called %d times, want 1 (cached per city)", n)
	}
	if reports.Size() != 1 {
		t.Errorf("cache size = %d, want 1", reports.Size())
	}
}

func TestWeather_TodayWithoutCityShowsUsage(t *testing.T) {
	f := newFixture(t)
	f.installWeather(&weatherBackend{})

	expectReplies(t, f.send("/weather today"), "<weather today>: ► 使用说明\n/weather today <城市>")
}

func TestWeather_NoData(t *testing.T) {
	f := newFixture(t)
	f.installWeather(&weatherBackend{})

	expectReplies(t, f.send("/weather today Atlantis"), "✘ <weather today>: 没有找到 Atlantis 的天气数据")
	expectReplies(t, f.send("/weather forecast Atlantis"), "✘ <weather forecast>: 没有找到 Atlantis 的天气数据")
}

func TestWeather_ForecastInline(t *testing.T) {
	f := newFixture(t)
	f.installWeather(&weatherBackend{})

	expectReplies(t, f.send("/weather forecast Berlin"),
		"<weather forecast>: Berlin\n2026-09-27　多云　12~20°C\n2026-09-28　小雨　10~16°C")
}

func TestWeather_ForecastPromptsForCity(t *testing.T) {
	f := newFixture(t)
	f.installWeather(&weatherBackend{})

	expectReplies(t, f.send("/wx forecast"), "❓ <weather forecast>: 请输入要查询的城市")
	if f.table.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", f.table.Pending())
	}

	got := f.send("Paris")
	if len(got) != 1 || got[0] != "<weather forecast>: Paris\n2026-09-27　多云　12~20°C\n2026-09-28　小雨　10~16°C" {
		t.Errorf("replies = %q", got)
	}
	if f.table.Pending() != 0 {
		t.Errorf("pending = %d after answer, want 0", f.table.Pending())
	}
}

func TestWeather_RemoteFailures(t *testing.T) {
	t.Run("unreachable is reported once and not cached", func(t *testing.T) {
		f := newFixture(t)
		backend := &weatherBackend{status: http.StatusInternalServerError}
		reports := f.installWeather(backend)

		expectReplies(t, f.send("/weather today Berlin"), "✘ <weather today>: 无法连接到服务器")
		expectReplies(t, f.send("/weather today Berlin"), "✘ <weather today>: 无法连接到服务器")
		if backend.calls.Load() != 2 {
			t.Errorf("backend called %d times, want 2", backend.calls.Load())
		}
		if reports.Size() != 0 {
			t.Errorf("failed lookups were cached")
		}
	})

	t.Run("malformed response", func(t *testing.T) {
		f := newFixture(t)
		f.installWeather(&weatherBackend{body: "<html>"})

		expectReplies(t, f.send("/weather today Berlin"))
		if !strings.Contains(f.logs.String(), "weather response malformed") {
			t.Errorf("malformed response not logged at error level:\n%s", f.logs.String())
		}
	})

	t.Run("disabled api", func(t *testing.T) {
		f := newFixture(t)
		backend := &weatherBackend{}
		f.installWeather(backend, apimgr.WithDisabled(true))

		expectReplies(t, f.send("/weather today Berlin"), "⚠ <weather today>: 天气接口已停用")
		if backend.calls.Load() != 0 {
			t.Errorf("disabled api was called")
		}
	})
}

func TestWeather_BareServiceAndUnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.installWeather(&weatherBackend{})

	got := f.send("/weather")
	if len(got) != 1 || got[0] != "✘ <weather>: 未选择命令。请使用 '/weather [命令]' 调用命令，或使用 '/help weather' 获取可用命令列表。" {
		t.Errorf("bare: %q", got)
	}
	expectReplies(t, f.send("/wx tomorrow"), "✘ <weather>: 未知命令 'tomorrow'。请使用 '/help weather' 获取可用命令列表。")
}

func TestEcho(t *testing.T) {
	f := newFixture(t)
	if _, err := InstallEcho(f.reg); err != nil {
		t.Fatalf("InstallEcho: %v", err)
	}

	tests := []struct {
		text string
		want string
	}{
		{"/echo Hello  World", "Hello  World"},
		{"/echo loud Hello", "HELLO"},
		{"/echo quiet HeLLo", "hello"},
		{"/echo loudly", "loudly"},
		{"/echo loud", "⚠ <echo loud>: 没有可以复读的内容"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			expectReplies(t, f.send(tt.text), tt.want)
		})
	}

	usage := f.send("/echo")
	want := "<echo>: ► 说明文档\n/echo <文本>\n\n► 使用方式\n　» /echo loud <文本>　大写复读\n　» /echo quiet <文本>　小写复读"
	expectReplies(t, usage, want)
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	if _, err := InstallPing(f.reg); err != nil {
		t.Fatalf("InstallPing: %v", err)
	}
	expectReplies(t, f.send("/ping"), "<ping>: pong")
}
