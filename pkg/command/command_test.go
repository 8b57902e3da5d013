package command

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/log"
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

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return ""
	}
	return r.replies[len(r.replies)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replies)
}

func newTestRegistry(t *testing.T) (*Registry, *dispatch.Table) {
	t.Helper()
	logger := log.NewWithConfig(log.Config{Level: log.LevelError, Output: &bytes.Buffer{}})
	table := dispatch.NewTable(dispatch.Options{Prefixes: []string{"/"}, Logger: logger})
	return NewRegistry(RegistryOptions{Router: table, Logger: logger}), table
}

func send(t *testing.T, table *dispatch.Table, text string) *recorder {
	t.Helper()
	rec := &recorder{}
	if _, err := table.Dispatch(context.Background(), dispatch.Message{
		Platform: "test", UserID: "u1", ChannelID: "c1", Text: text, Reply: rec,
	}); err != nil {
		t.Fatalf("Dispatch(%q) error = %v", text, err)
	}
	return rec
}

func TestBuildAliases_Cardinality(t *testing.T) {
	for n := 0; n <= 3; n++ {
		for m := 0; m <= 3; m++ {
			t.Run(fmt.Sprintf("B=%d,S=%d", n+1, m+1), func(t *testing.T) {
				var baseAliases, subAliases []string
				for i := 0; i < n; i++ {
					baseAliases = append(baseAliases, fmt.Sprintf("b%d", i))
				}
				for i := 0; i < m; i++ {
					subAliases = append(subAliases, fmt.Sprintf("s%d", i))
				}

				got := BuildAliases("base", baseAliases, "sub", subAliases)
				if want := (n+1)*(m+1) - 1; got.Len() != want {
					t.Errorf("Len() = %d, want %d", got.Len(), want)
				}
				if got.Has("base sub") {
					t.Error("canonical key must not be an alias")
				}
			})
		}
	}
}

func TestBuildAliases_Weather(t *testing.T) {
	got := BuildAliases("weather", []string{"wx"}, "today", []string{"now"}).Sorted()
	want := []string{"weather now", "wx now", "wx today"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("BuildAliases() = %v, want %v", got, want)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		glyph string
		want  string
	}{
		{"", "<ping>: pong"},
		{GlyphSuccess, "✔ <ping>: pong"},
		{GlyphFailure, "✘ <ping>: pong"},
		{GlyphWarning, "⚠ <ping>: pong"},
		{GlyphQuestion, "❓ <ping>: pong"},
	}
	for _, tt := range tests {
		if got := Format(tt.glyph, "ping", "pong"); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.glyph, got, tt.want)
		}
	}
}

func TestRegistry_NameRules(t *testing.T) {
	reg, _ := newTestRegistry(t)

	if _, err := reg.NewCommand(Options{Name: "ping"}); err != nil {
		t.Fatalf("NewCommand(ping) error = %v", err)
	}

	tests := []struct {
		name string
		code mboterror.Code
	}{
		{"ping", mboterror.CodeDuplicateCommand},
		{"pi ng", mboterror.CodeInvalidName},
		{"tab\tname", mboterror.CodeInvalidName},
		{"", mboterror.CodeInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.NewCommand(Options{Name: tt.name})
			if !mboterror.HasCode(err, tt.code) {
				t.Errorf("NewCommand(%q) error = %v, want %s", tt.name, err, tt.code)
			}
			if !mboterror.IsConfigurationError(err) {
				t.Errorf("error should be a configuration error: %v", err)
			}
		})
	}

	if _, err := reg.NewCommand(Options{Name: "Ping"}); err != nil {
		t.Errorf("names differing by case must both register: %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}

func TestRegistry_AliasCollisionLeavesNoEntry(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if _, err := reg.NewCommand(Options{Name: "help", Aliases: []string{"usage"}}); err != nil {
		t.Fatal(err)
	}

	_, err := reg.NewCommand(Options{Name: "usage"})
	if !mboterror.HasCode(err, mboterror.CodeDuplicatePattern) {
		t.Fatalf("error = %v, want DUPLICATE_PATTERN", err)
	}
	if reg.Has("usage") {
		t.Error("failed registration must not leave an entry")
	}
}

func TestRegistry_ListAndFreeze(t *testing.T) {
	reg, _ := newTestRegistry(t)
	for _, o := range []Options{
		{Name: "zeta"},
		{Name: "alpha"},
		{Name: "secret", Hidden: true},
	} {
		if _, err := reg.NewCommand(o); err != nil {
			t.Fatal(err)
		}
	}

	var names []string
	for _, e := range reg.List(true) {
		names = append(names, e.Name())
	}
	if strings.Join(names, ",") != "alpha,zeta" {
		t.Errorf("List(true) = %v", names)
	}
	if len(reg.List(false)) != 3 {
		t.Errorf("List(false) = %d entries", len(reg.List(false)))
	}

	e, ok := reg.Lookup("secret")
	if !ok || !e.Hidden() {
		t.Fatal("Lookup(secret) failed")
	}
	e.(*Command).Unhide()
	if len(reg.List(true)) != 3 {
		t.Error("Unhide should make the entry visible")
	}

	reg.Freeze()
	if _, err := reg.NewCommand(Options{Name: "late"}); !mboterror.HasCode(err, mboterror.CodeRegistryFrozen) {
		t.Errorf("NewCommand after freeze error = %v", err)
	}
	if _, err := reg.Bind("x", "x y", nil, Options{}); !mboterror.HasCode(err, mboterror.CodeRegistryFrozen) {
		t.Errorf("Bind after freeze error = %v", err)
	}
}

func TestCommand_SendVariants(t *testing.T) {
	reg, table := newTestRegistry(t)

	var cmd *Command
	handler := func(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
		switch ev.Args {
		case "basic":
			_ = cmd.Send(ctx, "hi")
		case "ok":
			_ = cmd.SendSuccess(ctx, "hi")
		case "fail":
			_ = cmd.SendFailure(ctx, "hi")
		case "warn":
			_ = cmd.SendWarning(ctx, "hi")
		case "ask":
			_ = cmd.SendQuestion(ctx, "hi")
		case "raw":
			_ = cmd.SendRaw(ctx, "hi")
		case "finish":
			return cmd.Finish(ctx, "bye")
		}
		return dispatch.Next
	}
	var err error
	cmd, err = reg.NewCommand(Options{Name: "say", Handlers: []dispatch.Handler{handler}})
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string]string{
		"basic":  "<say>: hi",
		"ok":     "✔ <say>: hi",
		"fail":   "✘ <say>: hi",
		"warn":   "⚠ <say>: hi",
		"ask":    "❓ <say>: hi",
		"raw":    "hi",
		"finish": "<say>: bye",
	}
	for args, want := range tests {
		t.Run(args, func(t *testing.T) {
			if got := send(t, table, "/say "+args).last(); got != want {
				t.Errorf("reply = %q, want %q", got, want)
			}
		})
	}
}

func TestCommand_EnableDisable(t *testing.T) {
	reg, table := newTestRegistry(t)
	cmd, err := reg.NewCommand(Options{
		Name:     "ping",
		Disabled: true,
		Handlers: []dispatch.Handler{func(ctx context.Context, _ *dispatch.Event) dispatch.Signal {
			return dispatch.Next
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	cmd.Handle(func(ctx context.Context, _ *dispatch.Event) dispatch.Signal {
		_ = cmd.Send(ctx, "pong")
		return dispatch.Next
	})

	if send(t, table, "/ping").count() != 0 {
		t.Error("disabled command answered")
	}
	cmd.Enable()
	if got := send(t, table, "/ping").last(); got != "<ping>: pong" {
		t.Errorf("reply = %q", got)
	}
	cmd.Disable()
	if cmd.Enabled() {
		t.Error("Enabled() after Disable")
	}
}

func TestCommand_UsageString(t *testing.T) {
	reg, _ := newTestRegistry(t)
	with, _ := reg.NewCommand(Options{Name: "a", Usage: "/a <x>"})
	without, _ := reg.NewCommand(Options{Name: "b"})

	if got := with.UsageString(); got != "► 使用说明\n/a <x>" {
		t.Errorf("UsageString() = %q", got)
	}
	if got := without.UsageString(); !strings.Contains(got, "（无可用信息）") {
		t.Errorf("UsageString() without usage = %q", got)
	}
}

func TestCommandWithSwitch(t *testing.T) {
	reg, table := newTestRegistry(t)

	echo, err := reg.NewCommandWithSwitch(Options{Name: "echo", Aliases: []string{"say"}, Usage: "复读文本"})
	if err != nil {
		t.Fatal(err)
	}

	loud, err := echo.NewSwitch("loud", SwitchOptions{
		Usage: "/echo loud <文本>",
		Handlers: []dispatch.Handler{func(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
			return dispatch.Next
		}},
	})
	if err != nil {
		t.Fatalf("NewSwitch(loud) error = %v", err)
	}
	loud.Handle(func(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
		_ = loud.SendRaw(ctx, strings.ToUpper(ev.Args))
		return dispatch.Next
	})
	if _, err := echo.NewSwitch("quiet", SwitchOptions{}); err != nil {
		t.Fatalf("NewSwitch(quiet) error = %v", err)
	}
	hidden := true
	if _, err := echo.NewSwitch("debug", SwitchOptions{Hidden: &hidden, Usage: "internal"}); err != nil {
		t.Fatal(err)
	}

	t.Run("duplicate switch", func(t *testing.T) {
		_, err := echo.NewSwitch("loud", SwitchOptions{})
		if !mboterror.HasCode(err, mboterror.CodeDuplicateSwitch) {
			t.Errorf("error = %v, want DUPLICATE_SWITCH", err)
		}
	})

	t.Run("invalid switch name", func(t *testing.T) {
		_, err := echo.NewSwitch("very loud", SwitchOptions{})
		if !mboterror.HasCode(err, mboterror.CodeInvalidName) {
			t.Errorf("error = %v, want INVALID_NAME", err)
		}
	})

	t.Run("dispatch keys", func(t *testing.T) {
		if loud.Key() != "echo loud" || loud.SwitchName() != "loud" || loud.Parent() != echo {
			t.Errorf("Key() = %q", loud.Key())
		}
		if got := loud.Aliases().Sorted(); len(got) != 1 || got[0] != "say loud" {
			t.Errorf("Aliases() = %v", got)
		}
		for _, text := range []string{"/echo loud abc", "/say loud abc"} {
			if got := send(t, table, text).last(); got != "ABC" {
				t.Errorf("%s -> %q", text, got)
			}
		}
	})

	t.Run("bare invocation replies usage", func(t *testing.T) {
		got := send(t, table, "/echo").last()
		for _, want := range []string{"<echo>: ", "复读文本", "/echo loud <文本>", "echo quiet（无可用信息）"} {
			if !strings.Contains(got, want) {
				t.Errorf("usage reply missing %q:\n%s", want, got)
			}
		}
		if strings.Contains(got, "internal") {
			t.Error("hidden switch listed in usage")
		}
	})

	t.Run("switches in order", func(t *testing.T) {
		var names []string
		for _, s := range echo.Switches() {
			names = append(names, s.SwitchName())
		}
		if strings.Join(names, ",") != "loud,quiet,debug" {
			t.Errorf("Switches() = %v", names)
		}
		if _, ok := echo.Switch("quiet"); !ok {
			t.Error("Switch(quiet) not found")
		}
	})

	t.Run("registry holds only the parent", func(t *testing.T) {
		if reg.Has("echo loud") || !reg.Has("echo") {
			t.Error("switches must not be registry entries")
		}
	})
}

func TestSwitch_InheritsParentState(t *testing.T) {
	reg, _ := newTestRegistry(t)
	perm := dispatch.Superusers("root")
	parent, err := reg.NewCommandWithSwitch(Options{Name: "admin", Disabled: true, Hidden: true, Permission: perm})
	if err != nil {
		t.Fatal(err)
	}

	inherited, _ := parent.NewSwitch("a", SwitchOptions{})
	if inherited.Enabled() || !inherited.Hidden() || inherited.Permission() == nil {
		t.Error("switch should inherit disabled, hidden and permission")
	}

	on, off := true, false
	overridden, _ := parent.NewSwitch("b", SwitchOptions{Enabled: &on, Hidden: &off})
	if !overridden.Enabled() || overridden.Hidden() {
		t.Error("explicit switch options should win")
	}
}

func TestCommand_GotPromptIsFormatted(t *testing.T) {
	reg, table := newTestRegistry(t)
	cmd, _ := reg.NewCommand(Options{Name: "ask"})
	cmd.Got("answer", "你的名字？", func(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
		return cmd.Finish(ctx, "你好 "+ev.State["answer"])
	})

	rec := &recorder{}
	msg := dispatch.Message{Platform: "test", UserID: "u", ChannelID: "c", Reply: rec}
	msg.Text = "/ask"
	_, _ = table.Dispatch(context.Background(), msg)
	if rec.last() != "❓ <ask>: 你的名字？" {
		t.Errorf("prompt = %q", rec.last())
	}
	msg.Text = "小明"
	_, _ = table.Dispatch(context.Background(), msg)
	if rec.last() != "<ask>: 你好 小明" {
		t.Errorf("reply = %q", rec.last())
	}
}
