package plugins

import (
	"context"
	"strings"

	"github.com/msto63/mBOT/pkg/command"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// sender is the reply surface shared by commands and switches
type sender interface {
	SendRaw(ctx context.Context, message string) error
	SendWarning(ctx context.Context, message string) error
	Localize(key string, data map[string]interface{}) string
}

// repeat answers with the transformed arguments, unformatted
func repeat(ctx context.Context, to sender, ev *dispatch.Event, transform func(string) string) dispatch.Signal {
	text := strings.TrimSpace(ev.Args)
	if text == "" {
		_ = to.SendWarning(ctx, to.Localize("echo.empty", nil))
		return dispatch.Finish
	}
	to.SendRaw(ctx, transform(text))
	return dispatch.Finish
}

func identity(s string) string { return s }

// InstallEcho registers echo with the switches loud and quiet. A bare echo
// answers with its usage.
func InstallEcho(reg *command.Registry) (*command.CommandWithSwitch, error) {
	var echo *command.CommandWithSwitch
	echo, err := reg.NewCommandWithSwitch(command.Options{
		Name:        "echo",
		Description: reg.Localize("echo.description", nil),
		Usage:       reg.Localize("echo.usage", nil),
		Handlers: []dispatch.Handler{func(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
			if strings.TrimSpace(ev.Args) == "" {
				return echo.Finish(ctx, echo.UsageString())
			}
			return repeat(ctx, echo, ev, identity)
		}},
	})
	if err != nil {
		return nil, err
	}

	switches := []struct {
		name      string
		usageKey  string
		transform func(string) string
	}{
		{"loud", "echo.loud_usage", strings.ToUpper},
		{"quiet", "echo.quiet_usage", strings.ToLower},
	}
	for _, sw := range switches {
		var s *command.Switch
		transform := sw.transform
		s, err = echo.NewSwitch(sw.name, command.SwitchOptions{
			Usage: reg.Localize(sw.usageKey, nil),
			Handlers: []dispatch.Handler{func(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
				return repeat(ctx, s, ev, transform)
			}},
		})
		if err != nil {
			return nil, err
		}
	}
	return echo, nil
}
