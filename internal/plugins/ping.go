package plugins

import (
	"context"

	"github.com/msto63/mBOT/pkg/command"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// InstallPing registers ping, which answers pong
func InstallPing(reg *command.Registry) (*command.Command, error) {
	var ping *command.Command
	ping, err := reg.NewCommand(command.Options{
		Name:        "ping",
		Description: reg.Localize("ping.description", nil),
		Usage:       reg.Localize("ping.usage", nil),
		Handlers: []dispatch.Handler{func(ctx context.Context, _ *dispatch.Event) dispatch.Signal {
			return ping.Finish(ctx, ping.Localize("ping.pong", nil))
		}},
	})
	return ping, err
}
