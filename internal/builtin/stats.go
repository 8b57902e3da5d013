package builtin

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/msto63/mBOT/foundation/core/log"
	mbotstringx "github.com/msto63/mBOT/foundation/utils/stringx"
	"github.com/msto63/mBOT/internal/store"
	"github.com/msto63/mBOT/pkg/command"
	"github.com/msto63/mBOT/pkg/dispatch"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 50
)

// UsageSource is the part of the invocation log the stats command reads
type UsageSource interface {
	TopCommands(ctx context.Context, since time.Time, limit int) ([]store.CommandCount, error)
	Count(ctx context.Context) (int64, error)
}

// InstallStats registers the stats command. src may be nil when the
// invocation log is disabled; the command then says so.
func InstallStats(reg *command.Registry, src UsageSource) (*command.Command, error) {
	s := &stats{reg: reg, src: src}
	cmd, err := reg.NewCommand(command.Options{
		Name:        "stats",
		Description: reg.Localize("stats.description", nil),
		Usage:       reg.Localize("stats.usage", nil),
		Handlers:    []dispatch.Handler{s.handle},
	})
	if err != nil {
		return nil, err
	}
	s.cmd = cmd
	return cmd, nil
}

type stats struct {
	reg *command.Registry
	src UsageSource
	cmd *command.Command
}

func (s *stats) handle(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
	if s.src == nil {
		_ = s.cmd.SendWarning(ctx, s.reg.Localize("stats.disabled", nil))
		return dispatch.Finish
	}

	limit := defaultTopLimit
	if tokens := mbotstringx.Tokens(ev.Args); len(tokens) > 0 {
		if n, err := strconv.Atoi(tokens[0]); err == nil && n > 0 {
			limit = min(n, maxTopLimit)
		}
	}

	total, err := s.src.Count(ctx)
	if err != nil {
		s.cmd.Logger().ErrorWithErr("stats count failed", err)
		_ = s.cmd.SendFailure(ctx, s.reg.Localize("stats.failed", nil))
		return dispatch.Finish
	}
	top, err := s.src.TopCommands(ctx, time.Time{}, limit)
	if err != nil {
		s.cmd.Logger().ErrorWithErr("stats query failed", err, log.Fields{"limit": limit})
		_ = s.cmd.SendFailure(ctx, s.reg.Localize("stats.failed", nil))
		return dispatch.Finish
	}
	if len(top) == 0 {
		return s.cmd.Finish(ctx, s.reg.Localize("stats.empty", nil))
	}

	lines := []string{s.reg.Localize("stats.header", map[string]interface{}{"total": total})}
	for _, c := range top {
		lines = append(lines, s.reg.Localize("stats.item", map[string]interface{}{
			"command": c.Key,
			"count":   c.Count,
		}))
	}
	return s.cmd.Finish(ctx, strings.Join(lines, "\n"))
}
