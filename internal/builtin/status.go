package builtin

import (
	"context"
	"strings"
	"time"

	"github.com/msto63/mBOT/pkg/command"
	"github.com/msto63/mBOT/pkg/core/health"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// HealthSource runs the process health checks
type HealthSource interface {
	Check(ctx context.Context) *health.Report
}

// InstallStatus registers the status command. It is restricted by perm,
// normally dispatch.Superusers.
func InstallStatus(reg *command.Registry, src HealthSource, perm dispatch.Permission) (*command.Command, error) {
	s := &status{reg: reg, src: src}
	cmd, err := reg.NewCommand(command.Options{
		Name:        "status",
		Description: reg.Localize("status.description", nil),
		Usage:       reg.Localize("status.usage", nil),
		Permission:  perm,
		Handlers:    []dispatch.Handler{s.handle},
	})
	if err != nil {
		return nil, err
	}
	s.cmd = cmd
	return cmd, nil
}

type status struct {
	reg *command.Registry
	src HealthSource
	cmd *command.Command
}

func (s *status) handle(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
	report := s.src.Check(ctx)
	if len(report.Checks) == 0 {
		return s.cmd.Finish(ctx, s.reg.Localize("status.no_checks", nil))
	}

	lines := []string{s.reg.Localize("status.header", map[string]interface{}{
		"status": string(report.Status),
		"count":  len(report.Checks),
		"uptime": report.Uptime.Truncate(time.Second).String(),
	})}
	for _, c := range report.Checks {
		lines = append(lines, s.reg.Localize("status.item", map[string]interface{}{
			"name":    c.Name,
			"status":  string(c.Status),
			"message": c.Message,
		}))
	}

	text := strings.Join(lines, "\n")
	switch report.Status {
	case health.StatusHealthy:
		_ = s.cmd.SendSuccess(ctx, text)
	case health.StatusDegraded:
		_ = s.cmd.SendWarning(ctx, text)
	default:
		_ = s.cmd.SendFailure(ctx, text)
	}
	return dispatch.Finish
}
