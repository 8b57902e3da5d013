// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     plugins
// Description: Demo plugins: a weather service backed by a remote API, an
//              echo command with switches and ping
// Author:      Mike Stoffels
// Created:     2026-09-26
// License:     MIT
// ============================================================================

package plugins

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/log"
	mbotstringx "github.com/msto63/mBOT/foundation/utils/stringx"
	"github.com/msto63/mBOT/pkg/apimgr"
	"github.com/msto63/mBOT/pkg/command"
	"github.com/msto63/mBOT/pkg/core/cache"
	"github.com/msto63/mBOT/pkg/dispatch"
	"github.com/msto63/mBOT/pkg/service"
)

// WeatherAPIName is the [[apis]] entry the weather service calls
const WeatherAPIName = "weather"

const (
	modeToday    = "today"
	modeForecast = "forecast"
	cityKey      = "city"
)

// errReported marks a remote failure the user has already been told about;
// it keeps such results out of the cache.
var errReported = errors.New("failure reported")

// WeatherReport is the response of the weather API:
//
//	GET <url>?city=<city>&mode=today|forecast
type WeatherReport struct {
	City        string        `json:"city"`
	Condition   string        `json:"condition"`
	Temperature float64       `json:"temperature"`
	Days        []ForecastDay `json:"days,omitempty"`
}

// ForecastDay is one day of a forecast
type ForecastDay struct {
	Date      string  `json:"date"`
	Condition string  `json:"condition"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
}

// Weather is the installed weather service
type Weather struct {
	svc      *service.Service
	today    *command.Command
	forecast *command.Command
	api      *apimgr.API
	cache    *cache.Cache[WeatherReport]
}

// InstallWeather registers the weather service (alias "wx") with the
// sub-commands today (alias "now") and forecast. reports may be nil to
// disable caching.
func InstallWeather(reg *command.Registry, api *apimgr.API, reports *cache.Cache[WeatherReport]) (*Weather, error) {
	w := &Weather{api: api, cache: reports}

	svc, err := service.New(reg, service.Options{
		Name:        "weather",
		Aliases:     []string{"wx"},
		Description: reg.Localize("weather.description", nil),
		Doc:         reg.Localize("weather.doc", nil),
	})
	if err != nil {
		return nil, err
	}
	w.svc = svc

	w.today, err = svc.OnCommand(command.Options{
		Name:        modeToday,
		Aliases:     []string{"now"},
		Description: reg.Localize("weather.today_description", nil),
		Usage:       reg.Localize("weather.today_usage", nil),
		Handlers:    []dispatch.Handler{w.handleToday},
	})
	if err != nil {
		return nil, err
	}

	w.forecast, err = svc.OnCommand(command.Options{
		Name:        modeForecast,
		Description: reg.Localize("weather.forecast_description", nil),
		Usage:       reg.Localize("weather.forecast_usage", nil),
		Handlers:    []dispatch.Handler{seedCity},
	})
	if err != nil {
		return nil, err
	}
	w.forecast.Got(cityKey, reg.Localize("weather.ask_city", nil), w.handleForecast)

	return w, nil
}

// Service returns the registered service
func (w *Weather) Service() *service.Service {
	return w.svc
}

// seedCity takes the city from the command arguments so the prompt is
// skipped when it was given inline
func seedCity(_ context.Context, ev *dispatch.Event) dispatch.Signal {
	if city := strings.TrimSpace(ev.Args); city != "" {
		ev.State[cityKey] = city
	}
	return dispatch.Next
}

func (w *Weather) handleToday(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
	city := strings.TrimSpace(ev.Args)
	if city == "" {
		return w.today.Finish(ctx, w.today.UsageString())
	}

	report, ok := w.lookup(ctx, w.today, city, modeToday)
	if !ok {
		return dispatch.Finish
	}
	if mbotstringx.IsBlank(report.Condition) {
		_ = w.today.SendFailure(ctx, w.today.Localize("weather.no_data", map[string]interface{}{"city": city}))
		return dispatch.Finish
	}
	return w.today.Finish(ctx, w.today.Localize("weather.report", map[string]interface{}{
		"city":        mbotstringx.FromBlankDefault(report.City, city),
		"condition":   report.Condition,
		"temperature": formatDegrees(report.Temperature),
	}))
}

func (w *Weather) handleForecast(ctx context.Context, ev *dispatch.Event) dispatch.Signal {
	city := strings.TrimSpace(ev.State[cityKey])
	if city == "" {
		return w.forecast.Reject(ctx, w.forecast.Localize("weather.ask_city", nil))
	}

	report, ok := w.lookup(ctx, w.forecast, city, modeForecast)
	if !ok {
		return dispatch.Finish
	}
	if len(report.Days) == 0 {
		_ = w.forecast.SendFailure(ctx, w.forecast.Localize("weather.no_data", map[string]interface{}{"city": city}))
		return dispatch.Finish
	}

	lines := make([]string, 0, len(report.Days)+1)
	lines = append(lines, mbotstringx.FromBlankDefault(report.City, city))
	for _, d := range report.Days {
		lines = append(lines, w.forecast.Localize("weather.forecast_item", map[string]interface{}{
			"date":      d.Date,
			"condition": d.Condition,
			"low":       formatDegrees(d.Low),
			"high":      formatDegrees(d.High),
		}))
	}
	return w.forecast.Finish(ctx, strings.Join(lines, "\n"))
}

// lookup fetches a report through the cache. ok is false when the user has
// already been answered.
func (w *Weather) lookup(ctx context.Context, cmd *command.Command, city, mode string) (WeatherReport, bool) {
	if w.api.Disabled() {
		_ = cmd.SendWarning(ctx, cmd.Localize("weather.disabled", nil))
		return WeatherReport{}, false
	}

	fetch := func() (WeatherReport, error) {
		var report WeatherReport
		ok, err := w.api.GetQueryInto(ctx, cmd, url.Values{"city": {city}, "mode": {mode}}, &report)
		if err != nil {
			return report, err
		}
		if !ok {
			return report, errReported
		}
		return report, nil
	}

	var report WeatherReport
	var err error
	if w.cache != nil {
		report, err = w.cache.GetOrSet(mode+":"+strings.ToLower(city), fetch)
	} else {
		report, err = fetch()
	}

	switch {
	case err == nil:
		return report, true
	case errors.Is(err, errReported):
		return report, false
	case mboterror.HasCode(err, mboterror.CodeMalformedResponse):
		// logged for the operator only
		cmd.Logger().ErrorWithErr("weather response malformed", err, log.Fields{"city": city, "mode": mode})
		return report, false
	default:
		cmd.Logger().WarnWithErr("weather lookup failed", err, log.Fields{"city": city, "mode": mode})
		_ = cmd.SendFailure(ctx, cmd.Localize("weather.no_data", map[string]interface{}{"city": city}))
		return report, false
	}
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
