package monitor

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kestrel-auto/drive.assist/internal/httputil"
	"github.com/kestrel-auto/drive.assist/internal/units"
)

// echartsAssetsPrefix points charts at the published go-echarts asset bundle
// so the dashboard works without a local static tree.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

type chartRenderer interface {
	Render(w io.Writer) error
}

func renderChart(w http.ResponseWriter, c chartRenderer) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleLatencyChart renders per-frame latency with the window oldest-first.
func (d *Dashboard) handleLatencyChart(w http.ResponseWriter, r *http.Request) {
	window := d.Window()

	x := make([]string, 0, len(window))
	y := make([]opts.LineData, 0, len(window))
	for _, s := range window {
		x = append(x, strconv.FormatUint(s.Frame, 10))
		y = append(y, opts.LineData{Value: s.LatencyMS})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Frame Latency", Theme: "dark", Width: "1200px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Frame Latency", Subtitle: fmt.Sprintf("samples=%d", len(window))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(x).AddSeries("latency_ms", y,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	renderChart(w, line)
}

// handleOffsetChart renders the vehicle's lateral offset from lane center.
// Frames with no resolved lanes leave gaps in the series.
func (d *Dashboard) handleOffsetChart(w http.ResponseWriter, r *http.Request) {
	window := d.Window()

	x := make([]string, 0, len(window))
	y := make([]opts.LineData, 0, len(window))
	for _, s := range window {
		x = append(x, strconv.FormatUint(s.Frame, 10))
		if s.VehicleOffset != nil {
			y = append(y, opts.LineData{Value: *s.VehicleOffset})
		} else {
			y = append(y, opts.LineData{Value: nil})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Lane Offset", Theme: "dark", Width: "1200px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Vehicle Offset From Lane Center", Subtitle: "positive = vehicle left of center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "px"}),
	)
	line.SetXAxis(x).AddSeries("offset_px", y)

	renderChart(w, line)
}

// handleSteeringChart renders the assist's steering output.
func (d *Dashboard) handleSteeringChart(w http.ResponseWriter, r *http.Request) {
	window := d.Window()

	x := make([]string, 0, len(window))
	y := make([]opts.LineData, 0, len(window))
	for _, s := range window {
		x = append(x, strconv.FormatUint(s.Frame, 10))
		y = append(y, opts.LineData{Value: s.SteeringAngle})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Steering", Theme: "dark", Width: "1200px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Lane Keep Assist Steering", Subtitle: "positive = steer right"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "deg"}),
	)
	line.SetXAxis(x).AddSeries("steering_deg", y)

	renderChart(w, line)
}

// handleSpeedChart renders the vehicle speed as reported by the capture unit.
// The units query parameter selects the display units (default kph); frames
// without a reported speed leave gaps.
func (d *Dashboard) handleSpeedChart(w http.ResponseWriter, r *http.Request) {
	unit := r.URL.Query().Get("units")
	if unit == "" {
		unit = units.KPH
	}
	if !units.IsValid(unit) {
		httputil.BadRequest(w, fmt.Sprintf("invalid units %q, must be one of: %s",
			unit, units.GetValidUnitsString()))
		return
	}

	window := d.Window()
	x := make([]string, 0, len(window))
	y := make([]opts.LineData, 0, len(window))
	for _, s := range window {
		x = append(x, strconv.FormatUint(s.Frame, 10))
		if s.SpeedMPS != nil {
			y = append(y, opts.LineData{Value: units.ConvertSpeed(*s.SpeedMPS, unit)})
		} else {
			y = append(y, opts.LineData{Value: nil})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vehicle Speed", Theme: "dark", Width: "1200px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Vehicle Speed", Subtitle: "as reported by the capture unit"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit}),
	)
	line.SetXAxis(x).AddSeries("speed_"+unit, y)

	renderChart(w, line)
}

// handleWarningsChart renders the per-run warning rollup from the drive log.
func (d *Dashboard) handleWarningsChart(w http.ResponseWriter, r *http.Request) {
	if d.db == nil {
		httputil.NotFound(w, "drive log not configured")
		return
	}

	counts, err := d.db.WarningRollup(d.runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to roll up warnings: %v", err))
		return
	}

	x := []string{"FCWS warning", "FCWS critical", "LDWS warning", "LKAS active"}
	y := []opts.BarData{
		{Value: counts.FCWSWarning},
		{Value: counts.FCWSCritical},
		{Value: counts.LDWSWarning},
		{Value: counts.LKASActive},
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Warnings", Theme: "dark", Width: "900px", Height: "500px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Warning Activity", Subtitle: fmt.Sprintf("frames=%d", counts.Frames)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("warnings", y,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	renderChart(w, bar)
}
