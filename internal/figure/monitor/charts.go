package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/skintrack/internal/figure/series"
	"github.com/banshee-data/skintrack/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

var axisNames = [3]string{"x", "y", "z"}

var groupTitles = map[series.Group]string{
	series.GroupPosition:        "Position",
	series.GroupOrientation:     "Orientation (rad)",
	series.GroupAngularVelocity: "Angular velocity (rad/s)",
	series.GroupAcceleration:    "Acceleration",
}

func groupNames() []string {
	out := make([]string, len(series.Groups))
	for i, g := range series.Groups {
		out[i] = g.String()
	}
	return out
}

// groupLineChart draws the three axes of one group against the shared
// frame index.
func groupLineChart(snap series.Snapshot, g series.Group) *charts.Line {
	x := make([]string, len(snap.Frames))
	for i, f := range snap.Frames {
		x[i] = strconv.FormatInt(f, 10)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "100%", Height: "320px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: groupTitles[g]}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetXAxis(x)
	for i, values := range snap.Group(g) {
		data := make([]opts.LineData, len(values))
		for k, v := range values {
			data[k] = opts.LineData{Value: v}
		}
		line.AddSeries(axisNames[i], data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

// handleCharts renders all four telemetry groups on one page. The page is
// a snapshot; the dashboard reloads it.
func (ws *WebServer) handleCharts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap := ws.session.Series()

	page := components.NewPage()
	page.PageTitle = "skintrack telemetry " + time.Now().Format(time.RFC3339)
	page.SetAssetsHost(echartsAssetsPrefix)
	for _, g := range series.Groups {
		page.AddCharts(groupLineChart(snap, g))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleChartPNG renders one group as a static image: /charts/png?group=position.
func (ws *WebServer) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	name := r.URL.Query().Get("group")
	if name == "" {
		name = series.GroupPosition.String()
	}
	g, ok := series.ParseGroup(name)
	if !ok {
		httputil.BadRequest(w, fmt.Sprintf("unknown group %q", name))
		return
	}

	var buf bytes.Buffer
	if err := WriteGroupPNG(&buf, ws.session.Series(), g); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
