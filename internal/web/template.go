package web

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/pir-presets/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"lower": strings.ToLower,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>PIR Presets</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.occupied { color: green; font-weight: bold; }
.vacant { color: #888; }
.unknown, .disabled { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>PIR Presets</h1>

<h2>State</h2>
<table>
<tr><th>Occupancy</th><td class="{{lower .Occupancy}}">{{.Occupancy}}</td></tr>
<tr><th>Motion sensing</th><td>{{if .Motion.Enabled}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Sensor</th><td>{{if .Motion.Raw}}HIGH{{else}}LOW{{end}}</td></tr>
<tr><th>Hold</th><td>{{if .Motion.Holding}}{{.Motion.HoldElapsed}} / {{.Config.HoldTicks}} ticks{{else}}idle{{end}}</td></tr>
<tr><th>Active preset</th><td>{{.Motion.ActivePreset}}</td></tr>
{{with .Motion.LastTransition}}<tr><th>Last change</th><td>{{.Kind}} at {{.Timestamp.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.WLED}}<tr><th>WLED</th><td>{{.Config.WLED}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Motion</th><td>{{.Motion.Counts.Motion}}</td></tr>
<tr><th>No motion</th><td>{{.Motion.Counts.NoMotion}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Hold</th><td>{{.Config.HoldMs}}ms</td></tr>
<tr><th>Presets</th><td>motion {{.Config.PresetOnMotion}}, no motion {{.Config.PresetOnNoMotion}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		Occupancy string
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		Occupancy: snap.Occupancy(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("http: render index")
	}
}
