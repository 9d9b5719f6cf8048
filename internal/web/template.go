package web

import (
	"html/template"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/hydro-controller/internal/nutrient"
	"github.com/sweeney/hydro-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(snap status.Snapshot) string {
		return humanize.RelTime(snap.StartTime, snap.Now, "", "")
	},
	"since": humanize.Time,
	"statusClass": func(s nutrient.Status) string {
		if s == nutrient.StatusOK || s == "" {
			return "ok"
		}
		return "alert"
	},
	"readings": status.BuildReadings,
	"disabledIf": func(b bool) template.HTMLAttr {
		if b {
			return "disabled"
		}
		return ""
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Hydroponics Controller</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.ok { color: green; }
.alert { color: red; font-weight: bold; }
.halted { background: #fdd; padding: 0.5em; }
.connected { color: green; }
.disconnected { color: red; }
button { font-family: monospace; margin-right: 0.5em; }
</style>
</head>
<body>
<h1>Hydroponics Controller</h1>
{{$r := readings .}}
<p id="halted" class="halted" style="display:{{if .Halted}}block{{else}}none{{end}}">System halted. Press Resume to restart cycles.</p>

<h2>Sensors</h2>
<table>
<tr><th>pH</th><td id="ph">{{printf "%.2f" .Sample.PH}}</td></tr>
<tr><th>EC</th><td id="ec">{{printf "%.1f" .Sample.EC}} µS/cm</td></tr>
<tr><th>TDS</th><td id="tds">{{printf "%.1f" .Sample.TDS}} ppm</td></tr>
<tr><th>Light</th><td id="light">{{printf "%.1f" .Sample.Lux}} lux</td></tr>
</table>

<h2>Dosing</h2>
<table>
<tr><th>pH</th><td id="ph-status" class="{{statusClass .Advice.PH.Status}}">{{.Advice.PH.Status}}</td></tr>
<tr><td colspan="2" id="ph-msg">{{.Advice.PH.Message}}</td></tr>
<tr><th>EC</th><td id="ec-status" class="{{statusClass .Advice.EC.Status}}">{{.Advice.EC.Status}}</td></tr>
<tr><td colspan="2" id="ec-msg">{{.Advice.EC.Message}}</td></tr>
</table>

<h2>Misting</h2>
<table>
<tr><th>Status</th><td id="misting-status">{{$r.MistingStatusMsg}}</td></tr>
<tr><th>Next</th><td id="misting-next">{{$r.NextMistingMsg}}</td></tr>
<tr><th>Last</th><td id="misting-last">{{$r.LastMistingMsg}}</td></tr>
</table>

<h2>Flushing</h2>
<table>
<tr><th>Status</th><td id="flushing-status">{{$r.FlushingStatusMsg}}</td></tr>
<tr><th>Next</th><td id="flushing-next">{{$r.NextFlushingMsg}}</td></tr>
<tr><th>Last</th><td id="flushing-last">{{$r.LastFlushingMsg}}</td></tr>
</table>

<h2>Relays</h2>
<table>
<tr><th>Pump</th><td id="pump" class="{{if .Signals.Pump}}on{{else}}off{{end}}">{{if .Signals.Pump}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Grow light</th><td id="grow-light" class="{{if .Signals.Light}}on{{else}}off{{end}}">{{if .Signals.Light}}ON{{else}}OFF{{end}}</td></tr>
</table>

<p>
<button id="flush-btn" type="button" data-path="/flush" {{disabledIf (or .Flushing.Active .Halted)}}>Flush</button>
<button id="stop-btn" type="button" data-path="/stop" {{disabledIf (not (or .Misting.Active .Flushing.Active))}}>Stop</button>
<button id="resume-btn" type="button" data-path="/resume" {{disabledIf (not .Halted)}}>Resume</button>
</p>
<p id="command-msg"></p>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}} ({{since .StartTime}})</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
</table>

<p><a href="/readings">Readings</a> · <a href="/status">Status</a> · <a href="/metrics">Metrics</a></p>

<script>
(function() {
  function set(id, text) {
    var el = document.getElementById(id);
    if (el) { el.textContent = text; }
  }
  function relay(id, on) {
    var el = document.getElementById(id);
    if (!el) { return; }
    el.textContent = on ? "ON" : "OFF";
    el.className = on ? "on" : "off";
  }
  function dose(id, status) {
    var el = document.getElementById(id);
    if (!el) { return; }
    el.textContent = status;
    el.className = status === "ok" ? "ok" : "alert";
  }
  function poll() {
    fetch("/readings", { cache: "no-store" })
      .then(function(r) { return r.json(); })
      .then(function(d) {
        set("ph", d.pH.toFixed(2));
        set("ec", d.EC.toFixed(1) + " µS/cm");
        set("tds", d.TDS.toFixed(1) + " ppm");
        set("light", d.light.toFixed(1) + " lux");
        dose("ph-status", d.ph_status);
        set("ph-msg", d.ph_dose_msg);
        dose("ec-status", d.ec_status);
        set("ec-msg", d.ec_dose_msg);
        set("misting-status", d.misting_status_msg);
        set("misting-next", d.next_misting_msg);
        set("misting-last", d.last_misting_msg);
        set("flushing-status", d.flushing_status_msg);
        set("flushing-next", d.next_flushing_msg);
        set("flushing-last", d.last_flushing_msg);
        relay("pump", d.pump_on);
        relay("grow-light", d.light_on);
        document.getElementById("halted").style.display = d.system_halted ? "block" : "none";
        gate(d);
      })
      .catch(function() {});
  }
  function gate(d) {
    document.getElementById("flush-btn").disabled = d.is_flushing || d.system_halted;
    document.getElementById("resume-btn").disabled = !d.system_halted;
    document.getElementById("stop-btn").disabled = !d.is_misting && !d.is_flushing;
  }
  function command(path) {
    fetch(path, { method: "POST", cache: "no-store" })
      .then(function(r) { return r.text(); })
      .then(function(text) { set("command-msg", text); poll(); })
      .catch(function() { set("command-msg", "Request failed"); });
  }
  ["flush-btn", "stop-btn", "resume-btn"].forEach(function(id) {
    var el = document.getElementById(id);
    el.addEventListener("click", function() { command(el.dataset.path); });
  });
  setInterval(poll, 1000);
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	return indexTmpl.Execute(w, snap)
}
