package monitor

import (
	"net/http"
)

// handleDashboard serves the top-level operator dashboard: iframes onto the
// individual chart endpoints so each refreshes independently.
func (d *Dashboard) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
  <title>drive.assist</title>
  <style>
    body { font-family: sans-serif; margin: 0; background: #111; color: #ddd; }
    header { padding: 0.6em 1em; background: #1a1a1a; border-bottom: 1px solid #333; }
    header h1 { font-size: 1.1em; margin: 0; display: inline-block; }
    header nav { float: right; }
    header a { color: #7ac; margin-left: 1em; text-decoration: none; }
    .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 8px; padding: 8px; }
    iframe { width: 100%; height: 540px; border: 1px solid #333; background: #111; }
  </style>
</head>
<body>
  <header>
    <h1>drive.assist</h1>
    <nav>
      <a href="/api/status">status</a>
      <a href="/api/metrics">metrics</a>
      <a href="/api/events">events</a>
      <a href="/debug/">debug</a>
    </nav>
  </header>
  <div class="grid">
    <iframe src="/charts/latency"></iframe>
    <iframe src="/charts/offset"></iframe>
    <iframe src="/charts/steering"></iframe>
    <iframe src="/charts/speed"></iframe>
    <iframe src="/charts/warnings"></iframe>
  </div>
  <script>
    // charts are static renders; refresh them on an interval
    setInterval(() => {
      for (const f of document.querySelectorAll('iframe')) {
        f.contentWindow.location.reload();
      }
    }, 5000);
  </script>
</body>
</html>
`
