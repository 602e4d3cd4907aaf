package apihandlers

import (
	"strconv"
	"strings"
)

// dashboardPage renders the operator dashboard: a single static page that
// polls /dashboard/state.
func dashboardPage(refreshMS int) string {
	const page = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>whisperd</title>
<style>
  body { margin: 0; background: #05070B; color: #E5E7EB; font-family: system-ui, sans-serif; }
  .wrap { max-width: 1100px; margin: 0 auto; padding: 24px; }
  h1 { font-size: 18px; }
  h2 { font-size: 14px; margin: 24px 0 8px; }
  .cards { display: flex; gap: 12px; flex-wrap: wrap; }
  .card { background: #0F172A; border: 1px solid rgba(255,255,255,.08); border-radius: 10px; padding: 14px; min-width: 160px; }
  .label { color: #9CA3AF; font-size: 12px; }
  .value { font-size: 20px; font-weight: 700; margin-top: 4px; }
  .ok { color: #10B981; } .err { color: #EF4444; } .warn { color: #F59E0B; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid rgba(255,255,255,.08); }
  td.mono { font-family: ui-monospace, monospace; font-size: 12px; }
</style>
</head>
<body>
<div class="wrap">
  <h1>whisperd</h1>
  <div class="cards">
    <div class="card"><div class="label">Health</div><div class="value" id="health">&mdash;</div></div>
    <div class="card"><div class="label">Jobs total</div><div class="value" id="total">0</div></div>
    <div class="card"><div class="label">Queued</div><div class="value" id="queued">0</div></div>
    <div class="card"><div class="label">Running</div><div class="value" id="running">0</div></div>
  </div>
  <h2>GPUs</h2>
  <table><thead><tr><th>#</th><th>Name</th><th>Status</th><th>Util</th><th>VRAM</th><th>Job</th><th>Model</th></tr></thead><tbody id="gpus"></tbody></table>
  <h2>Models</h2>
  <table><thead><tr><th>Name</th><th>ID</th><th>Status</th><th>Progress</th></tr></thead><tbody id="models"></tbody></table>
  <h2>Queue</h2>
  <table><thead><tr><th>Queued</th><th>Running</th></tr></thead><tbody id="jobs"></tbody></table>
</div>
<script>
function cls(s) { return s === 'ready' || s === 'downloaded' ? 'ok' : (s === 'error' ? 'err' : 'warn'); }
function td(v, c) { return '<td class="' + (c || '') + '">' + v + '</td>'; }
async function refresh() {
  const res = await fetch('/dashboard/state', { cache: 'no-store' });
  const d = await res.json();
  document.getElementById('health').innerHTML = '<span class="' + cls(d.health.status) + '">' + d.health.status + '</span>';
  document.getElementById('total').textContent = d.jobs.total;
  document.getElementById('queued').textContent = d.jobs.queued;
  document.getElementById('running').textContent = d.jobs.running;
  document.getElementById('gpus').innerHTML = (d.gpus || []).map(g =>
    '<tr>' + td(g.index) + td(g.name) + td(g.status, cls(g.status === 'idle' ? 'ready' : 'busy')) +
    td(Math.round(g.util_percent) + '%') +
    td(Math.round(g.vram_used_mb) + ' / ' + Math.round(g.vram_total_mb) + ' MB') +
    td(g.current_job_id || '&mdash;', 'mono') + td(g.current_model || '&mdash;') + '</tr>').join('');
  document.getElementById('models').innerHTML = (d.models || []).map(m =>
    '<tr>' + td(m.model_name) + td(m.id_model) + td('<span class="' + cls(m.status) + '">' + m.status + '</span>') +
    td(Math.round(m.progress) + '%') + '</tr>').join('');
  const rows = Math.max(d.jobs.queued_ids.length, d.jobs.running_ids.length, 1);
  let html = '';
  for (let i = 0; i < rows; i++) {
    html += '<tr>' + td(d.jobs.queued_ids[i] || '', 'mono') + td(d.jobs.running_ids[i] || '', 'mono') + '</tr>';
  }
  document.getElementById('jobs').innerHTML = html;
}
refresh();
setInterval(refresh, __REFRESH_MS__);
</script>
</body>
</html>`
	return strings.Replace(page, "__REFRESH_MS__", strconv.Itoa(refreshMS), 1)
}
