package dashboard

// indexHTML is the embedded single-page UI. It subscribes to /events and
// renders one row per action, with /api/stop wired to the stop button.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>surge dashboard</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 72rem; color: #1c1c1c; }
h1 { border-bottom: 2px solid #4464ad; padding-bottom: .3rem; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { border: 1px solid #d0d0d0; padding: .4rem .7rem; text-align: right; }
th { background: #f0f3fa; }
td:first-child, th:first-child { text-align: left; }
#state { font-weight: bold; }
button { background: #b02a2a; color: #fff; border: none; padding: .5rem 1.2rem; border-radius: 4px; cursor: pointer; }
</style>
</head>
<body>
<h1>surge</h1>
<p>State: <span id="state">–</span> · Active users: <span id="users">0</span>
<button id="stop">Stop test</button></p>
<table>
<thead>
<tr><th>Action</th><th>Active</th><th>Max</th><th>Waiting</th><th>Completed</th><th>Failed</th><th>Avg (ms)</th><th>p99 (ms)</th><th>req/s</th></tr>
</thead>
<tbody id="rows"></tbody>
</table>
<script>
const rows = document.getElementById('rows');
const fmt = n => typeof n === 'number' ? n.toLocaleString(undefined, {maximumFractionDigits: 2}) : n;
function render(snaps) {
  rows.innerHTML = snaps.map(s =>
    '<tr><td>' + s.actionName + '</td><td>' + s.activeCount + '</td><td>' + s.maxSize +
    '</td><td>' + s.waitingCount + '</td><td>' + fmt(s.completedCount) + '</td><td>' + fmt(s.failedCount) +
    '</td><td>' + fmt(s.averageResponseTimeMs) + '</td><td>' + fmt(s.p99ResponseTimeMs) +
    '</td><td>' + fmt(s.requestsPerSecond) + '</td></tr>').join('');
}
async function status() {
  const r = await fetch('/api/status');
  const s = await r.json();
  document.getElementById('state').textContent = s.state;
  document.getElementById('users').textContent = s.activeUsers;
}
new EventSource('/events').addEventListener('metrics', e => render(JSON.parse(e.data)));
document.getElementById('stop').addEventListener('click', () => fetch('/api/stop', {method: 'POST'}));
status();
setInterval(status, 1000);
</script>
</body>
</html>
`
