package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// indexHTML 极简只读页面：轮询 /api/leaderboard 刷表
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>paperbet</title>
<style>
  body { font-family: ui-monospace, monospace; background: #0d1117; color: #c9d1d9; margin: 2rem; }
  h1 { font-size: 1.2rem; }
  .meta { color: #8b949e; margin-bottom: 1rem; }
  table { border-collapse: collapse; width: 100%; }
  th, td { padding: 4px 10px; text-align: right; border-bottom: 1px solid #21262d; }
  th { color: #8b949e; }
  td:first-child, th:first-child { text-align: left; }
  .pos { color: #3fb950; }
  .neg { color: #f85149; }
  .pending { color: #d29922; }
</style>
</head>
<body>
<h1>paperbet — BTC 15m paper trading</h1>
<div class="meta" id="meta">loading…</div>
<table>
<thead><tr><th>strategy</th><th>series</th><th>trades</th><th>win%</th><th>profit</th><th>roi</th><th></th></tr></thead>
<tbody id="rows"></tbody>
</table>
<script>
async function refresh() {
  const res = await fetch('/api/leaderboard');
  const data = await res.json();
  document.getElementById('meta').textContent =
    'windows: ' + data.windows_processed + '  ticks: ' + data.tick_count +
    '  updated: ' + new Date(data.last_update).toLocaleTimeString();
  const rows = data.leaderboard.map(r =>
    '<tr><td>' + r.id + '</td><td>' + r.series + '</td><td>' + r.trades +
    '</td><td>' + (r.win_rate * 100).toFixed(1) +
    '</td><td class="' + (r.profit >= 0 ? 'pos' : 'neg') + '">' + r.profit.toFixed(2) +
    '</td><td class="' + (r.roi >= 0 ? 'pos' : 'neg') + '">' + (r.roi * 100).toFixed(1) + '%' +
    '</td><td class="pending">' + (r.pending ? '●' : '') + '</td></tr>').join('');
  document.getElementById('rows').innerHTML = rows;
}
refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>`

func (s *Server) handleUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}
