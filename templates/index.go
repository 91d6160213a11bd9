// Package templates renders the dashboard's HTML shell as templ components.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"stock-research/models"
)

const pageTitle = "Stock Research Dashboard"

// Index renders the dashboard shell. Charts and reports are loaded by the
// page script from the JSON API.
func Index(stocks []models.StockInfo, reportsEnabled bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		if err := header(reportsEnabled).Render(ctx, w); err != nil {
			return err
		}
		if err := stockPicker(stocks).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, pageBody)
		return err
	})
}

func header(reportsEnabled bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		notice := ""
		if !reportsEnabled {
			notice = `<p class="notice" id="reports-disabled">AI reports are disabled: no LLM credential is configured.</p>`
		}
		_, err := fmt.Fprintf(w, `<header><h1>%s</h1>%s</header>`, templ.EscapeString(pageTitle), notice)
		return err
	})
}

func stockPicker(stocks []models.StockInfo) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<nav><label for="symbol">Stock</label> <select id="symbol">`); err != nil {
			return err
		}
		for _, s := range stocks {
			if _, err := fmt.Fprintf(w, `<option value="%s">%s (%s)</option>`,
				templ.EscapeString(s.Symbol), templ.EscapeString(s.Name), templ.EscapeString(s.Symbol)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</select> <button id="report-btn">Generate report</button></nav>`)
		return err
	})
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>` + pageTitle + `</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #1f2933; }
header h1 { margin-bottom: .25rem; }
.notice { color: #9a3412; }
#summary { display: grid; grid-template-columns: repeat(auto-fill, minmax(12rem, 1fr)); gap: .5rem; margin: 1rem 0; }
#summary div { background: #f5f7fa; padding: .5rem .75rem; border-radius: 4px; }
#report { white-space: pre-wrap; background: #f8fafc; padding: 1rem; border-left: 4px solid #2563eb; }
.error { color: #b91c1c; }
</style>
</head>
<body>
`

const pageBody = `
<main>
<section id="summary"></section>
<canvas id="chart" width="960" height="320"></canvas>
<section><h2>Research report</h2><div id="report"></div></section>
</main>
<script>
const fmt = (v) => (v === null || v === undefined || v === "") ? "n/a" : v;

function drawChart(bars) {
  const c = document.getElementById("chart"), g = c.getContext("2d");
  g.clearRect(0, 0, c.width, c.height);
  if (!bars.length) return;
  const series = { close: "#111827", ma20: "#2563eb", ma50: "#16a34a", ma200: "#dc2626" };
  const vals = bars.flatMap(b => Object.keys(series).map(k => parseFloat(b[k])).filter(v => !isNaN(v)));
  const lo = Math.min(...vals), hi = Math.max(...vals), span = (hi - lo) || 1;
  for (const [key, color] of Object.entries(series)) {
    g.strokeStyle = color; g.beginPath();
    let started = false;
    bars.forEach((b, i) => {
      const v = parseFloat(b[key]);
      if (isNaN(v)) { started = false; return; }
      const x = i / Math.max(bars.length - 1, 1) * c.width, y = c.height - (v - lo) / span * c.height;
      started ? g.lineTo(x, y) : g.moveTo(x, y); started = true;
    });
    g.stroke();
  }
}

async function loadStock(symbol) {
  const summary = document.getElementById("summary");
  summary.textContent = "Loading...";
  const res = await fetch("/api/stock/" + encodeURIComponent(symbol));
  const data = await res.json();
  if (!res.ok) { summary.innerHTML = ""; summary.append(Object.assign(document.createElement("p"), { className: "error", textContent: data.error })); return; }
  const last = data.price_data[data.price_data.length - 1] || {};
  const m = data.metadata;
  const cells = [
    ["Price", fmt(data.current_price)], ["52w high", fmt(m.week52_high)], ["52w low", fmt(m.week52_low)],
    ["P/E", fmt(m.pe_ratio)], ["Market cap", fmt(m.market_cap)], ["Sector", fmt(m.sector)],
    ["RSI (14)", last.rsi == null ? "n/a" : last.rsi.toFixed(1)], ["Cache", data.cache_status],
  ];
  summary.innerHTML = "";
  for (const [k, v] of cells) {
    const d = document.createElement("div"); d.textContent = k + ": " + v; summary.append(d);
  }
  drawChart(data.price_data);
}

async function loadReport(symbol) {
  const el = document.getElementById("report");
  el.textContent = "Generating...";
  const res = await fetch("/api/report/" + encodeURIComponent(symbol));
  const data = await res.json();
  el.className = res.ok ? "" : "error";
  el.textContent = res.ok ? data.report + "\n\nGenerated " + data.generated_at + " by " + data.model
                          : data.error + (data.retryable ? " (try again)" : "");
}

const picker = document.getElementById("symbol");
picker.addEventListener("change", () => loadStock(picker.value));
document.getElementById("report-btn").addEventListener("click", () => loadReport(picker.value));
if (document.getElementById("reports-disabled")) document.getElementById("report-btn").disabled = true;
if (picker.value) loadStock(picker.value);
</script>
</body>
</html>
`
