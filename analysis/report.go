package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"stock-research/indicators"
	"stock-research/models"
	"stock-research/observability"
	"stock-research/services"
)

const reportSystemPrompt = `You are a professional financial analyst writing concise investment research for executives.

Write a 200-300 word report with exactly these sections:
1. Investment Thesis: 2-3 sentences on why to invest in or avoid the stock.
2. Key Risks: 2-3 bullet points.
3. Recommendation: Buy, Hold or Sell, followed by a one-line rationale.

Keep it professional and data-driven. Focus on the facts provided, not speculation.`

// ReportGenerator asks an LLM for a narrative report over the latest analyzed bar
type ReportGenerator struct {
	series SeriesSource
	llm    services.LLMService
	now    func() time.Time
}

// NewReportGenerator creates a ReportGenerator. A nil llm disables reports.
func NewReportGenerator(series SeriesSource, llm services.LLMService) *ReportGenerator {
	return &ReportGenerator{
		series: series,
		llm:    llm,
		now:    time.Now,
	}
}

// Enabled reports whether an LLM is configured
func (g *ReportGenerator) Enabled() bool {
	return g.llm != nil
}

// GenerateReport builds a fresh report for symbol. Reports are never cached.
func (g *ReportGenerator) GenerateReport(ctx context.Context, symbol string) (*models.Report, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("%w: reports are disabled", models.ErrConfigurationMissing)
	}

	result, err := g.series.GetSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}

	prompt, err := buildReportPrompt(result)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrReportGenerationFailed, err)
	}

	provider := g.llm.Provider()
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	log := observability.WithSymbol(symbol).With("provider", provider, "model", g.llm.Model())

	content, err := g.llm.InvokeWithPrompt(ctx, reportSystemPrompt, prompt)
	if err != nil {
		timer.ObserveReport(provider, "error")
		log.Error("report generation failed", "error", err)
		return nil, fmt.Errorf("%w: %w", models.ErrReportGenerationFailed, err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		timer.ObserveReport(provider, "empty")
		log.Warn("LLM returned an empty report")
		return nil, fmt.Errorf("%w: empty response from %s", models.ErrReportGenerationFailed, provider)
	}

	timer.ObserveReport(provider, "success")
	log.Info("report generated", "duration", timer.Duration(), "chars", len(content))

	return models.NewReport(result.Symbol, result.Name, content, provider, g.llm.Model(), g.now().UTC()), nil
}

// buildReportPrompt renders the latest bar and metadata as the user turn
func buildReportPrompt(result *models.SeriesResult) (string, error) {
	latest, ok := result.Series.Latest()
	if !ok {
		return "", fmt.Errorf("no price history for %s", result.Symbol)
	}

	meta := result.Metadata
	cur := currencySymbol(meta.Currency)
	p := message.NewPrinter(language.English)

	name := result.Name
	if name == "" {
		name = meta.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a concise investment research report for %s (%s).\n\n", name, result.Symbol)

	b.WriteString("Current Data:\n")
	fmt.Fprintf(&b, "- Current Price: %s%s", cur, latest.Close.StringFixed(2))
	if prev, ok := result.Series.Previous(); ok && prev.Close.IsPositive() {
		fmt.Fprintf(&b, " (%s from previous close)", signedPercent(latest.Close.Sub(prev.Close).Div(prev.Close), 2))
	}
	b.WriteString("\n")

	if meta.Week52High.IsPositive() {
		fmt.Fprintf(&b, "- 52-Week High: %s%s (currently %s from high)\n",
			cur, meta.Week52High.StringFixed(2),
			signedPercent(latest.Close.Sub(meta.Week52High).Div(meta.Week52High), 1))
	} else {
		b.WriteString("- 52-Week High: n/a\n")
	}
	fmt.Fprintf(&b, "- 52-Week Low: %s\n", moneyOrNA(cur, meta.Week52Low))

	if meta.PERatio.Valid {
		fmt.Fprintf(&b, "- P/E Ratio: %s\n", meta.PERatio.Decimal.StringFixed(2))
	} else {
		b.WriteString("- P/E Ratio: n/a\n")
	}
	if meta.MarketCap.Valid {
		fmt.Fprintf(&b, "- Market Cap: %s%s\n", cur, p.Sprintf("%d", meta.MarketCap.Decimal.Round(0).IntPart()))
	} else {
		b.WriteString("- Market Cap: n/a\n")
	}
	fmt.Fprintf(&b, "- Sector: %s\n", stringOrNA(meta.Sector))
	if meta.Industry != nil {
		fmt.Fprintf(&b, "- Industry: %s\n", *meta.Industry)
	}
	if meta.DividendYield.Valid {
		fmt.Fprintf(&b, "- Dividend Yield: %s%%\n", meta.DividendYield.Decimal.Mul(decimal.NewFromInt(100)).StringFixed(2))
	}

	b.WriteString("\nTechnical Indicators:\n")
	fmt.Fprintf(&b, "- 20-day MA: %s\n", nullMoney(cur, latest.MA20))
	fmt.Fprintf(&b, "- 50-day MA: %s\n", nullMoney(cur, latest.MA50))
	fmt.Fprintf(&b, "- 200-day MA: %s\n", nullMoney(cur, latest.MA200))
	if latest.RSI != nil {
		fmt.Fprintf(&b, "- RSI (14): %.1f (%s)\n", *latest.RSI, indicators.ClassifyRSI(latest.RSI))
	} else {
		b.WriteString("- RSI (14): n/a\n")
	}

	signals := indicators.DescribeSignals(latest)
	if len(signals.MA) > 0 {
		fmt.Fprintf(&b, "- Price is %s\n", strings.Join(signals.MA, ", "))
	}
	fmt.Fprintf(&b, "- RSI indicator shows %s\n", signals.RSI)

	return b.String(), nil
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "INR":
		return "₹"
	case "USD":
		return "$"
	case "EUR":
		return "€"
	case "GBP":
		return "£"
	case "":
		return ""
	default:
		return strings.ToUpper(code) + " "
	}
}

func signedPercent(ratio decimal.Decimal, places int32) string {
	pct := ratio.Mul(decimal.NewFromInt(100)).StringFixed(places)
	if !strings.HasPrefix(pct, "-") {
		pct = "+" + pct
	}
	return pct + "%"
}

func moneyOrNA(cur string, d decimal.Decimal) string {
	if !d.IsPositive() {
		return "n/a"
	}
	return cur + d.StringFixed(2)
}

func nullMoney(cur string, d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return cur + d.Decimal.StringFixed(2)
}

func stringOrNA(s *string) string {
	if s == nil || *s == "" {
		return "n/a"
	}
	return *s
}
