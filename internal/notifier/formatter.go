package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"CDPShield/internal/model"
)

var levelIcons = map[model.ScoreLevel]string{
	model.LevelExcellent: "🟢",
	model.LevelGood:      "🟢",
	model.LevelFair:      "🟡",
	model.LevelPoor:      "🔴",
}

var priorityIcons = map[model.Priority]string{
	model.PriorityUrgent:      "🚨",
	model.PriorityOpportunity: "💰",
	model.PriorityInsight:     "💡",
}

// FormatAnalysisReport formats an analysis result into a Telegram message.
func FormatAnalysisReport(res *model.AnalysisResult) string {
	var b strings.Builder
	hs := res.HealthScore

	b.WriteString(fmt.Sprintf("🛡 <b>CDPShield 组合体检</b> | %s\n\n", res.Metadata.AnalyzedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("%s 健康分: <b>%d</b> (%s)\n", levelIcons[hs.Level], hs.Overall, hs.Level))
	b.WriteString(fmt.Sprintf("  风险: %d | 效率: %d | 分散: %d\n", hs.Breakdown.Risk, hs.Breakdown.Efficiency, hs.Breakdown.Diversification))
	b.WriteString(fmt.Sprintf("  总资产: $%s | 仓位: %d | 协议: %d\n\n",
		humanize.Commaf(float64(int64(res.Insights.TotalValue))), res.Insights.PositionCount, res.Insights.ProtocolCount))

	if len(res.Recommendations) > 0 {
		b.WriteString("📋 <b>建议:</b>\n")
		for _, r := range res.Recommendations {
			b.WriteString(fmt.Sprintf("%s %s\n", priorityIcons[r.Priority], html.EscapeString(r.Title)))
			b.WriteString(fmt.Sprintf("   %s (%s)\n", html.EscapeString(r.Description), html.EscapeString(r.Impact.Value)))
		}
		b.WriteString("\n")
	}

	b.WriteString(html.EscapeString(res.Insights.Compared.Message))
	return b.String()
}

var alertIcons = map[model.AlertLevel]string{
	model.AlertCritical: "🔴",
	model.AlertWarning:  "🟠",
	model.AlertCaution:  "🟡",
}

// FormatAlerts lists alerts, most recent first.
func FormatAlerts(alerts []model.VoiceAlert, now time.Time) string {
	if len(alerts) == 0 {
		return "✅ 当前没有活跃预警"
	}
	sorted := append([]model.VoiceAlert(nil), alerts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚠️ <b>活跃预警</b> (%d)\n\n", len(sorted)))
	for _, a := range sorted {
		b.WriteString(fmt.Sprintf("%s %s | HF %.2f | %s\n",
			alertIcons[a.Level], html.EscapeString(a.Protocol), a.HealthFactor, humanize.RelTime(a.Timestamp, now, "ago", "from now")))
	}
	return b.String()
}

// FormatMarketSummary lists refreshed quotes in symbol order.
func FormatMarketSummary(md model.MarketData) string {
	syms := make([]string, 0, len(md))
	for s := range md {
		syms = append(syms, s)
	}
	sort.Strings(syms)

	var b strings.Builder
	b.WriteString("📈 <b>行情更新</b>\n")
	for _, s := range syms {
		q := md[s]
		b.WriteString(fmt.Sprintf("  %s: $%s (%+.2f%%, 波动率 %.2f)\n", s, humanize.CommafWithDigits(q.Price, 2), q.Change24h, q.Volatility))
	}
	return b.String()
}
