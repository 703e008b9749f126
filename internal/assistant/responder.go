package assistant

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"CDPShield/internal/model"
)

// Health factor bands used in spoken summaries.
const (
	criticalBelow = 1.1
	warningBelow  = 1.3
	cautionBelow  = 1.5
)

// Responder renders Results as bilingual text.
type Responder struct{}

// Generate renders the reply for a processed command.
func (Responder) Generate(res Result) string {
	lang := res.Language
	switch res.Intent {
	case IntentCheckRisk, IntentHealthFactor, IntentPositions:
		if res.Kind != KindPositions {
			return dataError(lang)
		}
		switch res.Intent {
		case IntentCheckRisk:
			return riskSummary(res.Positions, lang)
		case IntentHealthFactor:
			return healthFactors(res.Positions, lang)
		default:
			return positionList(res.Positions, lang)
		}
	case IntentAlerts:
		if res.Kind != KindAlerts {
			return dataError(lang)
		}
		return alertList(res.Alerts, lang)
	case IntentHelp:
		return help(lang)
	default:
		return pick(lang,
			fmt.Sprintf(`抱歉，我没有理解 "%s"。您可以说 "帮助" 来了解可用的命令。`, res.Transcript),
			fmt.Sprintf(`Sorry, I didn't understand "%s". Say "help" to learn available commands.`, res.Transcript))
	}
}

func noPositions(lang model.Language) string {
	return pick(lang, "您目前没有活跃的仓位。", "You currently have no active positions.")
}

func dataError(lang model.Language) string {
	return pick(lang, "获取数据时出现问题，请稍后重试。", "Error fetching data. Please try again later.")
}

func riskSummary(positions []model.CDPPosition, lang model.Language) string {
	if len(positions) == 0 {
		return noPositions(lang)
	}

	var critical, warning, caution []model.CDPPosition
	safe := 0
	for _, p := range positions {
		switch {
		case p.HealthFactor < criticalBelow:
			critical = append(critical, p)
		case p.HealthFactor < warningBelow:
			warning = append(warning, p)
		case p.HealthFactor < cautionBelow:
			caution = append(caution, p)
		default:
			safe++
		}
	}
	allHealthy := safe > 0 && len(critical) == 0 && len(warning) == 0

	var b strings.Builder
	if lang == model.LangZH {
		fmt.Fprintf(&b, "您目前有 %d 个活跃仓位。", len(positions))
		if len(critical) > 0 {
			fmt.Fprintf(&b, "其中 %d 个仓位面临紧急清算风险，请立即处理！", len(critical))
			for _, p := range critical {
				fmt.Fprintf(&b, " %s 仓位健康因子仅为 %s。", p.Protocol, hf(p.HealthFactor))
			}
		}
		if len(warning) > 0 {
			fmt.Fprintf(&b, "%d 个仓位处于警告区间，建议关注。", len(warning))
		}
		if len(caution) > 0 {
			fmt.Fprintf(&b, "%d 个仓位需要注意。", len(caution))
		}
		if allHealthy {
			b.WriteString("所有仓位状态健康。")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "You have %d active position%s.", len(positions), plural(len(positions), "s", ""))
	if n := len(critical); n > 0 {
		fmt.Fprintf(&b, " %d position%s at critical liquidation risk! Please take action immediately!", n, plural(n, "s are", " is"))
		for _, p := range critical {
			fmt.Fprintf(&b, " %s health factor is only %s.", p.Protocol, hf(p.HealthFactor))
		}
	}
	if n := len(warning); n > 0 {
		fmt.Fprintf(&b, " %d position%s in warning zone.", n, plural(n, "s are", " is"))
	}
	if n := len(caution); n > 0 {
		fmt.Fprintf(&b, " %d position%s attention.", n, plural(n, "s need", " needs"))
	}
	if allHealthy {
		b.WriteString(" All positions are healthy.")
	}
	return b.String()
}

func healthFactors(positions []model.CDPPosition, lang model.Language) string {
	if len(positions) == 0 {
		return noPositions(lang)
	}
	var b strings.Builder
	if lang == model.LangZH {
		b.WriteString("各仓位健康因子如下：")
		for _, p := range positions {
			fmt.Fprintf(&b, " %s，%s，%s。", p.Protocol, hf(p.HealthFactor), healthStatus(p.HealthFactor, lang))
		}
		return b.String()
	}
	b.WriteString("Health factors for your positions:")
	for _, p := range positions {
		fmt.Fprintf(&b, " %s, %s, %s.", p.Protocol, hf(p.HealthFactor), healthStatus(p.HealthFactor, lang))
	}
	return b.String()
}

func positionList(positions []model.CDPPosition, lang model.Language) string {
	if len(positions) == 0 {
		return noPositions(lang)
	}
	var b strings.Builder
	if lang == model.LangZH {
		fmt.Fprintf(&b, "您共有 %d 个活跃仓位。", len(positions))
		for _, p := range positions {
			fmt.Fprintf(&b, " %s：抵押 %s %s，借入 %s %s，健康因子 %s。",
				p.Protocol, amount(p.Collateral.Amount), p.Collateral.Symbol,
				amount(p.Debt.Amount), p.Debt.Symbol, hf(p.HealthFactor))
		}
		return b.String()
	}
	fmt.Fprintf(&b, "You have %d active position%s.", len(positions), plural(len(positions), "s", ""))
	for _, p := range positions {
		fmt.Fprintf(&b, " %s: collateral %s %s, borrowed %s %s, health factor %s.",
			p.Protocol, amount(p.Collateral.Amount), p.Collateral.Symbol,
			amount(p.Debt.Amount), p.Debt.Symbol, hf(p.HealthFactor))
	}
	return b.String()
}

func alertList(alerts []model.VoiceAlert, lang model.Language) string {
	var active []model.VoiceAlert
	for _, a := range alerts {
		if !a.Dismissed {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		return pick(lang, "目前没有活跃的预警信息，您的仓位状态良好。", "No active alerts. Your positions are in good status.")
	}

	var b strings.Builder
	if lang == model.LangZH {
		fmt.Fprintf(&b, "您有 %d 条预警信息。", len(active))
		for _, a := range active {
			fmt.Fprintf(&b, " %s：%s 仓位健康因子 %s。", levelText(a.Level, lang), a.Protocol, hf(a.HealthFactor))
		}
		return b.String()
	}
	fmt.Fprintf(&b, "You have %d active alert%s.", len(active), plural(len(active), "s", ""))
	for _, a := range active {
		fmt.Fprintf(&b, " %s: %s health factor %s.", levelText(a.Level, lang), a.Protocol, hf(a.HealthFactor))
	}
	return b.String()
}

func help(lang model.Language) string {
	if lang == model.LangZH {
		return "您可以使用以下语音命令：" +
			`说 "查看风险" 分析仓位风险；` +
			`说 "健康因子" 查看健康度；` +
			`说 "我的仓位" 查看持仓信息；` +
			`说 "有没有预警" 查看预警状态。` +
			"我会自动识别中英文，您可以使用任意语言。"
	}
	return "You can use these voice commands: " +
		`Say "check risk" to analyze position risks. ` +
		`Say "health factor" to check health scores. ` +
		`Say "my positions" to view your positions. ` +
		`Say "any alerts" to check alert status. ` +
		"I automatically detect Chinese and English."
}

// BroadcastMessage is the text spoken when an alert fires.
func BroadcastMessage(p model.CDPPosition, level model.AlertLevel, lang model.Language) string {
	h := hf(p.HealthFactor)
	if lang == model.LangZH {
		switch level {
		case model.AlertCritical:
			return fmt.Sprintf("紧急警报！%s 仓位健康因子降至 %s，面临清算风险！建议立即添加抵押品或偿还债务。", p.Protocol, h)
		case model.AlertWarning:
			return fmt.Sprintf("风险警告，%s 仓位健康因子 %s，已进入警告区间，请密切关注。", p.Protocol, h)
		default:
			return fmt.Sprintf("温馨提示，%s 仓位健康因子 %s，建议适当关注。", p.Protocol, h)
		}
	}
	switch level {
	case model.AlertCritical:
		return fmt.Sprintf("Critical alert! %s position health factor dropped to %s. Liquidation risk! Please add collateral or repay debt immediately.", p.Protocol, h)
	case model.AlertWarning:
		return fmt.Sprintf("Risk warning. %s position health factor %s. Entering warning zone. Please monitor closely.", p.Protocol, h)
	default:
		return fmt.Sprintf("Heads up. %s position health factor %s. Consider keeping an eye on it.", p.Protocol, h)
	}
}

// Confirmation is the short acknowledgement sent before a reply.
func (Responder) Confirmation(i Intent, lang model.Language) string {
	switch i {
	case IntentCheckRisk:
		return pick(lang, "正在分析风险...", "Analyzing risks...")
	case IntentHealthFactor:
		return pick(lang, "正在查询健康因子...", "Checking health factors...")
	case IntentPositions:
		return pick(lang, "正在获取仓位信息...", "Fetching positions...")
	case IntentAlerts:
		return pick(lang, "正在检查预警...", "Checking alerts...")
	case IntentHelp:
		return pick(lang, "好的，让我告诉你...", "Sure, let me explain...")
	}
	return pick(lang, "正在处理...", "Processing...")
}

func (Responder) Welcome(lang model.Language) string {
	return pick(lang,
		`您好！我是 CDP Shield 语音助手。您可以问我关于仓位风险的问题，说 "帮助" 了解更多。`,
		`Hello! I'm the CDP Shield voice assistant. You can ask me about your position risks. Say "help" to learn more.`)
}

func (Responder) Goodbye(lang model.Language) string {
	return pick(lang, "再见！如需帮助，随时唤醒我。", "Goodbye! Wake me anytime you need help.")
}

var errorMessages = map[string][2]string{
	"network_error":     {"网络连接出现问题。请检查您的网络连接后重试。", "Network connection issue. Please check your connection and try again."},
	"recognition_error": {"语音识别出现问题。请稍后重试。", "Speech recognition error. Please try again later."},
	"synthesis_error":   {"语音播报出现问题，请重试。", "Speech synthesis error. Please try again."},
	"default":           {"出现了一些问题。请稍后重试。", "Something went wrong. Please try again later."},
}

// Error returns the message for an error code, falling back to a generic one.
func (Responder) Error(code string, lang model.Language) string {
	m, ok := errorMessages[code]
	if !ok {
		m = errorMessages["default"]
	}
	return pick(lang, m[0], m[1])
}

// StatusUpdate returns the text for a processing state, or "" if unknown.
func (Responder) StatusUpdate(status string, lang model.Language) string {
	switch status {
	case "listening":
		return pick(lang, "正在聆听...", "Listening...")
	case "processing":
		return pick(lang, "正在处理...", "Processing...")
	case "speaking":
		return pick(lang, "正在播报...", "Speaking...")
	case "ready":
		return pick(lang, "准备就绪", "Ready")
	}
	return ""
}

func healthStatus(h float64, lang model.Language) string {
	switch {
	case h < criticalBelow:
		return pick(lang, "紧急风险", "critical")
	case h < warningBelow:
		return pick(lang, "警告", "warning")
	case h < cautionBelow:
		return pick(lang, "需注意", "caution")
	}
	return pick(lang, "安全", "safe")
}

func levelText(l model.AlertLevel, lang model.Language) string {
	switch l {
	case model.AlertCritical:
		return pick(lang, "紧急", "Critical")
	case model.AlertWarning:
		return pick(lang, "警告", "Warning")
	}
	return pick(lang, "注意", "Caution")
}

func hf(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// amount renders a token amount string with two decimals, or as-is if it does not parse.
func amount(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.StringFixed(2)
}

func plural(n int, many, one string) string {
	if n > 1 {
		return many
	}
	return one
}
