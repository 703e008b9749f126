package assistant

import (
	"strings"

	"CDPShield/internal/model"
)

// Intent is what a command asks for.
type Intent string

const (
	IntentCheckRisk    Intent = "check_risk"
	IntentHealthFactor Intent = "health_factor"
	IntentPositions    Intent = "positions"
	IntentAlerts       Intent = "alerts"
	IntentHelp         Intent = "help"
	IntentUnknown      Intent = "unknown"
)

type keywords struct {
	intent Intent
	zh, en []string
}

// intentKeywords is matched in order; the first intent with a keyword
// contained in the text wins, so broad words like "risk" shadow later intents.
var intentKeywords = []keywords{
	{
		intent: IntentCheckRisk,
		zh:     []string{"查看风险", "风险", "分析风险", "风险分析", "检查风险", "风险情况", "风险怎么样"},
		en:     []string{"check risk", "risk", "analyze risk", "show risk", "risk status", "risk analysis"},
	},
	{
		intent: IntentHealthFactor,
		zh:     []string{"健康因子", "健康度", "健康", "健康值", "查看健康因子", "健康状况"},
		en:     []string{"health factor", "health", "health score", "check health", "health status"},
	},
	{
		intent: IntentPositions,
		zh:     []string{"仓位", "持仓", "我的仓位", "查看仓位", "仓位情况", "所有仓位", "仓位列表"},
		en:     []string{"positions", "my positions", "show positions", "list positions", "all positions"},
	},
	{
		intent: IntentAlerts,
		zh:     []string{"预警", "警报", "有没有预警", "有没有警报", "查看预警", "预警情况", "警报信息"},
		en:     []string{"alerts", "warnings", "any alerts", "show alerts", "check alerts", "alert status"},
	},
	{
		intent: IntentHelp,
		zh:     []string{"帮助", "怎么用", "使用说明", "可以做什么", "有什么功能"},
		en:     []string{"help", "how to use", "what can you do", "instructions", "commands"},
	},
}

// DetectLanguage returns LangZH if text contains a CJK unified ideograph.
func DetectLanguage(text string) model.Language {
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fa5 {
			return model.LangZH
		}
	}
	return model.LangEN
}

// DetectIntent matches text against the keyword table, case-insensitively.
func DetectIntent(text string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range intentKeywords {
		for _, k := range kw.zh {
			if strings.Contains(normalized, k) {
				return kw.intent
			}
		}
		for _, k := range kw.en {
			if strings.Contains(normalized, k) {
				return kw.intent
			}
		}
	}
	return IntentUnknown
}

// Valid reports whether i is an intent the assistant can act on.
func (i Intent) Valid() bool {
	switch i {
	case IntentCheckRisk, IntentHealthFactor, IntentPositions, IntentAlerts, IntentHelp:
		return true
	}
	return false
}

var intentLabels = map[Intent][2]string{
	IntentCheckRisk:    {"风险分析", "Risk Analysis"},
	IntentHealthFactor: {"健康因子", "Health Factor"},
	IntentPositions:    {"仓位查询", "Positions"},
	IntentAlerts:       {"预警查询", "Alerts"},
	IntentHelp:         {"帮助", "Help"},
	IntentUnknown:      {"未知命令", "Unknown Command"},
}

// Label returns the display name of an intent.
func Label(i Intent, lang model.Language) string {
	l, ok := intentLabels[i]
	if !ok {
		l = intentLabels[IntentUnknown]
	}
	return pick(lang, l[0], l[1])
}

func pick(lang model.Language, zh, en string) string {
	if lang == model.LangZH {
		return zh
	}
	return en
}
