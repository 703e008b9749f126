package assistant

import (
	"strings"

	"CDPShield/internal/model"
)

// Kind tags which payload a Result carries.
type Kind int

const (
	KindNone Kind = iota
	KindPositions
	KindAlerts
)

// Result is a processed command.
type Result struct {
	Intent     Intent
	Language   model.Language
	Transcript string
	Kind       Kind
	Positions  []model.CDPPosition // set when Kind == KindPositions
	Alerts     []model.VoiceAlert  // set when Kind == KindAlerts, never dismissed ones
}

// PositionSource lists tracked CDP positions.
type PositionSource interface {
	List() []model.CDPPosition
}

// AlertSource lists alerts that have not been dismissed.
type AlertSource interface {
	ActiveAlerts() []model.VoiceAlert
}

// Processor turns command text into a Result.
type Processor struct {
	positions PositionSource
	alerts    AlertSource
}

// NewProcessor creates a Processor. Either source may be nil.
func NewProcessor(positions PositionSource, alerts AlertSource) *Processor {
	return &Processor{positions: positions, alerts: alerts}
}

// Process detects intent and language and attaches the data the intent needs.
func (p *Processor) Process(text string) Result {
	transcript := strings.TrimSpace(text)
	res := Result{
		Intent:     DetectIntent(transcript),
		Language:   DetectLanguage(transcript),
		Transcript: transcript,
	}

	switch res.Intent {
	case IntentCheckRisk, IntentHealthFactor, IntentPositions:
		res.Kind = KindPositions
		if p.positions != nil {
			res.Positions = p.positions.List()
		}
	case IntentAlerts:
		res.Kind = KindAlerts
		if p.alerts != nil {
			for _, a := range p.alerts.ActiveAlerts() {
				if !a.Dismissed {
					res.Alerts = append(res.Alerts, a)
				}
			}
		}
	}
	return res
}

var suggestions = map[model.Language][]string{
	model.LangZH: {"查看风险", "健康因子", "我的仓位", "有没有预警", "帮助"},
	model.LangEN: {"check risk", "health factor", "my positions", "any alerts", "help"},
}

// Suggestions returns example commands matching a partial input.
func Suggestions(partial string, lang model.Language) []string {
	all, ok := suggestions[lang]
	if !ok {
		all = suggestions[model.LangEN]
	}
	if partial == "" {
		return append([]string(nil), all...)
	}

	normalized := strings.ToLower(partial)
	var out []string
	for _, s := range all {
		s2 := strings.ToLower(s)
		if strings.Contains(s2, normalized) || strings.Contains(normalized, prefix(s2, 2)) {
			out = append(out, s)
		}
	}
	return out
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
