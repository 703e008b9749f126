package model

import "time"

// AlertLevel is the severity of a position alert.
type AlertLevel string

const (
	AlertNone     AlertLevel = ""
	AlertCritical AlertLevel = "critical"
	AlertWarning  AlertLevel = "warning"
	AlertCaution  AlertLevel = "caution"
)

// Audible reports whether the level triggers sound, vibration and speech.
func (l AlertLevel) Audible() bool {
	return l == AlertCritical || l == AlertWarning
}

// Language is a supported assistant language.
type Language string

const (
	LangZH Language = "zh"
	LangEN Language = "en"
)

// VoiceAlert is a recorded alert for one CDP position.
type VoiceAlert struct {
	ID           string     `json:"id"`
	PositionID   string     `json:"positionId"`
	Protocol     string     `json:"protocol"`
	Level        AlertLevel `json:"level"`
	HealthFactor float64    `json:"healthFactor"`
	Message      string     `json:"message"`
	Timestamp    time.Time  `json:"timestamp"`
	Dismissed    bool       `json:"dismissed"`
}

// Capabilities reports which notification channels are available.
type Capabilities struct {
	Sound     bool `json:"sound"`
	Vibration bool `json:"vibration"`
	Speech    bool `json:"speech"`
}
