package alert

import (
	"errors"
	"time"

	"CDPShield/internal/model"
)

// Config holds the monitor thresholds and notification switches.
type Config struct {
	CriticalThreshold float64
	WarningThreshold  float64
	CautionThreshold  float64
	Cooldown          time.Duration
	SoundEnabled      bool
	VibrationEnabled  bool
	// Retention is how long a dismissed alert is kept, counted from its timestamp.
	Retention time.Duration
	Language  model.Language
}

// DefaultConfig returns the stock thresholds: critical < 1.1, warning < 1.3, caution < 1.5.
func DefaultConfig() Config {
	return Config{
		CriticalThreshold: 1.1,
		WarningThreshold:  1.3,
		CautionThreshold:  1.5,
		Cooldown:          60 * time.Second,
		SoundEnabled:      true,
		VibrationEnabled:  true,
		Retention:         time.Hour,
		Language:          model.LangZH,
	}
}

// Validate checks threshold ordering and durations.
func (c Config) Validate() error {
	if c.CriticalThreshold <= 0 {
		return errors.New("alert: critical threshold must be positive")
	}
	if !(c.CriticalThreshold < c.WarningThreshold && c.WarningThreshold < c.CautionThreshold) {
		return errors.New("alert: thresholds must satisfy critical < warning < caution")
	}
	if c.Cooldown < 0 {
		return errors.New("alert: cooldown must not be negative")
	}
	if c.Retention <= 0 {
		return errors.New("alert: retention must be positive")
	}
	if c.Language != model.LangZH && c.Language != model.LangEN {
		return errors.New("alert: language must be zh or en")
	}
	return nil
}

// LevelFor maps a health factor to an alert level, or AlertNone at or above the caution threshold.
func (c Config) LevelFor(hf float64) model.AlertLevel {
	switch {
	case hf < c.CriticalThreshold:
		return model.AlertCritical
	case hf < c.WarningThreshold:
		return model.AlertWarning
	case hf < c.CautionThreshold:
		return model.AlertCaution
	}
	return model.AlertNone
}
