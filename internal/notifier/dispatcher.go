package notifier

import (
	"context"
	"errors"
	"html"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"CDPShield/internal/model"
)

// ErrSpeechUnavailable is returned by Speak when no Telegram chat is configured.
var ErrSpeechUnavailable = errors.New("speech channel not configured")

// Tone is one alert sound burst.
type Tone struct {
	FrequencyHz float64
	Waveform    string
	Count       int
	Interval    time.Duration
	Duration    time.Duration
}

// Tones per audible alert level.
var Tones = map[model.AlertLevel]Tone{
	model.AlertCritical: {FrequencyHz: 880, Waveform: "square", Count: 3, Interval: 200 * time.Millisecond, Duration: 150 * time.Millisecond},
	model.AlertWarning:  {FrequencyHz: 660, Waveform: "sine", Count: 2, Interval: 250 * time.Millisecond, Duration: 200 * time.Millisecond},
}

// VibrationPatterns are on/off durations in milliseconds.
var VibrationPatterns = map[model.AlertLevel][]int{
	model.AlertCritical: {200, 100, 200, 100, 200},
	model.AlertWarning:  {200, 100, 200},
}

const (
	speakRetries = 2
	speakTimeout = 2 * time.Minute
)

// Dispatcher delivers alert notifications. A server has no speaker or
// motor, so sound and vibration become structured log events; speech is
// posted to Telegram.
type Dispatcher struct {
	telegram  *Telegram
	sound     bool
	vibration bool
	log       zerolog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. telegram may be nil.
func NewDispatcher(telegram *Telegram, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		telegram:  telegram,
		sound:     true,
		vibration: true,
		log:       log.With().Str("component", "notifier").Logger(),
	}
}

// Capabilities reports the channels this dispatcher can serve.
func (d *Dispatcher) Capabilities() model.Capabilities {
	return model.Capabilities{
		Sound:     d.sound,
		Vibration: d.vibration,
		Speech:    d.telegram.Configured(),
	}
}

// PlaySound emits the tone pattern for level.
func (d *Dispatcher) PlaySound(level model.AlertLevel) error {
	tone, ok := Tones[level]
	if !ok {
		return nil
	}
	d.log.Info().
		Str("event", "sound").
		Str("level", string(level)).
		Float64("frequency_hz", tone.FrequencyHz).
		Str("waveform", tone.Waveform).
		Int("count", tone.Count).
		Dur("interval", tone.Interval).
		Dur("duration", tone.Duration).
		Msg("alert sound")
	return nil
}

// Vibrate emits the vibration pattern for level.
func (d *Dispatcher) Vibrate(level model.AlertLevel) error {
	pattern, ok := VibrationPatterns[level]
	if !ok {
		return nil
	}
	d.log.Info().
		Str("event", "vibration").
		Str("level", string(level)).
		Ints("pattern_ms", pattern).
		Msg("alert vibration")
	return nil
}

// Speak posts text to Telegram in the background and returns at once.
// text is plain and gets HTML-escaped. Delivery outlives ctx cancellation
// but not Wait's caller.
func (d *Dispatcher) Speak(ctx context.Context, text string, lang model.Language) error {
	if !d.telegram.Configured() {
		return ErrSpeechUnavailable
	}
	text = html.EscapeString(text)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), speakTimeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		if err := d.telegram.SendWithRetry(sendCtx, text, speakRetries); err != nil {
			d.log.Error().Err(err).Str("lang", string(lang)).Msg("speech delivery failed")
		}
	}()
	return nil
}

// Wait blocks until every pending Speak delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
