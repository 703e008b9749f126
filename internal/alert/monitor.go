// Package alert watches CDP health factors and raises cooldown-limited alerts.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"CDPShield/internal/assistant"
	"CDPShield/internal/cache"
	"CDPShield/internal/model"
	"CDPShield/internal/positions"
)

const speakTimeout = 15 * time.Second

var ErrAlertNotFound = errors.New("alert not found")

// Notifier receives audible alerts. Errors and panics are logged and dropped.
// Channels missing from Capabilities are not called.
type Notifier interface {
	Capabilities() model.Capabilities
	PlaySound(level model.AlertLevel) error
	Vibrate(level model.AlertLevel) error
	Speak(ctx context.Context, text string, lang model.Language) error
}

// PositionStore is the source of tracked positions.
type PositionStore interface {
	List() []model.CDPPosition
	Subscribe(fn positions.Listener) (unsubscribe func())
	Update(id string, fn func(*model.CDPPosition)) (model.CDPPosition, error)
}

// Recorder persists alert history.
type Recorder interface {
	RecordAlert(ctx context.Context, a model.VoiceAlert) error
	RecordDismiss(ctx context.Context, alertID string, at time.Time) error
}

// Metrics counts monitor events.
type Metrics interface {
	AlertEmitted(level model.AlertLevel)
	HookFailed(hook string)
}

// Status is a point-in-time view of the monitor.
type Status struct {
	Running    bool           `json:"running"`
	References int            `json:"references"`
	Cooldowns  int            `json:"cooldowns"`
	Language   model.Language `json:"language"`
}

// Monitor evaluates every position on each store change and keeps the alert list.
// A position gets at most one alert per cooldown window and at most one
// non-dismissed alert at a time.
type Monitor struct {
	// lifeMu serializes Start and Stop.
	lifeMu      sync.Mutex
	refs        int
	running     bool
	unsubscribe func()

	mu        sync.Mutex
	cfg       Config
	lang      model.Language
	alerts    []model.VoiceAlert
	cooldowns *cache.TTL[string, time.Time]

	store    PositionStore
	notifier Notifier
	recorder Recorder
	metrics  Metrics
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithNotifier(n Notifier) Option { return func(m *Monitor) { m.notifier = n } }

func WithRecorder(r Recorder) Option { return func(m *Monitor) { m.recorder = r } }

func WithMetrics(mt Metrics) Option { return func(m *Monitor) { m.metrics = mt } }

// WithClock sets the time source for cooldowns, timestamps and retention.
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// NewMonitor creates a stopped Monitor over store.
func NewMonitor(cfg Config, store PositionStore, log zerolog.Logger, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		cfg:      cfg,
		lang:     cfg.Language,
		store:    store,
		notifier: nopNotifier{},
		recorder: nopRecorder{},
		metrics:  nopMetrics{},
		now:      time.Now,
		newID:    uuid.NewString,
		log:      log.With().Str("component", "alert_monitor").Logger(),
	}
	for _, o := range opts {
		o(m)
	}
	// Unbounded: a live cooldown is never evicted. SweepCooldowns drops expired ones.
	m.cooldowns = cache.New[string, time.Time](cfg.Cooldown, 0).WithClock(m.now)
	return m, nil
}

// Start subscribes to the store on the first call and checks the current
// positions. Later calls only add a reference.
func (m *Monitor) Start() {
	m.lifeMu.Lock()
	m.refs++
	if m.running {
		m.log.Debug().Int("refs", m.refs).Msg("monitor already running")
		m.lifeMu.Unlock()
		return
	}
	m.unsubscribe = m.store.Subscribe(m.check)
	m.running = true
	m.log.Info().Int("refs", m.refs).Msg("monitor started")
	m.lifeMu.Unlock()

	if list := m.store.List(); len(list) > 0 {
		m.check(list)
	}
}

// Stop drops a reference and unsubscribes when none are left.
func (m *Monitor) Stop() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	m.refs--
	if m.refs > 0 {
		m.log.Debug().Int("refs", m.refs).Msg("monitor still referenced")
		return
	}
	m.refs = 0
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if m.running {
		m.running = false
		m.log.Info().Msg("monitor stopped")
	}
}

type emission struct {
	alert   model.VoiceAlert
	lang    model.Language
	sound   bool
	vibrate bool
}

// check runs one evaluation pass. The alert list is fully updated before any
// notifier hook runs, and hooks run without holding the lock.
func (m *Monitor) check(list []model.CDPPosition) {
	m.mu.Lock()
	var fired []emission
	for _, p := range list {
		level := m.cfg.LevelFor(p.HealthFactor)
		if level == model.AlertNone {
			continue
		}
		if _, cooling := m.cooldowns.Get(p.ID); cooling {
			continue
		}
		fired = append(fired, emission{
			alert:   m.emitLocked(p, level),
			lang:    m.lang,
			sound:   m.cfg.SoundEnabled,
			vibrate: m.cfg.VibrationEnabled,
		})
	}
	m.mu.Unlock()

	for _, e := range fired {
		m.dispatch(e)
	}
}

func (m *Monitor) emitLocked(p model.CDPPosition, level model.AlertLevel) model.VoiceAlert {
	now := m.now()
	m.cooldowns.Set(p.ID, now)

	a := model.VoiceAlert{
		ID:           m.newID(),
		PositionID:   p.ID,
		Protocol:     p.Protocol,
		Level:        level,
		HealthFactor: p.HealthFactor,
		Message:      assistant.BroadcastMessage(p, level, m.lang),
		Timestamp:    now,
	}

	m.purgeLocked(now)
	for i := range m.alerts {
		if m.alerts[i].PositionID == p.ID && !m.alerts[i].Dismissed {
			m.alerts[i] = a
			return a
		}
	}
	m.alerts = append(m.alerts, a)
	return a
}

func (m *Monitor) dispatch(e emission) {
	a := e.alert
	m.metrics.AlertEmitted(a.Level)
	m.log.Warn().
		Str("position", a.PositionID).
		Str("protocol", a.Protocol).
		Str("level", string(a.Level)).
		Float64("health_factor", a.HealthFactor).
		Msg("alert triggered")

	ctx, cancel := context.WithTimeout(context.Background(), speakTimeout)
	defer cancel()

	if err := m.recorder.RecordAlert(ctx, a); err != nil {
		m.log.Error().Err(err).Str("alert", a.ID).Msg("failed to record alert")
	}
	if !a.Level.Audible() {
		return
	}
	caps := m.notifier.Capabilities()
	if e.sound && caps.Sound {
		m.invoke("sound", func() error { return m.notifier.PlaySound(a.Level) })
	}
	if e.vibrate && caps.Vibration {
		m.invoke("vibration", func() error { return m.notifier.Vibrate(a.Level) })
	}
	if caps.Speech {
		m.invoke("speech", func() error { return m.notifier.Speak(ctx, a.Message, e.lang) })
	}
}

func (m *Monitor) invoke(hook string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			m.metrics.HookFailed(hook)
			m.log.Error().Str("hook", hook).Interface("panic", r).Msg("notifier hook panicked")
		}
	}()
	if err := fn(); err != nil {
		m.metrics.HookFailed(hook)
		m.log.Error().Err(err).Str("hook", hook).Msg("notifier hook failed")
	}
}

// ForceCheck clears every cooldown and re-evaluates the current positions.
func (m *Monitor) ForceCheck() {
	m.cooldowns.Clear()
	m.check(m.store.List())
}

// SimulateHealthFactorDrop clears the position's cooldown, then sets its
// health factor in the store. A running monitor re-evaluates on the change.
func (m *Monitor) SimulateHealthFactorDrop(positionID string, hf float64) error {
	m.cooldowns.Delete(positionID)
	_, err := m.store.Update(positionID, func(p *model.CDPPosition) {
		p.HealthFactor = hf
	})
	if err != nil {
		return fmt.Errorf("simulate drop: %w", err)
	}
	return nil
}

// Dismiss marks an alert dismissed. Dismissing twice is a no-op.
func (m *Monitor) Dismiss(id string) error {
	m.mu.Lock()
	idx := -1
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("dismiss %q: %w", id, ErrAlertNotFound)
	}
	already := m.alerts[idx].Dismissed
	m.alerts[idx].Dismissed = true
	m.mu.Unlock()

	if !already {
		if err := m.recorder.RecordDismiss(context.Background(), id, m.now()); err != nil {
			m.log.Error().Err(err).Str("alert", id).Msg("failed to record dismissal")
		}
	}
	return nil
}

// ActiveAlerts returns alerts that have not been dismissed.
func (m *Monitor) ActiveAlerts() []model.VoiceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.VoiceAlert
	for _, a := range m.alerts {
		if !a.Dismissed {
			out = append(out, a)
		}
	}
	return out
}

// Alerts returns every retained alert, dismissed ones included.
func (m *Monitor) Alerts() []model.VoiceAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.VoiceAlert(nil), m.alerts...)
}

// ClearAlerts drops the whole alert list.
func (m *Monitor) ClearAlerts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = nil
}

// CleanupAlerts purges dismissed alerts past retention and returns how many were removed.
func (m *Monitor) CleanupAlerts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purgeLocked(m.now())
}

func (m *Monitor) purgeLocked(now time.Time) int {
	kept := m.alerts[:0]
	for _, a := range m.alerts {
		if a.Dismissed && now.Sub(a.Timestamp) >= m.cfg.Retention {
			continue
		}
		kept = append(kept, a)
	}
	removed := len(m.alerts) - len(kept)
	m.alerts = kept
	return removed
}

// ClearCooldowns lets every position alert again on the next pass.
func (m *Monitor) ClearCooldowns() {
	m.cooldowns.Clear()
}

// SweepCooldowns drops expired cooldown entries.
func (m *Monitor) SweepCooldowns() int {
	return m.cooldowns.Sweep()
}

// InCooldown reports whether positionID is currently suppressed.
func (m *Monitor) InCooldown(positionID string) bool {
	_, ok := m.cooldowns.Get(positionID)
	return ok
}

// SetLanguage sets the language of future alert messages.
func (m *Monitor) SetLanguage(lang model.Language) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lang = lang
}

// Config returns the monitor configuration.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

func (m *Monitor) Status() Status {
	m.lifeMu.Lock()
	running, refs := m.running, m.refs
	m.lifeMu.Unlock()

	m.cooldowns.Sweep()
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Running:    running,
		References: refs,
		Cooldowns:  m.cooldowns.Len(),
		Language:   m.lang,
	}
}

type nopNotifier struct{}

func (nopNotifier) Capabilities() model.Capabilities                    { return model.Capabilities{} }
func (nopNotifier) PlaySound(model.AlertLevel) error                    { return nil }
func (nopNotifier) Vibrate(model.AlertLevel) error                      { return nil }
func (nopNotifier) Speak(context.Context, string, model.Language) error { return nil }

type nopRecorder struct{}

func (nopRecorder) RecordAlert(context.Context, model.VoiceAlert) error    { return nil }
func (nopRecorder) RecordDismiss(context.Context, string, time.Time) error { return nil }

type nopMetrics struct{}

func (nopMetrics) AlertEmitted(model.AlertLevel) {}
func (nopMetrics) HookFailed(string)             {}
