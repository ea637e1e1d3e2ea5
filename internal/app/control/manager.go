// Package control wires hardware tag events to the association engine
// and enforces the playback-blocking rule: a detection never reaches
// the playback callbacks while an association session is in progress.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/klangbox/klangbox/internal/app/association"
	"github.com/klangbox/klangbox/internal/app/notification"
	"github.com/klangbox/klangbox/internal/domain/tag"
	"github.com/klangbox/klangbox/internal/infra/hardware"
)

var ErrAlreadyStarted = errors.New("control manager already started")

// Config holds manager configuration.
type Config struct {
	SweepInterval  time.Duration // cleanup pass interval
	DefaultTimeout time.Duration // session window when the caller passes none
	TagCooldown    time.Duration // per-tag repeat suppression window
	QueueSize      int           // detection event buffer
}

// detectionEvent carries one hardware detection to the worker.
// playbackAllowed is decided at the moment the event arrives, before
// any processing can turn the detection into an association action.
type detectionEvent struct {
	uid             string
	playbackAllowed bool
}

// Status is the answer to a status query.
type Status struct {
	ActiveSessions []*association.Session
	Hardware       hardware.Status
	Detecting      bool
}

// Manager owns the hardware adapter, the association service, and the
// callback lists. A single worker goroutine consumes detections in
// arrival order so per-tag processing never reorders, and the hardware
// callback never blocks.
type Manager struct {
	mu sync.RWMutex // guards callbacks and started flag

	hardware hardware.Adapter
	assoc    *association.Service
	events   *notification.Dispatcher

	tagDetectedCallbacks []func(uid string)
	associationCallbacks []func(association.DetectionResult)

	cooldown   *tagCooldown
	detections chan detectionEvent

	cfg     Config
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a control manager. The dispatcher may be nil when
// no event broadcast is wanted.
func NewManager(hw hardware.Adapter, assoc *association.Service, events *notification.Dispatcher, cfg Config) *Manager {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = association.DefaultTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	return &Manager{
		hardware:   hw,
		assoc:      assoc,
		events:     events,
		cooldown:   newTagCooldown(cfg.TagCooldown),
		detections: make(chan detectionEvent, cfg.QueueSize),
		cfg:        cfg,
	}
}

// Start registers the hardware callbacks, starts detection, and spawns
// the worker and sweep loops. Hardware failures propagate without
// touching session state.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	m.hardware.SetTagDetectedCallback(m.onTagDetected)
	m.hardware.SetTagRemovedCallback(m.onTagRemoved)

	if err := m.hardware.StartDetection(ctx); err != nil {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return errors.Wrap(err, "start tag detection")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(2)
	go m.detectionWorker(loopCtx)
	go m.sweepLoop(loopCtx)

	zlog.Info().Msgf("control manager started: sweep_interval=%s cooldown=%s", m.cfg.SweepInterval, m.cfg.TagCooldown)
	return nil
}

// Stop stops detection and cancels the background loops. An in-flight
// detection is allowed to complete; its result still reaches whatever
// callbacks remain registered.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	m.mu.Unlock()

	stopErr := m.hardware.StopDetection(ctx)

	m.cancel()
	m.wg.Wait()

	if stopErr != nil {
		return errors.Wrap(stopErr, "stop tag detection")
	}
	zlog.Info().Msg("control manager stopped")
	return nil
}

// RegisterTagDetectedCallback adds a playback callback. It is invoked
// only for detections that arrive with no association session active.
func (m *Manager) RegisterTagDetectedCallback(fn func(uid string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagDetectedCallbacks = append(m.tagDetectedCallbacks, fn)
}

// RegisterAssociationCallback adds a callback that sees every
// processed detection, regardless of session state.
func (m *Manager) RegisterAssociationCallback(fn func(association.DetectionResult)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.associationCallbacks = append(m.associationCallbacks, fn)
}

// StartAssociation begins a session binding a tag to the playlist.
func (m *Manager) StartAssociation(playlistID string, timeout time.Duration, override bool) (*association.Session, error) {
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}
	sess, err := m.assoc.StartSession(playlistID, timeout, override)
	if err != nil {
		return nil, err
	}
	m.broadcast(notification.Event{
		Type:       notification.EventSessionStarted,
		SessionID:  sess.ID,
		PlaylistID: sess.PlaylistID,
	})
	return sess, nil
}

// StopAssociation cancels a session.
func (m *Manager) StopAssociation(sessionID string) (bool, error) {
	stopped, err := m.assoc.StopSession(sessionID)
	if stopped {
		m.broadcast(notification.Event{
			Type:      notification.EventSessionStopped,
			SessionID: sessionID,
		})
	}
	return stopped, err
}

// DissociateTag clears a tag's playlist binding.
func (m *Manager) DissociateTag(ctx context.Context, uid string) (bool, error) {
	id, err := tag.Parse(uid)
	if err != nil {
		return false, err
	}
	return m.assoc.DissociateTag(ctx, id)
}

// GetStatus reports active sessions and hardware state.
func (m *Manager) GetStatus() Status {
	hwStatus := m.hardware.Status()
	return Status{
		ActiveSessions: m.assoc.ActiveSessions(),
		Hardware:       hwStatus,
		Detecting:      hwStatus.Detecting,
	}
}

// Sessions returns the association service for direct queries.
func (m *Manager) Sessions() *association.Service {
	return m.assoc
}

// onTagDetected runs on the hardware goroutine. It must return
// quickly: decide whether playback is allowed right now, then hand
// the event to the worker.
func (m *Manager) onTagDetected(uid string) {
	if !m.cooldown.Allow(uid) {
		zlog.Debug().Msgf("tag detection suppressed by cooldown: uid=%s", uid)
		return
	}

	ev := detectionEvent{
		uid:             uid,
		playbackAllowed: len(m.assoc.ActiveSessions()) == 0,
	}

	select {
	case m.detections <- ev:
	default:
		zlog.Warn().Msgf("detection queue full, dropping event: uid=%s", uid)
	}
}

// onTagRemoved runs on the hardware goroutine.
func (m *Manager) onTagRemoved() {
	zlog.Debug().Msg("tag removed from reader")
}

// detectionWorker consumes queued detections one at a time, in arrival
// order.
func (m *Manager) detectionWorker(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.detections:
			m.handleDetection(ctx, ev)
		}
	}
}

// handleDetection processes one detection end to end. A panic in a
// callback is contained so one bad subscriber cannot kill the worker.
func (m *Manager) handleDetection(ctx context.Context, ev detectionEvent) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("detection handler panicked: uid=%s panic=%v", ev.uid, r)
		}
	}()

	id, err := tag.Parse(ev.uid)
	if err != nil {
		zlog.Warn().Msgf("unreadable tag uid from hardware: uid=%q err=%v", ev.uid, err)
		return
	}

	result := m.assoc.ProcessDetection(ctx, id, "")

	m.notifyAssociation(result)
	m.broadcast(notification.Event{
		Type:       notification.EventTagDetected,
		SessionID:  result.SessionID,
		PlaylistID: result.PlaylistID,
		Result:     &result,
	})

	// Playback is gated on the session state at arrival time, not
	// after processing: a session that just consumed this detection,
	// or expired meanwhile, must not cause a late playback trigger.
	// Callbacks get the uid as the hardware reported it.
	if ev.playbackAllowed {
		m.notifyTagDetected(ev.uid)
	}
}

// sweepLoop periodically reclaims expired sessions.
func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.assoc.CleanupExpired(); n > 0 {
				zlog.Info().Msgf("expired association sessions cleaned: count=%d", n)
			}
		}
	}
}

func (m *Manager) notifyTagDetected(uid string) {
	m.mu.RLock()
	callbacks := make([]func(string), len(m.tagDetectedCallbacks))
	copy(callbacks, m.tagDetectedCallbacks)
	m.mu.RUnlock()

	for _, fn := range callbacks {
		fn(uid)
	}
}

func (m *Manager) notifyAssociation(result association.DetectionResult) {
	m.mu.RLock()
	callbacks := make([]func(association.DetectionResult), len(m.associationCallbacks))
	copy(callbacks, m.associationCallbacks)
	m.mu.RUnlock()

	for _, fn := range callbacks {
		fn(result)
	}
}

func (m *Manager) broadcast(event notification.Event) {
	if m.events == nil {
		return
	}
	m.events.Broadcast(event)
}
