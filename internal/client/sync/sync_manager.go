package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const defaultSyncInterval = 15 * time.Minute

// Manager owns the sync session and drives automatic passes on an interval.
// Manual triggers arrive over a buffered channel; a trigger while a pass is
// in flight is coalesced.
type Manager struct {
	session  *Session
	interval time.Duration
	trigger  chan Trigger
	wg       sync.WaitGroup
}

func NewManager(session *Session, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &Manager{
		session:  session,
		interval: interval,
		trigger:  make(chan Trigger, 1),
	}
}

// Status exposes the observable session state.
func (m *Manager) Status() *Status {
	return m.session.Status()
}

// Session exposes the underlying session for callers that need to tune it.
func (m *Manager) Session() *Session {
	return m.session
}

// RunOnce executes a single pass synchronously.
func (m *Manager) RunOnce(ctx context.Context, trigger Trigger) (Outcome, error) {
	return m.session.Run(ctx, trigger)
}

// TriggerSync queues a manual pass. Returns false when one is already
// queued or in flight.
func (m *Manager) TriggerSync() bool {
	select {
	case m.trigger <- TriggerManual:
		return true
	default:
		return false
	}
}

// Start runs an initial automatic pass and then loops on the sync interval.
func (m *Manager) Start(ctx context.Context) error {
	slog.Info("sync manager start", "interval", m.interval)

	m.run(ctx, TriggerAuto)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		// a timer, not a ticker, so a pass longer than the interval does not
		// queue up extra passes
		timer := time.NewTimer(m.interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case trigger := <-m.trigger:
				m.run(ctx, trigger)
			case <-timer.C:
				m.run(ctx, TriggerAuto)
				timer.Reset(m.interval)
			}
		}
	}()

	return nil
}

// Stop waits for the scheduler loop to exit and closes the status feed.
func (m *Manager) Stop() {
	slog.Info("sync manager stop")
	m.wg.Wait()
	m.session.Status().Close()
}

func (m *Manager) run(ctx context.Context, trigger Trigger) {
	_, err := m.session.Run(ctx, trigger)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrPassInFlight) {
		slog.Error("sync pass failed", "trigger", trigger, "error", err)
	}
}
