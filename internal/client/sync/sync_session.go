package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opennews/newsbox/internal/client/cache"
	"github.com/opennews/newsbox/internal/newsapi"
	"golang.org/x/sync/errgroup"
)

const defaultSettleHold = 3 * time.Second

var (
	ErrPassInFlight = errors.New("sync pass already in flight")
)

// Session orchestrates one end-to-end sync pass at a time:
// idle -> checking -> planning -> transferring -> settling -> idle.
// The cache root has a single writer, so only one pass may be in flight.
type Session struct {
	api     *newsapi.Client
	cache   *cache.Cache
	scanner *cache.Scanner
	planner *Planner
	exec    *Executor
	status  *Status
	history *History // optional

	// SettleHold is how long the terminal message stays visible before the
	// session resets to idle.
	SettleHold time.Duration

	muPass sync.Mutex
}

func NewSession(api *newsapi.Client, c *cache.Cache, history *History, policy PlannerPolicy) *Session {
	return &Session{
		api:        api,
		cache:      c,
		scanner:    cache.NewScanner(c.Root),
		planner:    NewPlanner(policy),
		exec:       NewExecutor(api, c),
		status:     NewStatus(),
		history:    history,
		SettleHold: defaultSettleHold,
	}
}

// Status exposes the observable session state.
func (s *Session) Status() *Status {
	return s.status
}

// Run executes one full sync pass. A second pass requested while one is in
// flight fails fast with ErrPassInFlight - passes are never interleaved
// because staleness deletion and directory wipes are destructive.
func (s *Session) Run(ctx context.Context, trigger Trigger) (Outcome, error) {
	if !s.muPass.TryLock() {
		return "", ErrPassInFlight
	}
	defer s.muPass.Unlock()

	passID := uuid.NewString()
	startedAt := time.Now()

	s.status.set(SessionState{
		PassID:  passID,
		Phase:   PhaseChecking,
		Trigger: trigger,
		Message: "checking for updates",
	})

	// fetch the server manifest and scan the local inventory concurrently;
	// both must complete before planning
	var manifest *newsapi.ManifestSnapshot
	var localNames []string
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		m, err := s.api.CheckVersion(egCtx)
		manifest = m
		return err
	})
	eg.Go(func() error {
		names, err := s.scanner.ListNames()
		localNames = names
		return err
	})
	if err := eg.Wait(); err != nil {
		// abort the whole pass, no settling display
		s.logCheckFailure(trigger, err)
		s.reset()
		s.record(&PassRecord{
			ID: passID, Trigger: trigger, Outcome: OutcomeFailed,
			Message: err.Error(), StartedAt: startedAt, FinishedAt: time.Now(),
		})
		return OutcomeFailed, fmt.Errorf("sync check: %w", err)
	}

	s.status.set(SessionState{
		PassID:  passID,
		Phase:   PhasePlanning,
		Trigger: trigger,
		Message: "planning update",
	})
	plan := s.planner.Plan(manifest, NewInventory(localNames, s.scanner))
	slog.Debug("sync plan", "version", plan.Version, "actions", len(plan.Actions))

	if plan.UpToDate() {
		s.finish(ctx, trigger, OutcomeUpToDate)
		s.record(&PassRecord{
			ID: passID, Trigger: trigger, Outcome: OutcomeUpToDate,
			Message: "already up to date", StartedAt: startedAt, FinishedAt: time.Now(),
		})
		return OutcomeUpToDate, nil
	}

	total := len(plan.Actions)
	var downloaded, absorbed int
	var removedAny bool
	var fatal error

	for i, action := range plan.Actions {
		// cooperative cancellation between actions, never mid-download
		if err := ctx.Err(); err != nil {
			fatal = err
			break
		}

		s.status.set(SessionState{
			PassID:    passID,
			Phase:     PhaseTransferring,
			Trigger:   trigger,
			Message:   action.Describe(),
			Fraction:  float64(i) / float64(total),
			StepIndex: i + 1,
			StepTotal: total,
		})

		result, err := s.exec.Apply(ctx, action)
		if err != nil {
			if action.Type == ActionReplaceDocument {
				// a required document failed: abort remaining actions
				slog.Error("sync", "op", action.Type, "path", action.Name, "error", err)
				fatal = err
				break
			}
			slog.Warn("sync", "op", action.Type, "path", action.Name, "error", err)
			absorbed++
			continue
		}

		downloaded += result.Downloaded
		absorbed += result.Failed
		removedAny = removedAny || result.Removed
	}

	finishedAt := time.Now()

	if fatal != nil {
		if trigger == TriggerManual && !errors.Is(fatal, context.Canceled) {
			// generic message only - internal taxonomy stays in the logs
			s.settle(ctx, passID, trigger, "network problem, please retry")
		} else {
			s.reset()
		}
		s.record(&PassRecord{
			ID: passID, Trigger: trigger, Outcome: OutcomeFailed,
			Message: fatal.Error(), ActionsTotal: total, ActionsFailed: absorbed,
			StartedAt: startedAt, FinishedAt: finishedAt,
		})
		return OutcomeFailed, fmt.Errorf("sync transfer: %w", fatal)
	}

	// incremental top-ups that found nothing missing are not an update
	outcome := OutcomeUpdated
	message := "update complete"
	if downloaded == 0 && !removedAny {
		outcome = OutcomeUpToDate
		message = "already up to date"
	}

	slog.Info("sync pass",
		"pass", passID,
		"trigger", trigger,
		"outcome", outcome,
		"version", plan.Version,
		"actions", total,
		"downloaded", downloaded,
		"absorbed", absorbed,
		"took", finishedAt.Sub(startedAt),
	)

	s.finish(ctx, trigger, outcome)
	s.record(&PassRecord{
		ID: passID, Trigger: trigger, Outcome: outcome,
		Message: message, ActionsTotal: total, ActionsFailed: absorbed,
		StartedAt: startedAt, FinishedAt: finishedAt,
	})
	return outcome, nil
}

// finish shows the terminal message, honoring the trigger rule: an automatic
// pass that found nothing to do resets silently, everything else holds a
// brief settling display.
func (s *Session) finish(ctx context.Context, trigger Trigger, outcome Outcome) {
	if outcome == OutcomeUpToDate && trigger == TriggerAuto {
		s.reset()
		return
	}

	message := "update complete"
	if outcome == OutcomeUpToDate {
		message = "already up to date"
	}
	passID := s.status.Get().PassID
	s.settle(ctx, passID, trigger, message)
}

// settle holds the terminal message for the display period, then resets.
func (s *Session) settle(ctx context.Context, passID string, trigger Trigger, message string) {
	s.status.set(SessionState{
		PassID:   passID,
		Phase:    PhaseSettling,
		Trigger:  trigger,
		Message:  message,
		Fraction: 1,
	})

	select {
	case <-ctx.Done():
	case <-time.After(s.SettleHold):
	}

	s.reset()
}

func (s *Session) reset() {
	s.status.set(SessionState{Phase: PhaseIdle})
}

func (s *Session) record(rec *PassRecord) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(rec); err != nil {
		slog.Error("sync history record", "pass", rec.ID, "error", err)
	}
}

// logCheckFailure classifies a checking-phase failure for the logs. A format
// error is most likely a transient bad server response, so automatic passes
// log it quietly.
func (s *Session) logCheckFailure(trigger Trigger, err error) {
	switch {
	case newsapi.IsFormatError(err):
		slog.Warn("sync check: bad manifest payload", "trigger", trigger, "error", err)
	case trigger == TriggerAuto:
		slog.Warn("sync check failed", "trigger", trigger, "error", err)
	default:
		slog.Error("sync check failed", "trigger", trigger, "error", err)
	}
}
