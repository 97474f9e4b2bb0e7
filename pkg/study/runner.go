package study

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/walklab/go-quadwalk/internal/log"
	"github.com/walklab/go-quadwalk/pkg/motion"
)

// TrialRunner executes trial conditions against a running supervisor and
// records the outcomes.
type TrialRunner struct {
	protocol *Protocol
	sup      *motion.Supervisor
}

// NewTrialRunner pairs a protocol with the supervisor it drives.
func NewTrialRunner(protocol *Protocol, sup *motion.Supervisor) *TrialRunner {
	return &TrialRunner{protocol: protocol, sup: sup}
}

// Run configures the supervisor for the condition, starts the walk, and
// blocks until the path completes, the episode ends early, or ctx is
// cancelled. The result is recorded before returning.
func (r *TrialRunner) Run(ctx context.Context, participantID string, cond Condition) (Result, error) {
	mode, err := motion.ParseTravelMode(cond.TravelMode)
	if err != nil {
		return Result{}, fmt.Errorf("trial %d: %w", cond.TrialID, err)
	}
	r.sup.SetTravelMode(mode)
	if err := r.sup.SetSpeedPolicy(cond.SpeedPolicy); err != nil {
		return Result{}, fmt.Errorf("trial %d: %w", cond.TrialID, err)
	}
	r.sup.SetGazeEnabled(cond.GazeEnabled)

	start := time.Now()
	if err := r.sup.Start(); err != nil {
		return Result{}, fmt.Errorf("trial %d: start: %w", cond.TrialID, err)
	}
	log.Info("trial started",
		"trial", cond.TrialID,
		"participant", participantID,
		"condition", cond.Description)

	outcome, distance := r.waitForEnd(ctx)
	end := time.Now()

	result := Result{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		Condition:     cond,
		StartTime:     start,
		EndTime:       end,
		Duration:      end.Sub(start).Seconds(),
		Distance:      distance,
		Outcome:       outcome,
	}
	if err := r.protocol.RecordResult(result); err != nil {
		return result, fmt.Errorf("trial %d: record: %w", cond.TrialID, err)
	}

	log.Info("trial finished",
		"trial", cond.TrialID,
		"outcome", outcome,
		"distance", distance,
		"duration", result.Duration)
	return result, nil
}

// waitForEnd consumes supervisor events until the episode terminates.
func (r *TrialRunner) waitForEnd(ctx context.Context) (outcome string, distance float64) {
	for {
		select {
		case <-ctx.Done():
			r.sup.Stop()
			return "aborted", r.sup.Status().Distance

		case ev := <-r.sup.Events():
			switch ev.Type {
			case motion.EventPathComplete:
				return "completed", ev.Distance
			case motion.EventStopped:
				// Mid-path pause from the speed profile, not terminal.
			case motion.EventWatchdog:
				return "watchdog", ev.Distance
			case motion.EventFaulted:
				return "faulted", ev.Distance
			}
		}
	}
}
