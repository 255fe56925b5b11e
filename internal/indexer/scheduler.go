package indexer

import (
	"context"
	"time"

	"github.com/zotseek/zotseek/internal/config"
)

// Cadence is the automatic re-sync policy.
type Cadence struct {
	Auto     bool
	Interval time.Duration
}

// CadenceFromConfig translates the update configuration.
func CadenceFromConfig(u config.UpdateConfig) Cadence {
	return Cadence{
		Auto:     u.Frequency == config.FrequencyAuto,
		Interval: time.Duration(u.Days) * 24 * time.Hour,
	}
}

// ShouldUpdate reports whether an automatic sync is due. It is a pure
// function of its inputs: true when the cadence is automatic and either no
// sync has ever run or the interval has elapsed.
func ShouldUpdate(now time.Time, lastSync *time.Time, c Cadence) bool {
	if !c.Auto {
		return false
	}
	if lastSync == nil {
		return true
	}
	return now.Sub(*lastSync) >= c.Interval
}

// Scheduler decides whether an automatic sync should run, based on the
// persisted sync state and the configured cadence.
type Scheduler struct {
	states  *StateStore
	cadence Cadence
	now     func() time.Time
}

// NewScheduler creates a scheduler.
func NewScheduler(states *StateStore, cadence Cadence) *Scheduler {
	return &Scheduler{states: states, cadence: cadence, now: time.Now}
}

// Cadence returns the configured cadence.
func (s *Scheduler) Cadence() Cadence { return s.cadence }

// ShouldUpdateNow consults the persisted state and the cadence.
func (s *Scheduler) ShouldUpdateNow(ctx context.Context) (bool, error) {
	state, err := s.states.Get(ctx)
	if err != nil {
		return false, err
	}
	return ShouldUpdate(s.now(), state.LastSyncTime, s.cadence), nil
}
