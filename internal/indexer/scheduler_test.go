package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/zotseek/zotseek/internal/config"
)

func TestShouldUpdate(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	weekAgo := now.Add(-7 * 24 * time.Hour)
	hourAgo := now.Add(-time.Hour)
	weekly := Cadence{Auto: true, Interval: 7 * 24 * time.Hour}

	tests := []struct {
		name     string
		lastSync *time.Time
		cadence  Cadence
		want     bool
	}{
		{"manual cadence never fires", &weekAgo, Cadence{Auto: false}, false},
		{"never synced", nil, weekly, true},
		{"interval elapsed", &weekAgo, weekly, true},
		{"interval not elapsed", &hourAgo, weekly, false},
		{"manual and never synced", nil, Cadence{Auto: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldUpdate(now, tt.lastSync, tt.cadence); got != tt.want {
				t.Errorf("ShouldUpdate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCadenceFromConfig(t *testing.T) {
	c := CadenceFromConfig(config.UpdateConfig{Frequency: config.FrequencyAuto, Days: 3})
	if !c.Auto || c.Interval != 3*24*time.Hour {
		t.Errorf("cadence = %+v", c)
	}

	c = CadenceFromConfig(config.UpdateConfig{Frequency: config.FrequencyManual, Days: 3})
	if c.Auto {
		t.Error("manual frequency produced an auto cadence")
	}
}

func TestScheduler_ShouldUpdateNow(t *testing.T) {
	ctx := context.Background()
	states := newStateStore(t)
	sched := NewScheduler(states, Cadence{Auto: true, Interval: 24 * time.Hour})

	due, err := sched.ShouldUpdateNow(ctx)
	if err != nil {
		t.Fatalf("ShouldUpdateNow: %v", err)
	}
	if !due {
		t.Error("never-synced database not due for update")
	}

	if err := states.Set(ctx, time.Now().UTC(), Stats{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	due, err = sched.ShouldUpdateNow(ctx)
	if err != nil {
		t.Fatalf("ShouldUpdateNow: %v", err)
	}
	if due {
		t.Error("freshly synced database reported as due")
	}
}
