package engine

import (
	"testing"
	"time"

	"outreach_backend/internal/outreach/domain"
)

func TestRemainingCapacity(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	nextMidnight := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	topOfNextHour := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Minute)
	stale := now.Add(-30 * time.Minute)

	tests := []struct {
		name          string
		run           domain.Run
		counts        sendCounts
		wantAvailable int
		wantWait      time.Time
	}{
		{
			name:          "no caps gives full batch",
			run:           domain.Run{},
			wantAvailable: defaultDispatchBatch,
		},
		{
			name:          "hourly cap clamps batch",
			run:           domain.Run{HourlyCap: 8},
			counts:        sendCounts{SentLastHour: 5},
			wantAvailable: 3,
		},
		{
			name:     "daily cap exhausted defers to next utc midnight",
			run:      domain.Run{DailyCap: 2},
			counts:   sendCounts{SentToday: 2},
			wantWait: nextMidnight,
		},
		{
			name:     "hourly cap exhausted defers to top of next hour",
			run:      domain.Run{HourlyCap: 8},
			counts:   sendCounts{SentLastHour: 8},
			wantWait: topOfNextHour,
		},
		{
			name:          "daily remaining below hourly remaining wins",
			run:           domain.Run{HourlyCap: 10, DailyCap: 40},
			counts:        sendCounts{SentLastHour: 4, SentToday: 38},
			wantAvailable: 2,
		},
		{
			name:     "spacing not yet elapsed waits for last send plus spacing",
			run:      domain.Run{MinSpacingMinutes: 5},
			counts:   sendCounts{LastSentAt: &recent},
			wantWait: recent.Add(5 * time.Minute),
		},
		{
			name:          "spacing elapsed leaves capacity alone",
			run:           domain.Run{MinSpacingMinutes: 5},
			counts:        sendCounts{LastSentAt: &stale},
			wantAvailable: defaultDispatchBatch,
		},
		{
			name:     "daily exhaustion wins over spacing",
			run:      domain.Run{DailyCap: 2, MinSpacingMinutes: 5},
			counts:   sendCounts{SentToday: 2, LastSentAt: &recent},
			wantWait: nextMidnight,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			available, waitUntil := remainingCapacity(tt.run, tt.counts, now)
			if available != tt.wantAvailable {
				t.Errorf("available = %d, want %d", available, tt.wantAvailable)
			}
			if !waitUntil.Equal(tt.wantWait) {
				t.Errorf("waitUntil = %v, want %v", waitUntil, tt.wantWait)
			}
		})
	}
}

func TestRemainingCapacityNeverExceedsHourlyCap(t *testing.T) {
	run := domain.Run{HourlyCap: 8}
	for sent := 0; sent <= 10; sent++ {
		available, _ := remainingCapacity(run, sendCounts{SentLastHour: sent}, time.Now().UTC())
		if sent+available > run.HourlyCap && available > 0 {
			t.Errorf("sent=%d: available %d would exceed hourly cap %d", sent, available, run.HourlyCap)
		}
	}
}
