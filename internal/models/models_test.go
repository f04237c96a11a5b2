package models

import (
	"testing"
	"time"
)

func TestTaskStatusTerminal(t *testing.T) {
	for status, terminal := range map[TaskStatus]bool{
		TaskStatusPending:   false,
		TaskStatusRunning:   false,
		TaskStatusRetrying:  false,
		TaskStatusCompleted: true,
		TaskStatusFailed:    true,
	} {
		if status.Terminal() != terminal {
			t.Errorf("%s.Terminal() = %v, want %v", status, status.Terminal(), terminal)
		}
	}
}

func TestTaskCloneIsolation(t *testing.T) {
	started := time.Now().UTC()
	task := &Task{
		ID:        "t1",
		Request:   "work",
		Status:    TaskStatusRunning,
		StartedAt: &started,
		Result:    &TaskResult{Success: true, Results: []string{"a"}},
	}

	cp := task.Clone()
	cp.Status = TaskStatusFailed
	*cp.StartedAt = cp.StartedAt.Add(time.Hour)
	cp.Result.Results[0] = "mutated"

	if task.Status != TaskStatusRunning {
		t.Error("Clone mutation leaked into status")
	}
	if !task.StartedAt.Equal(started) {
		t.Error("Clone mutation leaked into started_at")
	}
	if task.Result.Results[0] != "a" {
		t.Error("Clone mutation leaked into result slice")
	}
}

func TestValidEventType(t *testing.T) {
	for _, et := range []EventType{EventUserMessage, EventScheduledTrigger, EventGoalCheckpoint, EventEmotionalShift, EventTimeBased} {
		if !ValidEventType(et) {
			t.Errorf("%s should be valid", et)
		}
	}
	if ValidEventType("solar_flare") {
		t.Error("Unknown event type should be invalid")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("09:30")
	if err != nil {
		t.Fatalf("ParseTimeOfDay failed: %v", err)
	}
	if got != TimeOfDay(9*60+30) {
		t.Errorf("Expected 570, got %d", got)
	}
	if got.String() != "09:30" {
		t.Errorf("Expected string 09:30, got %s", got.String())
	}

	for _, bad := range []string{"24:00", "12:60", "noon", "-1:30"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestRoutineContains(t *testing.T) {
	day := Routine{Start: TimeOfDay(9 * 60), End: TimeOfDay(18 * 60)}
	if !day.Contains(TimeOfDay(12 * 60)) {
		t.Error("12:00 should be inside 09:00-18:00")
	}
	if day.Contains(TimeOfDay(20 * 60)) {
		t.Error("20:00 should be outside 09:00-18:00")
	}

	// Window crossing midnight
	night := Routine{Start: TimeOfDay(22 * 60), End: TimeOfDay(7 * 60)}
	if !night.Contains(TimeOfDay(23*60 + 30)) {
		t.Error("23:30 should be inside 22:00-07:00")
	}
	if !night.Contains(TimeOfDay(3 * 60)) {
		t.Error("03:00 should be inside 22:00-07:00")
	}
	if night.Contains(TimeOfDay(12 * 60)) {
		t.Error("12:00 should be outside 22:00-07:00")
	}
}

func TestRiskLevelBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0.0, RiskNone},
		{0.19, RiskNone},
		{0.2, RiskLow},
		{0.39, RiskLow},
		{0.4, RiskMedium},
		{0.6, RiskHigh},
		{0.8, RiskCritical},
		{1.0, RiskCritical},
	}
	for _, tc := range cases {
		if got := RiskLevelFor(tc.score); got != tc.want {
			t.Errorf("RiskLevelFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestConfidenceLevelBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  ConfidenceLevel
	}{
		{0.1, ConfidenceVeryLow},
		{0.3, ConfidenceLow},
		{0.5, ConfidenceModerate},
		{0.7, ConfidenceHigh},
		{0.95, ConfidenceVeryHigh},
	}
	for _, tc := range cases {
		if got := ConfidenceLevelFor(tc.score); got != tc.want {
			t.Errorf("ConfidenceLevelFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
