package life

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/genesis-minds/genesis/internal/llm"
	"github.com/genesis-minds/genesis/internal/models"
)

type recordingThinker struct {
	mu      sync.Mutex
	prompts []string
}

func (r *recordingThinker) Think(ctx context.Context, prompt, context_ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	return "ok", nil
}

func (r *recordingThinker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompts)
}

func newTestScheduler(budgetLimit int) (*Scheduler, *recordingThinker) {
	thinker := &recordingThinker{}
	s := New(thinker, llm.NewBudget(budgetLimit), DefaultConfig())
	return s, thinker
}

func atClock(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 28, hour, minute, 0, 0, time.UTC)
	}
}

func TestEventQueuePriorityOrder(t *testing.T) {
	q := newEventQueue()
	q.push(models.Event{Type: models.EventScheduledTrigger, Priority: 3, Data: map[string]string{"n": "low"}})
	q.push(models.Event{Type: models.EventUserMessage, Priority: 9, Data: map[string]string{"n": "high"}})
	q.push(models.Event{Type: models.EventScheduledTrigger, Priority: 3, Data: map[string]string{"n": "low2"}})

	e, ok := q.pop()
	if !ok || e.Data["n"] != "high" {
		t.Errorf("Expected highest priority first, got %v", e.Data)
	}
	// FIFO within equal priority
	e, _ = q.pop()
	if e.Data["n"] != "low" {
		t.Errorf("Expected FIFO within priority, got %v", e.Data)
	}
	e, _ = q.pop()
	if e.Data["n"] != "low2" {
		t.Errorf("Expected FIFO within priority, got %v", e.Data)
	}
	if _, ok := q.pop(); ok {
		t.Error("Expected empty queue")
	}
}

func TestAddEventClampsPriority(t *testing.T) {
	s, _ := newTestScheduler(10)

	s.AddEvent(models.Event{Type: models.EventScheduledTrigger, Priority: 99})
	e, ok := s.queue.pop()
	if !ok {
		t.Fatal("Expected queued event")
	}
	if e.Priority != 10 {
		t.Errorf("Expected priority clamped to 10, got %d", e.Priority)
	}
	if e.Timestamp.IsZero() {
		t.Error("Expected timestamp filled in")
	}

	s.AddEvent(models.Event{Type: models.EventScheduledTrigger, Priority: -4})
	e, _ = s.queue.pop()
	if e.Priority != 1 {
		t.Errorf("Expected priority clamped to 1, got %d", e.Priority)
	}
}

func TestEventTickIdleSleep(t *testing.T) {
	s, _ := newTestScheduler(10)

	if sleep := s.eventTick(context.Background()); sleep != s.config.EventIdleSleep {
		t.Errorf("Expected idle sleep %v on empty queue, got %v", s.config.EventIdleSleep, sleep)
	}

	s.AddEvent(models.Event{Type: models.EventScheduledTrigger, Priority: 5})
	if sleep := s.eventTick(context.Background()); sleep != time.Millisecond {
		t.Errorf("Expected immediate re-poll after handling, got %v", sleep)
	}
}

func TestUseLLMBudgetExhaustedWinsOverPriority(t *testing.T) {
	s, _ := newTestScheduler(0)

	e := models.Event{Type: models.EventUserMessage, Priority: 10, RequiresLLM: true}
	if s.useLLM(e) {
		t.Error("Exhausted budget must veto even a priority-10 user message")
	}
}

func TestUseLLMHighPriorityAndFlag(t *testing.T) {
	s, _ := newTestScheduler(10)

	if !s.useLLM(models.Event{Type: models.EventScheduledTrigger, Priority: 8}) {
		t.Error("Priority >= 8 warrants an LLM call")
	}
	if !s.useLLM(models.Event{Type: models.EventScheduledTrigger, Priority: 2, RequiresLLM: true}) {
		t.Error("RequiresLLM warrants an LLM call")
	}
	if !s.useLLM(models.Event{Type: models.EventUserMessage, Priority: 2}) {
		t.Error("User messages always warrant an LLM call when budget allows")
	}
	if s.useLLM(models.Event{Type: models.EventScheduledTrigger, Priority: 5}) {
		t.Error("Ordinary mid-priority events do not warrant an LLM call")
	}
}

func TestUseLLMWhileSleeping(t *testing.T) {
	s, _ := newTestScheduler(10)
	s.setState(models.StateSleeping)

	dream := models.Event{Type: models.EventTimeBased, Priority: 3, Data: map[string]string{"kind": "dream"}}
	if !s.useLLM(dream) {
		t.Error("A sleeping mind still dreams")
	}

	other := models.Event{Type: models.EventTimeBased, Priority: 3, Data: map[string]string{"kind": "tick"}}
	if s.useLLM(other) {
		t.Error("Non-dream time events are ignored while sleeping")
	}
	if s.useLLM(models.Event{Type: models.EventGoalCheckpoint, Priority: 3}) {
		t.Error("Goal checkpoints are ignored while sleeping")
	}
}

func TestHandleUserMessageRevertsState(t *testing.T) {
	s, thinker := newTestScheduler(10)

	var transitions []models.LifeState
	s.SetStateChangeHook(func(from, to models.LifeState) {
		transitions = append(transitions, to)
	})

	s.handleUserMessage(context.Background(), models.Event{
		Type: models.EventUserMessage,
		Data: map[string]string{"message": "hello"},
	})

	if s.State() != models.StateIdle {
		t.Errorf("Expected state to revert to idle, got %s", s.State())
	}
	if len(transitions) != 2 || transitions[0] != models.StateSocializing {
		t.Errorf("Expected socializing then revert, got %v", transitions)
	}
	if thinker.count() != 1 {
		t.Errorf("Expected one LLM call for the user message, got %d", thinker.count())
	}
}

func TestHandleEmotionalShift(t *testing.T) {
	s, _ := newTestScheduler(10)

	s.handleEmotionalShift(context.Background(), models.Event{
		Type: models.EventEmotionalShift,
		Data: map[string]string{"emotion": "melancholy", "intensity": "0.5"},
	})
	if s.State() != models.StateIdle {
		t.Errorf("Mild shift should not change state, got %s", s.State())
	}

	s.handleEmotionalShift(context.Background(), models.Event{
		Type: models.EventEmotionalShift,
		Data: map[string]string{"emotion": "awe", "intensity": "0.9"},
	})
	if s.State() != models.StateContemplating {
		t.Errorf("Intense shift from idle should contemplate, got %s", s.State())
	}
}

func TestHandleTimeBasedDream(t *testing.T) {
	s, thinker := newTestScheduler(10)
	s.setState(models.StateSleeping)

	s.handleTimeBased(context.Background(), models.Event{
		Type: models.EventTimeBased,
		Data: map[string]string{"kind": "dream"},
	})

	if s.State() != models.StateSleeping {
		t.Errorf("Expected to return to sleeping after the dream, got %s", s.State())
	}
	if thinker.count() != 1 {
		t.Errorf("Expected one dream LLM call, got %d", thinker.count())
	}

	// Awake minds do not dream on time events.
	s.setState(models.StateIdle)
	s.handleTimeBased(context.Background(), models.Event{
		Type: models.EventTimeBased,
		Data: map[string]string{"kind": "dream"},
	})
	if thinker.count() != 1 {
		t.Error("Dream pathway should only run while sleeping")
	}
}

func TestRoutineTickEntersWindow(t *testing.T) {
	s, _ := newTestScheduler(10)
	s.SetNowFunc(atClock(10, 30))

	s.routineTick(context.Background())

	status := s.GetStatus()
	if status.ActiveRoutine != "work_hours" {
		t.Errorf("Expected work_hours at 10:30, got %q", status.ActiveRoutine)
	}
	if status.State != models.StateActive {
		t.Errorf("Expected active state, got %s", status.State)
	}
}

func TestRoutineTickWraparoundWindow(t *testing.T) {
	s, _ := newTestScheduler(10)

	for _, tc := range []struct {
		hour, minute int
		want         string
	}{
		{23, 30, "night_sleep"},
		{3, 0, "night_sleep"},
		{12, 0, "work_hours"},
	} {
		s.SetNowFunc(atClock(tc.hour, tc.minute))
		s.routineTick(context.Background())
		if got := s.GetStatus().ActiveRoutine; got != tc.want {
			t.Errorf("At %02d:%02d expected routine %q, got %q", tc.hour, tc.minute, tc.want, got)
		}
	}
}

func TestRoutineTickIdempotentWithinWindow(t *testing.T) {
	s, thinker := newTestScheduler(10)
	s.SetNowFunc(atClock(7, 0))

	// morning_routine warrants an LLM call on entry, but only once.
	s.routineTick(context.Background())
	s.routineTick(context.Background())

	if thinker.count() != 1 {
		t.Errorf("Expected a single entry LLM call, got %d", thinker.count())
	}
}

func TestGoalTickRequiresActiveState(t *testing.T) {
	s, _ := newTestScheduler(10)
	goal := s.AddGoal(models.Goal{Description: "learn sqlite internals"})

	s.goalTick(context.Background())
	if s.GetStatus().ActiveGoal != "" {
		t.Error("Idle mind should not work on goals")
	}

	s.setState(models.StateActive)
	s.goalTick(context.Background())

	status := s.GetStatus()
	if status.ActiveGoal != goal.ID {
		t.Errorf("Expected active goal %s, got %q", goal.ID, status.ActiveGoal)
	}

	s.mu.Lock()
	progress := s.goals[0].Progress
	energy := s.energy
	s.mu.Unlock()
	if progress != 0.05 {
		t.Errorf("Expected progress 0.05 after one tick, got %f", progress)
	}
	if energy >= 0.8 {
		t.Errorf("Expected energy drain, got %f", energy)
	}
}

func TestSelectGoalDeadlineThenProgress(t *testing.T) {
	s, _ := newTestScheduler(10)

	near := time.Now().Add(24 * time.Hour)
	far := time.Now().Add(72 * time.Hour)

	s.AddGoal(models.Goal{Description: "no deadline", Progress: 0.1})
	s.AddGoal(models.Goal{Description: "far deadline", Deadline: &far})
	nearGoal := s.AddGoal(models.Goal{Description: "near deadline", Deadline: &near})

	if got := s.selectGoal(); got.ID != nearGoal.ID {
		t.Errorf("Expected nearest deadline to win, got %q", got.Description)
	}

	// Same deadline: least progress wins.
	s2, _ := newTestScheduler(10)
	s2.AddGoal(models.Goal{Description: "further along", Deadline: &near, Progress: 0.6})
	behind := s2.AddGoal(models.Goal{Description: "behind", Deadline: &near, Progress: 0.2})
	if got := s2.selectGoal(); got.ID != behind.ID {
		t.Errorf("Expected least progress to win the tie, got %q", got.Description)
	}

	// Finished goals are skipped.
	s3, _ := newTestScheduler(10)
	s3.AddGoal(models.Goal{Description: "done", Progress: 1.0})
	if got := s3.selectGoal(); got != nil {
		t.Errorf("Expected no candidate, got %q", got.Description)
	}
}

func TestSafeTickRecoversPanic(t *testing.T) {
	s, _ := newTestScheduler(10)

	sleep := s.safeTick(context.Background(), "test", time.Minute, func(ctx context.Context) time.Duration {
		panic("tick blew up")
	})
	if sleep != time.Second {
		t.Errorf("Expected 1s recovery sleep, got %v", sleep)
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler(10)

	s.Start(context.Background())
	if !s.GetStatus().Running {
		t.Error("Expected scheduler to report running")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if s.GetStatus().Running {
		t.Error("Expected scheduler to report stopped")
	}
}
