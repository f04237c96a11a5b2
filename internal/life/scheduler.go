// Package life runs the always-on "what should I be doing right now" loop:
// reactive event handling, time-of-day routines and slow goal pursuit, with a
// hard daily cap on LLM calls.
package life

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/genesis-minds/genesis/internal/llm"
	"github.com/genesis-minds/genesis/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config defines the scheduler loop intervals.
type Config struct {
	// EventIdleSleep is how long the event loop sleeps when the queue is empty.
	EventIdleSleep time.Duration
	// RoutineInterval is how often the active routine is re-evaluated.
	RoutineInterval time.Duration
	// GoalInterval is how often the goal loop works on the selected goal.
	GoalInterval time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		EventIdleSleep:  time.Second,
		RoutineInterval: time.Minute,
		GoalInterval:    15 * time.Minute,
	}
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	State           models.LifeState `json:"state"`
	Energy          float64          `json:"energy"`
	ActiveRoutine   string           `json:"active_routine,omitempty"`
	ActiveGoal      string           `json:"active_goal,omitempty"`
	BudgetRemaining int              `json:"budget_remaining"`
	QueueDepth      int              `json:"queue_depth"`
	Running         bool             `json:"running"`
}

// Scheduler blends scheduled routines with reactive events. Exceptions in
// loop iterations are recovered and logged; the scheduler never crashes the
// daemon.
type Scheduler struct {
	thinker llm.Thinker
	budget  *llm.Budget
	config  Config
	log     *slog.Logger

	mu            sync.Mutex
	state         models.LifeState
	energy        float64
	routines      []models.Routine
	goals         []*models.Goal
	activeRoutine string
	activeGoal    string
	running       bool
	queue         *eventQueue

	// onStateChange, when set, observes life-state transitions.
	onStateChange func(from, to models.LifeState)

	// nowFunc is swappable so tests control the clock.
	nowFunc func() time.Time

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a scheduler with the default routine set registered.
func New(thinker llm.Thinker, budget *llm.Budget, cfg Config) *Scheduler {
	if cfg.EventIdleSleep <= 0 {
		cfg.EventIdleSleep = DefaultConfig().EventIdleSleep
	}
	if cfg.RoutineInterval <= 0 {
		cfg.RoutineInterval = DefaultConfig().RoutineInterval
	}
	if cfg.GoalInterval <= 0 {
		cfg.GoalInterval = DefaultConfig().GoalInterval
	}

	s := &Scheduler{
		thinker: thinker,
		budget:  budget,
		config:  cfg,
		log:     slog.With("component", "life"),
		state:   models.StateIdle,
		energy:  0.8,
		queue:   newEventQueue(),
		nowFunc: time.Now,
	}
	s.registerDefaultRoutines()
	return s
}

// registerDefaultRoutines installs the built-in daily windows. Registration
// order matters: the first matching window wins, so the wrapping night
// routine goes last.
func (s *Scheduler) registerDefaultRoutines() {
	mustTime := func(v string) models.TimeOfDay {
		t, err := models.ParseTimeOfDay(v)
		if err != nil {
			panic(err)
		}
		return t
	}
	s.routines = []models.Routine{
		{Name: "morning_routine", Start: mustTime("06:00"), End: mustTime("09:00"), TargetState: models.StateWakingUp, Activities: []string{"review_goals", "check_messages"}, Frequency: "daily", WarrantsLLM: true},
		{Name: "work_hours", Start: mustTime("09:00"), End: mustTime("18:00"), TargetState: models.StateActive, Activities: []string{"pursue_goals", "learn"}, Frequency: "daily"},
		{Name: "evening_winddown", Start: mustTime("18:00"), End: mustTime("22:00"), TargetState: models.StateContemplating, Activities: []string{"reflect", "socialize"}, Frequency: "daily"},
		{Name: "night_sleep", Start: mustTime("22:00"), End: mustTime("05:59"), TargetState: models.StateSleeping, Activities: []string{"dream"}, Frequency: "daily"},
	}
}

// SetStateChangeHook registers an observer for life-state transitions. Must
// be called before Start.
func (s *Scheduler) SetStateChangeHook(hook func(from, to models.LifeState)) {
	s.onStateChange = hook
}

// SetNowFunc overrides the clock, for tests.
func (s *Scheduler) SetNowFunc(f func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFunc = f
}

// Start launches the event, routine and goal loops.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	s.group = g
	g.Go(func() error { return s.loop(ctx, "events", 0, s.eventTick) })
	g.Go(func() error { return s.loop(ctx, "routines", s.config.RoutineInterval, s.routineTick) })
	g.Go(func() error { return s.loop(ctx, "goals", s.config.GoalInterval, s.goalTick) })

	s.log.Info("life scheduler started")
}

// Stop signals all loops to exit at their next iteration boundary and waits
// for them. In-flight event handling is not cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		_ = s.group.Wait()
	}
	s.log.Info("life scheduler stopped")
}

// AddEvent enqueues a stimulus. Priority is clamped to [1,10]; a zero
// timestamp is filled in.
func (s *Scheduler) AddEvent(e models.Event) {
	if e.Priority < 1 {
		e.Priority = 1
	}
	if e.Priority > 10 {
		e.Priority = 10
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.queue.push(e)
}

// AddGoal registers a goal.
func (s *Scheduler) AddGoal(g models.Goal) *models.Goal {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, &g)
	return &g
}

// AddRoutine registers a routine after the defaults.
func (s *Scheduler) AddRoutine(r models.Routine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routines = append(s.routines, r)
}

// State returns the current life state.
func (s *Scheduler) State() models.LifeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GetStatus returns a snapshot of the scheduler.
func (s *Scheduler) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		State:           s.state,
		Energy:          s.energy,
		ActiveRoutine:   s.activeRoutine,
		ActiveGoal:      s.activeGoal,
		BudgetRemaining: s.budget.Remaining(),
		QueueDepth:      s.queue.depth(),
		Running:         s.running,
	}
}

// loop runs tick forever, recovering panics so a bad iteration can never
// take the scheduler down. interval 0 means the tick controls its own pacing.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, tick func(ctx context.Context) time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		sleep := s.safeTick(ctx, name, interval, tick)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// safeTick runs one iteration with panic recovery. A recovered iteration
// sleeps briefly before the loop continues.
func (s *Scheduler) safeTick(ctx context.Context, name string, interval time.Duration, tick func(ctx context.Context) time.Duration) (sleep time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler loop iteration panicked", "loop", name, "panic", r)
			sleep = time.Second
		}
	}()

	sleep = tick(ctx)
	if sleep <= 0 {
		sleep = interval
	}
	if sleep <= 0 {
		sleep = time.Second
	}
	return sleep
}

// eventTick drains one event per iteration; the queue orders by priority.
func (s *Scheduler) eventTick(ctx context.Context) time.Duration {
	e, ok := s.queue.pop()
	if !ok {
		return s.config.EventIdleSleep
	}
	s.handleEvent(ctx, e)
	// Immediately service the next event when the queue is non-empty.
	return time.Millisecond
}

// handleEvent dispatches on the closed event type set.
func (s *Scheduler) handleEvent(ctx context.Context, e models.Event) {
	switch e.Type {
	case models.EventUserMessage:
		s.handleUserMessage(ctx, e)
	case models.EventEmotionalShift:
		s.handleEmotionalShift(ctx, e)
	case models.EventScheduledTrigger:
		s.handleScheduledTrigger(ctx, e)
	case models.EventGoalCheckpoint:
		s.handleGoalCheckpoint(ctx, e)
	case models.EventTimeBased:
		s.handleTimeBased(ctx, e)
	default:
		// Unknown types are rejected at the API boundary.
		s.log.Warn("dropping event of unknown type", "type", e.Type)
	}
}

// handleUserMessage forces socializing for the duration of handling, then
// reverts to the prior state.
func (s *Scheduler) handleUserMessage(ctx context.Context, e models.Event) {
	prev := s.setState(models.StateSocializing)
	defer s.setState(prev)

	if s.useLLM(e) {
		s.think(ctx, fmt.Sprintf("A user said: %q. Consider how to respond.", e.Data["message"]))
	}
}

// handleEmotionalShift moves an idle mind into contemplation when the shift
// is intense enough.
func (s *Scheduler) handleEmotionalShift(ctx context.Context, e models.Event) {
	intensity, _ := strconv.ParseFloat(e.Data["intensity"], 64)
	if s.State() == models.StateIdle && intensity >= 0.7 {
		s.setState(models.StateContemplating)
	}
	if s.useLLM(e) {
		s.think(ctx, fmt.Sprintf("Emotional shift toward %q (intensity %.2f). Reflect briefly.", e.Data["emotion"], intensity))
	}
}

func (s *Scheduler) handleScheduledTrigger(ctx context.Context, e models.Event) {
	if s.useLLM(e) {
		s.think(ctx, fmt.Sprintf("Scheduled trigger %q fired. Decide what to do.", e.Data["activity"]))
	}
}

// handleGoalCheckpoint re-selects the goal to pursue.
func (s *Scheduler) handleGoalCheckpoint(ctx context.Context, e models.Event) {
	goal := s.selectGoal()

	s.mu.Lock()
	if goal != nil {
		s.activeGoal = goal.ID
	} else {
		s.activeGoal = ""
	}
	s.mu.Unlock()

	if goal != nil && s.useLLM(e) {
		s.think(ctx, fmt.Sprintf("Checkpoint for goal %q (progress %.0f%%). Assess next steps.", goal.Description, goal.Progress*100))
	}
}

// handleTimeBased is the dream pathway: a sleeping mind only spends LLM
// budget on time-based dream events.
func (s *Scheduler) handleTimeBased(ctx context.Context, e models.Event) {
	if e.Data["kind"] == "dream" && s.State() == models.StateSleeping {
		prev := s.setState(models.StateDreaming)
		if s.useLLM(e) {
			s.think(ctx, "Generate a short dream fragment from recent experiences.")
		}
		s.setState(prev)
	}
}

// useLLM decides whether an event warrants a full LLM call. Check order is
// significant: budget exhaustion always wins, explicit flags and high
// priority override the sleeping/default rules.
func (s *Scheduler) useLLM(e models.Event) bool {
	if s.budget.Remaining() == 0 {
		return false
	}
	if e.Priority >= 8 || e.RequiresLLM {
		return true
	}
	if e.Type == models.EventUserMessage {
		return true
	}
	if s.State() == models.StateSleeping {
		return e.Type == models.EventTimeBased && e.Data["kind"] == "dream"
	}
	return false
}

// think consumes one budgeted call. Failures are logged and swallowed; the
// loops keep running.
func (s *Scheduler) think(ctx context.Context, prompt string) {
	if s.thinker == nil || !s.budget.TryAcquire() {
		return
	}
	if _, err := s.thinker.Think(ctx, prompt, "You are a Genesis mind living its background life. Be brief."); err != nil {
		s.log.Warn("llm call failed", "error", err)
	}
}

// routineTick enters the first routine whose window contains the current
// time of day. No match means no forced transition.
func (s *Scheduler) routineTick(ctx context.Context) time.Duration {
	now := models.TimeOfDayFrom(s.now())

	s.mu.Lock()
	routines := make([]models.Routine, len(s.routines))
	copy(routines, s.routines)
	current := s.activeRoutine
	s.mu.Unlock()

	for _, r := range routines {
		if !r.Contains(now) {
			continue
		}
		if r.Name == current {
			return 0
		}

		s.mu.Lock()
		s.activeRoutine = r.Name
		s.mu.Unlock()

		s.setState(r.TargetState)
		s.log.Info("entered routine", "routine", r.Name, "state", r.TargetState)
		if r.WarrantsLLM && s.budget.Remaining() > 0 {
			s.think(ctx, fmt.Sprintf("Entering routine %q (%s). Plan the activities: %v.", r.Name, r.TargetState, r.Activities))
		}
		return 0
	}

	s.mu.Lock()
	s.activeRoutine = ""
	s.mu.Unlock()
	return 0
}

// goalTick works on the selected goal, but only while active or focused.
func (s *Scheduler) goalTick(ctx context.Context) time.Duration {
	state := s.State()
	if state != models.StateActive && state != models.StateFocused {
		return 0
	}

	goal := s.selectGoal()
	if goal == nil {
		return 0
	}

	s.mu.Lock()
	s.activeGoal = goal.ID
	goal.Progress = min(1.0, goal.Progress+0.05)
	s.energy = max(0.0, s.energy-0.01)
	progress := goal.Progress
	s.mu.Unlock()

	s.log.Debug("worked on goal", "goal", goal.Description, "progress", progress)
	if s.budget.Remaining() > 0 {
		s.think(ctx, fmt.Sprintf("Work on the goal %q (progress %.0f%%). What is the next concrete step?", goal.Description, progress*100))
	}
	return 0
}

// selectGoal picks the unfinished goal with the nearest deadline, breaking
// ties toward the least-progressed goal. A nil deadline sorts last.
func (s *Scheduler) selectGoal() *models.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*models.Goal
	for _, g := range s.goals {
		if g.Progress < 1.0 {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := candidates[i].Deadline, candidates[j].Deadline
		switch {
		case di != nil && dj != nil && !di.Equal(*dj):
			return di.Before(*dj)
		case di != nil && dj == nil:
			return true
		case di == nil && dj != nil:
			return false
		}
		return candidates[i].Progress < candidates[j].Progress
	})
	return candidates[0]
}

// setState transitions the life state, returning the previous state.
func (s *Scheduler) setState(to models.LifeState) models.LifeState {
	s.mu.Lock()
	from := s.state
	s.state = to
	hook := s.onStateChange
	s.mu.Unlock()

	if from != to {
		s.log.Debug("life state changed", "from", from, "to", to)
		if hook != nil {
			hook(from, to)
		}
	}
	return from
}

func (s *Scheduler) now() time.Time {
	s.mu.Lock()
	f := s.nowFunc
	s.mu.Unlock()
	return f()
}
