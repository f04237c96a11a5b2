// Package controlplane provides the HTTP API and service layer for Genesis.
package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/genesis-minds/genesis/internal/decision"
	"github.com/genesis-minds/genesis/internal/executor"
	"github.com/genesis-minds/genesis/internal/life"
	"github.com/genesis-minds/genesis/internal/models"
	"github.com/genesis-minds/genesis/internal/store"
)

// taskCacheTTL bounds how stale a cached task snapshot may be.
const taskCacheTTL = 2 * time.Second

// Service provides the control plane business logic on top of the executor,
// the life scheduler and the decision scorer.
type Service struct {
	store     *store.Store
	executor  *executor.Executor
	scheduler *life.Scheduler
	scorer    *decision.HeuristicScorer
	taskCache *ristretto.Cache[string, []byte]
}

// NewService creates a new control plane service. The task snapshot cache
// absorbs hot polling from the TUI and CLI.
func NewService(s *store.Store, exec *executor.Executor, sched *life.Scheduler, scorer *decision.HeuristicScorer) (*Service, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     1 << 20, // 1 MB of cached snapshots
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create task cache: %w", err)
	}

	return &Service{
		store:     s,
		executor:  exec,
		scheduler: sched,
		scorer:    scorer,
		taskCache: cache,
	}, nil
}

// Close releases service resources.
func (s *Service) Close() {
	s.taskCache.Close()
}

// --- Task Operations ---

// SubmitTask enqueues a background task.
func (s *Service) SubmitTask(request, requester, taskCtx string, notify bool) (*models.Task, error) {
	return s.executor.Submit(request, executor.SubmitOptions{
		Requester: requester,
		Context:   taskCtx,
		Notify:    notify,
	})
}

// GetTask retrieves a task snapshot by ID, serving recent lookups from the
// in-process cache. Falls back to the durable store for tasks already
// evicted from the executor's history. Returns nil when unknown.
func (s *Service) GetTask(id string) (*models.Task, error) {
	if data, ok := s.taskCache.Get(id); ok {
		var t models.Task
		if err := json.Unmarshal(data, &t); err == nil {
			return &t, nil
		}
	}

	task := s.executor.Get(id)
	if task == nil {
		stored, err := s.store.GetTask(id)
		if err != nil {
			return nil, err
		}
		task = stored
	}
	if task == nil {
		return nil, nil
	}

	// Only terminal snapshots are cacheable; in-flight tasks change.
	if task.Status.Terminal() {
		if data, err := json.Marshal(task); err == nil {
			s.taskCache.SetWithTTL(task.ID, data, int64(len(data)), taskCacheTTL)
		}
	}
	return task, nil
}

// ListTasks returns active tasks followed by recent completed ones,
// optionally filtered by requester.
func (s *Service) ListTasks(requester string, limit int) []*models.Task {
	if requester != "" {
		tasks := s.executor.ListForRequester(requester)
		if limit > 0 && len(tasks) > limit {
			tasks = tasks[:limit]
		}
		return tasks
	}

	tasks := s.executor.ListActive()
	tasks = append(tasks, s.executor.ListCompleted(limit)...)
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks
}

// ListRecoveredTasks returns tasks reloaded from the store after a restart.
func (s *Service) ListRecoveredTasks() []*models.Task {
	return s.executor.ListRecovered()
}

// --- Life Operations ---

// AddEvent validates and enqueues a stimulus for the scheduler.
func (s *Service) AddEvent(e models.Event) error {
	if !models.ValidEventType(e.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	s.scheduler.AddEvent(e)
	return nil
}

// AddGoal registers a goal with the scheduler.
func (s *Service) AddGoal(g models.Goal) *models.Goal {
	return s.scheduler.AddGoal(g)
}

// AddRoutine registers a routine. The window strings use "HH:MM".
func (s *Service) AddRoutine(name, start, end string, state models.LifeState, activities []string, warrantsLLM bool) (*models.Routine, error) {
	startT, err := models.ParseTimeOfDay(start)
	if err != nil {
		return nil, err
	}
	endT, err := models.ParseTimeOfDay(end)
	if err != nil {
		return nil, err
	}

	r := models.Routine{
		Name:        name,
		Start:       startT,
		End:         endT,
		TargetState: state,
		Activities:  activities,
		Frequency:   "daily",
		WarrantsLLM: warrantsLLM,
	}
	s.scheduler.AddRoutine(r)
	return &r, nil
}

// LifeStatus returns the scheduler snapshot.
func (s *Service) LifeStatus() life.Status {
	return s.scheduler.GetStatus()
}

// --- Decision Operations ---

// EvaluateAction scores a proposed autonomous action.
func (s *Service) EvaluateAction(ctx context.Context, action string, params map[string]string, evalCtx string, userRequested bool) *models.Decision {
	return s.scorer.Evaluate(ctx, action, params, evalCtx, userRequested)
}

// RecordOutcome reports the observed outcome for a prior decision.
func (s *Service) RecordOutcome(decisionID, outcome string, success bool) error {
	if err := s.scorer.RecordOutcome(decisionID, outcome, success); err != nil {
		if errors.Is(err, decision.ErrDecisionNotFound) {
			return ErrDecisionNotFound
		}
		return err
	}
	return nil
}

// ListDecisions returns the rolling decision history, newest last.
func (s *Service) ListDecisions(limit int) []*models.Decision {
	return s.scorer.History(limit)
}

// --- Conversation Operations ---

// ListConversation returns the persistent conversation log for a requester.
func (s *Service) ListConversation(requester string, limit int) ([]models.ConversationEntry, error) {
	return s.store.ListConversation(requester, limit)
}

// Ping checks the database connection.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
