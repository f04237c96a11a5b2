// Package executor runs background tasks off the caller's critical path with
// durable status tracking and retry on transient failure.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/genesis-minds/genesis/internal/mind"
	"github.com/genesis-minds/genesis/internal/models"
	"github.com/genesis-minds/genesis/internal/notify"
	"github.com/genesis-minds/genesis/internal/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Config defines the executor configuration.
type Config struct {
	// MaxRetries is the retry ceiling applied to new tasks.
	MaxRetries int
	// BackoffCap bounds the exponential backoff between attempts.
	BackoffCap time.Duration
	// CompletedHistory bounds the in-memory ring of finished tasks.
	CompletedHistory int
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:       2,
		BackoffCap:       60 * time.Second,
		CompletedHistory: 100,
	}
}

// SubmitOptions carries the optional fields of a task submission.
type SubmitOptions struct {
	Requester string
	Context   string
	Notify    bool
}

// Executor accepts task submissions and drives each through its lifecycle in
// a dedicated worker goroutine. A task is mutated only by its worker.
type Executor struct {
	store   *store.Store
	handler mind.Handler
	deliver *notify.Fallback
	config  Config
	log     *slog.Logger

	mu        sync.Mutex
	active    map[string]*models.Task
	completed []*models.Task // ring, newest last
	recovered []string       // ids reloaded after a restart

	// onTransition, when set, observes every persisted status change.
	onTransition func(task *models.Task)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sleep is swappable so tests do not wait out real backoffs.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an executor and reloads unfinished tasks from the store into
// the active set. Recovered tasks are not re-run; callers inspect them via
// ListRecovered and decide what to do.
func New(s *store.Store, handler mind.Handler, deliver *notify.Fallback, cfg Config) (*Executor, error) {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultConfig().BackoffCap
	}
	if cfg.CompletedHistory <= 0 {
		cfg.CompletedHistory = DefaultConfig().CompletedHistory
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		store:   s,
		handler: handler,
		deliver: deliver,
		config:  cfg,
		log:     slog.With("component", "executor"),
		active:  make(map[string]*models.Task),
		ctx:     ctx,
		cancel:  cancel,
		sleep:   sleepCtx,
	}

	unfinished, err := s.LoadUnfinishedTasks()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("load unfinished tasks: %w", err)
	}
	for i := range unfinished {
		t := unfinished[i]
		e.active[t.ID] = &t
		e.recovered = append(e.recovered, t.ID)
	}
	if len(e.recovered) > 0 {
		e.log.Info("recovered unfinished tasks from store", "count", len(e.recovered))
	}

	return e, nil
}

// SetTransitionHook registers an observer for status transitions. Must be
// called before any Submit.
func (e *Executor) SetTransitionHook(hook func(task *models.Task)) {
	e.onTransition = hook
}

// Stop waits for in-flight workers to finish. Backoff sleeps are interrupted;
// in-flight handler calls run to completion.
func (e *Executor) Stop() {
	e.cancel()
	e.wg.Wait()
	e.log.Info("executor stopped")
}

// Submit creates a pending task, persists it and schedules its worker. The
// request content is opaque and not validated. Submit fails only when the
// initial persist fails; no worker starts in that case.
func (e *Executor) Submit(request string, opts SubmitOptions) (*models.Task, error) {
	task := &models.Task{
		ID:         uuid.New().String(),
		Request:    request,
		Requester:  opts.Requester,
		Context:    opts.Context,
		Status:     models.TaskStatusPending,
		MaxRetries: e.config.MaxRetries,
		Notify:     opts.Notify,
		CreatedAt:  time.Now().UTC(),
	}

	// The initial persist is authoritative: a task that never reached the
	// store does not exist.
	if err := e.store.SaveTask(task); err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}

	e.mu.Lock()
	e.active[task.ID] = task
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runWorker(task)

	e.log.Info("task submitted", "task_id", task.ID, "requester", task.Requester)
	return task.Clone(), nil
}

// Get returns a snapshot of a task, checking the active set first and then
// the bounded completed history. Persisted-but-evicted tasks are not
// retrievable here; that is a documented limitation.
func (e *Executor) Get(id string) *models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.active[id]; ok {
		return t.Clone()
	}
	for i := len(e.completed) - 1; i >= 0; i-- {
		if e.completed[i].ID == id {
			return e.completed[i].Clone()
		}
	}
	return nil
}

// ListActive returns snapshots of all non-terminal tasks.
func (e *Executor) ListActive() []*models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.Task, 0, len(e.active))
	for _, t := range e.active {
		out = append(out, t.Clone())
	}
	return out
}

// ListCompleted returns up to limit finished tasks, newest first.
func (e *Executor) ListCompleted(limit int) []*models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.completed)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Task, 0, n)
	for i := len(e.completed) - 1; i >= len(e.completed)-n; i-- {
		out = append(out, e.completed[i].Clone())
	}
	return out
}

// ListForRequester returns all known tasks for a requester, active first.
func (e *Executor) ListForRequester(requester string) []*models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*models.Task
	for _, t := range e.active {
		if t.Requester == requester {
			out = append(out, t.Clone())
		}
	}
	for i := len(e.completed) - 1; i >= 0; i-- {
		if e.completed[i].Requester == requester {
			out = append(out, e.completed[i].Clone())
		}
	}
	return out
}

// ListRecovered returns tasks reloaded from the store after a restart.
func (e *Executor) ListRecovered() []*models.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.Task, 0, len(e.recovered))
	for _, id := range e.recovered {
		if t, ok := e.active[id]; ok {
			out = append(out, t.Clone())
		}
	}
	return out
}

// runWorker drives one task from running to a terminal state, retrying with
// capped exponential backoff on transient failure.
func (e *Executor) runWorker(task *models.Task) {
	defer e.wg.Done()

	ctx, span := otel.Tracer("genesis/executor").Start(e.ctx, "executor.run_task")
	defer span.End()
	span.SetAttributes(attribute.String("task.id", task.ID))

	for {
		now := time.Now().UTC()
		e.transition(task, func() {
			task.Status = models.TaskStatusRunning
			task.StartedAt = &now
		})

		result, err := e.attempt(ctx, task)
		if err == nil && result != nil && result.Success {
			e.finish(task, result, "")
			return
		}

		errMsg := "handler reported failure"
		if err != nil {
			errMsg = err.Error()
		} else if result != nil && result.Error != "" {
			errMsg = result.Error
		}

		if task.RetryCount+1 > task.MaxRetries {
			e.mu.Lock()
			task.RetryCount++
			e.mu.Unlock()
			e.finish(task, result, errMsg)
			return
		}

		e.transition(task, func() {
			task.RetryCount++
			task.Status = models.TaskStatusRetrying
			task.Error = errMsg
		})
		e.log.Warn("task attempt failed, backing off",
			"task_id", task.ID, "retry", task.RetryCount, "max_retries", task.MaxRetries, "error", errMsg)

		if err := e.sleep(e.ctx, e.backoff(task.RetryCount)); err != nil {
			// Shutdown during backoff: leave the task in retrying state;
			// it will be recovered on the next start.
			return
		}
	}
}

// attempt invokes the request handler, converting panics into errors so a
// misbehaving handler cannot kill the worker.
func (e *Executor) attempt(ctx context.Context, task *models.Task) (result *models.TaskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	resp, err := e.handler.HandleRequest(ctx, mind.Request{
		Request:   task.Request,
		Requester: task.Requester,
		Context:   task.Context,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("handler returned no response")
	}
	return &models.TaskResult{
		Success:   resp.Success,
		Artifacts: resp.Artifacts,
		Results:   resp.Results,
		Error:     resp.Error,
	}, nil
}

// finish moves the task to its terminal state, persists it, retires it to
// the completed ring and sends the best-effort notification.
func (e *Executor) finish(task *models.Task, result *models.TaskResult, errMsg string) {
	now := time.Now().UTC()
	succeeded := errMsg == ""

	e.transition(task, func() {
		task.CompletedAt = &now
		task.Result = result
		if succeeded {
			task.Status = models.TaskStatusCompleted
			task.Progress = 1.0
			task.Error = ""
		} else {
			task.Status = models.TaskStatusFailed
			task.Error = errMsg
		}
	})

	e.mu.Lock()
	delete(e.active, task.ID)
	e.completed = append(e.completed, task)
	if len(e.completed) > e.config.CompletedHistory {
		e.completed = e.completed[len(e.completed)-e.config.CompletedHistory:]
	}
	e.mu.Unlock()

	if succeeded {
		e.log.Info("task completed", "task_id", task.ID, "retries", task.RetryCount)
	} else {
		e.log.Error("task failed", "task_id", task.ID, "retries", task.RetryCount, "error", errMsg)
	}

	if task.Notify && e.deliver != nil {
		n := notify.Notification{
			Recipient: task.Requester,
			TaskID:    task.ID,
			Level:     notify.LevelInfo,
			Title:     "Task completed",
			Message:   summarize(task),
		}
		if !succeeded {
			n.Level = notify.LevelError
			n.Title = "Task failed"
		}
		e.deliver.Deliver(e.ctx, n)
	}
}

// transition applies a mutation, clamps progress and persists the new state.
// Persist failures after the initial insert are logged only; the in-memory
// state machine keeps going.
func (e *Executor) transition(task *models.Task, mutate func()) {
	e.mu.Lock()
	mutate()
	if task.Progress < 0 {
		task.Progress = 0
	}
	if task.Progress > 1 {
		task.Progress = 1
	}
	snapshot := task.Clone()
	e.mu.Unlock()

	if err := e.store.SaveTask(snapshot); err != nil {
		e.log.Error("persist task transition failed", "task_id", task.ID, "status", snapshot.Status, "error", err)
	}
	if e.onTransition != nil {
		e.onTransition(snapshot)
	}
}

// backoff returns min(2^retry seconds, cap) with ±50% jitter.
func (e *Executor) backoff(retry int) time.Duration {
	d := time.Duration(1<<uint(retry)) * time.Second
	if d > e.config.BackoffCap || d <= 0 {
		d = e.config.BackoffCap
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(d)-int64(half)+1))
}

func summarize(task *models.Task) string {
	if task.Status == models.TaskStatusFailed {
		return fmt.Sprintf("Task %q failed after %d retries: %s", truncate(task.Request, 80), task.RetryCount, task.Error)
	}
	if task.Result != nil && len(task.Result.Results) > 0 {
		return task.Result.Results[0]
	}
	return fmt.Sprintf("Task %q completed", truncate(task.Request, 80))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
