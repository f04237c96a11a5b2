package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/genesis-minds/genesis/internal/mind"
	"github.com/genesis-minds/genesis/internal/models"
	"github.com/genesis-minds/genesis/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestExecutor(t *testing.T, s *store.Store, handler mind.Handler, cfg Config) *Executor {
	t.Helper()
	e, err := New(s, handler, nil, cfg)
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	// Tests never wait out real backoffs.
	e.sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	t.Cleanup(e.Stop)
	return e
}

func waitForTerminal(t *testing.T, e *Executor, id string) *models.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if task := e.Get(id); task != nil && task.Status.Terminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Task %s did not reach a terminal state", id)
	return nil
}

func TestSubmitSuccess(t *testing.T) {
	s := newTestStore(t)
	handler := mind.HandlerFunc(func(ctx context.Context, req mind.Request) (*mind.Response, error) {
		return &mind.Response{Success: true, Results: []string{"done: " + req.Request}}, nil
	})
	e := newTestExecutor(t, s, handler, DefaultConfig())

	task, err := e.Submit("summarize inbox", SubmitOptions{Requester: "alice"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if task.Status != models.TaskStatusPending {
		t.Errorf("Expected pending snapshot, got %s", task.Status)
	}

	final := waitForTerminal(t, e, task.ID)
	if final.Status != models.TaskStatusCompleted {
		t.Errorf("Expected completed, got %s (error %q)", final.Status, final.Error)
	}
	if final.Progress != 1.0 {
		t.Errorf("Expected progress 1.0, got %f", final.Progress)
	}
	if final.RetryCount != 0 {
		t.Errorf("Expected no retries, got %d", final.RetryCount)
	}
	if final.Result == nil || len(final.Result.Results) == 0 {
		t.Error("Expected handler results on the task")
	}
	if final.CompletedAt == nil {
		t.Error("Expected completed_at to be set")
	}

	// Terminal state is persisted.
	stored, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if stored == nil || stored.Status != models.TaskStatusCompleted {
		t.Errorf("Expected persisted completed task, got %+v", stored)
	}
}

func TestRetryThenFail(t *testing.T) {
	s := newTestStore(t)
	var attempts atomic.Int32
	handler := mind.HandlerFunc(func(ctx context.Context, req mind.Request) (*mind.Response, error) {
		attempts.Add(1)
		return nil, fmt.Errorf("transient failure")
	})
	e := newTestExecutor(t, s, handler, Config{MaxRetries: 2, CompletedHistory: 10})

	task, err := e.Submit("flaky work", SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	final := waitForTerminal(t, e, task.ID)
	if final.Status != models.TaskStatusFailed {
		t.Errorf("Expected failed, got %s", final.Status)
	}
	// max_retries=2 means the original attempt plus two retries.
	if got := attempts.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
	if final.Error == "" {
		t.Error("Expected error message on failed task")
	}
}

func TestRetryThenSucceed(t *testing.T) {
	s := newTestStore(t)
	var attempts atomic.Int32
	handler := mind.HandlerFunc(func(ctx context.Context, req mind.Request) (*mind.Response, error) {
		if attempts.Add(1) < 3 {
			return &mind.Response{Success: false, Error: "not yet"}, nil
		}
		return &mind.Response{Success: true}, nil
	})
	e := newTestExecutor(t, s, handler, Config{MaxRetries: 2, CompletedHistory: 10})

	task, err := e.Submit("eventually works", SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	final := waitForTerminal(t, e, task.ID)
	if final.Status != models.TaskStatusCompleted {
		t.Errorf("Expected completed, got %s (error %q)", final.Status, final.Error)
	}
	if final.RetryCount != 2 {
		t.Errorf("Expected 2 retries, got %d", final.RetryCount)
	}
	if final.Error != "" {
		t.Errorf("Expected error cleared on success, got %q", final.Error)
	}
}

func TestHandlerPanicDoesNotKillWorker(t *testing.T) {
	s := newTestStore(t)
	handler := mind.HandlerFunc(func(ctx context.Context, req mind.Request) (*mind.Response, error) {
		panic("handler exploded")
	})
	e := newTestExecutor(t, s, handler, Config{MaxRetries: 0, CompletedHistory: 10})

	task, err := e.Submit("boom", SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	final := waitForTerminal(t, e, task.ID)
	if final.Status != models.TaskStatusFailed {
		t.Errorf("Expected failed, got %s", final.Status)
	}
}

func TestCompletedHistoryBounded(t *testing.T) {
	s := newTestStore(t)
	handler := mind.HandlerFunc(func(ctx context.Context, req mind.Request) (*mind.Response, error) {
		return &mind.Response{Success: true}, nil
	})
	e := newTestExecutor(t, s, handler, Config{MaxRetries: 0, CompletedHistory: 2})

	var ids []string
	for i := 0; i < 3; i++ {
		task, err := e.Submit(fmt.Sprintf("task %d", i), SubmitOptions{})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		waitForTerminal(t, e, task.ID)
		ids = append(ids, task.ID)
	}

	if got := len(e.ListCompleted(0)); got != 2 {
		t.Errorf("Expected completed ring of 2, got %d", got)
	}
	// The oldest task fell off the ring but is still in the store.
	if e.Get(ids[0]) != nil {
		t.Error("Expected oldest task evicted from memory")
	}
	stored, err := s.GetTask(ids[0])
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if stored == nil {
		t.Error("Expected evicted task to remain in the store")
	}
}

func TestRecoveryWithoutRerun(t *testing.T) {
	s := newTestStore(t)

	unfinished := &models.Task{
		ID:        "recover-me",
		Request:   "interrupted work",
		Status:    models.TaskStatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveTask(unfinished); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	var called atomic.Bool
	handler := mind.HandlerFunc(func(ctx context.Context, req mind.Request) (*mind.Response, error) {
		called.Store(true)
		return &mind.Response{Success: true}, nil
	})
	e := newTestExecutor(t, s, handler, DefaultConfig())

	recovered := e.ListRecovered()
	if len(recovered) != 1 || recovered[0].ID != "recover-me" {
		t.Fatalf("Expected one recovered task, got %+v", recovered)
	}
	if recovered[0].Status != models.TaskStatusRunning {
		t.Errorf("Recovered task status changed: %s", recovered[0].Status)
	}

	time.Sleep(50 * time.Millisecond)
	if called.Load() {
		t.Error("Recovered task must not be re-run automatically")
	}
}

func TestListForRequester(t *testing.T) {
	s := newTestStore(t)
	handler := mind.HandlerFunc(func(ctx context.Context, req mind.Request) (*mind.Response, error) {
		return &mind.Response{Success: true}, nil
	})
	e := newTestExecutor(t, s, handler, DefaultConfig())

	a, _ := e.Submit("for alice", SubmitOptions{Requester: "alice"})
	b, _ := e.Submit("for bob", SubmitOptions{Requester: "bob"})
	waitForTerminal(t, e, a.ID)
	waitForTerminal(t, e, b.ID)

	got := e.ListForRequester("alice")
	if len(got) != 1 {
		t.Fatalf("Expected 1 task for alice, got %d", len(got))
	}
	if got[0].Request != "for alice" {
		t.Errorf("Unexpected task: %+v", got[0])
	}
}

func TestTransitionHookObservesLifecycle(t *testing.T) {
	s := newTestStore(t)
	handler := mind.HandlerFunc(func(ctx context.Context, req mind.Request) (*mind.Response, error) {
		return &mind.Response{Success: true}, nil
	})
	e, err := New(s, handler, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create executor: %v", err)
	}
	defer e.Stop()

	var mu sync.Mutex
	var seen []models.TaskStatus
	e.SetTransitionHook(func(task *models.Task) {
		mu.Lock()
		seen = append(seen, task.Status)
		mu.Unlock()
	})

	task, err := e.Submit("observable", SubmitOptions{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForTerminal(t, e, task.ID)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 2 {
		t.Fatalf("Expected at least running and completed transitions, got %v", seen)
	}
	if seen[0] != models.TaskStatusRunning {
		t.Errorf("Expected first transition running, got %s", seen[0])
	}
	if seen[len(seen)-1] != models.TaskStatusCompleted {
		t.Errorf("Expected last transition completed, got %s", seen[len(seen)-1])
	}
}

func TestBackoffCappedWithJitter(t *testing.T) {
	s := newTestStore(t)
	handler := mind.HandlerFunc(func(ctx context.Context, req mind.Request) (*mind.Response, error) {
		return &mind.Response{Success: true}, nil
	})
	e := newTestExecutor(t, s, handler, Config{MaxRetries: 2, BackoffCap: 60 * time.Second, CompletedHistory: 10})

	for retry := 1; retry <= 10; retry++ {
		expected := time.Duration(1<<uint(retry)) * time.Second
		if expected > 60*time.Second || expected <= 0 {
			expected = 60 * time.Second
		}
		for i := 0; i < 20; i++ {
			d := e.backoff(retry)
			if d < expected/2 || d > expected {
				t.Fatalf("backoff(%d) = %v outside [%v, %v]", retry, d, expected/2, expected)
			}
		}
	}
}
