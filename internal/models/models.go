// Package models defines the core domain types for Genesis.
package models

import (
	"fmt"
	"time"
)

// TaskStatus represents the current state of a background task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusRetrying  TaskStatus = "retrying"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is final. Terminal tasks are never
// mutated again.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents one unit of asynchronous, retryable work.
type Task struct {
	ID          string      `json:"id"`
	Request     string      `json:"request"`
	Requester   string      `json:"requester,omitempty"`
	Context     string      `json:"context,omitempty"`
	Status      TaskStatus  `json:"status"`
	Progress    float64     `json:"progress"`
	Result      *TaskResult `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	RetryCount  int         `json:"retry_count"`
	MaxRetries  int         `json:"max_retries"`
	Notify      bool        `json:"notify"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// Clone returns a snapshot copy of the task. Callers receive clones so the
// executing worker remains the only writer.
func (t *Task) Clone() *Task {
	cp := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		cp.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		cp.CompletedAt = &v
	}
	if t.Result != nil {
		r := *t.Result
		r.Artifacts = append([]Artifact(nil), t.Result.Artifacts...)
		r.Results = append([]string(nil), t.Result.Results...)
		cp.Result = &r
	}
	return &cp
}

// TaskResult is the opaque structured payload returned by the request handler.
type TaskResult struct {
	Success   bool       `json:"success"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Results   []string   `json:"results,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Artifact is a named output produced while handling a request.
type Artifact struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

// EventType enumerates the stimuli fed into the life scheduler. The set is
// closed: event handling switches exhaustively over these values.
type EventType string

const (
	EventUserMessage      EventType = "user_message"
	EventScheduledTrigger EventType = "scheduled_trigger"
	EventGoalCheckpoint   EventType = "goal_checkpoint"
	EventEmotionalShift   EventType = "emotional_shift"
	EventTimeBased        EventType = "time_based"
)

// ValidEventType reports whether t is one of the known event types.
func ValidEventType(t EventType) bool {
	switch t {
	case EventUserMessage, EventScheduledTrigger, EventGoalCheckpoint,
		EventEmotionalShift, EventTimeBased:
		return true
	}
	return false
}

// Event is a discrete stimulus for the life scheduler. Events are serviced
// highest priority first and are not persisted.
type Event struct {
	Type        EventType         `json:"type"`
	Data        map[string]string `json:"data,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Priority    int               `json:"priority"` // 1..10, higher first
	RequiresLLM bool              `json:"requires_llm"`
}

// LifeState is the behavioral mode of the life scheduler.
type LifeState string

const (
	StateSleeping      LifeState = "sleeping"
	StateWakingUp      LifeState = "waking_up"
	StateActive        LifeState = "active"
	StateFocused       LifeState = "focused"
	StateIdle          LifeState = "idle"
	StateContemplating LifeState = "contemplating"
	StateSocializing   LifeState = "socializing"
	StateLearning      LifeState = "learning"
	StateDreaming      LifeState = "dreaming"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// TimeOfDayFrom extracts the TimeOfDay from a wall-clock instant.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Routine is a named, recurring time-of-day behavior window. A window wraps
// past midnight when End < Start.
type Routine struct {
	Name        string    `json:"name"`
	Start       TimeOfDay `json:"start"`
	End         TimeOfDay `json:"end"`
	TargetState LifeState `json:"target_state"`
	Activities  []string  `json:"activities,omitempty"`
	Frequency   string    `json:"frequency,omitempty"` // "daily", "weekdays", ...
	WarrantsLLM bool      `json:"warrants_llm"`
}

// Contains reports whether the clock time falls inside the routine window,
// handling windows that cross midnight.
func (r Routine) Contains(now TimeOfDay) bool {
	if r.Start <= r.End {
		return now >= r.Start && now <= r.End
	}
	return now >= r.Start || now <= r.End
}

// Goal is a long-running objective the scheduler works toward.
type Goal struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Progress    float64    `json:"progress"` // 0.0..1.0
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PermissionLevel gates what an autonomous action is allowed to do.
type PermissionLevel string

const (
	PermissionAllowed      PermissionLevel = "allowed"
	PermissionConfirmation PermissionLevel = "requires_confirmation"
	PermissionForbidden    PermissionLevel = "forbidden"
)

// ActionSpec describes a registered autonomous action.
type ActionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	BaseRisk    float64         `json:"base_risk"` // 0.0..1.0
	Permission  PermissionLevel `json:"permission"`
}

// RiskLevel buckets a numeric risk score.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ConfidenceLevel buckets a numeric confidence score.
type ConfidenceLevel string

const (
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceModerate ConfidenceLevel = "moderate"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
)

// RiskLevelFor maps a score in [0,1] to its risk bucket. The thresholds are
// shared with ConfidenceLevelFor: <0.2, <0.4, <0.6, <0.8, else.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score < 0.2:
		return RiskNone
	case score < 0.4:
		return RiskLow
	case score < 0.6:
		return RiskMedium
	case score < 0.8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// ConfidenceLevelFor maps a score in [0,1] to its confidence bucket.
func ConfidenceLevelFor(score float64) ConfidenceLevel {
	switch {
	case score < 0.2:
		return ConfidenceVeryLow
	case score < 0.4:
		return ConfidenceLow
	case score < 0.6:
		return ConfidenceModerate
	case score < 0.8:
		return ConfidenceHigh
	default:
		return ConfidenceVeryHigh
	}
}

// Decision is the structured output of one action evaluation.
type Decision struct {
	ID                 string            `json:"id"`
	Action             string            `json:"action"`
	ShouldProceed      bool              `json:"should_proceed"`
	Confidence         ConfidenceLevel   `json:"confidence"`
	ConfidenceScore    float64           `json:"confidence_score"`
	Risk               RiskLevel         `json:"risk"`
	RiskScore          float64           `json:"risk_score"`
	Reasoning          string            `json:"reasoning"`
	Pros               []string          `json:"pros,omitempty"`
	Cons               []string          `json:"cons,omitempty"`
	Alternatives       []string          `json:"alternatives,omitempty"`
	PredictedOutcome   string            `json:"predicted_outcome,omitempty"`
	SuccessProbability float64           `json:"success_probability"`
	Context            string            `json:"context,omitempty"`
	Parameters         map[string]string `json:"parameters,omitempty"`
	UserRequested      bool              `json:"user_requested"`
	Timestamp          time.Time         `json:"timestamp"`
	Outcome            string            `json:"outcome,omitempty"`
	OutcomeSuccess     *bool             `json:"outcome_success,omitempty"`
}

// ConversationEntry is a line in a mind's persistent conversation log. The
// log doubles as the fallback notification channel.
type ConversationEntry struct {
	ID        string    `json:"id"`
	Requester string    `json:"requester,omitempty"`
	Role      string    `json:"role"` // "system", "mind", "user"
	Content   string    `json:"content"`
	TaskID    string    `json:"task_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
