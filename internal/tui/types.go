package tui

// TaskItem is a row in the task list.
type TaskItem struct {
	ID       string
	Request  string
	Status   string
	Progress float64
	Retries  int
}

// TaskDetail holds the full task view.
type TaskDetail struct {
	ID          string
	Request     string
	Requester   string
	Context     string
	Status      string
	Progress    float64
	Retries     int
	MaxRetries  int
	Error       string
	Results     []string
	CreatedAt   string
	CompletedAt string
}

// LifeStatus mirrors the daemon's life status payload.
type LifeStatus struct {
	State           string  `json:"state"`
	Energy          float64 `json:"energy"`
	ActiveRoutine   string  `json:"active_routine"`
	ActiveGoal      string  `json:"active_goal"`
	BudgetRemaining int     `json:"budget_remaining"`
	QueueDepth      int     `json:"queue_depth"`
	Running         bool    `json:"running"`
}
