package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the Genesis API
type Client struct {
	baseURL    string
	requester  string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	hostname, _ := os.Hostname()
	return &Client{
		baseURL:   baseURL,
		requester: fmt.Sprintf("tui@%s", hostname),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ListTasks fetches tasks from the API
func (c *Client) ListTasks() ([]TaskItem, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/tasks")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var result struct {
		Tasks []struct {
			ID         string  `json:"id"`
			Request    string  `json:"request"`
			Status     string  `json:"status"`
			Progress   float64 `json:"progress"`
			RetryCount int     `json:"retry_count"`
		} `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	items := make([]TaskItem, len(result.Tasks))
	for i, t := range result.Tasks {
		items[i] = TaskItem{
			ID:       t.ID,
			Request:  t.Request,
			Status:   t.Status,
			Progress: t.Progress,
			Retries:  t.RetryCount,
		}
	}
	return items, nil
}

// GetTask fetches a single task
func (c *Client) GetTask(id string) (*TaskDetail, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/tasks/" + id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var task struct {
		ID         string  `json:"id"`
		Request    string  `json:"request"`
		Requester  string  `json:"requester"`
		Context    string  `json:"context"`
		Status     string  `json:"status"`
		Progress   float64 `json:"progress"`
		RetryCount int     `json:"retry_count"`
		MaxRetries int     `json:"max_retries"`
		Error      string  `json:"error"`
		Result     *struct {
			Results []string `json:"results"`
		} `json:"result"`
		CreatedAt   string `json:"created_at"`
		CompletedAt string `json:"completed_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, err
	}

	detail := &TaskDetail{
		ID:          task.ID,
		Request:     task.Request,
		Requester:   task.Requester,
		Context:     task.Context,
		Status:      task.Status,
		Progress:    task.Progress,
		Retries:     task.RetryCount,
		MaxRetries:  task.MaxRetries,
		Error:       task.Error,
		CreatedAt:   task.CreatedAt,
		CompletedAt: task.CompletedAt,
	}
	if task.Result != nil {
		detail.Results = task.Result.Results
	}
	return detail, nil
}

// SubmitTask submits a new background task
func (c *Client) SubmitTask(request string) (string, error) {
	body := map[string]interface{}{
		"request":   request,
		"requester": c.requester,
	}
	resp, err := c.post("/tasks", body)
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// AddEvent injects an event into the life scheduler
func (c *Client) AddEvent(eventType string, priority int) error {
	body := map[string]interface{}{
		"type":     eventType,
		"priority": priority,
	}
	_, err := c.post("/events", body)
	return err
}

// AddGoal registers a goal
func (c *Client) AddGoal(description string) (string, error) {
	body := map[string]string{
		"description": description,
	}
	resp, err := c.post("/goals", body)
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// LifeStatus fetches the scheduler snapshot
func (c *Client) LifeStatus() (*LifeStatus, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/life/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var status LifeStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/healthz")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}
