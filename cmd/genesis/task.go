package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage background tasks",
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit [request]",
	Short: "Submit a background task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskSubmit,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskRecoveredCmd = &cobra.Command{
	Use:   "recovered",
	Short: "List tasks recovered after the last restart",
	RunE:  runTaskRecovered,
}

var (
	taskRequester string
	taskContext   string
	taskNotify    bool
	taskLimit     int
)

func init() {
	taskCmd.AddCommand(taskSubmitCmd, taskListCmd, taskShowCmd, taskRecoveredCmd)

	hostname, _ := os.Hostname()
	defaultRequester := fmt.Sprintf("cli@%s", hostname)

	taskSubmitCmd.Flags().StringVar(&taskRequester, "requester", defaultRequester, "Requester identity")
	taskSubmitCmd.Flags().StringVar(&taskContext, "context", "", "Extra context for the task")
	taskSubmitCmd.Flags().BoolVar(&taskNotify, "notify", false, "Notify the requester on completion")

	taskListCmd.Flags().StringVar(&taskRequester, "requester", "", "Filter by requester")
	taskListCmd.Flags().IntVar(&taskLimit, "limit", 50, "Maximum number of tasks to show")
}

func runTaskSubmit(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"request":   args[0],
		"requester": taskRequester,
		"context":   taskContext,
		"notify":    taskNotify,
	}

	resp, err := apiPost("/tasks", body)
	if err != nil {
		return err
	}

	var task map[string]interface{}
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("Submitted task: %s\n", task["id"])
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("/tasks?limit=%d", taskLimit)
	if taskRequester != "" {
		url += "&requester=" + taskRequester
	}

	resp, err := apiGet(url)
	if err != nil {
		return err
	}

	var result struct {
		Tasks []map[string]interface{} `json:"tasks"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	if len(result.Tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREQUEST\tSTATUS\tPROGRESS\tRETRIES")
	for _, t := range result.Tasks {
		id := truncateID(stringField(t, "id"))
		request := truncate(stringField(t, "request"), 40)
		status := stringField(t, "status")
		progress, _ := t["progress"].(float64)
		retries, _ := t["retry_count"].(float64)
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%.0f\n", id, request, status, progress*100, retries)
	}
	w.Flush()
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tasks/" + args[0])
	if err != nil {
		return err
	}

	var task map[string]interface{}
	if err := json.Unmarshal(resp, &task); err != nil {
		return err
	}

	fmt.Printf("ID:        %s\n", task["id"])
	fmt.Printf("Request:   %s\n", task["request"])
	fmt.Printf("Requester: %s\n", task["requester"])
	fmt.Printf("Status:    %s\n", task["status"])
	if progress, ok := task["progress"].(float64); ok {
		fmt.Printf("Progress:  %.0f%%\n", progress*100)
	}
	if retries, ok := task["retry_count"].(float64); ok && retries > 0 {
		fmt.Printf("Retries:   %.0f\n", retries)
	}
	if errMsg, ok := task["error"].(string); ok && errMsg != "" {
		fmt.Printf("Error:     %s\n", errMsg)
	}
	fmt.Printf("Created:   %s\n", task["created_at"])
	if completed, ok := task["completed_at"].(string); ok && completed != "" {
		fmt.Printf("Completed: %s\n", completed)
	}

	return nil
}

func runTaskRecovered(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/tasks/recovered")
	if err != nil {
		return err
	}

	var result struct {
		Tasks []map[string]interface{} `json:"tasks"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	if len(result.Tasks) == 0 {
		fmt.Println("No recovered tasks")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREQUEST\tSTATUS")
	for _, t := range result.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			truncateID(stringField(t, "id")),
			truncate(stringField(t, "request"), 50),
			stringField(t, "status"))
	}
	w.Flush()
	return nil
}

// --- Helpers ---

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
