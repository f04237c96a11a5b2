package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var lifeCmd = &cobra.Command{
	Use:   "life",
	Short: "Inspect and steer the life scheduler",
}

var lifeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current life state",
	RunE:  runLifeStatus,
}

var lifeEventCmd = &cobra.Command{
	Use:   "event [type]",
	Short: "Inject an event (user_message, scheduled_trigger, goal_checkpoint, emotional_shift, time_based)",
	Args:  cobra.ExactArgs(1),
	RunE:  runLifeEvent,
}

var lifeGoalCmd = &cobra.Command{
	Use:   "goal [description]",
	Short: "Register a long-term goal",
	Args:  cobra.ExactArgs(1),
	RunE:  runLifeGoal,
}

var lifeRoutineCmd = &cobra.Command{
	Use:   "routine [name]",
	Short: "Register a daily routine window",
	Args:  cobra.ExactArgs(1),
	RunE:  runLifeRoutine,
}

var (
	eventPriority int
	eventLLM      bool
	eventData     []string
	goalDeadline  string
	routineStart  string
	routineEnd    string
	routineState  string
	routineLLM    bool
)

func init() {
	lifeCmd.AddCommand(lifeStatusCmd, lifeEventCmd, lifeGoalCmd, lifeRoutineCmd)

	lifeEventCmd.Flags().IntVar(&eventPriority, "priority", 5, "Event priority (1-10)")
	lifeEventCmd.Flags().BoolVar(&eventLLM, "llm", false, "Mark the event as requiring LLM reasoning")
	lifeEventCmd.Flags().StringArrayVar(&eventData, "data", nil, "Event data as key=value pairs")

	lifeGoalCmd.Flags().StringVar(&goalDeadline, "deadline", "", "Deadline in RFC 3339 format")

	lifeRoutineCmd.Flags().StringVar(&routineStart, "start", "", "Window start (HH:MM, required)")
	lifeRoutineCmd.Flags().StringVar(&routineEnd, "end", "", "Window end (HH:MM, required)")
	lifeRoutineCmd.Flags().StringVar(&routineState, "state", "active", "Target life state")
	lifeRoutineCmd.Flags().BoolVar(&routineLLM, "llm", false, "Routine entry warrants an LLM call")
	lifeRoutineCmd.MarkFlagRequired("start")
	lifeRoutineCmd.MarkFlagRequired("end")
}

func runLifeStatus(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/life/status")
	if err != nil {
		return err
	}

	var status map[string]interface{}
	if err := json.Unmarshal(resp, &status); err != nil {
		return err
	}

	fmt.Printf("State:            %s\n", status["state"])
	if energy, ok := status["energy"].(float64); ok {
		fmt.Printf("Energy:           %.2f\n", energy)
	}
	if routine, ok := status["active_routine"].(string); ok && routine != "" {
		fmt.Printf("Active Routine:   %s\n", routine)
	}
	if goal, ok := status["active_goal"].(string); ok && goal != "" {
		fmt.Printf("Active Goal:      %s\n", goal)
	}
	if budget, ok := status["budget_remaining"].(float64); ok {
		fmt.Printf("Budget Remaining: %.0f\n", budget)
	}
	if depth, ok := status["queue_depth"].(float64); ok {
		fmt.Printf("Queue Depth:      %.0f\n", depth)
	}
	return nil
}

func runLifeEvent(cmd *cobra.Command, args []string) error {
	data := map[string]string{}
	for _, kv := range eventData {
		k, v, ok := splitKV(kv)
		if !ok {
			return fmt.Errorf("invalid --data %q, expected key=value", kv)
		}
		data[k] = v
	}

	body := map[string]interface{}{
		"type":         args[0],
		"priority":     eventPriority,
		"requires_llm": eventLLM,
		"data":         data,
	}

	if _, err := apiPost("/events", body); err != nil {
		return err
	}
	fmt.Println("Event queued")
	return nil
}

func runLifeGoal(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"description": args[0],
	}
	if goalDeadline != "" {
		body["deadline"] = goalDeadline
	}

	resp, err := apiPost("/goals", body)
	if err != nil {
		return err
	}

	var goal map[string]interface{}
	if err := json.Unmarshal(resp, &goal); err != nil {
		return err
	}

	fmt.Printf("Registered goal: %s\n", goal["id"])
	return nil
}

func runLifeRoutine(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"name":         args[0],
		"start":        routineStart,
		"end":          routineEnd,
		"state":        routineState,
		"warrants_llm": routineLLM,
	}

	if _, err := apiPost("/routines", body); err != nil {
		return err
	}
	fmt.Printf("Registered routine %s (%s-%s)\n", args[0], routineStart, routineEnd)
	return nil
}

func splitKV(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
