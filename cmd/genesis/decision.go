package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var decisionCmd = &cobra.Command{
	Use:   "decision",
	Short: "Evaluate autonomous actions and record outcomes",
}

var decisionEvaluateCmd = &cobra.Command{
	Use:   "evaluate [action]",
	Short: "Evaluate whether an autonomous action should proceed",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisionEvaluate,
}

var decisionOutcomeCmd = &cobra.Command{
	Use:   "outcome [decision-id]",
	Short: "Record the observed outcome of a decision",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecisionOutcome,
}

var decisionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent decisions",
	RunE:  runDecisionList,
}

var (
	decisionContext   string
	decisionUserAsked bool
	decisionParams    []string
	outcomeText       string
	outcomeSuccess    bool
	decisionLimit     int
)

func init() {
	decisionCmd.AddCommand(decisionEvaluateCmd, decisionOutcomeCmd, decisionListCmd)

	decisionEvaluateCmd.Flags().StringVar(&decisionContext, "context", "", "Context for the evaluation")
	decisionEvaluateCmd.Flags().BoolVar(&decisionUserAsked, "user-requested", false, "The user explicitly asked for this action")
	decisionEvaluateCmd.Flags().StringArrayVar(&decisionParams, "param", nil, "Action parameters as key=value pairs")

	decisionOutcomeCmd.Flags().StringVar(&outcomeText, "outcome", "", "What actually happened (required)")
	decisionOutcomeCmd.Flags().BoolVar(&outcomeSuccess, "success", false, "The action succeeded")
	decisionOutcomeCmd.MarkFlagRequired("outcome")

	decisionListCmd.Flags().IntVar(&decisionLimit, "limit", 20, "Maximum number of decisions to show")
}

func runDecisionEvaluate(cmd *cobra.Command, args []string) error {
	params := map[string]string{}
	for _, kv := range decisionParams {
		k, v, ok := splitKV(kv)
		if !ok {
			return fmt.Errorf("invalid --param %q, expected key=value", kv)
		}
		params[k] = v
	}

	body := map[string]interface{}{
		"action":         args[0],
		"params":         params,
		"context":        decisionContext,
		"user_requested": decisionUserAsked,
	}

	resp, err := apiPost("/decisions/evaluate", body)
	if err != nil {
		return err
	}

	var d map[string]interface{}
	if err := json.Unmarshal(resp, &d); err != nil {
		return err
	}

	fmt.Printf("Decision:    %s\n", d["id"])
	fmt.Printf("Proceed:     %v\n", d["should_proceed"])
	fmt.Printf("Risk:        %s (%.2f)\n", d["risk"], floatField(d, "risk_score"))
	fmt.Printf("Confidence:  %s (%.2f)\n", d["confidence"], floatField(d, "confidence_score"))
	fmt.Printf("Success Est: %.2f\n", floatField(d, "success_probability"))
	if reasoning, ok := d["reasoning"].(string); ok && reasoning != "" {
		fmt.Printf("Reasoning:   %s\n", reasoning)
	}
	return nil
}

func runDecisionOutcome(cmd *cobra.Command, args []string) error {
	body := map[string]interface{}{
		"outcome": outcomeText,
		"success": outcomeSuccess,
	}

	if _, err := apiPost("/decisions/"+args[0]+"/outcome", body); err != nil {
		return err
	}
	fmt.Printf("Recorded outcome for %s\n", args[0])
	return nil
}

func runDecisionList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet(fmt.Sprintf("/decisions?limit=%d", decisionLimit))
	if err != nil {
		return err
	}

	var result struct {
		Decisions []map[string]interface{} `json:"decisions"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	if len(result.Decisions) == 0 {
		fmt.Println("No decisions recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTION\tPROCEED\tRISK\tCONFIDENCE")
	for _, d := range result.Decisions {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
			truncateID(stringField(d, "id")),
			truncate(stringField(d, "action"), 30),
			d["should_proceed"],
			stringField(d, "risk"),
			stringField(d, "confidence"))
	}
	w.Flush()
	return nil
}

func floatField(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}
