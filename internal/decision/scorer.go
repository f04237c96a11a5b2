// Package decision implements the heuristic gate for autonomous actions.
//
// The scorer is deliberately named HeuristicScorer: its "learning" is an
// exponential moving average over keyword matches, not a statistical model.
package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/genesis-minds/genesis/internal/llm"
	"github.com/genesis-minds/genesis/internal/models"
	"github.com/google/uuid"
)

const (
	// ema learning rate for per-action success rates.
	successAlpha = 0.3
	// risk increment applied to an action after a failed outcome.
	failureRiskBump = 0.1
	// rolling decision history size.
	defaultHistorySize = 200
	// failure pattern log size per action.
	failurePatternLimit = 20
)

// destructiveKeywords bump risk when found in action parameters.
var destructiveKeywords = []string{"delete", "permanent", "public", "remove", "irreversible"}

// negativePhrases and positivePhrases drive the should-proceed heuristic.
// Negative phrases outweigh positive ones.
var negativePhrases = []string{"should not", "do not proceed", "too risky", "dangerous"}
var positivePhrases = []string{"should proceed", "safe", "recommended", "go ahead"}

// ErrDecisionNotFound is returned by RecordOutcome for unknown decision ids.
var ErrDecisionNotFound = fmt.Errorf("decision not found")

// actionStats holds the learned heuristics for one action name. Everything
// here is memory-resident and lost on restart.
type actionStats struct {
	successRate     float64
	hasOutcome      bool
	learnedRisk     float64
	hasLearnedRisk  bool
	failurePatterns []string
}

// HeuristicScorer evaluates proposed autonomous actions and adapts its
// per-action heuristics from reported outcomes.
type HeuristicScorer struct {
	thinker llm.Thinker
	log     *slog.Logger

	mu          sync.Mutex
	actions     map[string]models.ActionSpec
	stats       map[string]*actionStats
	history     []*models.Decision
	historySize int
}

// NewHeuristicScorer creates a scorer over the given action registry. A nil
// thinker disables LLM reasoning; evaluations then use canned justifications.
func NewHeuristicScorer(thinker llm.Thinker, actions []models.ActionSpec) *HeuristicScorer {
	registry := make(map[string]models.ActionSpec, len(actions))
	for _, a := range actions {
		registry[a.Name] = a
	}
	return &HeuristicScorer{
		thinker:     thinker,
		log:         slog.With("component", "decision"),
		actions:     registry,
		stats:       make(map[string]*actionStats),
		historySize: defaultHistorySize,
	}
}

// Register adds or replaces an action spec.
func (s *HeuristicScorer) Register(spec models.ActionSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[spec.Name] = spec
}

// Evaluate scores one proposed action. It never returns an error: unknown
// actions produce a rejecting decision instead.
func (s *HeuristicScorer) Evaluate(ctx context.Context, action string, params map[string]string, evalCtx string, userRequested bool) *models.Decision {
	s.mu.Lock()
	spec, known := s.actions[action]
	stats := s.statsFor(action)
	statsCopy := *stats
	s.mu.Unlock()

	if !known {
		return s.record(rejectDecision(action, params, evalCtx, userRequested,
			fmt.Sprintf("Action %q is not registered; autonomous execution is not permitted.", action)))
	}

	risk := s.riskScore(spec, statsCopy, params)
	reasoning := s.reason(ctx, spec, params, evalCtx, risk)
	proceed := shouldProceed(spec, risk, reasoning, userRequested)
	confidence := confidenceScore(risk, statsCopy, evalCtx, userRequested)
	successProb := successProbability(risk, statsCopy, reasoning)

	d := &models.Decision{
		ID:                 uuid.New().String(),
		Action:             action,
		ShouldProceed:      proceed,
		Confidence:         models.ConfidenceLevelFor(confidence),
		ConfidenceScore:    confidence,
		Risk:               models.RiskLevelFor(risk),
		RiskScore:          risk,
		Reasoning:          reasoning,
		Pros:               pros(spec, statsCopy, userRequested),
		Cons:               cons(spec, statsCopy, risk, params),
		Alternatives:       alternatives(spec, proceed),
		PredictedOutcome:   predictedOutcome(action, proceed, successProb),
		SuccessProbability: successProb,
		Context:            evalCtx,
		Parameters:         params,
		UserRequested:      userRequested,
		Timestamp:          time.Now().UTC(),
	}
	return s.record(d)
}

// RecordOutcome reports what actually happened for a prior decision and
// updates the per-action heuristics.
func (s *HeuristicScorer) RecordOutcome(decisionID, outcome string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *models.Decision
	for _, d := range s.history {
		if d.ID == decisionID {
			found = d
			break
		}
	}
	if found == nil {
		return ErrDecisionNotFound
	}

	found.Outcome = outcome
	found.OutcomeSuccess = &success

	stats := s.statsFor(found.Action)
	observed := 0.0
	if success {
		observed = 1.0
	}
	stats.successRate = successAlpha*observed + (1-successAlpha)*stats.successRate
	stats.hasOutcome = true

	if !success {
		if !stats.hasLearnedRisk {
			if spec, ok := s.actions[found.Action]; ok {
				stats.learnedRisk = spec.BaseRisk
			}
			stats.hasLearnedRisk = true
		}
		stats.learnedRisk = min(1.0, stats.learnedRisk+failureRiskBump)
		stats.failurePatterns = append(stats.failurePatterns, outcome)
		if len(stats.failurePatterns) > failurePatternLimit {
			stats.failurePatterns = stats.failurePatterns[len(stats.failurePatterns)-failurePatternLimit:]
		}
	}

	s.log.Debug("outcome recorded", "action", found.Action, "success", success,
		"success_rate", stats.successRate, "learned_risk", stats.learnedRisk)
	return nil
}

// History returns a snapshot of the most recent decisions, newest last. The
// owner may serialize this; the scorer itself has no durability.
func (s *HeuristicScorer) History(limit int) []*models.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*models.Decision, 0, n)
	for _, d := range s.history[len(s.history)-n:] {
		cp := *d
		out = append(out, &cp)
	}
	return out
}

// SuccessRate returns the learned success rate for an action and whether any
// outcome has been recorded yet.
func (s *HeuristicScorer) SuccessRate(action string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statsFor(action)
	return st.successRate, st.hasOutcome
}

// statsFor returns (creating if needed) the stats for an action name.
// Caller holds mu.
func (s *HeuristicScorer) statsFor(action string) *actionStats {
	st, ok := s.stats[action]
	if !ok {
		st = &actionStats{successRate: 0.5}
		s.stats[action] = st
	}
	return st
}

// record appends to the rolling history. Safe for concurrent Evaluate calls.
func (s *HeuristicScorer) record(d *models.Decision) *models.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, d)
	if len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
	return d
}

// riskScore blends declared and learned risk, bumps for destructive
// parameters, and applies permission floors.
func (s *HeuristicScorer) riskScore(spec models.ActionSpec, stats actionStats, params map[string]string) float64 {
	risk := spec.BaseRisk
	if stats.hasLearnedRisk {
		risk = 0.5*spec.BaseRisk + 0.5*stats.learnedRisk
	}

	for _, keyword := range destructiveKeywords {
		if paramsContain(params, keyword) {
			risk += 0.15
		}
	}
	risk = min(risk, 1.0)

	switch spec.Permission {
	case models.PermissionForbidden:
		risk = 1.0
	case models.PermissionConfirmation:
		risk = max(risk, 0.5)
	}
	return risk
}

// reason asks the LLM for a justification; any failure degrades to a canned
// neutral justification rather than an error.
func (s *HeuristicScorer) reason(ctx context.Context, spec models.ActionSpec, params map[string]string, evalCtx string, risk float64) string {
	if s.thinker == nil {
		return neutralReasoning(spec.Name, risk)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate whether to autonomously perform the action %q.\n", spec.Name)
	if spec.Description != "" {
		fmt.Fprintf(&b, "Action description: %s\n", spec.Description)
	}
	if len(params) > 0 {
		fmt.Fprintf(&b, "Parameters: %v\n", params)
	}
	if evalCtx != "" {
		fmt.Fprintf(&b, "Context: %s\n", evalCtx)
	}
	fmt.Fprintf(&b, "Estimated risk score: %.2f.\n", risk)
	b.WriteString("Reply with a short justification stating whether the action should proceed.")

	reply, err := s.thinker.Think(ctx, b.String(), "You are the decision gate of an autonomous agent. Be concise and direct.")
	if err != nil {
		s.log.Warn("reasoning call failed, using neutral justification", "action", spec.Name, "error", err)
		return neutralReasoning(spec.Name, risk)
	}
	return reply
}

func neutralReasoning(action string, risk float64) string {
	if risk >= 0.8 {
		return fmt.Sprintf("No reasoning available for %s; risk score %.2f is high, defaulting to caution.", action, risk)
	}
	return fmt.Sprintf("No reasoning available for %s; falling back to score-based judgment (risk %.2f).", action, risk)
}

// shouldProceed applies the keyword heuristics. Forbidden actions never
// proceed; explicit negatives outweigh positives; user-requested actions
// default to proceeding unless risk is high and the text is explicitly
// negative.
func shouldProceed(spec models.ActionSpec, risk float64, reasoning string, userRequested bool) bool {
	if spec.Permission == models.PermissionForbidden {
		return false
	}

	text := strings.ToLower(reasoning)
	negative := containsAny(text, negativePhrases)
	positive := containsAny(text, positivePhrases)

	if userRequested {
		return !(risk >= 0.8 && negative)
	}
	if negative {
		return false
	}
	if positive {
		return risk < 0.8
	}
	return risk < 0.4
}

// confidenceScore starts at 0.5 and adjusts for user intent, history, risk
// and context richness; clamped to [0,1].
func confidenceScore(risk float64, stats actionStats, evalCtx string, userRequested bool) float64 {
	confidence := 0.5
	if userRequested {
		confidence += 0.3
	}
	if stats.hasOutcome {
		confidence += 0.2 * (stats.successRate - 0.5) * 2
	}
	confidence -= risk * 0.2
	if len(evalCtx) > 50 {
		confidence += 0.1
	}
	return clamp01(confidence)
}

// successProbability is a coarse prediction blended with the learned rate and
// nudged by reasoning phrases.
func successProbability(risk float64, stats actionStats, reasoning string) float64 {
	p := 0.7 - 0.3*risk
	if stats.hasOutcome {
		p = 0.5*p + 0.5*stats.successRate
	}

	text := strings.ToLower(reasoning)
	if strings.Contains(text, "likely to succeed") {
		p += 0.1
	}
	if strings.Contains(text, "might fail") || strings.Contains(text, "uncertain") {
		p -= 0.15
	}

	if p < 0.05 {
		return 0.05
	}
	if p > 0.95 {
		return 0.95
	}
	return p
}

func pros(spec models.ActionSpec, stats actionStats, userRequested bool) []string {
	var out []string
	if userRequested {
		out = append(out, "explicitly requested by the user")
	}
	if spec.BaseRisk < 0.2 {
		out = append(out, "low declared base risk")
	}
	if stats.hasOutcome && stats.successRate > 0.7 {
		out = append(out, fmt.Sprintf("historical success rate %.0f%%", stats.successRate*100))
	}
	return out
}

func cons(spec models.ActionSpec, stats actionStats, risk float64, params map[string]string) []string {
	var out []string
	if risk >= 0.6 {
		out = append(out, fmt.Sprintf("risk score %.2f", risk))
	}
	if spec.Permission == models.PermissionConfirmation {
		out = append(out, "action requires confirmation")
	}
	for _, keyword := range destructiveKeywords {
		if paramsContain(params, keyword) {
			out = append(out, fmt.Sprintf("parameters suggest a %s operation", keyword))
		}
	}
	if stats.hasOutcome && stats.successRate < 0.3 {
		out = append(out, "poor historical success rate")
	}
	return out
}

func alternatives(spec models.ActionSpec, proceed bool) []string {
	if proceed {
		return nil
	}
	return []string{
		"ask the user for explicit confirmation",
		fmt.Sprintf("defer %s until more context is available", spec.Name),
	}
}

func predictedOutcome(action string, proceed bool, successProb float64) string {
	if !proceed {
		return fmt.Sprintf("%s will not be executed", action)
	}
	if successProb >= 0.7 {
		return fmt.Sprintf("%s is likely to succeed", action)
	}
	if successProb >= 0.4 {
		return fmt.Sprintf("%s may succeed but the outcome is uncertain", action)
	}
	return fmt.Sprintf("%s might fail", action)
}

// rejectDecision builds the fixed rejecting decision for unknown actions:
// high risk, very high confidence in the rejection.
func rejectDecision(action string, params map[string]string, evalCtx string, userRequested bool, reasoning string) *models.Decision {
	return &models.Decision{
		ID:                 uuid.New().String(),
		Action:             action,
		ShouldProceed:      false,
		Confidence:         models.ConfidenceVeryHigh,
		ConfidenceScore:    0.95,
		Risk:               models.RiskLevelFor(0.9),
		RiskScore:          0.9,
		Reasoning:          reasoning,
		Cons:               []string{"action is not registered"},
		Alternatives:       []string{"register the action before evaluating it"},
		PredictedOutcome:   fmt.Sprintf("%s will not be executed", action),
		SuccessProbability: 0.05,
		Context:            evalCtx,
		Parameters:         params,
		UserRequested:      userRequested,
		Timestamp:          time.Now().UTC(),
	}
}

func paramsContain(params map[string]string, keyword string) bool {
	for k, v := range params {
		if strings.Contains(strings.ToLower(k), keyword) || strings.Contains(strings.ToLower(v), keyword) {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
