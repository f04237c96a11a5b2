package mind

import (
	"context"
	"fmt"

	"github.com/genesis-minds/genesis/internal/llm"
)

const defaultPersonaPrompt = "You are a Genesis mind working on a background task. " +
	"Complete the request and reply with the result."

// LLMHandler is the default Handler: it routes the request straight to the
// reasoning model with the persona system prompt.
type LLMHandler struct {
	thinker llm.Thinker
	budget  *llm.Budget
	persona string
}

// NewLLMHandler creates an LLMHandler. persona may be empty to use the
// default system prompt.
func NewLLMHandler(thinker llm.Thinker, budget *llm.Budget, persona string) *LLMHandler {
	if persona == "" {
		persona = defaultPersonaPrompt
	}
	return &LLMHandler{thinker: thinker, budget: budget, persona: persona}
}

// HandleRequest performs one reasoning call. Budget exhaustion is a logical
// failure (Success=false), not an error, so the executor retries it like any
// other transient fault.
func (h *LLMHandler) HandleRequest(ctx context.Context, req Request) (*Response, error) {
	if h.budget != nil && !h.budget.TryAcquire() {
		return &Response{Success: false, Error: "daily LLM call budget exhausted"}, nil
	}

	prompt := req.Request
	if req.Context != "" {
		prompt = fmt.Sprintf("%s\n\nContext:\n%s", req.Request, req.Context)
	}

	reply, err := h.thinker.Think(ctx, prompt, h.persona)
	if err != nil {
		return nil, fmt.Errorf("think: %w", err)
	}

	return &Response{Success: true, Results: []string{reply}}, nil
}
