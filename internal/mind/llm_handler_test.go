package mind

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/genesis-minds/genesis/internal/llm"
)

// recordingThinker captures the last prompt and returns a fixed reply.
type recordingThinker struct {
	lastPrompt string
	lastSystem string
	reply      string
	err        error
}

func (r *recordingThinker) Think(ctx context.Context, prompt, context_ string) (string, error) {
	r.lastPrompt = prompt
	r.lastSystem = context_
	return r.reply, r.err
}

func TestHandleRequestSuccess(t *testing.T) {
	thinker := &recordingThinker{reply: "sorted the inbox"}
	h := NewLLMHandler(thinker, llm.NewBudget(5), "test persona")

	resp, err := h.HandleRequest(context.Background(), Request{Request: "sort my inbox"})
	if err != nil {
		t.Fatalf("HandleRequest failed: %v", err)
	}
	if !resp.Success {
		t.Error("Expected success")
	}
	if len(resp.Results) != 1 || resp.Results[0] != "sorted the inbox" {
		t.Errorf("Unexpected results: %v", resp.Results)
	}
	if thinker.lastSystem != "test persona" {
		t.Errorf("Persona not passed as system prompt: %q", thinker.lastSystem)
	}
}

func TestHandleRequestAppendsContext(t *testing.T) {
	thinker := &recordingThinker{reply: "ok"}
	h := NewLLMHandler(thinker, nil, "")

	_, err := h.HandleRequest(context.Background(), Request{
		Request: "write a summary",
		Context: "the meeting notes",
	})
	if err != nil {
		t.Fatalf("HandleRequest failed: %v", err)
	}
	if !strings.Contains(thinker.lastPrompt, "the meeting notes") {
		t.Errorf("Context missing from prompt: %q", thinker.lastPrompt)
	}
}

func TestHandleRequestBudgetExhausted(t *testing.T) {
	thinker := &recordingThinker{reply: "should not be called"}
	h := NewLLMHandler(thinker, llm.NewBudget(0), "")

	resp, err := h.HandleRequest(context.Background(), Request{Request: "anything"})
	if err != nil {
		t.Fatalf("Budget exhaustion must not be an error: %v", err)
	}
	if resp.Success {
		t.Error("Expected logical failure when budget is exhausted")
	}
	if resp.Error != "daily LLM call budget exhausted" {
		t.Errorf("Unexpected error text: %q", resp.Error)
	}
	if thinker.lastPrompt != "" {
		t.Error("Thinker must not be called without budget")
	}
}

func TestHandleRequestThinkerError(t *testing.T) {
	h := NewLLMHandler(&recordingThinker{err: fmt.Errorf("upstream down")}, nil, "")

	if _, err := h.HandleRequest(context.Background(), Request{Request: "x"}); err == nil {
		t.Error("Expected error when the thinker fails")
	}
}

func TestHandlerFuncAdapter(t *testing.T) {
	called := false
	h := HandlerFunc(func(ctx context.Context, req Request) (*Response, error) {
		called = true
		return &Response{Success: true}, nil
	})

	resp, err := h.HandleRequest(context.Background(), Request{Request: "x"})
	if err != nil || !resp.Success || !called {
		t.Errorf("Adapter misbehaved: resp=%+v err=%v called=%v", resp, err, called)
	}
}
