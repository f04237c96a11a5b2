// Package mind defines the request-handling entry point shared by the chat
// interface and the background task executor.
package mind

import (
	"context"

	"github.com/genesis-minds/genesis/internal/models"
)

// Request is one unit of work routed through the mind. The request text is
// opaque to the executor layer.
type Request struct {
	Request   string `json:"request"`
	Requester string `json:"requester,omitempty"`
	Context   string `json:"context,omitempty"`
}

// Response is the handler's result. Success=false means logical failure even
// when no error was returned.
type Response struct {
	Success   bool              `json:"success"`
	Artifacts []models.Artifact `json:"artifacts,omitempty"`
	Results   []string          `json:"results,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Handler is the opaque unit of work the executor invokes. Implementations
// may perform multiple sub-steps (LLM calls, tool execution); the executor
// only inspects the Success flag.
type Handler interface {
	HandleRequest(ctx context.Context, req Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req Request) (*Response, error)

func (f HandlerFunc) HandleRequest(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
