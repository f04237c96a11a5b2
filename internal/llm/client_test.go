package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestThink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected auth header: %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Decode request failed: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("Unexpected model: %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("Unexpected messages: %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Role: "assistant", Content: "a reply"}}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", 5*time.Second)
	reply, err := c.Think(context.Background(), "what now?", "be brief")
	if err != nil {
		t.Fatalf("Think failed: %v", err)
	}
	if reply != "a reply" {
		t.Errorf("Expected 'a reply', got %q", reply)
	}
}

func TestThinkNoSystemMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("Expected a single user message, got %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{{Message: chatMessage{Content: "ok"}}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "m", 5*time.Second)
	if _, err := c.Think(context.Background(), "hi", ""); err != nil {
		t.Fatalf("Think failed: %v", err)
	}
}

func TestThinkAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "m", 5*time.Second)
	if _, err := c.Think(context.Background(), "hi", ""); err == nil {
		t.Error("Expected error on 429 response")
	}
}

func TestThinkEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "m", 5*time.Second)
	if _, err := c.Think(context.Background(), "hi", ""); err == nil {
		t.Error("Expected error on empty choices")
	}
}
