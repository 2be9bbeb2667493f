package schema

import (
	"encoding/json"
	"testing"
)

func TestMessageText(t *testing.T) {
	if got := NewUserMessage("hi").Text(); got != "hi" {
		t.Errorf("string content: got %q", got)
	}

	s := "reply"
	if got := NewAssistantMessage(&s, nil).Text(); got != "reply" {
		t.Errorf("*string content: got %q", got)
	}
	if got := NewAssistantMessage(nil, nil).Text(); got != "" {
		t.Errorf("nil content: got %q, want empty", got)
	}
	if got := (Message{Role: "user", Content: 42}).Text(); got != "" {
		t.Errorf("non-text content: got %q, want empty", got)
	}
}

func TestToolCallToWireMap(t *testing.T) {
	tc := ToolCall{
		ID:        "call_1",
		Name:      "save_memory",
		Arguments: map[string]any{"history_entry": "did things"},
	}
	m := tc.ToWireMap()

	if m["id"] != "call_1" || m["type"] != "function" {
		t.Fatalf("envelope = %v", m)
	}
	fn := m["function"].(map[string]any)
	if fn["name"] != "save_memory" {
		t.Errorf("name = %v", fn["name"])
	}
	// Arguments must be the JSON-encoded string form on the wire.
	var decoded map[string]any
	if err := json.Unmarshal([]byte(fn["arguments"].(string)), &decoded); err != nil {
		t.Fatalf("arguments not valid JSON: %v", err)
	}
	if decoded["history_entry"] != "did things" {
		t.Errorf("arguments = %v", decoded)
	}
}

func TestMessagesHelpers(t *testing.T) {
	mh := NewMessages()
	mh.AddSystem("sys")
	mh.AddUser("question")
	mh.AddToolResult("call_1", "save_memory", "ok")

	if mh.Len() != 3 {
		t.Fatalf("Len = %d, want 3", mh.Len())
	}
	tool := mh.Messages[2]
	if tool.Role != "tool" || tool.ToolCallID != "call_1" || tool.ToolName != "save_memory" {
		t.Errorf("tool result = %+v", tool)
	}

	other := NewMessages(NewUserMessage("more"))
	mh.Append(other)
	if mh.Len() != 4 {
		t.Fatalf("Len after Append = %d, want 4", mh.Len())
	}
}

func TestMessagesClone_Independent(t *testing.T) {
	mh := NewMessages(NewUserMessage("a"))
	cl := mh.Clone()
	cl.Messages[0].Content = "b"

	if mh.Messages[0].Text() != "a" {
		t.Error("Clone must not share backing storage with the original")
	}
}

func TestHasToolCalls(t *testing.T) {
	if (LLMResponse{}).HasToolCalls() {
		t.Error("empty response must have no tool calls")
	}
	r := LLMResponse{ToolCalls: []ToolCallResponse{{ID: "x", Name: "save_memory"}}}
	if !r.HasToolCalls() {
		t.Error("response with one call must report it")
	}
}
