package memory

import (
	"encoding/json"
	"strings"
)

// saveMemoryTool is the function definition sent to the LLM during
// consolidation, in OpenAI wire format.
var saveMemoryTool = []map[string]any{
	{
		"type": "function",
		"function": map[string]any{
			"name":        "save_memory",
			"description": "Save the memory consolidation result to persistent storage.",
			"parameters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"history_entry": map[string]any{
						"type": "string",
						"description": "A paragraph (2-5 sentences) summarizing key events/decisions/topics. " +
							"Start with [YYYY-MM-DD HH:MM]. Include detail useful for grep search.",
					},
					"memory_update": map[string]any{
						"type": "string",
						"description": "Full updated core long-term memory (PROFILE) as markdown. " +
							"Include all existing core facts plus new ones. Return unchanged if nothing new.",
					},
					"facts": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
						"description": "List of NEW atomic, self-contained factual snippets or user preferences " +
							"extracted from this conversation (e.g. 'User lives in Paris', 'User has a dog named Rex').",
					},
				},
				"required": []string{"history_entry", "memory_update"},
			},
		},
	},
}

// DecodeToolArguments normalises a tool-call argument payload to a map.
//
// Providers disagree on the payload shape: some deliver a decoded JSON
// object, others the raw JSON string they generated. Both are accepted;
// anything else (or a string that does not decode to an object) is
// malformed and reported via ok=false. JSON null unmarshals into a nil map
// without an error, so nil maps are rejected on both branches: a payload
// that carries no mapping must not count as decoded.
func DecodeToolArguments(v any) (map[string]any, bool) {
	switch args := v.(type) {
	case map[string]any:
		if args == nil {
			return nil, false
		}
		return args, true
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(args), &m); err != nil || m == nil {
			return nil, false
		}
		return m, true
	default:
		return nil, false
	}
}

// stringOrJSON coerces a value from the tool arguments to a string.
// If it's already a string, return it. Otherwise JSON-encode it rather than
// dropping it: a wrongly-typed history entry is still worth archiving.
func stringOrJSON(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// collectFacts extracts the non-empty string facts from the raw tool
// argument value, trimming surrounding whitespace.
func collectFacts(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var facts []string
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			facts = append(facts, s)
		}
	}
	return facts
}
