package mcp

import "encoding/json"

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type Response struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id"`
	Result  any            `json:"result,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ResourceReadParams struct {
	URI string `json:"uri"`
}

func ListTools() map[string]any {
	return map[string]any{
		"tools": []map[string]any{
			{"name": "refine_prompt", "description": "Run the full refinement pipeline on a raw prompt"},
			{"name": "validate_prompt", "description": "Validate a prompt without refining it"},
			{"name": "score_prompt", "description": "Score a prompt with a per-dimension breakdown"},
			{"name": "save_prompt", "description": "Save a prompt to the library"},
			{"name": "get_prompt", "description": "Fetch a saved prompt by id"},
			{"name": "search_prompts", "description": "Full-text search over saved prompts"},
			{"name": "similar_prompts", "description": "Semantic search for similar saved prompts"},
			{"name": "get_stats", "description": "Usage statistics for the prompt library"},
			{"name": "list_domains", "description": "List the registered domain packs"},
		},
	}
}

func ListResources() map[string]any {
	return map[string]any{
		"resources": []map[string]any{
			{"uri": "prompt://domains", "description": "Registered domain packs"},
			{"uri": "prompt://stats", "description": "Library statistics for the last 30 days"},
		},
	}
}
