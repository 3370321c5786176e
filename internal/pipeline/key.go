package pipeline

import (
	"encoding/json"
	"fmt"
)

// CacheKey derives the cache key for an input from the semantically
// relevant subset {context, domain, raw, tone, variables}, serialized
// with sorted keys and folded into a 32-bit rolling hash. The key is a
// contract shared with out-of-band invalidation tooling, so the shape
// must not change casually.
func CacheKey(in ProcessInput) string {
	vars := in.Variables
	if vars == nil {
		vars = map[string]string{}
	}
	payload, _ := json.Marshal(map[string]any{
		"context":   in.Context,
		"domain":    in.Domain,
		"raw":       in.Raw,
		"tone":      in.Tone,
		"variables": vars,
	})
	var h uint32
	for _, b := range payload {
		h = h*31 + uint32(b)
	}
	return fmt.Sprintf("prompt_%08x", h)
}
