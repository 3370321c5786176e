package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// packSchema gates user-supplied pack files before their patterns reach
// the regexp compiler. Weights are optional; an absent or all-zero block
// falls back to the uniform profile.
const packSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "pattern": "^[a-z][a-z0-9_-]*$"},
    "description": {"type": "string"},
    "prompt_prefix": {"type": "string"},
    "system_prompt": {"type": "string"},
    "weights": {
      "type": "object",
      "properties": {
        "clarity": {"type": "number", "minimum": 0, "maximum": 1},
        "specificity": {"type": "number", "minimum": 0, "maximum": 1},
        "structure": {"type": "number", "minimum": 0, "maximum": 1},
        "completeness": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "pattern"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "pattern": {"type": "string", "minLength": 1},
          "replacement": {"type": "string"}
        }
      }
    },
    "keywords": {"type": "array", "items": {"type": "string"}},
    "expected_terms": {"type": "array", "items": {"type": "string"}},
    "keyword_groups": {
      "type": "array",
      "items": {"type": "array", "items": {"type": "string"}}
    },
    "technical_terms": {"type": "array", "items": {"type": "string"}},
    "examples": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["input", "output"],
        "properties": {
          "input": {"type": "string"},
          "output": {"type": "string"},
          "note": {"type": "string"}
        }
      }
    }
  }
}`

// LoadFile reads one YAML pack, validates it against the pack schema and
// registers it, overriding any built-in pack with the same name.
func (r *Registry) LoadFile(path string) error {
	if path == "" {
		return errors.New("missing pack path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var pack DomainPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return fmt.Errorf("parse pack %s: %w", path, err)
	}
	if err := validatePack(pack); err != nil {
		return fmt.Errorf("invalid pack %s: %w", path, err)
	}
	if pack.Weights.Sum() == 0 {
		pack.Weights = Uniform()
	}
	if err := r.add(&pack); err != nil {
		return fmt.Errorf("compile pack %s: %w", path, err)
	}
	return nil
}

// LoadDir loads every *.yaml and *.yml pack in dir, returning the number
// registered. A missing directory is not an error; a malformed pack is.
func (r *Registry) LoadDir(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if err := r.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

func validatePack(pack DomainPack) error {
	doc, err := toJSONValue(pack)
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("pack.json", bytes.NewReader([]byte(packSchema))); err != nil {
		return err
	}
	compiled, err := compiler.Compile("pack.json")
	if err != nil {
		return err
	}
	if err := compiled.Validate(doc); err != nil {
		return err
	}
	if sum := pack.Weights.Sum(); sum != 0 && math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("weights sum to %.4f, want 1.0", sum)
	}
	return nil
}

// toJSONValue re-encodes the pack through encoding/json so the schema
// validator sees the value shapes it expects.
func toJSONValue(pack DomainPack) (any, error) {
	raw, err := json.Marshal(pack)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
