package security

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	customErrors "github.com/mnaflow/crm-guard/internal/common/errors"
)

const policySchemaURL = "https://crm-guard.local/schemas/heuristics-policy.schema.json"

const policySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "html_rules": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["pattern", "message"],
        "properties": {
          "pattern": {"type": "string", "minLength": 1},
          "message": {"type": "string", "minLength": 1}
        }
      }
    },
    "sql_pattern": {"type": "string", "minLength": 1},
    "action_limits": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "required": ["limit", "window"],
        "properties": {
          "limit": {"type": "integer", "minimum": 0},
          "window": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h)([0-9]+(\\.[0-9]+)?(ns|us|ms|s|m|h))*$"}
        }
      }
    }
  }
}`

var (
	compiledPolicySchema *jsonschema.Schema
	policySchemaErr      error
	policySchemaOnce     sync.Once
)

func loadPolicySchema() (*jsonschema.Schema, error) {
	policySchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(policySchemaURL, strings.NewReader(policySchema)); err != nil {
			policySchemaErr = fmt.Errorf("policy schema load failed: %w", err)
			return
		}
		compiledPolicySchema, policySchemaErr = c.Compile(policySchemaURL)
	})
	return compiledPolicySchema, policySchemaErr
}

// ActionLimitSpec is the JSON form of an ActionLimit
type ActionLimitSpec struct {
	Limit  int    `json:"limit"`
	Window string `json:"window"`
}

// Policy holds the heuristics that can be replaced without touching code
type Policy struct {
	HTMLRules    []PatternRule              `json:"html_rules,omitempty"`
	SQLPattern   string                     `json:"sql_pattern,omitempty"`
	ActionLimits map[string]ActionLimitSpec `json:"action_limits,omitempty"`
}

// DefaultPolicy returns the built-in heuristics
func DefaultPolicy() *Policy {
	return &Policy{
		HTMLRules:  DefaultHTMLRules(),
		SQLPattern: DefaultSQLPattern,
	}
}

// ParsePolicy validates data against the policy schema and decodes it.
// Sections left out of the document keep their defaults.
func ParsePolicy(data []byte) (*Policy, error) {
	schema, err := loadPolicySchema()
	if err != nil {
		return nil, customErrors.WrapSecurityError(err, CodeInvalidPolicy, "policy schema unavailable")
	}

	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, customErrors.WrapSecurityError(err, CodeInvalidPolicy, "policy is not valid JSON")
	}
	if err := schema.Validate(doc); err != nil {
		return nil, customErrors.WrapSecurityError(err, CodeInvalidPolicy, "policy does not match schema")
	}

	policy := DefaultPolicy()
	var parsed Policy
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, customErrors.WrapSecurityError(err, CodeInvalidPolicy, "failed to decode policy")
	}
	if parsed.HTMLRules != nil {
		policy.HTMLRules = parsed.HTMLRules
	}
	if parsed.SQLPattern != "" {
		policy.SQLPattern = parsed.SQLPattern
	}
	policy.ActionLimits = parsed.ActionLimits

	// fail on bad regular expressions now rather than at first use
	if _, err := policy.HTMLInspector(); err != nil {
		return nil, err
	}
	if _, err := policy.SQLInspector(); err != nil {
		return nil, err
	}
	if _, err := policy.Limits(); err != nil {
		return nil, err
	}
	return policy, nil
}

// LoadPolicy reads and parses a policy file; an empty path returns DefaultPolicy
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, customErrors.WrapSecurityError(err, CodeInvalidPolicy, "failed to read policy file").
			WithData("file", path)
	}
	policy, err := ParsePolicy(data)
	if err != nil {
		return nil, customErrors.Wrap(err, path)
	}
	return policy, nil
}

// HTMLInspector builds an inspector from the policy's HTML rules
func (p *Policy) HTMLInspector() (*HTMLInspector, error) {
	return NewHTMLInspector(p.HTMLRules)
}

// SQLInspector builds an inspector from the policy's SQL pattern
func (p *Policy) SQLInspector() (*SQLInspector, error) {
	return NewSQLInspector(p.SQLPattern)
}

// Limits merges the policy's action limits over DefaultActionLimits
func (p *Policy) Limits() (map[string]ActionLimit, error) {
	limits := DefaultActionLimits()
	for action, spec := range p.ActionLimits {
		limit, err := spec.parse()
		if err != nil {
			return nil, customErrors.WrapSecurityError(err, CodeInvalidPolicy,
				fmt.Sprintf("action %q has an invalid window", action)).WithData("action", action)
		}
		limits[action] = limit
	}
	return limits, nil
}
