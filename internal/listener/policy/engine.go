package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Decision represents the outcome of a successful policy evaluation.
type Decision struct {
	Allow        bool
	DenyReasons  []string
	PolicySHA    string
	EvalDuration time.Duration
}

// Engine evaluates assembled connection inputs against a prepared bundle.
type Engine struct{}

// NewEngine creates a new OPA-based policy engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate runs the bundle's query against the input document. The policy is
// expected to produce a response object with an "allow" boolean and a
// "deny_reasons" array; anything else fails with ErrPolicyEvaluation.
func (e *Engine) Evaluate(ctx context.Context, bundle Bundle, input map[string]any) (Decision, error) {
	prepared, ok := bundle.(*PreparedBundle)
	if !ok {
		return Decision{}, fmt.Errorf("%w: invalid policy bundle type: %T", ErrPolicyEvaluation, bundle)
	}

	startTime := time.Now()

	results, err := prepared.PreparedQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrPolicyEvaluation, err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("%w: no results from policy evaluation", ErrPolicyEvaluation)
	}

	responseValue := results[0].Expressions[0].Value
	responseMap, ok := responseValue.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("%w: unexpected response format", ErrPolicyEvaluation)
	}

	allow, ok := responseMap["allow"].(bool)
	if !ok {
		return Decision{}, fmt.Errorf("%w: response is missing the allow flag", ErrPolicyEvaluation)
	}

	decision := Decision{
		Allow:        allow,
		DenyReasons:  extractStringArray(responseMap["deny_reasons"]),
		PolicySHA:    bundle.ID(),
		EvalDuration: time.Since(startTime),
	}

	return decision, nil
}

// Helper to extract a string array from an interface{}
func extractStringArray(value interface{}) []string {
	if value == nil {
		return nil
	}

	// OPA commonly returns arrays as []interface{}
	if arr, ok := value.([]interface{}); ok {
		result := make([]string, len(arr))
		for i, v := range arr {
			if str, ok := v.(string); ok {
				result[i] = str
			} else {
				b, err := json.Marshal(v)
				if err == nil {
					result[i] = string(b)
				} else {
					result[i] = fmt.Sprintf("%v", v)
				}
			}
		}
		return result
	}

	if arr, ok := value.([]string); ok {
		return arr
	}

	if str, ok := value.(string); ok {
		return []string{str}
	}

	return []string{}
}
