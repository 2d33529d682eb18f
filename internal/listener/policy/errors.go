package policy

import "errors"

// Standard error types for policy listener operations
var (
	ErrSourceUnavailable = errors.New("policy: input source unavailable")
	ErrSourceStale       = errors.New("policy: input data is stale")
	ErrPolicyEvaluation  = errors.New("policy: policy evaluation failed")
	ErrPolicyLoad        = errors.New("policy: policy bundle could not be loaded")
)
