// Package services holds the concrete collaborators of the idea generator: the user store, the
// event-source client for the idea endpoint, and the LLM providers that produce ideas.
package services

import "errors"

// LLMParameters holds optional sampling parameters shared by every provider. Nil fields are left to
// the provider's defaults.
type LLMParameters struct {
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"topP"`
	MaxTokens   *int     `yaml:"maxTokens"`
}

const errLoggerKey = "err"

// errStopIteration is returned from streaming callbacks once the consumer stops iterating.
var errStopIteration = errors.New("stop iteration")
