// Package agenterr defines the error-kind taxonomy used throughout the
// agent core (spec §7). Kinds are sentinel errors wrapped with fmt.Errorf
// and inspected with errors.Is/errors.As, following the sentinel-error
// idiom sidekick uses for llm.ErrToolCallUnmarshal.
package agenterr

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderTransport: connection/HTTP failure, malformed terminal
	// event, authentication failure.
	ErrProviderTransport = errors.New("provider transport error")

	// ErrProviderProtocol: server-reported error frame.
	ErrProviderProtocol = errors.New("provider protocol error")

	// ErrToolInvalidParameters: arguments failed the tool's validation.
	ErrToolInvalidParameters = errors.New("tool invalid parameters")

	// ErrToolExecutionFailed: tool ran but failed.
	ErrToolExecutionFailed = errors.New("tool execution failed")

	// ErrToolPermissionDenied: sandbox, session-deny, or admission-budget
	// refusal.
	ErrToolPermissionDenied = errors.New("tool permission denied")

	// ErrToolTimeout: per-call timeout exceeded.
	ErrToolTimeout = errors.New("tool timed out")

	// ErrSubagentUnknown: delegation referenced an unknown or
	// non-delegatable agent profile.
	ErrSubagentUnknown = errors.New("unknown or non-delegatable sub-agent")
)

// MaxIterationsError is AgentBudgetExhausted: the agent loop reached
// max_iterations without terminating (spec §4.2, §7).
type MaxIterationsError struct {
	Iterations int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("agent exceeded max iterations (%d)", e.Iterations)
}

func NewMaxIterations(n int) error {
	return &MaxIterationsError{Iterations: n}
}

// Wrap annotates a sentinel kind with call-site context while preserving
// errors.Is matching against the kind.
func Wrap(kind error, context string) error {
	return fmt.Errorf("%s: %w", context, kind)
}
