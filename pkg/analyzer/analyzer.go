// Package analyzer defines the contract shared by graph analyzers.
package analyzer

import "context"

// Analyzer computes a result from the current state of a symbol graph.
// Implementations read a snapshot, so Analyze may be called repeatedly as
// the graph changes.
type Analyzer[T any] interface {
	// Analyze runs the analysis. The context can be used for cancellation.
	Analyze(ctx context.Context) (T, error)
}
