package resilience

// Operation names a guarded provider call. Every operation gets its own
// circuit breaker and retry budget.
type Operation string

const (
	// OpEmbed turns text into vectors, for queries and index builds.
	OpEmbed Operation = "embed"
	// OpGenerate is a completion, used to translate queries.
	OpGenerate Operation = "generate"
)

func (op Operation) String() string { return string(op) }

// attempts is the number of tries op gets under cfg. Generation runs on the
// query path under the short translation timeout and gets at most two.
func (op Operation) attempts(cfg Config) int {
	if op == OpGenerate {
		return min(cfg.RetryMaxAttempts, 2)
	}
	return cfg.RetryMaxAttempts
}
