package models

// ScenarioCase is one fixed evaluation input paired with the
// qualitative signals a good response must exhibit. Cases are immutable
// once defined; scoring results are recorded separately.
type ScenarioCase struct {
	// ID is the stable case identifier (e.g. "TEST-006").
	ID string `json:"id" yaml:"id"`
	// Name is the short human-readable scenario label.
	Name string `json:"name" yaml:"name"`
	// Input is the literal user utterance, or a short multi-turn
	// conversation replayed in order.
	Input []string `json:"input" yaml:"input"`
	// ExpectedSignals are the qualitative criteria the judge scores
	// against (e.g. "must surface a safety score").
	ExpectedSignals []string `json:"expected_signals" yaml:"expected_signals"`
	// MinScore is the per-case pass threshold on the 1-10 scale.
	MinScore float64 `json:"min_score" yaml:"min_score"`
}
