package domain

// Synthesis is the final outcome of one query: a confidence-scored answer.
type Synthesis struct {
	AnswerText string
	Confidence float64 // 0..1
	Sources    []string
	Degraded   bool   // true when built from fallback template or partial context
	Audio      []byte // synthesized speech for voice mode, nil otherwise
}
