package domain

// MatchResult is the decision of the identity matcher. NoMatch is Matched=false.
type MatchResult struct {
	Matched   bool    `json:"matched"`
	StudentID string  `json:"student_id,omitempty"`
	Distance  float64 `json:"distance"`
}

// NoMatch is the zero decision.
func NoMatch() MatchResult {
	return MatchResult{}
}

// Candidate é um par (id, embedding) do conjunto cadastrado
type Candidate struct {
	ID        string
	Embedding Embedding
}
