package pii

// DetectorInput represents the input for PII detection
type DetectorInput struct {
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Entities       []string `json:"entities,omitempty"` // empty means every entity the engine knows
	ScoreThreshold float64  `json:"score_threshold"`
}

// DetectorOutput represents the output of PII detection
type DetectorOutput struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
}

// Entity represents a detected PII entity
type Entity struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	StartPos   int     `json:"start_pos"`
	EndPos     int     `json:"end_pos"`
	Confidence float64 `json:"confidence"`
}

// wantsLabel reports whether label passes the entity filter of the input.
func (in DetectorInput) wantsLabel(label string) bool {
	if len(in.Entities) == 0 {
		return true
	}
	for _, e := range in.Entities {
		if e == label {
			return true
		}
	}
	return false
}
