package models

// Label is one classifier output. Confidence is a percentage in [0, 100].
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type ClassificationResult struct {
	Labels []Label `json:"labels"`
}

// Contains reports whether any label name equals name exactly.
// The comparison is case-sensitive.
func (r *ClassificationResult) Contains(name string) bool {
	if r == nil {
		return false
	}
	for _, l := range r.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

// Verdict is the outcome of applying the target label to a result.
type Verdict string

const (
	VerdictPositive Verdict = "positive"
	VerdictNegative Verdict = "negative"
)

// VerdictFor returns VerdictPositive iff result contains target.
func VerdictFor(result *ClassificationResult, target string) Verdict {
	if result.Contains(target) {
		return VerdictPositive
	}
	return VerdictNegative
}

// OutgoingMessage is the single reply posted for a classified image.
type OutgoingMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}
