package feedback

import (
	"fmt"
	"math"
	"strings"
)

const (
	MinScore = 1
	MaxScore = 10
)

// Scores holds the five criterion ratings. A zero value means the criterion
// has not been rated yet.
type Scores struct {
	Engagement         int `json:"engagement"`
	Clarity            int `json:"clarity"`
	ContentDepth       int `json:"content_depth"`
	SpeakerKnowledge   int `json:"speaker_knowledge"`
	PracticalRelevance int `json:"practical_relevance"`
}

type criterion struct {
	name  string
	value int
}

func (s Scores) criteria() []criterion {
	return []criterion{
		{"engagement", s.Engagement},
		{"clarity", s.Clarity},
		{"content_depth", s.ContentDepth},
		{"speaker_knowledge", s.SpeakerKnowledge},
		{"practical_relevance", s.PracticalRelevance},
	}
}

// Missing lists the criteria still unrated.
func (s Scores) Missing() []string {
	var missing []string
	for _, c := range s.criteria() {
		if c.value == 0 {
			missing = append(missing, c.name)
		}
	}
	return missing
}

// Validate returns ErrValidationIncomplete when any criterion is unrated and
// ErrInvalidSubmission when one is outside [MinScore, MaxScore].
func (s Scores) Validate() error {
	if missing := s.Missing(); len(missing) > 0 {
		return newError(ErrValidationIncomplete,
			fmt.Sprintf("Please rate every criterion before submitting (missing: %s).", strings.Join(missing, ", ")), nil)
	}
	for _, c := range s.criteria() {
		if c.value < MinScore || c.value > MaxScore {
			return newError(ErrInvalidSubmission,
				fmt.Sprintf("%s must be between %d and %d, got %d.", c.name, MinScore, MaxScore, c.value), nil)
		}
	}
	return nil
}

// Overall is the rounded mean of the five criteria. Halves round away from
// zero, so for valid scores the result is always within [1, 10].
func (s Scores) Overall() int {
	sum := 0
	for _, c := range s.criteria() {
		sum += c.value
	}
	return int(math.Round(float64(sum) / 5))
}

// NormalizeComment trims comment and maps blank input to nil so that an
// empty comment is stored as absent.
func NormalizeComment(comment string) *string {
	trimmed := strings.TrimSpace(comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// DisplayComment renders a stored comment, substituting a placeholder when
// none was provided.
func DisplayComment(comment *string) string {
	if comment == nil || strings.TrimSpace(*comment) == "" {
		return "No comments provided"
	}
	return *comment
}
