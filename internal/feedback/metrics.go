package feedback

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speakwise",
			Subsystem: "feedback",
			Name:      "submissions_total",
			Help:      "Feedback submissions by outcome.",
		},
		[]string{"result"},
	)
	enrichmentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "speakwise",
			Subsystem: "session_enrichment",
			Name:      "total",
			Help:      "Session summary lookups by outcome.",
		},
		[]string{"outcome"},
	)
)

// RegisterMetrics registers the pipeline collectors with reg. Registering
// twice is not an error so tests can build several servers.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{submissionsTotal, enrichmentTotal} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}

func submissionResult(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrDuplicateSubmission):
		return "duplicate"
	case errors.Is(err, ErrValidationIncomplete):
		return "incomplete"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "invalid"
	}
}
