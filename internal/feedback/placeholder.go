package feedback

// Placeholder tables used when a session cannot be resolved. Entries are
// picked by session id so the same id always renders the same summary.
var placeholderTitles = []string{
	"Building Resilient Distributed Systems",
	"Practical Machine Learning in Production",
	"Designing APIs Developers Love",
	"Scaling Teams and Codebases",
	"Observability Beyond Dashboards",
	"Security by Default",
	"The Future of Web Performance",
	"Data Pipelines That Don't Break",
}

var placeholderEvents = []string{
	"Tech Summit",
	"Developer Conference",
	"Engineering Meetup",
	"Innovation Forum",
	"Community Day",
}

const (
	genericEventName = "Conference Event"
	unknownEventDate = "TBA"
)

func cyclicPick(table []string, id int) string {
	i := id % len(table)
	if i < 0 {
		i += len(table)
	}
	return table[i]
}

// PlaceholderSummary is the deterministic stand-in for session id.
func PlaceholderSummary(id int) SessionSummary {
	return SessionSummary{
		Title:       cyclicPick(placeholderTitles, id),
		EventName:   cyclicPick(placeholderEvents, id),
		EventDate:   unknownEventDate,
		Placeholder: true,
	}
}
