package articles

import "strings"

// ParseTopics parses free-text topic input of the form:
//
//	Title: How routers work
//	Details: focus on home networks
//	Title: IPv6 adoption
//
// "Title" and "Details" markers are case-insensitive and accept ':' or '-' as
// separator. A new Title line starts a new topic; Details attaches to the
// current one. Lines outside that shape are ignored.
func ParseTopics(input string) []Topic {
	var (
		topics  []Topic
		current *Topic
	)

	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if v, ok := markerValue(line, "title"); ok {
			if current != nil && current.Title != "" {
				topics = append(topics, *current)
			}
			current = &Topic{Title: v}
			continue
		}
		if v, ok := markerValue(line, "details"); ok && current != nil {
			if current.Details != "" {
				current.Details += " "
			}
			current.Details += v
		}
	}

	if current != nil && current.Title != "" {
		topics = append(topics, *current)
	}
	return topics
}

func markerValue(line, marker string) (string, bool) {
	lower := strings.ToLower(line)
	if !strings.HasPrefix(lower, marker) {
		return "", false
	}
	rest := strings.TrimSpace(line[len(marker):])
	if rest == "" || (rest[0] != ':' && rest[0] != '-') {
		return "", false
	}
	return strings.TrimSpace(rest[1:]), true
}
