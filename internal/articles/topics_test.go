package articles

import "testing"

func TestParseTopics(t *testing.T) {
	input := "Title: How routers work\nDetails: focus on home networks\n\ntitle - IPv6 adoption\nrandom noise line\nDETAILS: why it is slow\nDetails: and what helps\n"

	topics := ParseTopics(input)
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d: %+v", len(topics), topics)
	}
	if topics[0].Title != "How routers work" || topics[0].Details != "focus on home networks" {
		t.Fatalf("unexpected first topic: %+v", topics[0])
	}
	if topics[1].Title != "IPv6 adoption" {
		t.Fatalf("unexpected second title: %q", topics[1].Title)
	}
	if topics[1].Details != "why it is slow and what helps" {
		t.Fatalf("details not joined: %q", topics[1].Details)
	}
}

func TestParseTopics_NoMarkers(t *testing.T) {
	if topics := ParseTopics("just some text\nwithout any markers"); len(topics) != 0 {
		t.Fatalf("expected no topics, got %+v", topics)
	}
}

func TestParseTopics_DetailsBeforeTitleIgnored(t *testing.T) {
	topics := ParseTopics("Details: orphaned\nTitle: Real topic")
	if len(topics) != 1 || topics[0].Title != "Real topic" || topics[0].Details != "" {
		t.Fatalf("unexpected topics: %+v", topics)
	}
}
