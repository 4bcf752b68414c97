package articles

import "time"

// Article is one generated piece of content. Generation is fire-and-forget
// glue around the language-model client; it shares no state with the dialer.
type Article struct {
	ID      string `json:"id" db:"id"`
	Title   string `json:"title" db:"title"`
	Topic   string `json:"topic" db:"topic"`
	Content string `json:"content" db:"content"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Topic is one parsed generation request.
type Topic struct {
	Title   string `json:"title"`
	Details string `json:"details"`
}
