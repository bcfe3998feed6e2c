package domain

import "time"

// Message is the unit of persistence: one text message observed either
// through a history pull or the live update feed. The (ID, ChatID) pair
// is unique; ID alone is only unique within a chat.
type Message struct {
	ID     int
	ChatID int64
	Sender string
	Text   string
	Date   time.Time
}

// Dialog is an ephemeral summary of one chat the account participates in.
// It drives history backfill and the operator listing and is never stored.
type Dialog struct {
	ID          int64
	Title       string
	UnreadCount int
}
