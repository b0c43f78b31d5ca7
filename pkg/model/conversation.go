package model

import (
	"time"

	"github.com/google/uuid"
)

type ConversationID string

// NewConversationID generates a new unique ConversationID
func NewConversationID() ConversationID {
	return ConversationID(uuid.New().String())
}

const (
	summaryMaxLength  = 100
	emptyConversation = "Empty conversation"
)

// Conversation is a finalized recording session: its block sequence and a
// short summary for list views
type Conversation struct {
	ID        ConversationID
	UserID    string
	Summary   string
	CreatedAt time.Time

	// BlobKey is set when entries are archived in object storage instead of
	// being stored inline
	BlobKey string

	// EntriesJSON is the inline encoding of Entries. It is empty when BlobKey is set.
	EntriesJSON string

	Entries []Entry `firestore:"-"`
}

// ConversationSummary returns the first block's text, truncated for display
func ConversationSummary(entries []Entry) string {
	blocks := Blocks(entries)
	if len(blocks) == 0 {
		return emptyConversation
	}

	text := blocks[0].Text()
	runes := []rune(text)
	if len(runes) > summaryMaxLength {
		return string(runes[:summaryMaxLength]) + "..."
	}
	return text
}
