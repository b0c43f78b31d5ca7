package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = goerr.New("record not found")

// Repository persists finalized conversations and notes
type Repository interface {
	// PutConversation saves a conversation. Entries are not stored; callers
	// encode them into EntriesJSON or archive them under BlobKey.
	PutConversation(ctx context.Context, conv *model.Conversation) error

	// GetConversation retrieves a conversation by ID
	GetConversation(ctx context.Context, id model.ConversationID) (*model.Conversation, error)

	// ListConversations returns conversations of a user, most recent first.
	// limit <= 0 means no limit.
	ListConversations(ctx context.Context, userID string, limit int) ([]*model.Conversation, error)

	// PutNote saves a note record
	PutNote(ctx context.Context, note *model.NoteRecord) error

	// GetNote retrieves a note record by ID
	GetNote(ctx context.Context, id model.NoteID) (*model.NoteRecord, error)

	// ListNotes returns notes of a user, most recent first. limit <= 0 means no limit.
	ListNotes(ctx context.Context, userID string, limit int) ([]*model.NoteRecord, error)

	// DeleteNote removes a note record
	DeleteNote(ctx context.Context, id model.NoteID) error
}
