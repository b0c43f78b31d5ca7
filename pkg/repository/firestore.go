package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionConversations = "conversations"
	collectionNotes         = "notes"
)

// Firestore implements Repository on Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

var _ Repository = (*Firestore)(nil)

// New creates a Firestore repository for the given project and database
func New(projectID, databaseID string) (*Firestore, error) {
	ctx := context.Background()
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutConversation(ctx context.Context, conv *model.Conversation) error {
	doc := r.client.Collection(collectionConversations).Doc(string(conv.ID))
	if _, err := doc.Set(ctx, conv); err != nil {
		return goerr.Wrap(err, "failed to put conversation", goerr.V("id", conv.ID))
	}
	return nil
}

func (r *Firestore) GetConversation(ctx context.Context, id model.ConversationID) (*model.Conversation, error) {
	snap, err := r.client.Collection(collectionConversations).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "conversation not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V("id", id))
	}

	var conv model.Conversation
	if err := snap.DataTo(&conv); err != nil {
		return nil, goerr.Wrap(err, "failed to decode conversation", goerr.V("id", id))
	}
	return &conv, nil
}

func (r *Firestore) ListConversations(ctx context.Context, userID string, limit int) ([]*model.Conversation, error) {
	query := r.client.Collection(collectionConversations).
		Where("UserID", "==", userID).
		OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var convs []*model.Conversation
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate conversations", goerr.V("user_id", userID))
		}

		var conv model.Conversation
		if err := snap.DataTo(&conv); err != nil {
			return nil, goerr.Wrap(err, "failed to decode conversation", goerr.V("doc_id", snap.Ref.ID))
		}
		convs = append(convs, &conv)
	}

	return convs, nil
}

func (r *Firestore) PutNote(ctx context.Context, note *model.NoteRecord) error {
	doc := r.client.Collection(collectionNotes).Doc(string(note.ID))
	if _, err := doc.Set(ctx, note); err != nil {
		return goerr.Wrap(err, "failed to put note", goerr.V("id", note.ID))
	}
	return nil
}

func (r *Firestore) GetNote(ctx context.Context, id model.NoteID) (*model.NoteRecord, error) {
	snap, err := r.client.Collection(collectionNotes).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "note not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get note", goerr.V("id", id))
	}

	var note model.NoteRecord
	if err := snap.DataTo(&note); err != nil {
		return nil, goerr.Wrap(err, "failed to decode note", goerr.V("id", id))
	}
	return &note, nil
}

func (r *Firestore) ListNotes(ctx context.Context, userID string, limit int) ([]*model.NoteRecord, error) {
	query := r.client.Collection(collectionNotes).
		Where("UserID", "==", userID).
		OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var notes []*model.NoteRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate notes", goerr.V("user_id", userID))
		}

		var note model.NoteRecord
		if err := snap.DataTo(&note); err != nil {
			return nil, goerr.Wrap(err, "failed to decode note", goerr.V("doc_id", snap.Ref.ID))
		}
		notes = append(notes, &note)
	}

	return notes, nil
}

func (r *Firestore) DeleteNote(ctx context.Context, id model.NoteID) error {
	doc := r.client.Collection(collectionNotes).Doc(string(id))
	if _, err := doc.Delete(ctx, firestore.Exists); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "note not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to delete note", goerr.V("id", id))
	}
	return nil
}
