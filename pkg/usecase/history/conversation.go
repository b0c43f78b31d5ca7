package history

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
)

var ErrStorageNotConfigured = goerr.New("conversation is archived but no storage is configured")

// ListConversations returns conversation summaries of a user, most recent
// first. Entries are not loaded.
func (u *UseCase) ListConversations(ctx context.Context, userID string, limit int) ([]*model.Conversation, error) {
	convs, err := u.repo.ListConversations(ctx, userID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list conversations", goerr.V("user_id", userID))
	}
	return convs, nil
}

// ShowConversation returns a conversation with its entries
func (u *UseCase) ShowConversation(ctx context.Context, id model.ConversationID) (*model.Conversation, error) {
	conv, err := u.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get conversation", goerr.V("id", id))
	}

	entries, err := u.loadEntries(ctx, conv)
	if err != nil {
		return nil, err
	}
	conv.Entries = entries
	return conv, nil
}

func (u *UseCase) loadEntries(ctx context.Context, conv *model.Conversation) ([]model.Entry, error) {
	switch {
	case conv.BlobKey != "":
		if u.storage == nil {
			return nil, goerr.Wrap(ErrStorageNotConfigured, "cannot load entries",
				goerr.V("id", conv.ID),
				goerr.V("key", conv.BlobKey))
		}
		data, err := u.storage.Get(ctx, conv.BlobKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get conversation entries from storage", goerr.V("key", conv.BlobKey))
		}
		entries, err := model.UnmarshalEntries(data)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode archived entries", goerr.V("key", conv.BlobKey))
		}
		return entries, nil

	case conv.EntriesJSON != "":
		entries, err := model.UnmarshalEntries([]byte(conv.EntriesJSON))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode entries", goerr.V("id", conv.ID))
		}
		return entries, nil

	default:
		return nil, nil
	}
}
