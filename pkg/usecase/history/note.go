package history

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
)

func (u *UseCase) ListNotes(ctx context.Context, userID string, limit int) ([]*model.NoteRecord, error) {
	notes, err := u.repo.ListNotes(ctx, userID, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list notes", goerr.V("user_id", userID))
	}
	return notes, nil
}

func (u *UseCase) ShowNote(ctx context.Context, id model.NoteID) (*model.NoteRecord, error) {
	n, err := u.repo.GetNote(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get note", goerr.V("id", id))
	}
	return n, nil
}

func (u *UseCase) DeleteNote(ctx context.Context, id model.NoteID) error {
	if err := u.repo.DeleteNote(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete note", goerr.V("id", id))
	}
	return nil
}
