package history_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/usecase/history"
)

type memStorage map[string][]byte

func (s memStorage) Put(ctx context.Context, key string, data []byte) error {
	s[key] = data
	return nil
}

func (s memStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := s[key]
	if !ok {
		return nil, goerr.Wrap(adapter.ErrObjectNotFound, "missing", goerr.V("key", key))
	}
	return data, nil
}

func sampleEntries() []model.Entry {
	return []model.Entry{
		model.AnnotationBlock{ID: 1, Lines: []model.Line{{Text: "hello"}}},
		model.Annotation{ForID: 1, Text: "a greeting"},
	}
}

func TestShowConversationInline(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	data, err := model.MarshalEntries(sampleEntries())
	gt.NoError(t, err)
	conv := &model.Conversation{ID: model.NewConversationID(), UserID: "u", EntriesJSON: string(data), CreatedAt: time.Now()}
	gt.NoError(t, repo.PutConversation(ctx, conv))

	uc := history.New(repo)
	got, err := uc.ShowConversation(ctx, conv.ID)
	gt.NoError(t, err)
	gt.A(t, got.Entries).Length(2)
	gt.Equal(t, got.Entries[1], model.Entry(model.Annotation{ForID: 1, Text: "a greeting"}))
}

func TestShowConversationArchived(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	storage := memStorage{}

	data, err := model.MarshalEntries(sampleEntries())
	gt.NoError(t, err)
	conv := &model.Conversation{ID: model.NewConversationID(), UserID: "u", BlobKey: "conversations/x.json"}
	gt.NoError(t, storage.Put(ctx, conv.BlobKey, data))
	gt.NoError(t, repo.PutConversation(ctx, conv))

	got, err := history.New(repo, history.WithStorage(storage)).ShowConversation(ctx, conv.ID)
	gt.NoError(t, err)
	gt.A(t, got.Entries).Length(2)

	_, err = history.New(repo).ShowConversation(ctx, conv.ID)
	gt.True(t, errors.Is(err, history.ErrStorageNotConfigured))
}

func TestShowConversationNotFound(t *testing.T) {
	_, err := history.New(repository.NewMemory()).ShowConversation(context.Background(), "missing")
	gt.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestNotes(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	uc := history.New(repo)

	rec := &model.NoteRecord{ID: model.NewNoteID(), UserID: "u", Note: model.Note{Topic: "Trees"}, CreatedAt: time.Now()}
	gt.NoError(t, repo.PutNote(ctx, rec))

	notes, err := uc.ListNotes(ctx, "u", 10)
	gt.NoError(t, err)
	gt.A(t, notes).Length(1)

	got, err := uc.ShowNote(ctx, rec.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Note.Topic, "Trees")

	gt.NoError(t, uc.DeleteNote(ctx, rec.ID))
	err = uc.DeleteNote(ctx, rec.ID)
	gt.True(t, errors.Is(err, repository.ErrNotFound))
}
