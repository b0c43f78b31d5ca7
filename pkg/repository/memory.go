package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
)

// Memory is an in-process Repository for offline runs and tests
type Memory struct {
	mu            sync.RWMutex
	conversations map[model.ConversationID]model.Conversation
	notes         map[model.NoteID]model.NoteRecord
}

var _ Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[model.ConversationID]model.Conversation),
		notes:         make(map[model.NoteID]model.NoteRecord),
	}
}

func (r *Memory) PutConversation(ctx context.Context, conv *model.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *conv
	stored.Entries = nil
	r.conversations[conv.ID] = stored
	return nil
}

func (r *Memory) GetConversation(ctx context.Context, id model.ConversationID) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "conversation not found", goerr.V("id", id))
	}
	return &conv, nil
}

func (r *Memory) ListConversations(ctx context.Context, userID string, limit int) ([]*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var convs []*model.Conversation
	for _, conv := range r.conversations {
		if conv.UserID == userID {
			c := conv
			convs = append(convs, &c)
		}
	}
	slices.SortFunc(convs, func(a, b *model.Conversation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return truncate(convs, limit), nil
}

func (r *Memory) PutNote(ctx context.Context, note *model.NoteRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *note
	stored.Note = cloneNote(note.Note)
	r.notes[note.ID] = stored
	return nil
}

func (r *Memory) GetNote(ctx context.Context, id model.NoteID) (*model.NoteRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	note, ok := r.notes[id]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "note not found", goerr.V("id", id))
	}
	note.Note = cloneNote(note.Note)
	return &note, nil
}

func (r *Memory) ListNotes(ctx context.Context, userID string, limit int) ([]*model.NoteRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var notes []*model.NoteRecord
	for _, note := range r.notes {
		if note.UserID == userID {
			n := note
			n.Note = cloneNote(note.Note)
			notes = append(notes, &n)
		}
	}
	slices.SortFunc(notes, func(a, b *model.NoteRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return truncate(notes, limit), nil
}

func (r *Memory) DeleteNote(ctx context.Context, id model.NoteID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[id]; !ok {
		return goerr.Wrap(ErrNotFound, "note not found", goerr.V("id", id))
	}
	delete(r.notes, id)
	return nil
}

func cloneNote(n model.Note) model.Note {
	n.KeyConcepts = slices.Clone(n.KeyConcepts)
	n.BulletNotes = slices.Clone(n.BulletNotes)
	n.Definitions = slices.Clone(n.Definitions)
	n.Questions = slices.Clone(n.Questions)
	return n
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
